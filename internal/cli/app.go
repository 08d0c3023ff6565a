// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"

	"github.com/Andre-cardia/c4marketing-sub000/internal/agents"
	"github.com/Andre-cardia/c4marketing-sub000/internal/config"
	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
	"github.com/Andre-cardia/c4marketing-sub000/internal/embedding"
	"github.com/Andre-cardia/c4marketing-sub000/internal/logger"
	"github.com/Andre-cardia/c4marketing-sub000/internal/ollama"
	"github.com/Andre-cardia/c4marketing-sub000/internal/reasoner"
	"github.com/Andre-cardia/c4marketing-sub000/internal/retrieval"
	"github.com/Andre-cardia/c4marketing-sub000/internal/router"
	"github.com/Andre-cardia/c4marketing-sub000/internal/store"
)

// =============================================================================
// STORE HANDLE
// =============================================================================

// DocumentStore is what the CLI needs from a backend: similarity search for
// retrieval and inserts for ingest.
type DocumentStore interface {
	retrieval.Searcher
	store.Inserter
}

// Querier runs structured db_query calls. Only the Postgres backend has one.
type Querier interface {
	Call(ctx context.Context, q *decision.DBQuery) ([]map[string]any, error)
}

// StoreHandle is an opened backend.
type StoreHandle struct {
	Docs    DocumentStore
	Querier Querier
	Close   func()
}

// =============================================================================
// DEPENDENCIES
// =============================================================================

// deps builds the runtime components from configuration. Tests replace
// individual builders.
type deps struct {
	loadConfig  func(path string) (*config.Config, error)
	newEmbedder func(cfg *config.Config) (embedding.Embedder, error)
	newReasoner func(cfg *config.Config) (router.Reasoner, error)
	openStore   func(ctx context.Context, cfg *config.Config) (*StoreHandle, error)
	pingOllama  func(ctx context.Context, baseURL string) error
}

func defaultDeps() deps {
	return deps{
		loadConfig:  loadConfig,
		newEmbedder: newEmbedder,
		newReasoner: newReasoner,
		openStore:   openStore,
		pingOllama:  pingOllama,
	}
}

// loadConfig reads path when given, otherwise the default locations.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// newEmbedder builds the configured embedder, wrapped in an LRU cache when
// cache_size is positive.
func newEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	var emb embedding.Embedder
	switch cfg.Embedding.Provider {
	case "openai":
		emb = embedding.NewOpenAI(cfg.Embedding.APIKey, cfg.Embedding.BaseURL, cfg.Embedding.Model, cfg.Embedding.Dimensions)
	case "ollama":
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:    cfg.Embedding.BaseURL,
			EmbedModel: cfg.Embedding.Model,
		})
		emb = embedding.Func(client.Embed)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}

	if cfg.Embedding.CacheSize > 0 {
		cached, err := embedding.NewCached(emb, cfg.Embedding.CacheSize)
		if err != nil {
			return nil, err
		}
		return cached, nil
	}
	return emb, nil
}

// newReasoner returns nil when reasoning is disabled.
func newReasoner(cfg *config.Config) (router.Reasoner, error) {
	if !cfg.Routing.ReasoningEnabled {
		return nil, nil
	}

	var completer reasoner.Completer
	switch cfg.Reasoner.Provider {
	case "openai":
		completer = reasoner.NewOpenAICompleter(cfg.Reasoner.APIKey, cfg.Reasoner.BaseURL, cfg.Reasoner.Model)
	case "ollama":
		client := ollama.NewClientWithConfig(&ollama.ClientConfig{
			BaseURL:   cfg.Reasoner.BaseURL,
			Timeout:   cfg.Routing.ReasonerTimeout,
			ChatModel: cfg.Reasoner.Model,
		})
		completer = reasoner.CompleterFunc(client.CompleteJSON)
	default:
		return nil, fmt.Errorf("reasoning enabled but provider is %q", cfg.Reasoner.Provider)
	}

	rs, err := reasoner.New(completer, reasoner.Config{
		Timeout:             cfg.Routing.ReasonerTimeout,
		RatePerSecond:       cfg.Routing.ReasonerRPS,
		Burst:               cfg.Routing.ReasonerBurst,
		TenantRatePerSecond: cfg.Routing.TenantRPS,
		TenantBurst:         cfg.Routing.TenantBurst,
		AllowedRPCs:         allowedRPCs(cfg),
	})
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// openStore opens the configured backend.
func openStore(ctx context.Context, cfg *config.Config) (*StoreHandle, error) {
	switch cfg.Store.Driver {
	case "postgres":
		pool, err := store.Connect(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		pg := store.NewPostgres(pool, allowedRPCs(cfg))
		return &StoreHandle{Docs: pg, Querier: pg, Close: pool.Close}, nil
	case "sqlite":
		db, err := store.OpenSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		return &StoreHandle{Docs: db, Close: func() { _ = db.Close() }}, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func allowedRPCs(cfg *config.Config) []string {
	if len(cfg.Store.AllowedRPCs) > 0 {
		return cfg.Store.AllowedRPCs
	}
	return router.KnownRPCs()
}

// =============================================================================
// APP
// =============================================================================

// App is one CLI invocation's worth of wired components. Store-backed
// pieces are opened on first use.
type App struct {
	Config *config.Config
	Log    logger.Logger
	Router *router.Router
	Agents *agents.Registry

	deps  deps
	store *StoreHandle
	emb   embedding.Embedder
}

func newApp(cfg *config.Config, log logger.Logger, d deps) (*App, error) {
	r, err := d.newReasoner(cfg)
	if err != nil {
		return nil, fmt.Errorf("reasoner: %w", err)
	}
	registry, err := agents.NewRegistry()
	if err != nil {
		return nil, err
	}

	opts := router.Options{Threshold: cfg.Routing.ConfidenceThreshold, Logger: log}
	if r != nil {
		opts.Reasoner = r
	}
	return &App{
		Config: cfg,
		Log:    log,
		Router: router.New(opts),
		Agents: registry,
		deps:   d,
	}, nil
}

// Store opens the backend once.
func (a *App) Store(ctx context.Context) (*StoreHandle, error) {
	if a.store != nil {
		return a.store, nil
	}
	h, err := a.deps.openStore(ctx, a.Config)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = h
	return h, nil
}

// Embedder builds the embedder once.
func (a *App) Embedder() (embedding.Embedder, error) {
	if a.emb != nil {
		return a.emb, nil
	}
	emb, err := a.deps.newEmbedder(a.Config)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	a.emb = emb
	return emb, nil
}

// Retriever wires the embedder, the store and the agent registry.
func (a *App) Retriever(ctx context.Context) (*retrieval.Retriever, error) {
	emb, err := a.Embedder()
	if err != nil {
		return nil, err
	}
	h, err := a.Store(ctx)
	if err != nil {
		return nil, err
	}
	return retrieval.New(emb, h.Docs, a.Agents)
}

// Close releases the store, if one was opened.
func (a *App) Close() {
	if a.store != nil && a.store.Close != nil {
		a.store.Close()
	}
}
