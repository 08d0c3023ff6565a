// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package retrieval runs the similarity search a specialist performs before
// answering. Filters are re-normalized here no matter who built them.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
	"github.com/Andre-cardia/c4marketing-sub000/internal/logger"
)

// UserMessage is what an end user sees when retrieval fails.
const UserMessage = "unable to retrieve supporting documents for this answer"

var (
	ErrMissingTenant = errors.New("retrieval: tenant is required")
	ErrEmptyQuery    = errors.New("retrieval: query is required")
)

// Embedder returns the embedding of a query.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher runs a similarity search over normalized filters.
type Searcher interface {
	Search(ctx context.Context, embedding []float32, matchCount int, filters decision.RouteFilters) ([]decision.RetrievedDoc, error)
}

// Constraints reports the categories an agent may never use as evidence.
type Constraints interface {
	ForbiddenEvidence(agent decision.AgentName) []decision.DocumentCategory
}

// Params is one retrieval request, normally taken from a RouteDecision.
type Params struct {
	Query         string
	Filters       decision.RouteFilters
	Policy        decision.RetrievalPolicy
	Agent         decision.AgentName
	TopK          int
	MinSimilarity float64
}

// FromDecision builds Params for query out of a routing decision.
func FromDecision(query string, d decision.RouteDecision) Params {
	return Params{
		Query:   query,
		Filters: d.Filters.Clone(),
		Policy:  d.Policy,
		Agent:   d.Agent,
		TopK:    d.TopK,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// Stage names the step that failed.
type Stage string

const (
	StageEmbed  Stage = "embed"
	StageSearch Stage = "search"
)

// RetrievalError is returned when the embedder or the similarity search
// fails. The cause is kept for logs; UserMessage is safe to show.
type RetrievalError struct {
	Stage Stage
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// UserMessage returns the end-user text for this failure.
func (e *RetrievalError) UserMessage() string { return UserMessage }

// =============================================================================
// RETRIEVER
// =============================================================================

// Retriever embeds a query and searches with policy-normalized filters.
type Retriever struct {
	embedder    Embedder
	searcher    Searcher
	constraints Constraints
	tracer      trace.Tracer
}

// New builds a Retriever. constraints may be nil, in which case no per-agent
// evidence rule is applied.
func New(emb Embedder, searcher Searcher, constraints Constraints) (*Retriever, error) {
	if emb == nil {
		return nil, errors.New("retrieval: embedder is required")
	}
	if searcher == nil {
		return nil, errors.New("retrieval: searcher is required")
	}
	return &Retriever{
		embedder:    emb,
		searcher:    searcher,
		constraints: constraints,
		tracer:      otel.Tracer("c4route.retrieval"),
	}, nil
}

// Retrieve returns documents ranked by descending similarity. Every hit
// belongs to a category the final filters allow and scores at least
// p.MinSimilarity. Embedder and search failures come back as *RetrievalError.
func (r *Retriever) Retrieve(ctx context.Context, p Params) (docs []decision.RetrievedDoc, err error) {
	if strings.TrimSpace(p.Query) == "" {
		return nil, ErrEmptyQuery
	}
	if p.Filters.TenantID == "" {
		return nil, ErrMissingTenant
	}

	topK := decision.ClampTopK(p.TopK)
	filters := r.finalFilters(p)

	log := logger.FromContext(ctx).With("tenant_id", filters.TenantID, "agent", p.Agent, "policy", p.Policy)
	start := time.Now()
	ctx, span := r.tracer.Start(ctx, "retrieval.retrieve", trace.WithAttributes(
		attribute.String("policy", string(p.Policy)),
		attribute.String("agent", string(p.Agent)),
		attribute.Int("top_k", topK),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Error("Retrieval failed", "error", err, "duration", time.Since(start))
		} else {
			span.SetAttributes(attribute.Int("results", len(docs)))
			log.Debug("Retrieval finished", "results", len(docs), "duration", time.Since(start))
		}
		span.End()
	}()

	vec, err := r.embedQuery(ctx, p.Query)
	if err != nil {
		return nil, &RetrievalError{Stage: StageEmbed, Err: err}
	}
	hits, err := r.search(ctx, vec, topK, filters)
	if err != nil {
		return nil, &RetrievalError{Stage: StageSearch, Err: err}
	}

	docs = keep(hits, filters, p.MinSimilarity)
	sort.SliceStable(docs, func(i, j int) bool {
		return docs[i].Similarity > docs[j].Similarity
	})
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// finalFilters re-applies the policy and then the agent's evidence rule.
func (r *Retriever) finalFilters(p Params) decision.RouteFilters {
	filters := decision.ApplyPolicy(p.Filters, p.Policy)
	if r.constraints != nil && p.Agent != "" {
		filters = decision.Constrain(filters, r.constraints.ForbiddenEvidence(p.Agent))
	}
	return filters
}

func (r *Retriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	ctx, span := r.tracer.Start(ctx, "retrieval.embed_query")
	defer span.End()
	vec, err := r.embedder.Embed(ctx, query)
	if err == nil && len(vec) == 0 {
		err = errors.New("empty embedding")
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("dimensions", len(vec)))
	return vec, nil
}

func (r *Retriever) search(ctx context.Context, vec []float32, topK int, filters decision.RouteFilters) ([]decision.RetrievedDoc, error) {
	ctx, span := r.tracer.Start(ctx, "retrieval.vector_search", trace.WithAttributes(
		attribute.Int("top_k", topK),
	))
	defer span.End()
	hits, err := r.searcher.Search(ctx, vec, topK, filters)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("matches", len(hits)))
	return hits, nil
}

// keep drops hits under the similarity floor and hits whose category is
// missing or not allowed by filters.
func keep(hits []decision.RetrievedDoc, filters decision.RouteFilters, minSimilarity float64) []decision.RetrievedDoc {
	out := make([]decision.RetrievedDoc, 0, len(hits))
	for _, h := range hits {
		if h.Similarity < minSimilarity {
			continue
		}
		cat, ok := h.Category()
		if !ok || !filters.Allows(cat) {
			continue
		}
		out = append(out, h)
	}
	return out
}
