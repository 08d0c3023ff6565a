// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package embedding turns query and document text into vectors for
// similarity search.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Embedder returns the embedding vector of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts a function to Embedder. An *ollama.Client plugs in as
// Func(client.Embed).
type Func func(ctx context.Context, text string) ([]float32, error)

// Embed calls f.
func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// ============================================================================
// OPENAI
// ============================================================================

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "text-embedding-3-small"

// OpenAI embeds text through any OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client     openai.Client
	model      string
	dimensions int
}

// NewOpenAI builds an embedder. dimensions <= 0 keeps the model default.
// Each Embed call makes a single attempt; the SDK's retries are disabled.
func NewOpenAI(apiKey, baseURL, model string, dimensions int) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAI{client: openai.NewClient(opts...), model: model, dimensions: dimensions}
}

// Embed implements Embedder.
func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          openai.EmbeddingModel(e.model),
		Input:          openai.EmbeddingNewParamsInputUnion{OfString: openai.String(text)},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	if e.dimensions > 0 {
		params.Dimensions = openai.Int(int64(e.dimensions))
	}

	resp, err := e.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("embedding %q: %w", e.model, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embedding %q: empty response", e.model)
	}

	src := resp.Data[0].Embedding
	vec := make([]float32, len(src))
	for i, v := range src {
		vec[i] = float32(v)
	}
	return vec, nil
}

// ============================================================================
// CACHE
// ============================================================================

// Cached memoizes another embedder in a bounded LRU keyed by text hash.
// Returned vectors are copies; callers may modify them.
type Cached struct {
	inner Embedder
	mu    sync.Mutex
	cache *lru.Cache[string, []float32]
}

// NewCached wraps inner with an LRU of size entries.
func NewCached(inner Embedder, size int) (*Cached, error) {
	if inner == nil {
		return nil, errors.New("embedding: inner embedder is required")
	}
	if size <= 0 {
		return nil, fmt.Errorf("embedding: cache size must be greater than zero, got %d", size)
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("embedding: init cache: %w", err)
	}
	return &Cached{inner: inner, cache: cache}, nil
}

// Embed implements Embedder.
func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(text)

	c.mu.Lock()
	vec, ok := c.cache.Get(key)
	c.mu.Unlock()
	if ok {
		return slices.Clone(vec), nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) > 0 {
		c.mu.Lock()
		c.cache.Add(key, slices.Clone(vec))
		c.mu.Unlock()
	}
	return vec, nil
}

// Len returns the number of cached vectors.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
