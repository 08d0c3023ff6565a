// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package reasoner asks a language model for a routing decision. It builds the
// prompt, bounds every call with a timeout and a rate limit, and parses the
// JSON answer into a validated decision. Any failure is an error: the router
// treats it as "reasoner unavailable" and falls back to heuristics.
package reasoner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

// ErrRateLimited is returned when the call budget is exhausted.
var ErrRateLimited = errors.New("reasoner: rate limited")

// Completer returns the raw text of a JSON completion.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// CompleterFunc adapts a function to Completer. An *ollama.Client plugs in as
// CompleterFunc(client.CompleteJSON).
type CompleterFunc func(ctx context.Context, system, user string) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}

// Config bounds reasoner calls.
type Config struct {
	// Timeout per call (default: 8s)
	Timeout time.Duration

	// RatePerSecond and Burst bound calls across all tenants (default: 5/s, 10)
	RatePerSecond float64
	Burst         int

	// TenantRatePerSecond and TenantBurst bound calls per tenant (default: 1/s, 5)
	TenantRatePerSecond float64
	TenantBurst         int

	// AllowedRPCs restricts structured-query names a model may propose.
	// Empty allows any name.
	AllowedRPCs []string
}

// DefaultConfig returns the default limits.
func DefaultConfig() Config {
	return Config{
		Timeout:             8 * time.Second,
		RatePerSecond:       5,
		Burst:               10,
		TenantRatePerSecond: 1,
		TenantBurst:         5,
	}
}

// maxTenantLimiters bounds the per-tenant limiter cache.
const maxTenantLimiters = 1024

// Reasoner is a rate-limited, time-bounded routing reasoner. It is safe for
// concurrent use.
type Reasoner struct {
	completer Completer
	cfg       Config
	limiter   *rate.Limiter

	tenantMu sync.Mutex
	tenants  *lru.Cache[string, *rate.Limiter]
}

// New builds a Reasoner over completer. Zero config fields take defaults.
func New(completer Completer, cfg Config) (*Reasoner, error) {
	if completer == nil {
		return nil, errors.New("reasoner: completer is required")
	}
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.TenantRatePerSecond <= 0 {
		cfg.TenantRatePerSecond = def.TenantRatePerSecond
	}
	if cfg.TenantBurst <= 0 {
		cfg.TenantBurst = def.TenantBurst
	}
	tenants, err := lru.New[string, *rate.Limiter](maxTenantLimiters)
	if err != nil {
		return nil, fmt.Errorf("reasoner: init tenant limiters: %w", err)
	}
	return &Reasoner{
		completer: completer,
		cfg:       cfg,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		tenants:   tenants,
	}, nil
}

// Reason makes exactly one completion call and returns the parsed decision.
// Denied calls fail fast with ErrRateLimited; they never wait.
func (r *Reasoner) Reason(ctx context.Context, in decision.RouterInput) (decision.RouteDecision, error) {
	if !r.tenantLimiter(in.TenantID).Allow() || !r.limiter.Allow() {
		return decision.RouteDecision{}, ErrRateLimited
	}

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	raw, err := r.completer.Complete(ctx, SystemPrompt(), UserPrompt(in))
	if err != nil {
		return decision.RouteDecision{}, fmt.Errorf("reasoner: complete: %w", err)
	}
	d, err := ParseDecision(raw, r.cfg.AllowedRPCs)
	if err != nil {
		return decision.RouteDecision{}, fmt.Errorf("reasoner: %w", err)
	}
	return d, nil
}

// tenantLimiter returns the limiter for tenant, creating one if needed.
func (r *Reasoner) tenantLimiter(tenant string) *rate.Limiter {
	r.tenantMu.Lock()
	defer r.tenantMu.Unlock()

	if l, ok := r.tenants.Get(tenant); ok {
		return l
	}
	l := rate.NewLimiter(rate.Limit(r.cfg.TenantRatePerSecond), r.cfg.TenantBurst)
	r.tenants.Add(tenant, l)
	return l
}
