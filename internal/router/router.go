// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"maps"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
	"github.com/Andre-cardia/c4marketing-sub000/internal/logger"
	"github.com/Andre-cardia/c4marketing-sub000/internal/util"
)

// DefaultThreshold is the minimum confidence for a reasoner decision.
const DefaultThreshold = 0.7

// maxLoggedMessage bounds the message excerpt written to the audit log.
const maxLoggedMessage = 120

// Reasoner proposes a decision for a request. Implementations may call a
// language model; any error means the reasoner is unavailable.
type Reasoner interface {
	Reason(ctx context.Context, in decision.RouterInput) (decision.RouteDecision, error)
}

// ReasonerFunc adapts a function to the Reasoner interface.
type ReasonerFunc func(ctx context.Context, in decision.RouterInput) (decision.RouteDecision, error)

// Reason calls f.
func (f ReasonerFunc) Reason(ctx context.Context, in decision.RouterInput) (decision.RouteDecision, error) {
	return f(ctx, in)
}

// Options configures a Router. Zero values select defaults.
type Options struct {
	Lexicon   *Lexicon
	Reasoner  Reasoner
	Threshold float64
	Logger    logger.Logger
}

// Router combines the hard gates, an optional reasoner and the heuristic
// classifier. It holds no per-request state and is safe for concurrent use.
type Router struct {
	gate       *HardGate
	classifier *Classifier
	guard      *Guard
	reasoner   Reasoner
	threshold  float64
	log        logger.Logger
	tracer     trace.Tracer
}

// New builds a Router.
func New(opts Options) *Router {
	lex := opts.Lexicon
	if lex == nil {
		lex = DefaultLexicon()
	}
	threshold := opts.Threshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultThreshold
	}
	return &Router{
		gate:       NewHardGate(lex),
		classifier: NewClassifier(lex),
		guard:      NewGuard(lex),
		reasoner:   opts.Reasoner,
		threshold:  threshold,
		log:        opts.Logger,
		tracer:     otel.Tracer("c4route.router"),
	}
}

// Classifier exposes the heuristic classifier.
func (r *Router) Classifier() *Classifier { return r.classifier }

// Route decides where a request goes. The only error returned is the
// caller's context error; every other failure degrades to the heuristic
// decision.
func (r *Router) Route(ctx context.Context, in decision.RouterInput) (decision.RouteDecision, error) {
	if err := ctx.Err(); err != nil {
		return decision.RouteDecision{}, err
	}
	ctx, span := r.tracer.Start(ctx, "router.route", trace.WithAttributes(
		attribute.String("tenant_id", in.TenantID),
		attribute.String("session_id", in.SessionID),
	))
	defer span.End()

	log := r.logger(ctx).With(
		"tenant_id", in.TenantID,
		"session_id", in.SessionID,
		"message", util.TruncateRunes(in.UserMessage, maxLoggedMessage),
	)

	// ========================================================================
	// ROUTING ORDER (DO NOT REORDER):
	// 1. Hard gates (reasoner never consulted on a match)
	// 2. Reasoner, accepted only if valid and confident
	// 3. Heuristic classifier
	// ========================================================================

	if d, ok := r.gate.Check(in.UserMessage, in); ok {
		log.Debug("route state", "state", "hard_gate_checked", "gated", true)
		return r.decided(span, log, d), nil
	}
	log.Debug("route state", "state", "hard_gate_checked", "gated", false)

	if r.reasoner != nil {
		d, ok := r.reason(ctx, log, in)
		if err := ctx.Err(); err != nil {
			return decision.RouteDecision{}, err
		}
		if ok {
			return r.decided(span, log, d), nil
		}
		log.Debug("route state", "state", "heuristic_fallback")
	}

	return r.decided(span, log, r.classifier.Classify(in.UserMessage, in)), nil
}

// reason makes one reasoner call and reports whether its decision is usable.
func (r *Router) reason(ctx context.Context, log logger.Logger, in decision.RouterInput) (decision.RouteDecision, bool) {
	proposed, err := r.reasoner.Reason(ctx, in)
	log.Debug("route state", "state", "reasoning_attempted")
	if err != nil {
		log.Warn("reasoner unavailable", "error", err)
		return decision.RouteDecision{}, false
	}
	if err := proposed.Validate(); err != nil {
		log.Warn("reasoner decision rejected", "error", err)
		return decision.RouteDecision{}, false
	}
	if proposed.Confidence < r.threshold {
		log.Debug("reasoner decision below threshold",
			"confidence", proposed.Confidence, "threshold", r.threshold)
		return decision.RouteDecision{}, false
	}

	d := proposed.Clone()
	d.Source = decision.SourceReasoner
	if forced, overridden := r.guard.Apply(in.UserMessage, in, d); overridden {
		log.Info("reasoner decision overridden", "proposed_agent", proposed.Agent, "agent", forced.Agent)
		d = forced
	}
	return sanitize(d, in), true
}

// sanitize forces the request's tenant and scope into a reasoner decision,
// clamps top_k and re-normalizes the filters. Model output never widens what
// a policy admits.
func sanitize(d decision.RouteDecision, in decision.RouterInput) decision.RouteDecision {
	d.Filters.TenantID = in.TenantID
	d.Filters.ClientID = in.ClientID
	d.Filters.ProjectID = in.ProjectID
	d.Filters.SourceID = in.SourceID
	d.Filters = decision.ApplyPolicy(d.Filters, d.Policy)
	d.TopK = decision.ClampTopK(d.TopK)
	if d.ToolHint == "" {
		d.ToolHint = decision.ToolRAGSearch
	}
	if d.DBQuery != nil {
		params := maps.Clone(d.DBQuery.Params)
		if params == nil {
			params = make(map[string]any)
		}
		params["tenant_id"] = in.TenantID
		d.DBQuery.Params = params
	}
	return d
}

func (r *Router) decided(span trace.Span, log logger.Logger, d decision.RouteDecision) decision.RouteDecision {
	span.SetAttributes(
		attribute.String("agent", string(d.Agent)),
		attribute.String("retrieval_policy", string(d.Policy)),
		attribute.String("source", string(d.Source)),
		attribute.Float64("confidence", d.Confidence),
	)
	log.Info("route decided",
		"agent", d.Agent,
		"policy", d.Policy,
		"artifact", d.ArtifactKind,
		"risk", d.RiskLevel,
		"tool", d.ToolHint,
		"confidence", d.Confidence,
		"source", d.Source,
		"reason", d.Reason,
	)
	return d
}

func (r *Router) logger(ctx context.Context) logger.Logger {
	if r.log != nil {
		return r.log
	}
	return logger.FromContext(ctx)
}
