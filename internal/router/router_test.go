// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
	"github.com/Andre-cardia/c4marketing-sub000/internal/logger"
)

// countingReasoner returns a fixed decision (or error) and counts calls.
type countingReasoner struct {
	d     decision.RouteDecision
	err   error
	calls atomic.Int32
}

func (r *countingReasoner) Reason(_ context.Context, _ decision.RouterInput) (decision.RouteDecision, error) {
	r.calls.Add(1)
	return r.d.Clone(), r.err
}

func projectProposal(confidence float64) decision.RouteDecision {
	return decision.RouteDecision{
		ArtifactKind: decision.ArtifactProject,
		TaskKind:     decision.TaskFactualLookup,
		RiskLevel:    decision.RiskLow,
		Agent:        decision.AgentProjects,
		Policy:       decision.PolicyStrictDocsOnly,
		Filters:      decision.RouteFilters{TenantID: "tenant-1"},
		TopK:         8,
		ToolHint:     decision.ToolRAGSearch,
		Confidence:   confidence,
		Reason:       "model: project status question",
	}
}

func newTestRouter(r Reasoner) *Router {
	return New(Options{Reasoner: r, Logger: logger.NewForTests()})
}

// ============================================================================
// END-TO-END SCENARIOS
// ============================================================================

func TestRoute_EndToEnd(t *testing.T) {
	r := newTestRouter(nil)
	ctx := context.Background()

	t.Run("proposal value is gated", func(t *testing.T) {
		msg := "Qual o valor da proposta enviada para a Acme?"
		d, err := r.Route(ctx, testInput(msg))
		require.NoError(t, err)
		assert.Equal(t, decision.AgentProposals, d.Agent)
		assert.Equal(t, decision.RiskHigh, d.RiskLevel)
		assert.Equal(t, decision.PolicyStrictDocsOnly, d.Policy)
		assert.Equal(t, decision.SourceHardGate, d.Source)
	})

	t.Run("project listing", func(t *testing.T) {
		msg := "Liste todos os projetos ativos de tráfego"
		d, err := r.Route(ctx, testInput(msg))
		require.NoError(t, err)
		assert.Equal(t, decision.AgentProjects, d.Agent)
		assert.Equal(t, decision.ToolDBQuery, d.ToolHint)
		require.NotNil(t, d.DBQuery)
		assert.Equal(t, "active", d.DBQuery.Params["status"])
		assert.Equal(t, "traffic", d.DBQuery.Params["service_type"])
	})

	t.Run("greeting falls back", func(t *testing.T) {
		d, err := r.Route(ctx, testInput("oi, bom dia"))
		require.NoError(t, err)
		assert.Equal(t, decision.AgentGeneral, d.Agent)
		assert.Equal(t, decision.PolicyStrictDocsOnly, d.Policy)
		assert.InDelta(t, 0.45, d.Confidence, 1e-9)
	})
}

// ============================================================================
// REASONER HANDLING
// ============================================================================

func TestRoute_GateSkipsReasoner(t *testing.T) {
	rsn := &countingReasoner{d: decision.RouteDecision{
		ArtifactKind: decision.ArtifactClient,
		TaskKind:     decision.TaskFactualLookup,
		RiskLevel:    decision.RiskLow,
		Agent:        decision.AgentClients,
		Policy:       decision.PolicyDocsPlusRecentChat,
		Confidence:   0.99,
	}}
	msg := "Preciso revisar a rescisão do cliente X"
	d, err := newTestRouter(rsn).Route(context.Background(), testInput(msg))
	require.NoError(t, err)

	assert.Equal(t, decision.AgentContracts, d.Agent)
	assert.Equal(t, decision.ArtifactContract, d.ArtifactKind)
	assert.Equal(t, decision.PolicyStrictDocsOnly, d.Policy)
	assert.Equal(t, decision.RiskHigh, d.RiskLevel)
	assert.Zero(t, rsn.calls.Load(), "reasoner must not be consulted for gated messages")
}

func TestRoute_FallbackEquivalence(t *testing.T) {
	msgs := []string{
		"Liste todos os projetos ativos de tráfego",
		"Em que fase está o projeto da Acme?",
		"O que conversamos ontem?",
		"oi, bom dia",
	}
	reasoners := map[string]Reasoner{
		"none":        nil,
		"error":       &countingReasoner{err: errors.New("connection refused")},
		"low":         &countingReasoner{d: projectProposal(0.5)},
		"invalid":     &countingReasoner{d: decision.RouteDecision{Agent: "lawyer-bot", Confidence: 0.99}},
		"below-floor": &countingReasoner{d: projectProposal(0.69)},
	}
	classifier := NewClassifier(nil)

	for name, rsn := range reasoners {
		r := newTestRouter(rsn)
		for _, msg := range msgs {
			d, err := r.Route(context.Background(), testInput(msg))
			require.NoError(t, err)
			assert.Equal(t, classifier.Classify(msg, testInput(msg)), d, "%s: %q", name, msg)
		}
	}
}

func TestRoute_AcceptsConfidentReasoner(t *testing.T) {
	rsn := &countingReasoner{d: projectProposal(0.85)}
	msg := "Em que fase está o projeto da Acme?"
	d, err := newTestRouter(rsn).Route(context.Background(), testInput(msg))
	require.NoError(t, err)

	assert.Equal(t, int32(1), rsn.calls.Load())
	assert.Equal(t, decision.SourceReasoner, d.Source)
	assert.Equal(t, "model: project status question", d.Reason)
	assert.InDelta(t, 0.85, d.Confidence, 1e-9)
}

func TestRoute_ThresholdIsInclusive(t *testing.T) {
	rsn := &countingReasoner{d: projectProposal(DefaultThreshold)}
	msg := "Em que fase está o projeto?"
	d, err := newTestRouter(rsn).Route(context.Background(), testInput(msg))
	require.NoError(t, err)
	assert.Equal(t, decision.SourceReasoner, d.Source)
}

func TestRoute_SanitizesReasonerDecision(t *testing.T) {
	proposed := projectProposal(0.9)
	proposed.Filters = decision.RouteFilters{
		TenantID:          "other-tenant",
		ClientID:          "someone-else",
		AllowCategories:   []decision.DocumentCategory{decision.CategoryChatLog, decision.CategorySystemNote},
		TimeWindowMinutes: 600,
	}
	proposed.TopK = 99
	proposed.ToolHint = decision.ToolDBQuery
	proposed.DBQuery = &decision.DBQuery{RPCName: RPCAllProjects, Params: map[string]any{"tenant_id": "other-tenant"}}

	msg := "Em que fase está o projeto?"
	in := testInput(msg)
	in.ProjectID = "project-7"
	d, err := newTestRouter(&countingReasoner{d: proposed}).Route(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, "tenant-1", d.Filters.TenantID)
	assert.Empty(t, d.Filters.ClientID)
	assert.Equal(t, "project-7", d.Filters.ProjectID)
	assert.Equal(t, decision.MaxTopK, d.TopK)
	assert.NotContains(t, d.Filters.AllowCategories, decision.CategoryChatLog)
	assert.NotContains(t, d.Filters.AllowCategories, decision.CategorySystemNote)
	assert.Contains(t, d.Filters.BlockCategories, decision.CategoryChatLog)
	assert.Zero(t, d.Filters.TimeWindowMinutes)
	assert.Equal(t, "tenant-1", d.DBQuery.Params["tenant_id"])
}

func TestRoute_ReasonerCannotReachOtherTenant(t *testing.T) {
	proposed := projectProposal(0.95)
	proposed.Filters.TenantID = ""
	d, err := newTestRouter(&countingReasoner{d: proposed}).Route(context.Background(), testInput("status do projeto"))
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", d.Filters.TenantID)
}

func TestRoute_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestRouter(nil).Route(ctx, testInput("oi"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRoute_CancelledDuringReasoning(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	rsn := ReasonerFunc(func(ctx context.Context, _ decision.RouterInput) (decision.RouteDecision, error) {
		cancel()
		return decision.RouteDecision{}, ctx.Err()
	})
	d, err := newTestRouter(rsn).Route(ctx, testInput("Em que fase está o projeto?"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, decision.RouteDecision{}, d)
}

func TestRoute_Concurrent(t *testing.T) {
	r := newTestRouter(&countingReasoner{d: projectProposal(0.5)})
	msgs := []string{
		"Qual o valor do contrato?",
		"Liste todos os projetos ativos de tráfego",
		"oi, bom dia",
	}
	want := make([]decision.RouteDecision, len(msgs))
	for i, msg := range msgs {
		want[i], _ = r.Route(context.Background(), testInput(msg))
	}

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, msg := range msgs {
				got, err := r.Route(context.Background(), testInput(msg))
				assert.NoError(t, err)
				assert.Equal(t, want[i], got)
			}
		}()
	}
	wg.Wait()
}

// ============================================================================
// POST-REASONING GUARD
// ============================================================================

func TestGuard_ContractOverride(t *testing.T) {
	proposed := decision.RouteDecision{
		ArtifactKind: decision.ArtifactClient,
		TaskKind:     decision.TaskAnalysis,
		RiskLevel:    decision.RiskLow,
		Agent:        decision.AgentClients,
		Policy:       decision.PolicyDocsPlusRecentChat,
		Confidence:   0.8,
		Reason:       "client question",
	}
	msg := "Preciso revisar a rescisão do cliente X"
	d, overridden := NewGuard(nil).Apply(msg, testInput(msg), proposed)
	require.True(t, overridden)

	assert.Equal(t, decision.AgentContracts, d.Agent)
	assert.Equal(t, decision.ArtifactContract, d.ArtifactKind)
	assert.Equal(t, decision.PolicyStrictDocsOnly, d.Policy)
	assert.Equal(t, decision.RiskHigh, d.RiskLevel)
	assert.Equal(t, decision.TaskAnalysis, d.TaskKind)
	assert.InDelta(t, 0.95, d.Confidence, 1e-9)
	assert.True(t, strings.HasPrefix(d.Reason, "guard:contract_override"), d.Reason)
	assert.Contains(t, d.Reason, "clients-agent")
	assert.Contains(t, d.Reason, "client question")
}

func TestGuard_NoContractTerms(t *testing.T) {
	proposed := projectProposal(0.8)
	d, overridden := NewGuard(nil).Apply("Em que fase está o projeto?", testInput(""), proposed)
	assert.False(t, overridden)
	assert.Equal(t, proposed, d)
}
