// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

func testInput(msg string) decision.RouterInput {
	return decision.RouterInput{
		TenantID:    "tenant-1",
		SessionID:   "session-1",
		UserRole:    "manager",
		UserMessage: msg,
	}
}

// ============================================================================
// TEXT FOLDING
// ============================================================================

func TestFold(t *testing.T) {
	tests := []struct {
		in   string
		want Text
	}{
		{"Rescisão do CONTRATO!", " rescisao do contrato "},
		{"  oi,   bom dia ", " oi bom dia "},
		{"Qual o preço em R$?", " qual o preco em r$ "},
		{"", " "},
		{"Ação/já", " acao ja "},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Fold(tt.in), "Fold(%q)", tt.in)
	}
}

func TestTermSet_MatchesWholeWords(t *testing.T) {
	s := NewTermSet("contrato", "seo", "cron job", "inadimpl*")
	assert.True(t, s.Match(Fold("Qual o CONTRATO?")))
	assert.True(t, s.Match(Fold("plano de SEO")))
	assert.True(t, s.Match(Fold("o cron-job falhou")))
	assert.True(t, s.Match(Fold("clientes inadimplentes")))
	assert.False(t, s.Match(Fold("Os CONTRATOS vencem")), "plurals are listed explicitly")
	assert.False(t, s.Match(Fold("visitamos o museo")))
	assert.False(t, s.Match(Fold("veja o cronograma")))
	assert.Equal(t, 4, s.Len())

	term, ok := s.First(Fold("contratação de SEO"))
	require.True(t, ok)
	assert.Equal(t, "seo", term)

	term, ok = s.First(Fold("há inadimplência"))
	require.True(t, ok)
	assert.Equal(t, "inadimpl", term)
}

func TestClassifier_WordPrefixesDoNotTrigger(t *testing.T) {
	tests := []struct {
		msg    string
		agent  decision.AgentName
		risk   decision.RiskLevel
		reason string
	}{
		{"Como customizar o relatório do projeto Acme?", decision.AgentProjects, decision.RiskLow, "heuristic:project"},
		{"Pesquisar projetos ativos de tráfego", decision.AgentProjects, decision.RiskLow, "heuristic:project"},
		{"O contractor do cliente Acme mandou o briefing?", decision.AgentClients, decision.RiskLow, "heuristic:survey"},
		{"Esse plano é pricey para o cliente?", decision.AgentClients, decision.RiskMedium, "heuristic:client"},
	}

	c := NewClassifier(nil)
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			d := c.Classify(tt.msg, testInput(tt.msg))
			assert.Equal(t, tt.agent, d.Agent)
			assert.Equal(t, tt.risk, d.RiskLevel)
			assert.True(t, strings.HasPrefix(d.Reason, tt.reason), d.Reason)
		})
	}
}

// ============================================================================
// RULE TABLE
// ============================================================================

func TestClassifier_RuleOrder(t *testing.T) {
	c := NewClassifier(nil)
	assert.Equal(t, []string{
		RuleContract, RuleMonetary, RuleSensitive, RuleConversation, RuleOps,
		RuleProposal, RuleSurvey, RuleProject, RuleClient, RuleUsers, RuleGovernance,
		RuleFallback,
	}, c.Rules())
}

func TestClassify_Categories(t *testing.T) {
	tests := []struct {
		name     string
		msg      string
		agent    decision.AgentName
		artifact decision.ArtifactKind
		policy   decision.RetrievalPolicy
		risk     decision.RiskLevel
		reason   string
	}{
		{"contract", "Quando vence o contrato da Acme?", decision.AgentContracts, decision.ArtifactContract,
			decision.PolicyStrictDocsOnly, decision.RiskHigh, "heuristic:contract"},
		{"conversation", "O que conversamos ontem sobre o site?", decision.AgentGeneral, decision.ArtifactUnknown,
			decision.PolicyChatOnly, decision.RiskLow, "heuristic:conversation"},
		{"ops", "O webhook está fora do ar", decision.AgentOps, decision.ArtifactOps,
			decision.PolicyOpsOnly, decision.RiskMedium, "heuristic:ops"},
		{"proposal semantic", "Como está a proposta da Acme?", decision.AgentProposals, decision.ArtifactProposal,
			decision.PolicyDocsPlusRecentChat, decision.RiskMedium, "heuristic:proposal"},
		{"survey", "Qual foi o NPS do último trimestre?", decision.AgentClients, decision.ArtifactClient,
			decision.PolicyStrictDocsOnly, decision.RiskLow, "heuristic:survey"},
		{"project semantic", "Em que fase está o projeto da Acme?", decision.AgentProjects, decision.ArtifactProject,
			decision.PolicyDocsPlusRecentChat, decision.RiskLow, "heuristic:project"},
		{"client semantic", "Quem é o ponto focal do cliente Acme?", decision.AgentClients, decision.ArtifactClient,
			decision.PolicyDocsPlusRecentChat, decision.RiskMedium, "heuristic:client"},
		{"users", "Quem tem acesso ao painel?", decision.AgentGovernance, decision.ArtifactOps,
			decision.PolicyStrictDocsOnly, decision.RiskMedium, "heuristic:users"},
		{"governance", "Qual é o procedimento de férias?", decision.AgentGovernance, decision.ArtifactPolicy,
			decision.PolicyStrictDocsOnly, decision.RiskMedium, "heuristic:governance"},
		{"fallback", "oi, bom dia", decision.AgentGeneral, decision.ArtifactUnknown,
			decision.PolicyStrictDocsOnly, decision.RiskLow, "heuristic:fallback"},
	}

	c := NewClassifier(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := c.Classify(tt.msg, testInput(tt.msg))
			assert.Equal(t, tt.agent, d.Agent)
			assert.Equal(t, tt.artifact, d.ArtifactKind)
			assert.Equal(t, tt.policy, d.Policy)
			assert.Equal(t, tt.risk, d.RiskLevel)
			assert.True(t, strings.HasPrefix(d.Reason, tt.reason), "reason %q", d.Reason)
			assert.Equal(t, decision.SourceHeuristic, d.Source)
			assert.Equal(t, "tenant-1", d.Filters.TenantID)
			assert.NoError(t, d.Validate())
		})
	}
}

func TestClassify_Fallback(t *testing.T) {
	d := NewClassifier(nil).Classify("oi, bom dia", testInput("oi, bom dia"))

	assert.Equal(t, decision.AgentGeneral, d.Agent)
	assert.Equal(t, decision.PolicyStrictDocsOnly, d.Policy)
	assert.Equal(t, decision.RiskLow, d.RiskLevel)
	assert.Equal(t, decision.ArtifactUnknown, d.ArtifactKind)
	assert.InDelta(t, 0.45, d.Confidence, 1e-9)
	assert.Equal(t, decision.ToolRAGSearch, d.ToolHint)
	assert.Nil(t, d.DBQuery)
	assert.Equal(t, []decision.DocumentCategory{decision.CategoryChatLog}, d.Filters.BlockCategories)
}

func TestClassify_ProjectListing(t *testing.T) {
	msg := "Liste todos os projetos ativos de tráfego"
	d := NewClassifier(nil).Classify(msg, testInput(msg))

	assert.Equal(t, decision.AgentProjects, d.Agent)
	assert.Equal(t, decision.ToolDBQuery, d.ToolHint)
	assert.InDelta(t, 0.9, d.Confidence, 1e-9)
	assert.Equal(t, decision.TaskFactualLookup, d.TaskKind)
	assert.True(t, strings.HasPrefix(d.Reason, "heuristic:project:listing"), d.Reason)
	require.NotNil(t, d.DBQuery)
	assert.Equal(t, RPCAllProjects, d.DBQuery.RPCName)
	assert.Equal(t, map[string]any{
		"tenant_id":    "tenant-1",
		"status":       "active",
		"service_type": "traffic",
	}, d.DBQuery.Params)
	assert.Equal(t, "active", d.Filters.Status)
	assert.Contains(t, d.AllowedTools, string(decision.ToolDBQuery))
}

func TestClassify_ListingRPCs(t *testing.T) {
	tests := []struct {
		msg    string
		rpc    string
		params map[string]any
	}{
		{"Quais são as propostas aprovadas?", RPCAllProposals,
			map[string]any{"tenant_id": "tenant-1", "status": "accepted"}},
		{"Quantos clientes ativos temos?", RPCAllClients,
			map[string]any{"tenant_id": "tenant-1", "status": "active"}},
		{"Liste os usuários administradores", RPCAllUsers,
			map[string]any{"tenant_id": "tenant-1", "role": "admin"}},
	}
	c := NewClassifier(nil)
	for _, tt := range tests {
		t.Run(tt.rpc, func(t *testing.T) {
			d := c.Classify(tt.msg, testInput(tt.msg))
			require.NotNil(t, d.DBQuery, d.Reason)
			assert.Equal(t, tt.rpc, d.DBQuery.RPCName)
			assert.Equal(t, tt.params, d.DBQuery.Params)
			assert.Equal(t, decision.ToolDBQuery, d.ToolHint)
		})
	}
}

func TestClassify_ListingCarriesClientScope(t *testing.T) {
	msg := "Liste todas as propostas"
	in := testInput(msg)
	in.ClientID = "client-9"
	d := NewClassifier(nil).Classify(msg, in)

	require.NotNil(t, d.DBQuery)
	assert.Equal(t, "client-9", d.DBQuery.Params["client_id"])
	assert.Equal(t, "client-9", d.Filters.ClientID)
}

func TestClassify_TaskKind(t *testing.T) {
	tests := []struct {
		msg  string
		want decision.TaskKind
	}{
		{"Resuma o projeto da Acme", decision.TaskSummarization},
		{"Redija um e-mail para o cliente", decision.TaskDrafting},
		{"Analise o desempenho do projeto", decision.TaskAnalysis},
		{"Atualize o status do projeto", decision.TaskOperation},
		{"Em que fase está o projeto?", decision.TaskFactualLookup},
		// Summarization wins over drafting.
		{"Escreva um resumo do projeto", decision.TaskSummarization},
	}
	c := NewClassifier(nil)
	for _, tt := range tests {
		d := c.Classify(tt.msg, testInput(tt.msg))
		assert.Equal(t, tt.want, d.TaskKind, tt.msg)
	}
}

func TestClassify_FiltersComeFromPolicy(t *testing.T) {
	c := NewClassifier(nil)
	msgs := []string{
		"Quando vence o contrato?",
		"O que conversamos ontem?",
		"O webhook está fora do ar",
		"Como está a proposta?",
		"Em que fase está o projeto?",
		"oi, bom dia",
	}
	for _, msg := range msgs {
		d := c.Classify(msg, testInput(msg))
		assert.True(t, d.Filters.Equal(decision.ApplyPolicy(d.Filters, d.Policy)),
			"filters for %q are not policy-normalized: %+v", msg, d.Filters)
		for _, cat := range d.Filters.AllowCategories {
			assert.NotContains(t, d.Filters.BlockCategories, cat)
		}
	}
}

func TestClassify_ChatWindows(t *testing.T) {
	c := NewClassifier(nil)

	d := c.Classify("Como está a proposta?", testInput("Como está a proposta?"))
	assert.Contains(t, d.Filters.AllowCategories, decision.CategoryChatLog)
	assert.Equal(t, windowProposalChat, d.Filters.TimeWindowMinutes)

	d = c.Classify("O que conversamos ontem?", testInput("O que conversamos ontem?"))
	assert.Equal(t, []decision.DocumentCategory{decision.CategoryChatLog, decision.CategorySessionSummary},
		d.Filters.AllowCategories)
	assert.Equal(t, windowRecallChat, d.Filters.TimeWindowMinutes)
}

func TestClassify_Deterministic(t *testing.T) {
	c := NewClassifier(nil)
	msg := "Liste todos os projetos ativos de tráfego"
	first := c.Classify(msg, testInput(msg))
	for range 20 {
		assert.Equal(t, first, c.Classify(msg, testInput(msg)))
	}
}

func TestClassify_RecoversToFallback(t *testing.T) {
	c := NewClassifier(nil)
	c.rules = append([]Rule{{
		Name:  "broken",
		Terms: NewTermSet("boom"),
		build: func(match) draft { panic("boom") },
	}}, c.rules...)

	d := c.Classify("boom", testInput("boom"))
	assert.Equal(t, decision.AgentGeneral, d.Agent)
	assert.True(t, strings.HasPrefix(d.Reason, "heuristic:fallback"))
}
