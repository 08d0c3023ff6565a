// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

// Rule names. They appear verbatim in decision reasons for audit.
const (
	RuleContract     = "contract"
	RuleMonetary     = "monetary"
	RuleSensitive    = "sensitive"
	RuleConversation = "conversation"
	RuleOps          = "ops"
	RuleProposal     = "proposal"
	RuleSurvey       = "survey"
	RuleProject      = "project"
	RuleClient       = "client"
	RuleUsers        = "users"
	RuleGovernance   = "governance"
	RuleFallback     = "fallback"
)

// Structured-query rpc names handed to the db_query executor.
const (
	RPCAllProposals     = "query_all_proposals"
	RPCAllProjects      = "query_all_projects"
	RPCAllClients       = "query_all_clients"
	RPCAllUsers         = "query_all_users"
	RPCFinancialSummary = "query_financial_summary"
)

// KnownRPCs lists every rpc name the router can emit.
func KnownRPCs() []string {
	return []string{RPCAllProposals, RPCAllProjects, RPCAllClients, RPCAllUsers, RPCFinancialSummary}
}

// Confidence constants, from the fallback up to the most certain branch.
const (
	confFallback     = 0.45
	confGovernance   = 0.70
	confSemantic     = 0.75
	confConversation = 0.80
	confDomain       = 0.80
	confOps          = 0.85
	confListing      = 0.90
	confSensitive    = 0.90
	confMonetary     = 0.92
	confContract     = 0.95
)

// Recency windows, in minutes, patched into policies that allow recent chat.
const (
	windowProposalChat = 7 * 24 * 60
	windowClientChat   = 7 * 24 * 60
	windowProjectChat  = 3 * 24 * 60
	windowRecallChat   = 30 * 24 * 60
)

var (
	toolsRAG     = []string{string(decision.ToolRAGSearch)}
	toolsListing = []string{string(decision.ToolDBQuery), string(decision.ToolRAGSearch)}
)

// draft is what a rule contributes. Final filters are never part of a draft:
// they are always derived from the base filters, the patch and the policy.
type draft struct {
	artifact   decision.ArtifactKind
	risk       decision.RiskLevel
	agent      decision.AgentName
	policy     decision.RetrievalPolicy
	topK       int
	tool       decision.ToolHint
	tools      []string
	query      *decision.DBQuery
	confidence float64
	patch      decision.RouteFilters
	listing    bool
}

// match is the per-request state handed to rule builders.
type match struct {
	text Text
	in   decision.RouterInput
	lex  *Lexicon
	term string
}

// Rule is one row of the classification table: a term set and the decision
// builder used when it matches.
type Rule struct {
	Name  string
	Terms TermSet
	build func(m match) draft
}

// buildRules returns the cascade in evaluation order. The first three rules
// double as hard gates.
func buildRules(lex *Lexicon) []Rule {
	return []Rule{
		{Name: RuleContract, Terms: lex.Contract, build: buildContract},
		{Name: RuleMonetary, Terms: lex.Monetary, build: buildMonetary},
		{Name: RuleSensitive, Terms: lex.Sensitive, build: buildSensitive},
		{Name: RuleConversation, Terms: lex.Conversation, build: buildConversation},
		{Name: RuleOps, Terms: lex.Ops, build: buildOps},
		{Name: RuleProposal, Terms: lex.Proposal, build: buildProposal},
		{Name: RuleSurvey, Terms: lex.Survey, build: buildSurvey},
		{Name: RuleProject, Terms: lex.Project, build: buildProject},
		{Name: RuleClient, Terms: lex.Client, build: buildClient},
		{Name: RuleUsers, Terms: lex.Users, build: buildUsers},
		{Name: RuleGovernance, Terms: lex.Governance, build: buildGovernance},
	}
}

// ============================================================================
// HIGH-RISK RULES
// ============================================================================

func buildContract(match) draft {
	return draft{
		artifact:   decision.ArtifactContract,
		risk:       decision.RiskHigh,
		agent:      decision.AgentContracts,
		policy:     decision.PolicyStrictDocsOnly,
		topK:       8,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confContract,
		patch: decision.RouteFilters{
			ArtifactKind: decision.ArtifactContract,
			SourceTables: []string{"contracts", "contract_clauses"},
		},
	}
}

// buildMonetary routes money questions to the owner of the artifact they
// mention. Bare money questions go to the finance agent and its designated
// financial summary path.
func buildMonetary(m match) draft {
	d := draft{
		risk:       decision.RiskHigh,
		policy:     decision.PolicyStrictDocsOnly,
		topK:       6,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confMonetary,
	}
	switch {
	case m.lex.Proposal.Match(m.text):
		d.artifact, d.agent = decision.ArtifactProposal, decision.AgentProposals
		d.patch.SourceTables = []string{"proposals", "proposal_items"}
	case m.lex.Project.Match(m.text):
		d.artifact, d.agent = decision.ArtifactProject, decision.AgentProjects
		d.patch.SourceTables = []string{"projects", "project_budgets"}
	case m.lex.Client.Match(m.text):
		d.artifact, d.agent = decision.ArtifactClient, decision.AgentClients
		d.patch.SourceTables = []string{"clients", "contracts"}
	default:
		d.artifact, d.agent = decision.ArtifactContract, decision.AgentFinance
		d.patch.SourceTables = []string{"financial_entries", "contracts"}
		d.tool = decision.ToolDBQuery
		d.tools = toolsListing
		d.query = &decision.DBQuery{
			RPCName: RPCFinancialSummary,
			Params:  scopedParams(m.in),
		}
	}
	d.patch.ArtifactKind = d.artifact
	return d
}

func buildSensitive(match) draft {
	return draft{
		artifact:   decision.ArtifactPolicy,
		risk:       decision.RiskHigh,
		agent:      decision.AgentGovernance,
		policy:     decision.PolicyStrictDocsOnly,
		topK:       5,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confSensitive,
		patch: decision.RouteFilters{
			ArtifactKind: decision.ArtifactPolicy,
			SourceTables: []string{"policies", "access_policies"},
		},
	}
}

// ============================================================================
// DOMAIN RULES
// ============================================================================

func buildConversation(match) draft {
	return draft{
		artifact:   decision.ArtifactUnknown,
		risk:       decision.RiskLow,
		agent:      decision.AgentGeneral,
		policy:     decision.PolicyChatOnly,
		topK:       12,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confConversation,
		patch: decision.RouteFilters{
			SourceTables:      []string{"chat_messages", "session_summaries"},
			TimeWindowMinutes: windowRecallChat,
		},
	}
}

func buildOps(match) draft {
	return draft{
		artifact:   decision.ArtifactOps,
		risk:       decision.RiskMedium,
		agent:      decision.AgentOps,
		policy:     decision.PolicyOpsOnly,
		topK:       10,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confOps,
		patch: decision.RouteFilters{
			ArtifactKind: decision.ArtifactOps,
			SourceTables: []string{"system_notes", "ops_events"},
		},
	}
}

func buildProposal(m match) draft {
	d := draft{
		artifact:   decision.ArtifactProposal,
		risk:       decision.RiskMedium,
		agent:      decision.AgentProposals,
		policy:     decision.PolicyDocsPlusRecentChat,
		topK:       8,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confDomain,
		patch: decision.RouteFilters{
			ArtifactKind:      decision.ArtifactProposal,
			SourceTables:      []string{"proposals", "proposal_items"},
			TimeWindowMinutes: windowProposalChat,
		},
	}
	if m.lex.Listing.Match(m.text) {
		params := scopedParams(m.in)
		if status, ok := pick(m.lex.ProposalStatus, m.text); ok {
			params["status"] = status
		}
		d.asListing(RPCAllProposals, params)
	}
	return d
}

func buildSurvey(match) draft {
	return draft{
		artifact:   decision.ArtifactClient,
		risk:       decision.RiskLow,
		agent:      decision.AgentClients,
		policy:     decision.PolicyStrictDocsOnly,
		topK:       6,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confSemantic,
		patch: decision.RouteFilters{
			ArtifactKind: decision.ArtifactClient,
			SourceTables: []string{"surveys", "survey_answers"},
		},
	}
}

func buildProject(m match) draft {
	d := draft{
		artifact:   decision.ArtifactProject,
		risk:       decision.RiskLow,
		agent:      decision.AgentProjects,
		policy:     decision.PolicyDocsPlusRecentChat,
		topK:       8,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confDomain,
		patch: decision.RouteFilters{
			ArtifactKind:      decision.ArtifactProject,
			SourceTables:      []string{"projects", "project_tasks"},
			TimeWindowMinutes: windowProjectChat,
		},
	}
	if m.lex.Listing.Match(m.text) {
		params := scopedParams(m.in)
		if status, ok := pick(m.lex.ProjectStatus, m.text); ok {
			params["status"] = status
			d.patch.Status = status
		}
		if service, ok := pick(m.lex.Services, m.text); ok {
			params["service_type"] = service
		}
		d.asListing(RPCAllProjects, params)
	}
	return d
}

func buildClient(m match) draft {
	d := draft{
		artifact:   decision.ArtifactClient,
		risk:       decision.RiskMedium,
		agent:      decision.AgentClients,
		policy:     decision.PolicyDocsPlusRecentChat,
		topK:       8,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confSemantic,
		patch: decision.RouteFilters{
			ArtifactKind:      decision.ArtifactClient,
			SourceTables:      []string{"clients", "client_contacts"},
			TimeWindowMinutes: windowClientChat,
		},
	}
	if m.lex.Listing.Match(m.text) {
		params := scopedParams(m.in)
		if status, ok := pick(m.lex.ClientStatus, m.text); ok {
			params["status"] = status
		}
		d.asListing(RPCAllClients, params)
		d.confidence = 0.85
	}
	return d
}

func buildUsers(m match) draft {
	d := draft{
		artifact:   decision.ArtifactOps,
		risk:       decision.RiskMedium,
		agent:      decision.AgentGovernance,
		policy:     decision.PolicyStrictDocsOnly,
		topK:       5,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confGovernance,
		patch: decision.RouteFilters{
			ArtifactKind: decision.ArtifactOps,
			SourceTables: []string{"app_users", "access_policies"},
		},
	}
	if m.lex.Listing.Match(m.text) {
		params := map[string]any{"tenant_id": m.in.TenantID}
		if role, ok := pick(m.lex.Roles, m.text); ok {
			params["role"] = role
		}
		d.asListing(RPCAllUsers, params)
		d.confidence = 0.85
	}
	return d
}

func buildGovernance(match) draft {
	return draft{
		artifact:   decision.ArtifactPolicy,
		risk:       decision.RiskMedium,
		agent:      decision.AgentGovernance,
		policy:     decision.PolicyStrictDocsOnly,
		topK:       6,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confGovernance,
		patch: decision.RouteFilters{
			ArtifactKind: decision.ArtifactPolicy,
			SourceTables: []string{"policies", "procedures"},
		},
	}
}

func buildFallback(match) draft {
	return draft{
		artifact:   decision.ArtifactUnknown,
		risk:       decision.RiskLow,
		agent:      decision.DefaultAgent,
		policy:     decision.PolicyStrictDocsOnly,
		topK:       5,
		tool:       decision.ToolRAGSearch,
		tools:      toolsRAG,
		confidence: confFallback,
	}
}

// ============================================================================
// HELPERS
// ============================================================================

// asListing turns a semantic draft into an enumeration request.
func (d *draft) asListing(rpc string, params map[string]any) {
	d.listing = true
	d.tool = decision.ToolDBQuery
	d.tools = toolsListing
	d.query = &decision.DBQuery{RPCName: rpc, Params: params}
	d.confidence = confListing
}

// scopedParams starts a parameter bag with the tenant and any scoping ids.
func scopedParams(in decision.RouterInput) map[string]any {
	params := map[string]any{"tenant_id": in.TenantID}
	if in.ClientID != "" {
		params["client_id"] = in.ClientID
	}
	if in.ProjectID != "" {
		params["project_id"] = in.ProjectID
	}
	return params
}

// inferTask picks the task kind: summarization, drafting, analysis and
// operation are checked in that order, otherwise factual lookup.
func inferTask(lex *Lexicon, t Text) decision.TaskKind {
	switch {
	case lex.Summarization.Match(t):
		return decision.TaskSummarization
	case lex.Drafting.Match(t):
		return decision.TaskDrafting
	case lex.Analysis.Match(t):
		return decision.TaskAnalysis
	case lex.Operation.Match(t):
		return decision.TaskOperation
	default:
		return decision.TaskFactualLookup
	}
}

// finalize turns a draft into a decision. This is the only place filters are
// produced: base filters from the request, merged with the rule's patch, then
// normalized by the policy enforcer.
func finalize(d draft, m match, name string, source decision.Source) decision.RouteDecision {
	filters := decision.MergeFilters(decision.BaseFilters(m.in), d.patch)
	filters = decision.ApplyPolicy(filters, d.policy)

	reason := fmt.Sprintf("%s:%s", source, name)
	if d.listing {
		reason += ":listing"
	}
	if m.term != "" {
		reason += fmt.Sprintf(" (matched %q)", m.term)
	} else {
		reason += " (no category terms matched)"
	}

	return decision.RouteDecision{
		ArtifactKind: d.artifact,
		TaskKind:     inferTask(m.lex, m.text),
		RiskLevel:    d.risk,
		Agent:        d.agent,
		Policy:       d.policy,
		Filters:      filters,
		TopK:         decision.ClampTopK(d.topK),
		ToolHint:     d.tool,
		AllowedTools: append([]string(nil), d.tools...),
		DBQuery:      d.query,
		Confidence:   d.confidence,
		Reason:       reason,
		Source:       source,
	}
}
