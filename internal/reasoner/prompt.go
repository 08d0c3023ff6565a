// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reasoner

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

var (
	systemPromptOnce sync.Once
	systemPrompt     string
)

// SystemPrompt describes the decision schema and the closed vocabularies.
func SystemPrompt() string {
	systemPromptOnce.Do(func() {
		systemPrompt = buildSystemPrompt()
	})
	return systemPrompt
}

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You route requests inside a marketing agency's internal assistant.\n")
	b.WriteString("Pick the specialist agent and the evidence policy for the user's message.\n")
	b.WriteString("Answer with a single JSON object and nothing else.\n\n")

	b.WriteString("Fields:\n")
	writeEnum(&b, "agent", agentNames())
	writeEnum(&b, "retrieval_policy", policyNames())
	writeEnum(&b, "artifact_kind", []string{
		string(decision.ArtifactContract), string(decision.ArtifactProposal), string(decision.ArtifactProject),
		string(decision.ArtifactClient), string(decision.ArtifactPolicy), string(decision.ArtifactOps),
		string(decision.ArtifactUnknown),
	})
	writeEnum(&b, "task_kind", []string{
		string(decision.TaskFactualLookup), string(decision.TaskSummarization), string(decision.TaskDrafting),
		string(decision.TaskAnalysis), string(decision.TaskOperation),
	})
	writeEnum(&b, "risk_level", []string{
		string(decision.RiskLow), string(decision.RiskMedium), string(decision.RiskHigh),
	})
	writeEnum(&b, "tool_hint", []string{string(decision.ToolRAGSearch), string(decision.ToolDBQuery)})
	b.WriteString("- top_k: integer between 1 and 30\n")
	b.WriteString("- confidence: number between 0 and 1\n")
	b.WriteString("- reason: one short sentence\n")
	b.WriteString("- filters: optional object with source_tables (array) and time_window_minutes (integer)\n")
	b.WriteString("- db_query_params: only with tool_hint db_query, {\"rpc_name\": string, \"params\": object}\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Contracts, termination, clauses and legal questions go to contracts-agent with STRICT_DOCS_ONLY.\n")
	b.WriteString("- Money questions are high risk and use STRICT_DOCS_ONLY.\n")
	b.WriteString("- Credentials and personal data are high risk and go to governance-agent.\n")
	b.WriteString("- Requests to list or count records use tool_hint db_query.\n")
	b.WriteString("- Use CHAT_ONLY only when the user asks about the conversation itself.\n")
	b.WriteString("- When unsure, lower the confidence instead of guessing.\n")
	return b.String()
}

func writeEnum(b *strings.Builder, field string, values []string) {
	b.WriteString("- ")
	b.WriteString(field)
	b.WriteString(": one of ")
	b.WriteString(strings.Join(values, ", "))
	b.WriteByte('\n')
}

func agentNames() []string {
	out := make([]string, 0, len(decision.AgentNames()))
	for _, a := range decision.AgentNames() {
		out = append(out, string(a))
	}
	return out
}

func policyNames() []string {
	out := make([]string, 0, len(decision.Policies()))
	for _, p := range decision.Policies() {
		out = append(out, string(p))
	}
	return out
}

// promptRequest is the request as shown to the model. Tenant and session ids
// are left out: the router forces them after the call.
type promptRequest struct {
	UserRole  string `json:"user_role,omitempty"`
	ClientID  string `json:"client_id,omitempty"`
	ProjectID string `json:"project_id,omitempty"`
	Message   string `json:"message"`
}

// UserPrompt renders the request as JSON so the message cannot break out of
// its field.
func UserPrompt(in decision.RouterInput) string {
	data, err := json.Marshal(promptRequest{
		UserRole:  in.UserRole,
		ClientID:  in.ClientID,
		ProjectID: in.ProjectID,
		Message:   in.UserMessage,
	})
	if err != nil {
		return in.UserMessage
	}
	return string(data)
}
