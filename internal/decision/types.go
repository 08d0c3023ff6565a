// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package decision

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// DOCUMENT CATEGORY
// ============================================================================

// DocumentCategory classifies stored content. It governs what may be retrieved.
type DocumentCategory string

const (
	CategoryOfficialDoc    DocumentCategory = "official_doc"
	CategoryDatabaseRecord DocumentCategory = "database_record"
	CategoryChatLog        DocumentCategory = "chat_log"
	CategorySessionSummary DocumentCategory = "session_summary"
	CategorySystemNote     DocumentCategory = "system_note"
)

var documentCategories = []DocumentCategory{
	CategoryOfficialDoc,
	CategoryDatabaseRecord,
	CategoryChatLog,
	CategorySessionSummary,
	CategorySystemNote,
}

func (c DocumentCategory) String() string { return string(c) }

// Valid reports whether c is one of the known categories.
func (c DocumentCategory) Valid() bool {
	for _, known := range documentCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseDocumentCategory parses a wire value, case-insensitively.
func ParseDocumentCategory(s string) (DocumentCategory, error) {
	c := DocumentCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: document category %q", ErrUnknownValue, s)
	}
	return c, nil
}

// ============================================================================
// ARTIFACT KIND
// ============================================================================

// ArtifactKind is the coarse business object a request is about.
type ArtifactKind string

const (
	ArtifactContract ArtifactKind = "contract"
	ArtifactProposal ArtifactKind = "proposal"
	ArtifactProject  ArtifactKind = "project"
	ArtifactClient   ArtifactKind = "client"
	ArtifactPolicy   ArtifactKind = "policy"
	ArtifactOps      ArtifactKind = "ops"
	ArtifactUnknown  ArtifactKind = "unknown"
)

func (a ArtifactKind) String() string { return string(a) }

// Valid reports whether a is one of the known artifact kinds.
func (a ArtifactKind) Valid() bool {
	switch a {
	case ArtifactContract, ArtifactProposal, ArtifactProject, ArtifactClient,
		ArtifactPolicy, ArtifactOps, ArtifactUnknown:
		return true
	}
	return false
}

// ParseArtifactKind parses a wire value, case-insensitively.
func ParseArtifactKind(s string) (ArtifactKind, error) {
	a := ArtifactKind(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: artifact kind %q", ErrUnknownValue, s)
	}
	return a, nil
}

// ============================================================================
// TASK KIND
// ============================================================================

// TaskKind is what the user wants done with the artifact.
type TaskKind string

const (
	TaskFactualLookup TaskKind = "factual_lookup"
	TaskSummarization TaskKind = "summarization"
	TaskDrafting      TaskKind = "drafting"
	TaskAnalysis      TaskKind = "analysis"
	TaskOperation     TaskKind = "operation"
)

func (t TaskKind) String() string { return string(t) }

// Valid reports whether t is one of the known task kinds.
func (t TaskKind) Valid() bool {
	switch t {
	case TaskFactualLookup, TaskSummarization, TaskDrafting, TaskAnalysis, TaskOperation:
		return true
	}
	return false
}

// ParseTaskKind parses a wire value, case-insensitively.
func ParseTaskKind(s string) (TaskKind, error) {
	t := TaskKind(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("%w: task kind %q", ErrUnknownValue, s)
	}
	return t, nil
}

// ============================================================================
// RISK LEVEL
// ============================================================================

// RiskLevel drives which policies are legal and whether downstream
// confirmation is required.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) String() string { return string(r) }

// Valid reports whether r is one of the known risk levels.
func (r RiskLevel) Valid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// RequiresConfirmation returns true when the answer must be confirmed by a
// human before any operation is carried out.
func (r RiskLevel) RequiresConfirmation() bool {
	return r == RiskHigh
}

// ParseRiskLevel parses a wire value, case-insensitively.
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: risk level %q", ErrUnknownValue, s)
	}
	return r, nil
}

// ============================================================================
// AGENT NAME
// ============================================================================

// AgentName identifies a downstream specialist.
type AgentName string

const (
	AgentContracts  AgentName = "contracts-agent"
	AgentProposals  AgentName = "proposals-agent"
	AgentProjects   AgentName = "projects-agent"
	AgentClients    AgentName = "clients-agent"
	AgentFinance    AgentName = "finance-agent"
	AgentGovernance AgentName = "governance-agent"
	AgentOps        AgentName = "ops-agent"
	AgentGeneral    AgentName = "general-agent"
)

// DefaultAgent handles requests no rule recognized.
const DefaultAgent = AgentGeneral

// AgentNames lists every specialist in a stable order.
func AgentNames() []AgentName {
	return []AgentName{
		AgentContracts, AgentProposals, AgentProjects, AgentClients,
		AgentFinance, AgentGovernance, AgentOps, AgentGeneral,
	}
}

func (a AgentName) String() string { return string(a) }

// Valid reports whether a names a known specialist.
func (a AgentName) Valid() bool {
	for _, known := range AgentNames() {
		if a == known {
			return true
		}
	}
	return false
}

// ParseAgentName parses a wire value, case-insensitively.
func ParseAgentName(s string) (AgentName, error) {
	a := AgentName(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: agent %q", ErrUnknownValue, s)
	}
	return a, nil
}

// ============================================================================
// RETRIEVAL POLICY
// ============================================================================

// RetrievalPolicy is a named, fixed rule-set over document categories.
type RetrievalPolicy string

const (
	PolicyStrictDocsOnly     RetrievalPolicy = "STRICT_DOCS_ONLY"
	PolicyDocsPlusRecentChat RetrievalPolicy = "DOCS_PLUS_RECENT_CHAT"
	PolicyChatOnly           RetrievalPolicy = "CHAT_ONLY"
	PolicyOpsOnly            RetrievalPolicy = "OPS_ONLY"
)

// Policies lists every retrieval policy.
func Policies() []RetrievalPolicy {
	return []RetrievalPolicy{PolicyStrictDocsOnly, PolicyDocsPlusRecentChat, PolicyChatOnly, PolicyOpsOnly}
}

func (p RetrievalPolicy) String() string { return string(p) }

// Valid reports whether p is one of the known policies.
func (p RetrievalPolicy) Valid() bool {
	switch p {
	case PolicyStrictDocsOnly, PolicyDocsPlusRecentChat, PolicyChatOnly, PolicyOpsOnly:
		return true
	}
	return false
}

// ParseRetrievalPolicy parses a wire value, case-insensitively.
func ParseRetrievalPolicy(s string) (RetrievalPolicy, error) {
	p := RetrievalPolicy(strings.ToUpper(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: retrieval policy %q", ErrUnknownValue, s)
	}
	return p, nil
}

// ============================================================================
// TOOL HINT
// ============================================================================

// ToolHint tells the specialist which retrieval path to use first.
type ToolHint string

const (
	ToolRAGSearch ToolHint = "rag_search"
	ToolDBQuery   ToolHint = "db_query"
)

func (t ToolHint) String() string { return string(t) }

// Valid reports whether t is a known tool hint.
func (t ToolHint) Valid() bool {
	return t == ToolRAGSearch || t == ToolDBQuery
}

// ============================================================================
// DECISION SOURCE
// ============================================================================

// Source names the layer that produced a decision.
type Source string

const (
	SourceHardGate  Source = "hard_gate"
	SourceReasoner  Source = "reasoner"
	SourceHeuristic Source = "heuristic"
)

// ============================================================================
// ERRORS
// ============================================================================

var (
	// ErrUnknownValue is returned when a wire value does not name a known enum member.
	ErrUnknownValue = errors.New("unknown value")
	// ErrInvalidDecision is returned by RouteDecision.Validate.
	ErrInvalidDecision = errors.New("invalid route decision")
)
