// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package decision

import (
	"fmt"
	"maps"
	"slices"
)

// Top-k bounds for every retrieval call.
const (
	MinTopK = 1
	MaxTopK = 30
)

// ClampTopK bounds k into [MinTopK, MaxTopK].
func ClampTopK(k int) int {
	if k < MinTopK {
		return MinTopK
	}
	if k > MaxTopK {
		return MaxTopK
	}
	return k
}

// ============================================================================
// ROUTER INPUT
// ============================================================================

// RouterInput is a single request to the router.
type RouterInput struct {
	TenantID    string `json:"tenant_id"`
	SessionID   string `json:"session_id"`
	UserRole    string `json:"user_role"`
	UserMessage string `json:"user_message"`
	ClientID    string `json:"client_id,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	SourceID    string `json:"source_id,omitempty"`
}

// ============================================================================
// ROUTE FILTERS
// ============================================================================

// RouteFilters scopes a retrieval call. TenantID is required and never dropped.
type RouteFilters struct {
	TenantID          string             `json:"tenant_id"`
	AllowCategories   []DocumentCategory `json:"allow_categories,omitempty"`
	BlockCategories   []DocumentCategory `json:"block_categories,omitempty"`
	ArtifactKind      ArtifactKind       `json:"artifact_kind,omitempty"`
	SourceTables      []string           `json:"source_tables,omitempty"`
	ClientID          string             `json:"client_id,omitempty"`
	ProjectID         string             `json:"project_id,omitempty"`
	SourceID          string             `json:"source_id,omitempty"`
	Status            string             `json:"status,omitempty"`
	TimeWindowMinutes int                `json:"time_window_minutes,omitempty"`
}

// BaseFilters returns the fixed base every decision starts from: the tenant
// and the request's scoping ids.
func BaseFilters(in RouterInput) RouteFilters {
	return RouteFilters{
		TenantID:  in.TenantID,
		ClientID:  in.ClientID,
		ProjectID: in.ProjectID,
		SourceID:  in.SourceID,
	}
}

// MergeFilters overlays the non-zero fields of patch on base. Tenant and
// scoping ids already present in base are kept: a patch may narrow scope,
// never move it to another tenant or client.
func MergeFilters(base, patch RouteFilters) RouteFilters {
	out := base.Clone()
	if out.TenantID == "" {
		out.TenantID = patch.TenantID
	}
	if out.ClientID == "" {
		out.ClientID = patch.ClientID
	}
	if out.ProjectID == "" {
		out.ProjectID = patch.ProjectID
	}
	if out.SourceID == "" {
		out.SourceID = patch.SourceID
	}
	if len(patch.AllowCategories) > 0 {
		out.AllowCategories = slices.Clone(patch.AllowCategories)
	}
	if len(patch.BlockCategories) > 0 {
		out.BlockCategories = slices.Clone(patch.BlockCategories)
	}
	if patch.ArtifactKind != "" {
		out.ArtifactKind = patch.ArtifactKind
	}
	if len(patch.SourceTables) > 0 {
		out.SourceTables = slices.Clone(patch.SourceTables)
	}
	if patch.Status != "" {
		out.Status = patch.Status
	}
	if patch.TimeWindowMinutes != 0 {
		out.TimeWindowMinutes = patch.TimeWindowMinutes
	}
	return out
}

// Clone returns a deep copy of f.
func (f RouteFilters) Clone() RouteFilters {
	f.AllowCategories = slices.Clone(f.AllowCategories)
	f.BlockCategories = slices.Clone(f.BlockCategories)
	f.SourceTables = slices.Clone(f.SourceTables)
	return f
}

// Allows reports whether a document of category c passes normalized filters.
// An empty allow list admits nothing.
func (f RouteFilters) Allows(c DocumentCategory) bool {
	if slices.Contains(f.BlockCategories, c) {
		return false
	}
	return slices.Contains(f.AllowCategories, c)
}

// Equal compares two filter sets field by field.
func (f RouteFilters) Equal(o RouteFilters) bool {
	return f.TenantID == o.TenantID &&
		slices.Equal(f.AllowCategories, o.AllowCategories) &&
		slices.Equal(f.BlockCategories, o.BlockCategories) &&
		f.ArtifactKind == o.ArtifactKind &&
		slices.Equal(f.SourceTables, o.SourceTables) &&
		f.ClientID == o.ClientID &&
		f.ProjectID == o.ProjectID &&
		f.SourceID == o.SourceID &&
		f.Status == o.Status &&
		f.TimeWindowMinutes == o.TimeWindowMinutes
}

// ============================================================================
// STRUCTURED QUERY
// ============================================================================

// DBQuery is an opaque descriptor for the structured-query executor. The
// router only guarantees a stable RPCName and parameter bag per listing
// category.
type DBQuery struct {
	RPCName string         `json:"rpc_name"`
	Params  map[string]any `json:"params,omitempty"`
}

// Clone returns a copy with its own parameter map.
func (q *DBQuery) Clone() *DBQuery {
	if q == nil {
		return nil
	}
	return &DBQuery{RPCName: q.RPCName, Params: maps.Clone(q.Params)}
}

// ============================================================================
// ROUTE DECISION
// ============================================================================

// RouteDecision is the router's answer for one request.
type RouteDecision struct {
	ArtifactKind ArtifactKind    `json:"artifact_kind"`
	TaskKind     TaskKind        `json:"task_kind"`
	RiskLevel    RiskLevel       `json:"risk_level"`
	Agent        AgentName       `json:"agent"`
	Policy       RetrievalPolicy `json:"retrieval_policy"`
	Filters      RouteFilters    `json:"filters"`
	TopK         int             `json:"top_k"`
	ToolHint     ToolHint        `json:"tool_hint"`
	AllowedTools []string        `json:"allowed_tools,omitempty"`
	DBQuery      *DBQuery        `json:"db_query_params,omitempty"`
	Confidence   float64         `json:"confidence"`
	Reason       string          `json:"reason"`
	Source       Source          `json:"source,omitempty"`
}

// Clone returns a deep copy of d.
func (d RouteDecision) Clone() RouteDecision {
	d.Filters = d.Filters.Clone()
	d.AllowedTools = slices.Clone(d.AllowedTools)
	d.DBQuery = d.DBQuery.Clone()
	return d
}

// Validate checks that every enum field holds a known value and that the
// confidence is inside [0,1]. It is used to reject malformed decisions from
// untrusted producers.
func (d RouteDecision) Validate() error {
	switch {
	case !d.ArtifactKind.Valid():
		return fmt.Errorf("%w: artifact kind %q", ErrInvalidDecision, d.ArtifactKind)
	case !d.TaskKind.Valid():
		return fmt.Errorf("%w: task kind %q", ErrInvalidDecision, d.TaskKind)
	case !d.RiskLevel.Valid():
		return fmt.Errorf("%w: risk level %q", ErrInvalidDecision, d.RiskLevel)
	case !d.Agent.Valid():
		return fmt.Errorf("%w: agent %q", ErrInvalidDecision, d.Agent)
	case !d.Policy.Valid():
		return fmt.Errorf("%w: retrieval policy %q", ErrInvalidDecision, d.Policy)
	case d.ToolHint != "" && !d.ToolHint.Valid():
		return fmt.Errorf("%w: tool hint %q", ErrInvalidDecision, d.ToolHint)
	case d.Confidence < 0 || d.Confidence > 1:
		return fmt.Errorf("%w: confidence %.3f outside [0,1]", ErrInvalidDecision, d.Confidence)
	}
	return nil
}

// String returns a one-line audit summary of the decision.
func (d RouteDecision) String() string {
	return fmt.Sprintf("%s/%s (artifact=%s, task=%s, risk=%s, tool=%s, top_k=%d, conf=%.2f): %s",
		d.Agent, d.Policy, d.ArtifactKind, d.TaskKind, d.RiskLevel, d.ToolHint, d.TopK, d.Confidence, d.Reason)
}

// ============================================================================
// RETRIEVED DOCUMENT
// ============================================================================

// RetrievedDoc is one similarity-search hit.
type RetrievedDoc struct {
	ID         string         `json:"id"`
	Content    string         `json:"content"`
	Similarity float64        `json:"similarity"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Category returns the document category recorded in the metadata bag, if any.
func (d RetrievedDoc) Category() (DocumentCategory, bool) {
	raw, ok := d.Metadata["category"]
	if !ok {
		return "", false
	}
	s, ok := raw.(string)
	if !ok {
		return "", false
	}
	c := DocumentCategory(s)
	return c, c.Valid()
}
