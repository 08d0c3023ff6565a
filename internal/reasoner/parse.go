// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package reasoner

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

// wireFilters is the subset of filters a model may suggest. Tenant and scope
// ids are ignored; category lists are recomputed from the policy.
type wireFilters struct {
	SourceTables      []string `json:"source_tables"`
	Status            string   `json:"status"`
	TimeWindowMinutes int      `json:"time_window_minutes"`
}

type wireDecision struct {
	ArtifactKind string            `json:"artifact_kind"`
	TaskKind     string            `json:"task_kind"`
	RiskLevel    string            `json:"risk_level"`
	Agent        string            `json:"agent"`
	Policy       string            `json:"retrieval_policy"`
	Filters      *wireFilters      `json:"filters"`
	TopK         int               `json:"top_k"`
	ToolHint     string            `json:"tool_hint"`
	DBQuery      *decision.DBQuery `json:"db_query_params"`
	Confidence   *float64          `json:"confidence"`
	Reason       string            `json:"reason"`
}

// ParseDecision decodes a model answer. Every enum must parse and confidence
// must be present; a db_query hint needs an rpc name, restricted to allowed
// when it is non-empty. The result wraps decision.ErrInvalidDecision on any
// schema violation.
func ParseDecision(raw string, allowed []string) (decision.RouteDecision, error) {
	var w wireDecision
	if err := json.Unmarshal([]byte(extractJSON(raw)), &w); err != nil {
		return decision.RouteDecision{}, fmt.Errorf("%w: decode: %v", decision.ErrInvalidDecision, err)
	}
	if w.Confidence == nil {
		return decision.RouteDecision{}, fmt.Errorf("%w: missing confidence", decision.ErrInvalidDecision)
	}

	var (
		d   decision.RouteDecision
		err error
	)
	if d.ArtifactKind, err = decision.ParseArtifactKind(w.ArtifactKind); err != nil {
		return invalid(err)
	}
	if d.TaskKind, err = decision.ParseTaskKind(w.TaskKind); err != nil {
		return invalid(err)
	}
	if d.RiskLevel, err = decision.ParseRiskLevel(w.RiskLevel); err != nil {
		return invalid(err)
	}
	if d.Agent, err = decision.ParseAgentName(w.Agent); err != nil {
		return invalid(err)
	}
	if d.Policy, err = decision.ParseRetrievalPolicy(w.Policy); err != nil {
		return invalid(err)
	}

	d.ToolHint = decision.ToolHint(strings.ToLower(strings.TrimSpace(w.ToolHint)))
	if d.ToolHint == "" {
		d.ToolHint = decision.ToolRAGSearch
	}
	if d.ToolHint == decision.ToolDBQuery {
		if w.DBQuery == nil || strings.TrimSpace(w.DBQuery.RPCName) == "" {
			return decision.RouteDecision{}, fmt.Errorf("%w: db_query without rpc_name", decision.ErrInvalidDecision)
		}
		if len(allowed) > 0 && !slices.Contains(allowed, w.DBQuery.RPCName) {
			return decision.RouteDecision{}, fmt.Errorf("%w: rpc %q not allowed", decision.ErrInvalidDecision, w.DBQuery.RPCName)
		}
		d.DBQuery = w.DBQuery.Clone()
		d.AllowedTools = []string{string(decision.ToolDBQuery), string(decision.ToolRAGSearch)}
	} else {
		d.AllowedTools = []string{string(d.ToolHint)}
	}

	if w.Filters != nil {
		d.Filters.SourceTables = slices.Clone(w.Filters.SourceTables)
		d.Filters.Status = w.Filters.Status
		d.Filters.TimeWindowMinutes = max(w.Filters.TimeWindowMinutes, 0)
	}
	d.Filters.ArtifactKind = d.ArtifactKind
	d.TopK = decision.ClampTopK(w.TopK)
	d.Confidence = *w.Confidence
	d.Reason = strings.TrimSpace(w.Reason)
	d.Source = decision.SourceReasoner

	if err := d.Validate(); err != nil {
		return decision.RouteDecision{}, err
	}
	return d, nil
}

func invalid(err error) (decision.RouteDecision, error) {
	return decision.RouteDecision{}, fmt.Errorf("%w: %v", decision.ErrInvalidDecision, err)
}

// extractJSON trims code fences and surrounding prose around the first JSON
// object in s.
func extractJSON(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}
