// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package decision

import (
	"errors"
	"testing"
)

func TestParseEnums(t *testing.T) {
	if p, err := ParseRetrievalPolicy(" strict_docs_only "); err != nil || p != PolicyStrictDocsOnly {
		t.Errorf("ParseRetrievalPolicy = %q, %v", p, err)
	}
	if a, err := ParseAgentName("Contracts-Agent"); err != nil || a != AgentContracts {
		t.Errorf("ParseAgentName = %q, %v", a, err)
	}
	if _, err := ParseArtifactKind("invoice"); !errors.Is(err, ErrUnknownValue) {
		t.Errorf("ParseArtifactKind(invoice) error = %v, want ErrUnknownValue", err)
	}
	if _, err := ParseDocumentCategory("email"); !errors.Is(err, ErrUnknownValue) {
		t.Errorf("ParseDocumentCategory(email) error = %v, want ErrUnknownValue", err)
	}
}

func TestRiskLevel_RequiresConfirmation(t *testing.T) {
	if !RiskHigh.RequiresConfirmation() {
		t.Error("high risk must require confirmation")
	}
	if RiskMedium.RequiresConfirmation() || RiskLow.RequiresConfirmation() {
		t.Error("only high risk requires confirmation")
	}
}

func TestRouteDecision_Validate(t *testing.T) {
	valid := RouteDecision{
		ArtifactKind: ArtifactProject,
		TaskKind:     TaskFactualLookup,
		RiskLevel:    RiskLow,
		Agent:        AgentProjects,
		Policy:       PolicyStrictDocsOnly,
		ToolHint:     ToolRAGSearch,
		Confidence:   0.8,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	tests := []struct {
		name   string
		mutate func(*RouteDecision)
	}{
		{"agent", func(d *RouteDecision) { d.Agent = "lawyer-bot" }},
		{"policy", func(d *RouteDecision) { d.Policy = "EVERYTHING" }},
		{"risk", func(d *RouteDecision) { d.RiskLevel = "extreme" }},
		{"task", func(d *RouteDecision) { d.TaskKind = "" }},
		{"tool", func(d *RouteDecision) { d.ToolHint = "shell" }},
		{"confidence", func(d *RouteDecision) { d.Confidence = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := valid
			tt.mutate(&d)
			if err := d.Validate(); !errors.Is(err, ErrInvalidDecision) {
				t.Errorf("Validate() = %v, want ErrInvalidDecision", err)
			}
		})
	}
}

func TestRouteDecision_CloneIsDeep(t *testing.T) {
	d := RouteDecision{
		Filters:      RouteFilters{SourceTables: []string{"projects"}},
		AllowedTools: []string{"db_query"},
		DBQuery:      &DBQuery{RPCName: "query_all_projects", Params: map[string]any{"status": "active"}},
	}
	c := d.Clone()
	c.Filters.SourceTables[0] = "x"
	c.AllowedTools[0] = "x"
	c.DBQuery.Params["status"] = "x"

	if d.Filters.SourceTables[0] != "projects" || d.AllowedTools[0] != "db_query" || d.DBQuery.Params["status"] != "active" {
		t.Errorf("Clone shares state with original: %+v", d)
	}
}

func TestRetrievedDoc_Category(t *testing.T) {
	doc := RetrievedDoc{Metadata: map[string]any{"category": "chat_log"}}
	if c, ok := doc.Category(); !ok || c != CategoryChatLog {
		t.Errorf("Category() = %q, %v", c, ok)
	}
	if _, ok := (RetrievedDoc{}).Category(); ok {
		t.Error("Category() on empty metadata should report false")
	}
}
