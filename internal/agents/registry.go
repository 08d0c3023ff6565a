// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agents holds the fixed table of downstream specialists: their
// instruction text and the evidence rules retrieval enforces for them.
package agents

import (
	"embed"
	"fmt"
	"slices"
	"strings"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
	"github.com/Andre-cardia/c4marketing-sub000/internal/router"
)

//go:embed instructions/*.md
var instructionFS embed.FS

// AgentConfig is the behavioral contract of one specialist.
type AgentConfig struct {
	Name         decision.AgentName `json:"name"`
	Instructions string             `json:"instructions"`

	// ForbiddenEvidence lists categories retrieval never returns for this
	// agent, whatever the policy allows.
	ForbiddenEvidence []decision.DocumentCategory `json:"forbidden_evidence,omitempty"`

	// RequireCitations means every claim must carry a source id.
	RequireCitations bool `json:"require_citations"`

	// FinancialPath is the only structured query monetary aggregates may
	// come from. Empty for agents that do not report money.
	FinancialPath string `json:"financial_path,omitempty"`
}

func (c AgentConfig) clone() AgentConfig {
	c.ForbiddenEvidence = slices.Clone(c.ForbiddenEvidence)
	return c
}

// Forbids reports whether category may not be used as evidence.
func (c AgentConfig) Forbids(category decision.DocumentCategory) bool {
	return slices.Contains(c.ForbiddenEvidence, category)
}

// defaultRules returns everything except the instruction text.
func defaultRules() map[decision.AgentName]AgentConfig {
	return map[decision.AgentName]AgentConfig{
		decision.AgentContracts: {
			ForbiddenEvidence: []decision.DocumentCategory{decision.CategoryChatLog},
			RequireCitations:  true,
		},
		decision.AgentFinance: {
			ForbiddenEvidence: []decision.DocumentCategory{decision.CategoryChatLog},
			RequireCitations:  true,
			FinancialPath:     router.RPCFinancialSummary,
		},
		decision.AgentGovernance: {
			ForbiddenEvidence: []decision.DocumentCategory{decision.CategoryChatLog},
		},
		decision.AgentOps: {
			ForbiddenEvidence: []decision.DocumentCategory{decision.CategoryChatLog},
		},
		decision.AgentProposals: {RequireCitations: true},
		decision.AgentProjects:  {},
		decision.AgentClients:   {},
		decision.AgentGeneral:   {},
	}
}

// Registry is the read-only agent table. It is safe for concurrent use.
type Registry struct {
	agents map[decision.AgentName]AgentConfig
}

// NewRegistry loads the instruction text of every known agent. A missing or
// empty instruction file is an error.
func NewRegistry() (*Registry, error) {
	rules := defaultRules()
	agents := make(map[decision.AgentName]AgentConfig, len(rules))
	for _, name := range decision.AgentNames() {
		raw, err := instructionFS.ReadFile("instructions/" + string(name) + ".md")
		if err != nil {
			return nil, fmt.Errorf("agents: instructions for %s: %w", name, err)
		}
		text := strings.TrimSpace(string(raw))
		if text == "" {
			return nil, fmt.Errorf("agents: instructions for %s are empty", name)
		}

		cfg := rules[name].clone()
		cfg.Name = name
		cfg.Instructions = text
		agents[name] = cfg
	}
	return &Registry{agents: agents}, nil
}

// MustNewRegistry is NewRegistry for process start-up.
func MustNewRegistry() *Registry {
	r, err := NewRegistry()
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns a copy of the named agent's config.
func (r *Registry) Get(name decision.AgentName) (AgentConfig, bool) {
	cfg, ok := r.agents[name]
	if !ok {
		return AgentConfig{}, false
	}
	return cfg.clone(), true
}

// List returns every agent in AgentNames order.
func (r *Registry) List() []AgentConfig {
	out := make([]AgentConfig, 0, len(r.agents))
	for _, name := range decision.AgentNames() {
		if cfg, ok := r.agents[name]; ok {
			out = append(out, cfg.clone())
		}
	}
	return out
}

// ForbiddenEvidence returns the categories agent may not cite. Unknown agents
// get nothing extra; the retrieval policy still applies to them.
func (r *Registry) ForbiddenEvidence(agent decision.AgentName) []decision.DocumentCategory {
	return slices.Clone(r.agents[agent].ForbiddenEvidence)
}
