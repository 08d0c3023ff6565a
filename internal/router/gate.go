// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

// gateRules is the hard-gate precedence. A message naming both a contract and
// a value is a contract question; a value question mentioning a password is
// still a money question.
var gateRules = []string{RuleContract, RuleMonetary, RuleSensitive}

// HardGate short-circuits high-risk messages before classification and before
// any reasoning call.
type HardGate struct {
	lex   *Lexicon
	rules []Rule
}

// NewHardGate builds the gate from the high-risk rows of the rule table.
func NewHardGate(lex *Lexicon) *HardGate {
	if lex == nil {
		lex = DefaultLexicon()
	}
	byName := make(map[string]Rule)
	for _, r := range buildRules(lex) {
		byName[r.Name] = r
	}
	g := &HardGate{lex: lex}
	for _, name := range gateRules {
		g.rules = append(g.rules, byName[name])
	}
	return g
}

// Check returns the gated decision and true when a high-risk rule matches.
// Gated decisions are always risk high under STRICT_DOCS_ONLY.
func (g *HardGate) Check(message string, in decision.RouterInput) (decision.RouteDecision, bool) {
	text := Fold(message)
	for _, r := range g.rules {
		term, ok := r.Terms.First(text)
		if !ok {
			continue
		}
		m := match{text: text, in: in, lex: g.lex, term: term}
		return finalize(r.build(m), m, r.Name, decision.SourceHardGate), true
	}
	return decision.RouteDecision{}, false
}
