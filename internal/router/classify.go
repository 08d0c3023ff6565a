// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

// ============================================================================
// HEURISTIC CLASSIFIER
// ============================================================================

// Classifier maps a message to a decision using the ordered rule table. It is
// deterministic, does no I/O and is safe for concurrent use.
type Classifier struct {
	lex   *Lexicon
	rules []Rule
}

// NewClassifier builds a classifier over lex. A nil lex uses DefaultLexicon.
func NewClassifier(lex *Lexicon) *Classifier {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &Classifier{lex: lex, rules: buildRules(lex)}
}

// Rules returns the rule names in evaluation order.
func (c *Classifier) Rules() []string {
	names := make([]string, 0, len(c.rules)+1)
	for _, r := range c.rules {
		names = append(names, r.Name)
	}
	return append(names, RuleFallback)
}

// Classify returns the decision of the first matching rule, or the fallback.
// Categories are never combined. Classify never panics: a failure inside a
// rule yields the fallback decision.
func (c *Classifier) Classify(message string, in decision.RouterInput) (d decision.RouteDecision) {
	text := Fold(message)
	defer func() {
		if recover() != nil {
			d = c.fallback(text, in)
		}
	}()

	for _, r := range c.rules {
		term, ok := r.Terms.First(text)
		if !ok {
			continue
		}
		m := match{text: text, in: in, lex: c.lex, term: term}
		return finalize(r.build(m), m, r.Name, decision.SourceHeuristic)
	}
	return c.fallback(text, in)
}

func (c *Classifier) fallback(text Text, in decision.RouterInput) decision.RouteDecision {
	m := match{text: text, in: in, lex: c.lex}
	return finalize(buildFallback(m), m, RuleFallback, decision.SourceHeuristic)
}
