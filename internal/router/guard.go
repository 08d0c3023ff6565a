// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package router

import (
	"fmt"

	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
)

// Guard re-checks an accepted reasoner decision against the raw message. A
// message that mentions contract terms always ends at the contracts agent,
// whatever the model proposed.
type Guard struct {
	lex *Lexicon
}

// NewGuard builds a guard over lex. A nil lex uses DefaultLexicon.
func NewGuard(lex *Lexicon) *Guard {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return &Guard{lex: lex}
}

// Apply returns proposed unchanged unless the message carries contract terms.
// On override the contract rule's artifact, agent, policy, risk and filters
// replace the proposal, the higher confidence is kept and the original
// proposal is recorded in the reason.
func (g *Guard) Apply(message string, in decision.RouterInput, proposed decision.RouteDecision) (decision.RouteDecision, bool) {
	text := Fold(message)
	term, ok := g.lex.Contract.First(text)
	if !ok {
		return proposed, false
	}

	m := match{text: text, in: in, lex: g.lex, term: term}
	forced := finalize(buildContract(m), m, RuleContract, decision.SourceReasoner)
	forced.TaskKind = proposed.TaskKind
	forced.Confidence = max(proposed.Confidence, forced.Confidence)
	forced.Reason = fmt.Sprintf("guard:contract_override (matched %q); model proposed agent=%s artifact=%s: %s",
		term, proposed.Agent, proposed.ArtifactKind, proposed.Reason)
	return forced, true
}
