// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package router decides, for each user message, which specialist agent
// answers it, which retrieval policy governs evidence and which tool to use.
//
// Routing runs in three layers:
// Hard gates -> Reasoner (optional) -> Heuristic classifier
//
// # Key Types
//
//   - Router: the hybrid router, safe for concurrent use
//   - HardGate: contract > monetary > sensitive short-circuit
//   - Classifier: ordered rule table over folded term lists
//   - Guard: contract override applied to reasoner decisions
//   - Lexicon: curated term lists, built once and shared read-only
//
// # Security
//
// Hard gates are ALWAYS the first check. A gated message never reaches the
// reasoner and always routes as high risk under STRICT_DOCS_ONLY. Reasoner
// decisions are validated, thresholded, guarded and re-normalized through the
// policy enforcer before they are returned.
//
// # Usage
//
//	r := router.New(router.Options{Reasoner: rsn})
//	d, err := r.Route(ctx, in)
//	if err != nil {
//	    return err // caller context cancelled
//	}
//	switch d.ToolHint {
//	case decision.ToolDBQuery:
//	    // run d.DBQuery
//	case decision.ToolRAGSearch:
//	    // retrieve with d.Filters and d.TopK
//	}
package router
