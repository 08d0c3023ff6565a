// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package decision holds the routing vocabulary shared by the router, the
// reasoning adapter, the specialist registry and the retrieval executor.
//
// # Key Types
//
//   - RouteDecision: the per-request answer of the router
//   - RouteFilters: tenant-scoped retrieval filters carried by a decision
//   - RetrievalPolicy: named rule-set over DocumentCategory values
//
// # Policy Enforcement
//
// ApplyPolicy is the only place that decides which document categories a
// policy permits. Every boundary (decision construction, acceptance of a
// reasoning-model decision, retrieval execution) calls it again:
//
//	filters := decision.MergeFilters(decision.BaseFilters(in), patch)
//	filters = decision.ApplyPolicy(filters, decision.PolicyStrictDocsOnly)
//
// Decisions are built fresh for every request and are never cached.
package decision
