// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package decision

import (
	"slices"
)

// docsBase is what every documentary policy may read.
var docsBase = []DocumentCategory{CategoryOfficialDoc, CategoryDatabaseRecord, CategorySessionSummary}

// ApplyPolicy normalizes filters for policy. It is the single source of truth
// for which categories a policy permits and must be re-applied at every
// boundary that hands filters to similarity search.
//
// Rules:
//   - STRICT_DOCS_ONLY: allow official_doc, database_record, session_summary;
//     block chat_log; clear the time window.
//   - DOCS_PLUS_RECENT_CHAT: same base; chat_log is allowed only when the
//     input filters carry a positive time window, otherwise it is blocked.
//   - CHAT_ONLY: drop prior state, allow exactly chat_log and session_summary.
//   - OPS_ONLY: drop prior state, allow exactly system_note, force artifact ops.
//
// CHAT_ONLY and OPS_ONLY keep the tenant and the client/project/source ids.
// Unknown policies fail closed as STRICT_DOCS_ONLY. The function is pure and
// idempotent.
func ApplyPolicy(filters RouteFilters, policy RetrievalPolicy) RouteFilters {
	var out RouteFilters

	switch policy {
	case PolicyDocsPlusRecentChat:
		out = filters.Clone()
		out.AllowCategories = slices.Clone(docsBase)
		out.BlockCategories = nil
		if filters.TimeWindowMinutes > 0 {
			out.AllowCategories = append(out.AllowCategories, CategoryChatLog)
		} else {
			out.BlockCategories = []DocumentCategory{CategoryChatLog}
			out.TimeWindowMinutes = 0
		}

	case PolicyChatOnly:
		out = scopeOnly(filters)
		out.AllowCategories = []DocumentCategory{CategoryChatLog, CategorySessionSummary}
		if filters.TimeWindowMinutes > 0 {
			out.TimeWindowMinutes = filters.TimeWindowMinutes
		}

	case PolicyOpsOnly:
		out = scopeOnly(filters)
		out.AllowCategories = []DocumentCategory{CategorySystemNote}
		out.ArtifactKind = ArtifactOps

	default:
		// STRICT_DOCS_ONLY and anything unrecognized.
		out = filters.Clone()
		out.AllowCategories = slices.Clone(docsBase)
		out.BlockCategories = []DocumentCategory{CategoryChatLog}
		out.TimeWindowMinutes = 0
	}

	return normalizeCategories(out)
}

// Constrain removes forbidden categories from the allow list and adds them to
// the block list. It narrows an already normalized filter set and is used for
// per-agent evidentiary rules.
func Constrain(filters RouteFilters, forbidden []DocumentCategory) RouteFilters {
	if len(forbidden) == 0 {
		return filters.Clone()
	}
	out := filters.Clone()
	out.BlockCategories = append(out.BlockCategories, forbidden...)
	return normalizeCategories(out)
}

// scopeOnly keeps the fields that identify who the data belongs to.
func scopeOnly(f RouteFilters) RouteFilters {
	return RouteFilters{
		TenantID:  f.TenantID,
		ClientID:  f.ClientID,
		ProjectID: f.ProjectID,
		SourceID:  f.SourceID,
	}
}

// normalizeCategories sorts and de-duplicates both lists and removes blocked
// categories from the allow list. Block always wins.
func normalizeCategories(f RouteFilters) RouteFilters {
	f.BlockCategories = sortedUnique(f.BlockCategories)
	allow := make([]DocumentCategory, 0, len(f.AllowCategories))
	for _, c := range sortedUnique(f.AllowCategories) {
		if !slices.Contains(f.BlockCategories, c) {
			allow = append(allow, c)
		}
	}
	f.AllowCategories = allow
	return f
}

func sortedUnique(in []DocumentCategory) []DocumentCategory {
	if len(in) == 0 {
		return nil
	}
	out := slices.Clone(in)
	slices.Sort(out)
	return slices.Compact(out)
}
