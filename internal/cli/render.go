// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/Andre-cardia/c4marketing-sub000/internal/agents"
	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
	"github.com/Andre-cardia/c4marketing-sub000/internal/util"
)

const (
	// maxDocPreview bounds the content shown per retrieved document.
	maxDocPreview = 240
	maxIDWidth    = 40
)

func printDecision(w io.Writer, d decision.RouteDecision) {
	fmt.Fprintln(w, TitleStyle.Render("Routing decision"))
	fmt.Fprintln(w, RenderField("Agent", string(d.Agent)))
	fmt.Fprintln(w, RenderField("Task", string(d.TaskKind)))
	fmt.Fprintln(w, RenderField("Artifact", string(d.ArtifactKind)))
	fmt.Fprintln(w, LabelStyle.Render("Risk")+RenderRisk(d.RiskLevel))
	fmt.Fprintln(w, RenderField("Policy", string(d.Policy)))
	fmt.Fprintln(w, RenderField("Tool", string(d.ToolHint)))
	fmt.Fprintln(w, RenderField("Top K", fmt.Sprintf("%d", d.TopK)))
	fmt.Fprintln(w, RenderField("Confidence", fmt.Sprintf("%.2f", d.Confidence)))
	if d.Source != "" {
		fmt.Fprintln(w, RenderField("Source", string(d.Source)))
	}
	fmt.Fprintln(w, RenderField("Tenant", d.Filters.TenantID))
	if len(d.Filters.AllowCategories) > 0 {
		fmt.Fprintln(w, RenderField("Allowed", joinCategories(d.Filters.AllowCategories)))
	}
	if len(d.Filters.BlockCategories) > 0 {
		fmt.Fprintln(w, RenderField("Blocked", joinCategories(d.Filters.BlockCategories)))
	}
	if d.DBQuery != nil {
		fmt.Fprintln(w, RenderField("Query", d.DBQuery.RPCName+formatParams(d.DBQuery.Params)))
	}
	if d.Reason != "" {
		fmt.Fprintln(w, RenderField("Reason", d.Reason))
	}
}

func printDocs(w io.Writer, docs []decision.RetrievedDoc) {
	width := GetTerminalWidth()
	fmt.Fprintln(w)
	fmt.Fprintln(w, TitleStyle.Render(fmt.Sprintf("Evidence (%d)", len(docs))))
	if len(docs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No documents matched."))
		return
	}
	for i, doc := range docs {
		cat, _ := doc.Category()
		fmt.Fprintf(w, "%s %s %s\n",
			ValueStyle.Render(fmt.Sprintf("%d.", i+1)),
			ValueStyle.Render(util.TruncateWidth(doc.ID, maxIDWidth)),
			DimStyle.Render(fmt.Sprintf("[%s] %.3f", cat, doc.Similarity)))
		fmt.Fprintln(w, WrapText(util.TruncateRunes(doc.Content, maxDocPreview), width-4))
	}
}

func printAgents(w io.Writer, list []agents.AgentConfig, withInstructions bool) {
	fmt.Fprintln(w, TitleStyle.Render("Agents"))
	for i, a := range list {
		if i > 0 {
			fmt.Fprintln(w, RenderSeparator(GetTerminalWidth()/2))
		}
		fmt.Fprintln(w, RenderField("Name", string(a.Name)))
		forbidden := "none"
		if len(a.ForbiddenEvidence) > 0 {
			forbidden = joinCategories(a.ForbiddenEvidence)
		}
		fmt.Fprintln(w, RenderField("Forbidden", forbidden))
		fmt.Fprintln(w, RenderField("Citations", fmt.Sprintf("%t", a.RequireCitations)))
		if a.FinancialPath != "" {
			fmt.Fprintln(w, RenderField("Financial path", a.FinancialPath))
		}
		if withInstructions {
			fmt.Fprintln(w)
			fmt.Fprintln(w, WrapText(a.Instructions, GetTerminalWidth()))
		}
	}
}

func joinCategories(cats []decision.DocumentCategory) string {
	parts := make([]string, len(cats))
	for i, c := range cats {
		parts[i] = string(c)
	}
	return strings.Join(parts, ", ")
}

// formatParams renders a parameter bag as "(k=v, ...)" with sorted keys.
func formatParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
