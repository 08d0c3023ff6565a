// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Andre-cardia/c4marketing-sub000/internal/agents"
	"github.com/Andre-cardia/c4marketing-sub000/internal/decision"
	"github.com/Andre-cardia/c4marketing-sub000/internal/retrieval"
	"github.com/Andre-cardia/c4marketing-sub000/internal/store"
)

// =============================================================================
// REQUEST FLAGS
// =============================================================================

// inputFlags describe the request being routed.
type inputFlags struct {
	tenant  string
	session string
	role    string
	client  string
	project string
	source  string
}

func (f *inputFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.tenant, "tenant", "t", "", "tenant id (required)")
	cmd.Flags().StringVar(&f.session, "session", "", "session id")
	cmd.Flags().StringVar(&f.role, "role", "staff", "role of the requesting user")
	cmd.Flags().StringVar(&f.client, "client", "", "client id in scope")
	cmd.Flags().StringVar(&f.project, "project", "", "project id in scope")
	cmd.Flags().StringVar(&f.source, "source", "", "source record id in scope")
	_ = cmd.MarkFlagRequired("tenant")
}

func (f *inputFlags) input(message string) decision.RouterInput {
	return decision.RouterInput{
		TenantID:    f.tenant,
		SessionID:   f.session,
		UserRole:    f.role,
		UserMessage: message,
		ClientID:    f.client,
		ProjectID:   f.project,
		SourceID:    f.source,
	}
}

// =============================================================================
// ROUTE
// =============================================================================

func newRouteCmd(opts *rootOptions, d deps) *cobra.Command {
	flags := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "route <message>",
		Short: "Print the routing decision for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.setup(cmd, d)
			if err != nil {
				return opts.fail(cmd, "route", err)
			}
			defer app.Close()

			in := flags.input(strings.Join(args, " "))
			dec, err := app.Router.Route(cmd.Context(), in)
			if err != nil {
				return opts.fail(cmd, "route", err)
			}

			if opts.jsonOut {
				return NewJSONResponse("route", RouteData{Input: in, Decision: dec}).Print(cmd.OutOrStdout())
			}
			printDecision(cmd.OutOrStdout(), dec)
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

// =============================================================================
// RETRIEVE
// =============================================================================

func newRetrieveCmd(opts *rootOptions, d deps) *cobra.Command {
	flags := &inputFlags{}
	cmd := &cobra.Command{
		Use:   "retrieve <query>",
		Short: "Route a query and fetch the evidence the chosen agent may see",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.setup(cmd, d)
			if err != nil {
				return opts.fail(cmd, "retrieve", err)
			}
			defer app.Close()

			ctx := cmd.Context()
			query := strings.Join(args, " ")
			dec, err := app.Router.Route(ctx, flags.input(query))
			if err != nil {
				return opts.fail(cmd, "retrieve", err)
			}

			retriever, err := app.Retriever(ctx)
			if err != nil {
				return opts.fail(cmd, "retrieve", err)
			}
			params := retrieval.FromDecision(query, dec)
			params.MinSimilarity = app.Config.Retrieval.MinSimilarity
			docs, err := retriever.Retrieve(ctx, params)
			if err != nil {
				app.Log.Error("retrieval failed", "error", err)
				return opts.fail(cmd, "retrieve", err)
			}

			var rows []map[string]any
			if dec.ToolHint == decision.ToolDBQuery && dec.DBQuery != nil {
				h, _ := app.Store(ctx)
				if h != nil && h.Querier != nil {
					rows, err = h.Querier.Call(ctx, dec.DBQuery)
					if err != nil {
						return opts.fail(cmd, "retrieve", err)
					}
				} else {
					app.Log.Warn("structured query skipped: store has no query executor", "rpc", dec.DBQuery.RPCName)
				}
			}

			if opts.jsonOut {
				return NewJSONResponse("retrieve", RetrieveData{Decision: dec, Docs: docs, Rows: rows}).Print(cmd.OutOrStdout())
			}
			out := cmd.OutOrStdout()
			printDecision(out, dec)
			printDocs(out, docs)
			if rows != nil {
				fmt.Fprintln(out, RenderField("Rows", fmt.Sprintf("%d", len(rows))))
			}
			return nil
		},
	}
	flags.bind(cmd)
	return cmd
}

// =============================================================================
// AGENTS
// =============================================================================

func newAgentsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "agents [name]",
		Short: "List specialist agents and their evidence rules",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			registry, err := agents.NewRegistry()
			if err != nil {
				return opts.fail(cmd, "agents", err)
			}

			list := registry.List()
			if len(args) == 1 {
				cfg, ok := registry.Get(decision.AgentName(args[0]))
				if !ok {
					return opts.fail(cmd, "agents", fmt.Errorf("unknown agent %q", args[0]))
				}
				list = []agents.AgentConfig{cfg}
			}

			if opts.jsonOut {
				return NewJSONResponse("agents", AgentsData{Agents: list}).Print(cmd.OutOrStdout())
			}
			printAgents(cmd.OutOrStdout(), list, len(args) == 1)
			return nil
		},
	}
}

// =============================================================================
// INGEST
// =============================================================================

func newIngestCmd(opts *rootOptions, d deps) *cobra.Command {
	var tenant string
	cmd := &cobra.Command{
		Use:   "ingest <file|->",
		Short: "Embed and store documents from a JSON-lines file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := opts.setup(cmd, d)
			if err != nil {
				return opts.fail(cmd, "ingest", err)
			}
			defer app.Close()

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return opts.fail(cmd, "ingest", err)
				}
				defer f.Close()
				r = f
			}

			ctx := cmd.Context()
			emb, err := app.Embedder()
			if err != nil {
				return opts.fail(cmd, "ingest", err)
			}
			h, err := app.Store(ctx)
			if err != nil {
				return opts.fail(cmd, "ingest", err)
			}

			stats, err := store.Ingest(ctx, r, emb, h.Docs, tenant)
			if err != nil {
				return opts.fail(cmd, "ingest", err)
			}
			app.Log.Info("ingest complete", "source", args[0], "inserted", stats.Inserted, "skipped", stats.Skipped)

			data := IngestData{Source: args[0], Inserted: stats.Inserted, Skipped: stats.Skipped}
			if opts.jsonOut {
				return NewJSONResponse("ingest", data).Print(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render(fmt.Sprintf("Inserted %d documents", data.Inserted))+
				DimStyle.Render(fmt.Sprintf(" (%d lines skipped)", data.Skipped)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&tenant, "tenant", "t", "", "tenant for documents that carry none")
	return cmd
}
