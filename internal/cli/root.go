// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the c4route command line: routing a message,
// retrieving evidence for it, listing agents and ingesting documents.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Andre-cardia/c4marketing-sub000/internal/logger"
	"github.com/Andre-cardia/c4marketing-sub000/internal/retrieval"
)

// BuildInfo is the version information injected at link time.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// rootOptions holds the persistent flags.
type rootOptions struct {
	cfgFile  string
	jsonOut  bool
	logLevel string
}

// Execute is the main entry point called from main.go.
func Execute(info BuildInfo) {
	cmd := newRootCmd(info, defaultDeps())
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ErrorStyle.Render("error: ")+userError(err))
		os.Exit(1)
	}
}

func newRootCmd(info BuildInfo, d deps) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "c4route",
		Short: "Route agency requests to the right agent and evidence",
		Long: "c4route decides which specialist agent answers a request, which evidence\n" +
			"it may see and whether a structured query is needed, then retrieves that evidence.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.cfgFile, "config", "c", "", "config file path (default ~/.c4route/config.toml)")
	rootCmd.PersistentFlags().BoolVar(&opts.jsonOut, "json", false, "print a JSON envelope instead of human output")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRouteCmd(opts, d))
	rootCmd.AddCommand(newRetrieveCmd(opts, d))
	rootCmd.AddCommand(newAgentsCmd(opts))
	rootCmd.AddCommand(newIngestCmd(opts, d))
	rootCmd.AddCommand(newConfigCmd(opts, d))
	rootCmd.AddCommand(newDoctorCmd(opts, d))
	rootCmd.AddCommand(newVersionCmd(info, opts))

	return rootCmd
}

// setup loads configuration and wires the application for one command.
func (o *rootOptions) setup(cmd *cobra.Command, d deps) (*App, error) {
	cfg, err := d.loadConfig(o.cfgFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}

	log := logger.New(&logger.Config{
		Level:      logger.LogLevel(cfg.Log.Level),
		Output:     cmd.ErrOrStderr(),
		JSON:       cfg.Log.JSON,
		TimeFormat: "15:04:05",
	})
	cmd.SetContext(logger.ContextWithLogger(cmd.Context(), log))

	return newApp(cfg, log, d)
}

// fail prints err in the selected output mode and returns it so cobra exits
// non-zero. JSON mode prints the envelope to stdout.
func (o *rootOptions) fail(cmd *cobra.Command, name string, err error) error {
	if o.jsonOut {
		_ = NewJSONErrorResponse(name, userError(err)).Print(cmd.OutOrStdout())
	}
	return err
}

// userError hides retrieval internals behind their user message.
func userError(err error) string {
	var rerr *retrieval.RetrievalError
	if errors.As(err, &rerr) {
		return rerr.UserMessage()
	}
	return err.Error()
}

func newVersionCmd(info BuildInfo, opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.jsonOut {
				return NewJSONResponse("version", info).Print(cmd.OutOrStdout())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "c4route version %s (commit: %s, built: %s)\n", info.Version, info.Commit, info.Date)
			return nil
		},
	}
}
