// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Andre-cardia/c4marketing-sub000/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func newConfigCmd(opts *rootOptions, d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(opts))
	cmd.AddCommand(newConfigShowCmd(opts, d))
	cmd.AddCommand(newConfigGetCmd(opts, d))
	return cmd
}

func newConfigInitCmd(opts *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.cfgFile
			if path == "" {
				p, err := config.ConfigPathTOML()
				if err != nil {
					return opts.fail(cmd, "config init", err)
				}
				path = p
			}
			if _, err := os.Stat(path); err == nil && !force {
				return opts.fail(cmd, "config init", fmt.Errorf("%s already exists (use --force to overwrite)", path))
			}
			if err := config.SaveTOML(config.Default(), path); err != nil {
				return opts.fail(cmd, "config init", err)
			}

			if opts.jsonOut {
				return NewJSONResponse("config init", map[string]string{"path": path}).Print(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("Wrote ")+ValueStyle.Render(path))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd(opts *rootOptions, d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig(opts.cfgFile)
			if err != nil {
				return opts.fail(cmd, "config show", err)
			}
			if opts.jsonOut {
				// String already redacts; decode it back so the envelope nests it.
				var redacted map[string]any
				if err := json.Unmarshal([]byte(cfg.String()), &redacted); err != nil {
					return opts.fail(cmd, "config show", err)
				}
				return NewJSONResponse("config show", redacted).Print(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
}

func newConfigGetCmd(opts *rootOptions, d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "get <section.key>",
		Short: "Print one configuration value (secrets redacted)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := d.loadConfig(opts.cfgFile)
			if err != nil {
				return opts.fail(cmd, "config get", err)
			}
			v, err := cfg.Redacted().Get(args[0])
			if err != nil {
				return opts.fail(cmd, "config get", err)
			}
			if opts.jsonOut {
				return NewJSONResponse("config get", map[string]any{"key": args[0], "value": v}).Print(cmd.OutOrStdout())
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}
}
