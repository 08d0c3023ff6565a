// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/Andre-cardia/c4marketing-sub000/internal/ollama"
)

// doctorTimeout bounds each network check.
const doctorTimeout = 5 * time.Second

// errChecksFailed makes doctor exit non-zero after printing its report.
var errChecksFailed = errors.New("one or more checks failed")

// =============================================================================
// HEALTH CHECK TYPES
// =============================================================================

// CheckStatus represents the status of a health check.
type CheckStatus int

const (
	CheckPass CheckStatus = iota
	CheckWarn
	CheckFail
)

// String returns the string representation of the check status.
func (s CheckStatus) String() string {
	switch s {
	case CheckPass:
		return "pass"
	case CheckWarn:
		return "warn"
	case CheckFail:
		return "fail"
	default:
		return "unknown"
	}
}

// MarshalText encodes the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// CheckResult is one line of the doctor report.
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Fix     string      `json:"fix,omitempty"`
}

// DoctorData is the data returned by the doctor command.
type DoctorData struct {
	Checks []CheckResult `json:"checks"`
	Passed bool          `json:"passed"`
}

// pingOllama is the default reachability check.
func pingOllama(ctx context.Context, baseURL string) error {
	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: baseURL, Timeout: doctorTimeout})
	return client.CheckRunning(ctx)
}

// =============================================================================
// DOCTOR COMMAND
// =============================================================================

func newDoctorCmd(opts *rootOptions, d deps) *cobra.Command {
	return &cobra.Command{
		Use:     "doctor",
		Aliases: []string{"diag"},
		Short:   "Check configuration, model backends and the document store",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := runChecks(cmd, opts, d)

			data := DoctorData{Checks: checks, Passed: true}
			for _, c := range checks {
				if c.Status == CheckFail {
					data.Passed = false
				}
			}

			if opts.jsonOut {
				resp := NewJSONResponse("doctor", data)
				resp.Success = data.Passed
				if err := resp.Print(cmd.OutOrStdout()); err != nil {
					return err
				}
			} else {
				printChecks(cmd.OutOrStdout(), checks)
			}
			if !data.Passed {
				return errChecksFailed
			}
			return nil
		},
	}
}

func runChecks(cmd *cobra.Command, opts *rootOptions, d deps) []CheckResult {
	app, err := opts.setup(cmd, d)
	if err != nil {
		return []CheckResult{{
			Name:    "Config",
			Status:  CheckFail,
			Message: err.Error(),
			Fix:     "run: c4route config init",
		}}
	}
	defer app.Close()

	ctx := cmd.Context()
	cfg := app.Config
	checks := []CheckResult{{Name: "Config", Status: CheckPass, Message: "configuration is valid"}}

	switch cfg.Embedding.Provider {
	case "ollama":
		checks = append(checks, checkOllama(ctx, d, "Embeddings", cfg.Embedding.BaseURL, cfg.Embedding.Model))
	default:
		checks = append(checks, CheckResult{Name: "Embeddings", Status: CheckPass,
			Message: fmt.Sprintf("%s (%s)", cfg.Embedding.Provider, cfg.Embedding.Model)})
	}

	switch {
	case !cfg.Routing.ReasoningEnabled:
		checks = append(checks, CheckResult{Name: "Reasoner", Status: CheckWarn,
			Message: "disabled; routing uses hard gates and heuristics only",
			Fix:     "set routing.reasoning_enabled = true to enable"})
	case cfg.Reasoner.Provider == "ollama":
		checks = append(checks, checkOllama(ctx, d, "Reasoner", cfg.Reasoner.BaseURL, cfg.Reasoner.Model))
	default:
		checks = append(checks, CheckResult{Name: "Reasoner", Status: CheckPass,
			Message: fmt.Sprintf("%s (%s)", cfg.Reasoner.Provider, cfg.Reasoner.Model)})
	}

	storeCtx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()
	if h, err := app.Store(storeCtx); err != nil {
		checks = append(checks, CheckResult{Name: "Store", Status: CheckFail, Message: err.Error(),
			Fix: "check store.driver and store.dsn / store.path"})
	} else {
		msg := cfg.Store.Driver
		if h.Querier == nil {
			msg += " (structured queries unavailable)"
		}
		checks = append(checks, CheckResult{Name: "Store", Status: CheckPass, Message: msg})
	}

	checks = append(checks, CheckResult{Name: "Agents", Status: CheckPass,
		Message: fmt.Sprintf("%d agents loaded", len(app.Agents.List()))})
	return checks
}

func checkOllama(ctx context.Context, d deps, name, baseURL, model string) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, doctorTimeout)
	defer cancel()

	if err := d.pingOllama(ctx, baseURL); err != nil {
		res := CheckResult{Name: name, Status: CheckFail, Message: err.Error()}
		if ollama.IsNotRunning(err) || ollama.IsTimeout(err) {
			res.Fix = "start Ollama: ollama serve"
		}
		return res
	}
	return CheckResult{Name: name, Status: CheckPass,
		Message: fmt.Sprintf("ollama reachable at %s (model %s)", baseURL, model)}
}

func printChecks(w io.Writer, checks []CheckResult) {
	fmt.Fprintln(w, TitleStyle.Render("c4route doctor"))
	for _, c := range checks {
		var status string
		switch c.Status {
		case CheckPass:
			status = SuccessStyle.Render("[ok]  ")
		case CheckWarn:
			status = WarningStyle.Render("[warn]")
		default:
			status = ErrorStyle.Render("[fail]")
		}
		fmt.Fprintf(w, "%s %s%s\n", status, LabelStyle.Render(c.Name), ValueStyle.Render(c.Message))
		if c.Fix != "" && c.Status != CheckPass {
			fmt.Fprintln(w, DimStyle.Render("       "+c.Fix))
		}
	}
}
