// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/eyeq-tui/internal/ui/styles"
)

// healthReport is the JSON form of the health command.
type healthReport struct {
	URL       string `json:"url"`
	Healthy   bool   `json:"healthy"`
	Status    string `json:"status,omitempty"`
	Agent     string `json:"agent,omitempty"`
	Database  string `json:"database,omitempty"`
	LatencyMS int64  `json:"latency_ms,omitempty"`
}

func newHealthCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "health",
		Aliases: []string{"status"},
		Short:   "Check that the review service is reachable",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(app *App) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.Backend.RequestTimeout())
				defer cancel()

				status, err := app.Backend.Health(ctx)
				report := healthReport{URL: app.Backend.BaseURL(), Healthy: err == nil}
				if status != nil {
					report.Status = status.Status
					report.Agent = status.Agent
					report.Database = status.Database
					report.LatencyMS = status.Latency.Milliseconds()
				}
				if err != nil {
					err = &CommandError{Command: "health", Code: ExitCode(err), Err: err}
				}

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return writeJSON(out, "health", report, err)
				}

				indicator := successStyle.Render(styles.StatusIndicators.Success)
				if err != nil {
					indicator = errorStyle.Render(styles.StatusIndicators.Error)
				}
				fmt.Fprintln(out, indicator, titleStyle.Render("EyeQ backend"))
				printField(out, "URL", report.URL)
				if status != nil {
					printField(out, "Status", report.Status)
					if report.Agent != "" {
						printField(out, "Agent", report.Agent)
					}
					if report.Database != "" {
						printField(out, "Database", report.Database)
					}
					printField(out, "Latency", status.Latency.Round(time.Millisecond).String())
				}
				return err
			})
		},
	}
}
