// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/eyeq-tui/internal/backend"
)

func newKnowledgeCommand(opts *globalOptions) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:     "knowledge [query...]",
		Aliases: []string{"kb"},
		Short:   "Search the regulatory knowledge base",
		Long: `Search the guidelines, compliance scenarios and best practices the
review service draws on. Without a query the available topics and
scenarios are listed.`,
		Example: `  eyeq knowledge superlative claims
  eyeq knowledge --json disclaimers
  eyeq knowledge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			return withApp(opts, func(app *App) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.Backend.RequestTimeout())
				defer cancel()

				res, err := app.Backend.Knowledge(ctx, query)
				if err != nil {
					err = &CommandError{Command: "knowledge", Code: ExitCode(err), Err: err}
				}

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return writeJSON(out, "knowledge", res, err)
				}
				if err != nil {
					return err
				}
				rendered := !raw && app.Config.UI.RenderMarkdown
				printKnowledge(out, res, rendered)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&raw, "raw", false, "print results without markdown rendering")
	return cmd
}

// printKnowledge writes a search result, or the topic index for an empty
// query.
func printKnowledge(w io.Writer, res *backend.KnowledgeResult, rendered bool) {
	if res.IsIndex() {
		if res.Message != "" {
			fmt.Fprintln(w, dimStyle.Render(res.Message))
		}
		printList(w, "Topics", res.Topics)
		printList(w, "Scenarios", res.Scenarios)
		return
	}

	if res.FormattedResponse != "" {
		fmt.Fprintln(w, renderMarkdown(w, res.FormattedResponse, rendered))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d result(s) for %q", res.ResultsCount, res.Query)))
	for _, e := range res.Results {
		fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(e.Type), e.Name())
	}
}

func printList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, titleStyle.Render(title))
	for _, it := range items {
		fmt.Fprintln(w, "  "+it)
	}
}
