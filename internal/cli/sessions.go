// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/eyeq-tui/internal/conversation"
	"github.com/jeranaias/eyeq-tui/internal/model"
	"github.com/jeranaias/eyeq-tui/internal/ui/styles"
	"github.com/jeranaias/eyeq-tui/internal/util"
)

func newSessionsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session", "conversations"},
		Short:   "Manage saved conversations",
	}
	cmd.AddCommand(
		newSessionsListCommand(opts),
		newSessionsShowCommand(opts),
		newSessionsRenameCommand(opts),
		newSessionsPinCommand(opts),
		newSessionsDeleteCommand(opts),
		newSessionsClearCommand(opts),
	)
	return cmd
}

// withApp opens the app around fn.
func withApp(opts *globalOptions, fn func(app *App) error) error {
	app, err := opts.open()
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(app)
}

func notFound(command, id string) error {
	return &CommandError{Command: command, Code: ExitNotFound, Err: fmt.Errorf("%w: %s", conversation.ErrNotFound, id)}
}

// =============================================================================
// LIST / SHOW
// =============================================================================

// sessionSummary is the JSON form of a list entry.
type sessionSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Pinned    bool   `json:"pinned"`
	Messages  int    `json:"messages"`
	UpdatedAt string `json:"updated_at"`
	Preview   string `json:"preview,omitempty"`
}

func newSessionsListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List conversations, pinned first then most recent",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(opts, func(app *App) error {
				convs := app.Repo.SortedView()
				if opts.jsonOut {
					out := make([]sessionSummary, 0, len(convs))
					for _, c := range convs {
						out = append(out, sessionSummary{
							ID:        c.ID,
							Title:     c.Title,
							Pinned:    c.Pinned,
							Messages:  len(c.Messages),
							UpdatedAt: c.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
							Preview:   c.Preview(80),
						})
					}
					return writeJSON(cmd.OutOrStdout(), "sessions list", out, nil)
				}
				printSessionList(cmd.OutOrStdout(), convs, "")
				return nil
			})
		},
	}
}

func printSessionList(w io.Writer, convs []*model.Conversation, activeID string) {
	if len(convs) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No conversations yet"))
		return
	}
	for _, c := range convs {
		marker := "   "
		if c.Pinned {
			marker = styles.StatusIndicators.Pinned
		}
		title := util.TruncateWidth(c.Title, 40)
		if c.ID == activeID {
			title = titleStyle.Render(title)
		}
		fmt.Fprintf(w, "%s %s  %s  %s\n",
			marker,
			dimStyle.Render(c.ID),
			title,
			dimStyle.Render(fmt.Sprintf("%d msgs, %s", len(c.Messages), c.UpdatedAt.Local().Format("Jan 2 15:04"))))
	}
}

func newSessionsShowCommand(opts *globalOptions) *cobra.Command {
	var raw bool
	cmd := &cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print a conversation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				conv, ok := app.Repo.Get(args[0])
				if !ok {
					return notFound("sessions show", args[0])
				}
				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return writeJSON(out, "sessions show", conv, nil)
				}
				fmt.Fprintln(out, titleStyle.Render(conv.Title))
				for _, msg := range conv.Messages {
					fmt.Fprintln(out)
					printMessage(out, msg, !raw && app.Config.UI.RenderMarkdown)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "print responses without markdown rendering")
	return cmd
}

// =============================================================================
// MUTATIONS
// =============================================================================

func newSessionsRenameCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <conversation-id> <title...>",
		Short: "Set a conversation title",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				title := strings.Join(args[1:], " ")
				if err := app.Repo.Rename(args[0], title); err != nil {
					return &CommandError{Command: "sessions rename", Code: ExitCode(err), Err: err}
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Renamed"), args[0])
				return nil
			})
		},
	}
}

func pinState(pinned bool) string {
	if pinned {
		return "Pinned"
	}
	return "Unpinned"
}

func newSessionsPinCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pin <conversation-id>",
		Short: "Toggle whether a conversation is pinned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				pinned, err := app.Repo.TogglePin(args[0])
				if err != nil {
					return &CommandError{Command: "sessions pin", Code: ExitCode(err), Err: err}
				}
				fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(pinState(pinned)), args[0])
				return nil
			})
		},
	}
}

func newSessionsDeleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <conversation-id>...",
		Aliases: []string{"rm"},
		Short:   "Delete conversations",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				for _, id := range args {
					if err := app.Repo.Delete(id); err != nil {
						return &CommandError{Command: "sessions delete", Code: ExitCode(err), Err: err}
					}
					fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Deleted"), id)
				}
				return nil
			})
		},
	}
}

func newSessionsClearCommand(opts *globalOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return usageError("sessions clear", "refusing to delete all conversations without --yes")
			}
			return withApp(opts, func(app *App) error {
				n := app.Repo.Len()
				app.Repo.ClearAll()
				fmt.Fprintf(cmd.OutOrStdout(), "%s %d conversations\n", successStyle.Render("Deleted"), n)
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm")
	return cmd
}
