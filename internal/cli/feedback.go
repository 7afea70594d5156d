// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/eyeq-tui/internal/controller"
	"github.com/jeranaias/eyeq-tui/internal/model"
)

func newFeedbackCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "feedback <message-id> liked|disliked",
		Short:     "Rate an assistant response",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(model.FeedbackLiked), string(model.FeedbackDisliked)},
		RunE: func(cmd *cobra.Command, args []string) error {
			fb := model.Feedback(strings.ToLower(args[1]))
			switch fb {
			case "like", "up", "+":
				fb = model.FeedbackLiked
			case "dislike", "down", "-":
				fb = model.FeedbackDisliked
			}
			if !fb.Valid() || fb == model.FeedbackNone {
				return usageError("feedback", "verdict must be liked or disliked, got %q", args[1])
			}

			return withApp(opts, func(app *App) error {
				ctx, cancel := context.WithTimeout(cmd.Context(), app.Config.Backend.RequestTimeout())
				defer cancel()

				err := app.Controller.SubmitFeedback(ctx, args[0], fb)
				switch {
				case err == nil:
					fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Recorded"), string(fb), args[0])
					return nil
				case errors.Is(err, controller.ErrMessageNotFound):
					return &CommandError{Command: "feedback", Code: ExitNotFound, Err: fmt.Errorf("%w: %s", err, args[0])}
				}
				if _, msg, ok := app.Repo.FindMessage(args[0]); ok && msg.Feedback == fb {
					fmt.Fprintln(cmd.ErrOrStderr(), warnStyle.Render("Recorded locally; the backend did not accept it"))
				}
				return &CommandError{Command: "feedback", Code: ExitCode(err), Err: err}
			})
		},
	}
}
