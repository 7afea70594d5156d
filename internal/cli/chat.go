// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/eyeq-tui/internal/config"
	"github.com/jeranaias/eyeq-tui/internal/controller"
	"github.com/jeranaias/eyeq-tui/internal/conversation"
	"github.com/jeranaias/eyeq-tui/internal/model"
)

const historyFileName = "chat_history"

const chatHelp = `Commands:
  /new             start a new conversation
  /open <id>       switch to a conversation
  /list            list conversations
  /attach <path>   attach a file to the next message
  /regen           regenerate the last response
  /edit <text>     replace the last message and resend
  /title <text>    rename the conversation
  /pin             pin or unpin the conversation
  /quit            leave
Anything else is sent for review. Ctrl+C cancels a running review.`

func newChatCommand(opts *globalOptions) *cobra.Command {
	var convID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Line-oriented review session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := opts.open()
			if err != nil {
				return err
			}
			defer app.Close()

			r := &repl{
				app:    app,
				out:    cmd.OutOrStdout(),
				errOut: cmd.ErrOrStderr(),
			}
			if convID != "" {
				if _, err := r.handle(cmd.Context(), "/open "+convID); err != nil {
					return err
				}
			} else {
				app.Repo.ReturnToHomepage()
			}
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&convID, "conversation", "", "resume a conversation")
	return cmd
}

// =============================================================================
// REPL
// =============================================================================

// repl is an interactive session over the active conversation.
type repl struct {
	app    *App
	out    io.Writer
	errOut io.Writer

	pending *controller.FileInput
}

func (r *repl) run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	histPath := historyPath()
	if histPath != "" {
		if f, err := os.Open(histPath); err == nil {
			line.ReadHistory(f)
			f.Close()
		}
		defer func() {
			if f, err := os.Create(histPath); err == nil {
				line.WriteHistory(f)
				f.Close()
			}
		}()
	}

	fmt.Fprintln(r.out, titleStyle.Render("EyeQ")+dimStyle.Render("  /help for commands, /quit to leave"))

	for {
		input, err := line.Prompt(r.prompt())
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input != "" {
			line.AppendHistory(input)
		}
		quit, err := r.handle(ctx, input)
		if err != nil {
			fmt.Fprintln(r.errOut, errorStyle.Render("Error:"), err)
		}
		if quit {
			return nil
		}
	}
}

func (r *repl) prompt() string {
	if r.pending != nil {
		return fmt.Sprintf("eyeq [%s]> ", r.pending.Name)
	}
	return "eyeq> "
}

// handle runs one line of input and reports whether the session ends.
func (r *repl) handle(ctx context.Context, input string) (bool, error) {
	if input == "" {
		return false, nil
	}
	if !strings.HasPrefix(input, "/") {
		return false, r.send(ctx, input)
	}

	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)
	repo := r.app.Repo

	switch name {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Fprintln(r.out, chatHelp)

	case "/new":
		repo.ReturnToHomepage()
		r.pending = nil
		fmt.Fprintln(r.out, dimStyle.Render("New conversation"))

	case "/list":
		printSessionList(r.out, repo.SortedView(), repo.ActiveID())

	case "/open":
		if arg == "" {
			return false, errors.New("usage: /open <conversation-id>")
		}
		if !repo.SwitchTo(arg) {
			return false, fmt.Errorf("%w: %s", conversation.ErrNotFound, arg)
		}
		conv, _ := repo.Get(arg)
		fmt.Fprintf(r.out, "%s %s\n", titleStyle.Render(conv.Title), dimStyle.Render(fmt.Sprintf("(%d messages)", len(conv.Messages))))

	case "/attach":
		if arg == "" {
			return false, errors.New("usage: /attach <path>")
		}
		in, err := controller.ReadFileInput(arg)
		if err != nil {
			return false, fmt.Errorf("attach %s: %w", arg, err)
		}
		r.pending = in
		fmt.Fprintln(r.out, dimStyle.Render("Attached "+in.Name))

	case "/regen":
		convID, msgID, err := r.lastAssistant()
		if err != nil {
			return false, err
		}
		return false, r.exchange(ctx, convID, func(ctx context.Context) (controller.Result, error) {
			return r.app.Controller.Regenerate(ctx, msgID)
		})

	case "/edit":
		if arg == "" {
			return false, errors.New("usage: /edit <text>")
		}
		convID := repo.ActiveID()
		if convID == "" {
			return false, controller.ErrNoActiveConversation
		}
		return false, r.exchange(ctx, convID, func(ctx context.Context) (controller.Result, error) {
			return r.app.Controller.EditLast(ctx, convID, arg)
		})

	case "/title":
		convID := repo.ActiveID()
		if convID == "" {
			return false, controller.ErrNoActiveConversation
		}
		return false, repo.Rename(convID, arg)

	case "/pin":
		convID := repo.ActiveID()
		if convID == "" {
			return false, controller.ErrNoActiveConversation
		}
		pinned, err := repo.TogglePin(convID)
		if err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, dimStyle.Render(pinState(pinned)))

	default:
		return false, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return false, nil
}

func (r *repl) send(ctx context.Context, text string) error {
	convID := r.app.Repo.ActiveID()
	if convID == "" {
		convID = r.app.Repo.CreateOnFirstMessage()
	}
	file := r.pending
	err := r.exchange(ctx, convID, func(ctx context.Context) (controller.Result, error) {
		return r.app.Controller.SendTo(ctx, convID, text, file, nil)
	})
	if err == nil {
		r.pending = nil
	}
	return err
}

func (r *repl) exchange(ctx context.Context, convID string, run func(context.Context) (controller.Result, error)) error {
	_, _, err := runExchange(ctx, r.app, convID, exchangeOutput{out: r.out, errOut: r.errOut}, run)
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) {
		// The apology is already on screen.
		return nil
	}
	return err
}

func (r *repl) lastAssistant() (convID, msgID string, err error) {
	conv, ok := r.app.Repo.Active()
	if !ok {
		return "", "", controller.ErrNoActiveConversation
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == model.RoleAssistant {
			return conv.ID, conv.Messages[i].ID, nil
		}
	}
	return "", "", errors.New("nothing to regenerate")
}

func historyPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		return ""
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return ""
	}
	return filepath.Join(dir, historyFileName)
}
