// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/eyeq-tui/internal/controller"
	"github.com/jeranaias/eyeq-tui/internal/conversation"
	"github.com/jeranaias/eyeq-tui/internal/model"
)

type askOptions struct {
	file           string
	conversationID string
	raw            bool

	// comprehensive sends the material to the full document review
	// instead of the chat analysis.
	comprehensive bool
	product       string
}

func newAskCommand(opts *globalOptions) *cobra.Command {
	ao := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask [text...]",
		Short: "Run one compliance review and print the response",
		Long: `Send text, a file, or both for review. Use "-" to read the text from
stdin. The response streams to stdout; the conversation id is printed to
stderr so the review can be continued with --conversation.`,
		Example: `  eyeq ask "Our supplement cures anxiety in 3 days"
  eyeq ask --file brochure.pdf "Check the disclaimers"
  cat copy.txt | eyeq ask -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, ao, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ao.file, "file", "f", "", "file to attach")
	f.StringVar(&ao.conversationID, "conversation", "", "continue an existing conversation")
	f.BoolVar(&ao.raw, "raw", false, "print the response without markdown rendering")
	f.BoolVar(&ao.comprehensive, "comprehensive", false, "run a comprehensive review of the whole document")
	f.StringVar(&ao.product, "product", "", "product name for a comprehensive review")
	return cmd
}

func newReviewCommand(opts *globalOptions) *cobra.Command {
	ao := &askOptions{comprehensive: true}

	cmd := &cobra.Command{
		Use:   "review [text...]",
		Short: "Run a comprehensive review of a whole document",
		Long: `Send a complete piece of material for a comprehensive compliance
review. Every check runs over the whole document and the report streams
to stdout. Equivalent to "eyeq ask --comprehensive".`,
		Example: `  eyeq review --file brochure.pdf --product "Glare Guard"
  cat label.txt | eyeq review -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, ao, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&ao.file, "file", "f", "", "document to review")
	f.StringVar(&ao.product, "product", "", "product name the material promotes")
	f.StringVar(&ao.conversationID, "conversation", "", "continue an existing conversation")
	f.BoolVar(&ao.raw, "raw", false, "print the report without markdown rendering")
	return cmd
}

func runAsk(cmd *cobra.Command, opts *globalOptions, ao *askOptions, args []string) error {
	name := cmd.Name()
	if ao.product != "" && !ao.comprehensive {
		return usageError(name, "--product needs --comprehensive")
	}

	text := strings.Join(args, " ")
	if text == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)

	var file *controller.FileInput
	if ao.file != "" {
		in, err := controller.ReadFileInput(ao.file)
		if err != nil {
			return usageError(name, "attach %s: %v", ao.file, err)
		}
		file = in
	}
	if text == "" && file == nil {
		return usageError(name, "nothing to review: pass text, '-' or --file")
	}

	app, err := opts.open()
	if err != nil {
		return err
	}
	defer app.Close()

	convID := ao.conversationID
	if convID != "" {
		if !app.Repo.SwitchTo(convID) {
			return &CommandError{Command: name, Code: ExitNotFound, Err: fmt.Errorf("%w: %s", conversation.ErrNotFound, convID)}
		}
	} else {
		app.Repo.ReturnToHomepage()
		convID = app.Repo.CreateOnFirstMessage()
	}

	out := cmd.OutOrStdout()
	o := exchangeOutput{
		out:      out,
		errOut:   cmd.ErrOrStderr(),
		rendered: !ao.raw && app.Config.UI.RenderMarkdown && isTerminal(out),
		quiet:    opts.jsonOut,
	}

	res, msg, err := runExchange(cmd.Context(), app, convID, o, func(ctx context.Context) (controller.Result, error) {
		if ao.comprehensive {
			return app.Controller.Review(ctx, convID, text, ao.product, file)
		}
		return app.Controller.SendTo(ctx, convID, text, file, nil)
	})

	if opts.jsonOut {
		return writeJSON(out, name, askResult{ConversationID: convID, Message: msg, Phase: res.Phase.String()}, err)
	}
	fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("conversation "+convID))
	return err
}

type askResult struct {
	ConversationID string        `json:"conversation_id"`
	Phase          string        `json:"phase"`
	Message        model.Message `json:"message"`
}
