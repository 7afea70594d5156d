// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/jeranaias/eyeq-tui/internal/controller"
	"github.com/jeranaias/eyeq-tui/internal/model"
	"github.com/jeranaias/eyeq-tui/internal/ui/styles"
)

// exchangeOutput says how a running exchange is shown.
type exchangeOutput struct {
	out    io.Writer
	errOut io.Writer

	// rendered waits for the final answer and renders it as markdown
	// instead of echoing the stream.
	rendered bool

	// quiet prints nothing; the caller reports the result.
	quiet bool
}

// runExchange runs one controller operation for convID, echoing the
// response as configured. Ctrl+C cancels the exchange, not the process.
// A settled error is returned as a CommandError carrying the cause.
func runExchange(ctx context.Context, app *App, convID string, o exchangeOutput,
	run func(context.Context) (controller.Result, error)) (controller.Result, model.Message, error) {

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	var printer *streamPrinter
	switch {
	case o.quiet:
	case o.rendered:
		fmt.Fprintln(o.errOut, dimStyle.Render("Analyzing..."))
	default:
		printer = newStreamPrinter(o.out, app.Repo, convID)
		unsubscribe := app.Repo.Subscribe(printer.onEvent)
		defer unsubscribe()
	}

	res, err := run(ctx)
	if err != nil {
		return res, model.Message{}, err
	}

	msg, ok := settledMessage(app, res)
	if !ok {
		return res, model.Message{}, fmt.Errorf("response %s not found", res.MessageID)
	}

	if msg.IsError() {
		if printer != nil {
			printer.finish(msg)
		}
		cause := res.Err
		if cause == nil {
			cause = errors.New(msg.Content)
		}
		if !o.quiet {
			fmt.Fprintln(o.errOut, errorStyle.Render(styles.StatusIndicators.Error), msg.Content)
		}
		return res, msg, &CommandError{Code: ExitCode(cause), Err: cause}
	}

	switch {
	case o.quiet:
		return res, msg, nil
	case printer != nil:
		printer.finish(msg)
	default:
		fmt.Fprintln(o.out, renderMarkdown(o.out, msg.Content, true))
	}
	printAnalysis(o.out, msg)
	return res, msg, nil
}

func settledMessage(app *App, res controller.Result) (model.Message, bool) {
	conv, ok := app.Repo.Get(res.ConversationID)
	if !ok {
		return model.Message{}, false
	}
	i := conv.IndexOf(res.MessageID)
	if i < 0 {
		return model.Message{}, false
	}
	return conv.Messages[i], true
}
