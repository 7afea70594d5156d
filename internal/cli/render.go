// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/eyeq-tui/internal/conversation"
	"github.com/jeranaias/eyeq-tui/internal/model"
	"github.com/jeranaias/eyeq-tui/internal/ui/styles"
)

// =============================================================================
// MARKDOWN
// =============================================================================

// renderMarkdown renders content with glamour when w is a terminal and
// returns it unchanged otherwise.
func renderMarkdown(w io.Writer, content string, enabled bool) string {
	if !enabled || !isTerminal(w) {
		return content
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(terminalWidth(w)-4),
	)
	if err != nil {
		return content
	}
	out, err := r.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(out, "\n")
}

// =============================================================================
// MESSAGE OUTPUT
// =============================================================================

// printAnalysis writes the structured review below a final answer.
func printAnalysis(w io.Writer, msg model.Message) {
	if a := msg.Analysis; a != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("Analysis"))
		if a.Summary != "" {
			fmt.Fprintln(w, a.Summary)
		}
		for _, c := range a.ApprovedClaims {
			fmt.Fprintf(w, "  %s %s\n", successStyle.Render(styles.StatusIndicators.Success), c)
		}
		for _, issue := range a.Issues {
			fmt.Fprintf(w, "  %s %s\n", errorStyle.Render(styles.StatusIndicators.Error), issue)
		}
		if a.DisclaimerPresent {
			fmt.Fprintln(w, dimStyle.Render("  Disclaimer present"))
		}
	}
	if len(msg.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, titleStyle.Render("References"))
		for _, c := range msg.Citations {
			fmt.Fprintf(w, "  [%d] %s %s\n", c.Number, c.Title, dimStyle.Render(c.URL))
		}
	}
}

// printMessage writes one settled message of a transcript.
func printMessage(w io.Writer, msg model.Message, markdown bool) {
	label := msg.Role.DisplayName()
	switch {
	case msg.IsError():
		label += " " + errorStyle.Render("(failed)")
	case !msg.Status.Terminal():
		label += " " + warnStyle.Render("(incomplete)")
	}
	fmt.Fprintf(w, "%s %s  %s\n", titleStyle.Render(label), dimStyle.Render(msg.CreatedAt.Local().Format("2006-01-02 15:04")), dimStyle.Render(msg.ID))

	if msg.FileName != "" {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("file:"), msg.FileName)
	}
	if msg.Role == model.RoleAssistant && msg.Status.Terminal() && !msg.IsError() {
		fmt.Fprintln(w, renderMarkdown(w, msg.Content, markdown))
	} else {
		fmt.Fprintln(w, msg.Content)
	}
	if msg.IsError() && msg.Partial != "" {
		fmt.Fprintln(w, dimStyle.Render(msg.Partial))
	}
	for _, a := range msg.Attachments {
		fmt.Fprintf(w, "%s %s\n", dimStyle.Render("attachment:"), a.Title)
	}
	if msg.Feedback != model.FeedbackNone {
		fmt.Fprintln(w, dimStyle.Render("feedback: "+string(msg.Feedback)))
	}
	printAnalysis(w, msg)
}

// =============================================================================
// STREAMING
// =============================================================================

// streamPrinter echoes the assistant message of one conversation as it
// streams, using repository events as the source of truth.
type streamPrinter struct {
	mu     sync.Mutex
	out    io.Writer
	repo   *conversation.Repository
	convID string

	msgID    string
	streamed string
}

func newStreamPrinter(out io.Writer, repo *conversation.Repository, convID string) *streamPrinter {
	return &streamPrinter{out: out, repo: repo, convID: convID}
}

// onEvent is registered with Repository.Subscribe.
func (p *streamPrinter) onEvent(ev conversation.Event) {
	if ev.Kind != conversation.EventUpdated || ev.ConversationID != p.convID {
		return
	}
	conv, ok := p.repo.Get(p.convID)
	if !ok || len(conv.Messages) == 0 {
		return
	}
	msg := conv.Messages[len(conv.Messages)-1]
	if msg.Role != model.RoleAssistant || !msg.IsStreaming() {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.ID != p.msgID {
		p.msgID = msg.ID
		p.streamed = ""
	}
	if len(msg.Content) > len(p.streamed) && strings.HasPrefix(msg.Content, p.streamed) {
		io.WriteString(p.out, msg.Content[len(p.streamed):])
		p.streamed = msg.Content
	}
}

// finish completes the echoed text with the settled message. A final
// response that replaced the streamed text is printed in full.
func (p *streamPrinter) finish(msg model.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg.IsError() {
		if p.streamed != "" {
			fmt.Fprintln(p.out)
		}
		return
	}
	switch {
	case p.streamed == "":
		fmt.Fprintln(p.out, msg.Content)
	case strings.HasPrefix(msg.Content, p.streamed):
		fmt.Fprintln(p.out, msg.Content[len(p.streamed):])
	default:
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out, msg.Content)
	}
	p.streamed = ""
	p.msgID = ""
}
