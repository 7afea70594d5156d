// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/jeranaias/eyeq-tui/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to HTML format with embedded CSS.
// Message content is treated as Markdown. Raw HTML inside messages is
// dropped by the renderer, never passed through.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options: opts,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
	}
}

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}
	if len(conv.Messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	theme := e.options.Theme
	if theme != "light" {
		theme = "dark"
	}

	var sb strings.Builder

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(conv.Title))
	sb.WriteString("    <meta name=\"generator\" content=\"eyeq-tui\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", conv.CreatedAt.Format(time.RFC3339))
	sb.WriteString(htmlCSS)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n", theme)
	sb.WriteString("    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString(e.renderHeader(conv))
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for _, msg := range conv.Messages {
		block, err := e.renderMessage(msg)
		if err != nil {
			return nil, fmt.Errorf("render message %s: %w", msg.ID, err)
		}
		sb.WriteString(block)
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("        <footer class=\"footer\">\n")
	fmt.Fprintf(&sb, "            <p>Exported from <strong>EyeQ</strong> on %s</p>\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))
	sb.WriteString("        </footer>\n")
	sb.WriteString("    </div>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING FUNCTIONS
// =============================================================================

func (e *HTMLExporter) renderHeader(conv *model.Conversation) string {
	var sb strings.Builder

	sb.WriteString("        <header class=\"header\">\n")
	fmt.Fprintf(&sb, "            <h1>%s</h1>\n", html.EscapeString(conv.Title))
	sb.WriteString("            <div class=\"metadata\">\n")
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Created:</strong> %s</span>\n", formatTimestamp(conv.CreatedAt))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Updated:</strong> %s</span>\n", formatTimestamp(conv.UpdatedAt))
	fmt.Fprintf(&sb, "                <span class=\"meta-item\"><strong>Messages:</strong> %d</span>\n", len(conv.Messages))
	if conv.Pinned {
		sb.WriteString("                <span class=\"meta-item\">Pinned</span>\n")
	}
	sb.WriteString("            </div>\n")
	sb.WriteString("        </header>\n")

	return sb.String()
}

func (e *HTMLExporter) renderMessage(msg model.Message) (string, error) {
	var sb strings.Builder

	classes := "message " + html.EscapeString(string(msg.Role)) + "-message"
	if msg.IsError() {
		classes += " error-message"
	}
	fmt.Fprintf(&sb, "            <div class=\"%s\">\n", classes)

	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(&sb, "                    <span class=\"role-label\">%s</span>\n", html.EscapeString(msg.Role.DisplayName()))
	if note := statusNote(msg); note != "" {
		fmt.Fprintf(&sb, "                    <span class=\"status\">%s</span>\n", note)
	}
	if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
		fmt.Fprintf(&sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.CreatedAt))
	}
	sb.WriteString("                </div>\n")

	if msg.FileName != "" {
		fmt.Fprintf(&sb, "                <div class=\"attachment\">File: <code>%s</code></div>\n", html.EscapeString(msg.FileName))
	}

	content, err := e.markdown(msg.Content)
	if err != nil {
		return "", err
	}
	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(content)
	sb.WriteString("                </div>\n")

	for _, att := range msg.Attachments {
		fmt.Fprintf(&sb, "                <details class=\"attachment\"><summary>%s</summary><pre>%s</pre></details>\n",
			html.EscapeString(att.Title), html.EscapeString(att.Content))
	}

	if msg.Role == model.RoleAssistant && e.options.IncludeMetadata {
		sb.WriteString(e.renderAnalysis(msg))
	}

	sb.WriteString("            </div>\n")
	return sb.String(), nil
}

func (e *HTMLExporter) renderAnalysis(msg model.Message) string {
	var sb strings.Builder

	if a := msg.Analysis; a != nil {
		sb.WriteString("                <div class=\"analysis\">\n")
		if a.Summary != "" {
			fmt.Fprintf(&sb, "                    <p>%s</p>\n", html.EscapeString(a.Summary))
		}
		writeHTMLList(&sb, "Approved claims", "approved", a.ApprovedClaims)
		writeHTMLList(&sb, "Issues", "issues", a.Issues)
		sb.WriteString("                </div>\n")
	}

	if len(msg.Citations) > 0 {
		sb.WriteString("                <ol class=\"citations\">\n")
		for _, c := range msg.Citations {
			title := html.EscapeString(c.Title)
			if c.URL != "" {
				fmt.Fprintf(&sb, "                    <li value=\"%d\"><a href=\"%s\">%s</a></li>\n",
					c.Number, html.EscapeString(c.URL), title)
			} else {
				fmt.Fprintf(&sb, "                    <li value=\"%d\">%s</li>\n", c.Number, title)
			}
		}
		sb.WriteString("                </ol>\n")
	}

	if msg.Feedback != model.FeedbackNone {
		fmt.Fprintf(&sb, "                <div class=\"feedback\">Feedback: %s</div>\n", msg.Feedback)
	}

	return sb.String()
}

func writeHTMLList(sb *strings.Builder, heading, class string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "                    <h4>%s</h4>\n", heading)
	fmt.Fprintf(sb, "                    <ul class=\"%s\">\n", class)
	for _, item := range items {
		fmt.Fprintf(sb, "                        <li>%s</li>\n", html.EscapeString(item))
	}
	sb.WriteString("                    </ul>\n")
}

// markdown renders message content to HTML.
func (e *HTMLExporter) markdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := e.md.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// =============================================================================
// EMBEDDED CSS
// =============================================================================

const htmlCSS = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        :root {
            --font-sans: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, Arial, sans-serif;
            --font-mono: "SF Mono", "Fira Code", "Source Code Pro", monospace;
        }

        .dark-theme {
            --bg-primary: #1a1b26;
            --bg-secondary: #24283b;
            --bg-tertiary: #414868;
            --text-primary: #c0caf5;
            --text-muted: #565f89;
            --user-bg: #1f2335;
            --accent: #7aa2f7;
            --ok: #9ece6a;
            --bad: #f7768e;
        }

        .light-theme {
            --bg-primary: #ffffff;
            --bg-secondary: #f7f8fa;
            --bg-tertiary: #e1e4e8;
            --text-primary: #24292e;
            --text-muted: #6a737d;
            --user-bg: #f6f8fa;
            --accent: #0366d6;
            --ok: #22863a;
            --bad: #d73a49;
        }

        body {
            font-family: var(--font-sans);
            line-height: 1.6;
            color: var(--text-primary);
            background: var(--bg-primary);
            padding: 20px;
        }

        .container { max-width: 900px; margin: 0 auto; background: var(--bg-secondary); border-radius: 12px; overflow: hidden; }
        .header { padding: 32px; background: var(--bg-tertiary); }
        .header h1 { font-size: 28px; margin-bottom: 12px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; font-size: 14px; color: var(--text-muted); }
        .conversation { padding: 24px; }
        .message { padding: 20px; margin-bottom: 16px; border-radius: 8px; }
        .user-message { background: var(--user-bg); border-left: 4px solid var(--accent); }
        .assistant-message { border-left: 4px solid var(--ok); }
        .error-message { border-left-color: var(--bad); }
        .message-header { display: flex; gap: 12px; margin-bottom: 8px; font-size: 14px; }
        .role-label { font-weight: 600; }
        .status { color: var(--bad); }
        .timestamp { color: var(--text-muted); }
        .message-content p { margin-bottom: 12px; }
        pre, code { font-family: var(--font-mono); font-size: 14px; }
        pre { padding: 12px; overflow-x: auto; background: var(--bg-primary); border-radius: 6px; }
        .analysis, .citations, .feedback, .attachment { margin-top: 12px; font-size: 14px; }
        .approved li { color: var(--ok); }
        .issues li { color: var(--bad); }
        .citations { padding-left: 24px; }
        a { color: var(--accent); }
        .footer { padding: 16px 32px; font-size: 13px; color: var(--text-muted); }

        @media print {
            .message { page-break-inside: avoid; }
        }
    </style>
`
