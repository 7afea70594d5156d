// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/eyeq-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontmatter is the YAML header of a Markdown export.
type frontmatter struct {
	Title     string `yaml:"title"`
	ID        string `yaml:"id"`
	Date      string `yaml:"date"`
	Updated   string `yaml:"updated"`
	Messages  int    `yaml:"messages"`
	Pinned    bool   `yaml:"pinned,omitempty"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if conv == nil {
		return nil, ErrNilConversation
	}
	if len(conv.Messages) == 0 {
		return nil, fmt.Errorf("conversation has no messages")
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		head, err := yaml.Marshal(frontmatter{
			Title:     conv.Title,
			ID:        conv.ID,
			Date:      conv.CreatedAt.Format(time.RFC3339),
			Updated:   conv.UpdatedAt.Format(time.RFC3339),
			Messages:  len(conv.Messages),
			Pinned:    conv.Pinned,
			Exported:  e.options.now().Format(time.RFC3339),
			Generator: "eyeq-tui",
		})
		if err != nil {
			return nil, fmt.Errorf("frontmatter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(head)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.Title))

	for i, msg := range conv.Messages {
		label := msg.Role.DisplayName()
		if note := statusNote(msg); note != "" {
			label += " (" + note + ")"
		}
		if e.options.IncludeTimestamps && !msg.CreatedAt.IsZero() {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.CreatedAt))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		if msg.FileName != "" {
			fmt.Fprintf(&sb, "> Attached file: `%s`\n\n", msg.FileName)
		}

		sb.WriteString(strings.TrimRight(msg.Content, "\n"))
		sb.WriteString("\n\n")

		for _, att := range msg.Attachments {
			fmt.Fprintf(&sb, "> **%s** (%s)\n>\n", escapeMarkdown(att.Title), att.Kind)
			for _, line := range strings.Split(att.Content, "\n") {
				fmt.Fprintf(&sb, "> %s\n", line)
			}
			sb.WriteString("\n")
		}

		if msg.Role == model.RoleAssistant && e.options.IncludeMetadata {
			sb.WriteString(e.formatAnalysis(msg))
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	fmt.Fprintf(&sb, "*Exported from EyeQ on %s*\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM"))

	return []byte(sb.String()), nil
}

// formatAnalysis renders the structured verdict, citations, and feedback.
func (e *MarkdownExporter) formatAnalysis(msg model.Message) string {
	var sb strings.Builder

	if a := msg.Analysis; a != nil {
		sb.WriteString("#### Analysis\n\n")
		if a.Summary != "" {
			sb.WriteString(a.Summary)
			sb.WriteString("\n\n")
		}
		writeList(&sb, "Approved claims", a.ApprovedClaims)
		writeList(&sb, "Issues", a.Issues)
		if a.DisclaimerPresent {
			sb.WriteString("- Disclaimer present\n\n")
		}
	}

	if len(msg.Citations) > 0 {
		sb.WriteString("#### References\n\n")
		for _, c := range msg.Citations {
			if c.URL != "" {
				fmt.Fprintf(&sb, "%d. [%s](%s)\n", c.Number, escapeMarkdown(c.Title), c.URL)
			} else {
				fmt.Fprintf(&sb, "%d. %s\n", c.Number, escapeMarkdown(c.Title))
			}
		}
		sb.WriteString("\n")
	}

	if msg.Feedback != model.FeedbackNone {
		fmt.Fprintf(&sb, "*Feedback: %s*\n\n", msg.Feedback)
	}

	return sb.String()
}

func writeList(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "**%s**\n\n", heading)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
	sb.WriteString("\n")
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	// Only characters that would break formatting in titles and headings.
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
