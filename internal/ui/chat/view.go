// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/eyeq-tui/internal/model"
	"github.com/jeranaias/eyeq-tui/internal/ui/styles"
	"github.com/jeranaias/eyeq-tui/internal/util"
)

// =============================================================================
// LAYOUT
// =============================================================================

const (
	headerHeight   = 1
	statusHeight   = 1
	composerHeight = 3
	sidebarWidth   = 28

	// Below this width the sidebar is hidden.
	minWidthForSidebar = 70
)

func (m Model) showSidebar() bool {
	return m.width >= minWidthForSidebar
}

func (m Model) contentWidth() int {
	w := m.width
	if m.showSidebar() {
		w -= sidebarWidth + 2
	}
	return w - 1
}

func (m Model) bodyHeight() int {
	h := m.height - headerHeight - statusHeight - composerHeight - 1
	if h < 1 {
		h = 1
	}
	return h
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat screen.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Loading..."
	}

	body := m.theme.Conversation.Render(m.viewport.View())
	if m.showSidebar() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(), body)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		body,
		m.theme.Composer.Width(m.width).Render(m.input.View()),
		m.renderStatus(),
	)
}

func (m Model) renderHeader() string {
	title := "New review"
	if conv, ok := m.repo.Active(); ok {
		title = util.SingleLine(conv.Title)
	}
	if w := m.width - 10; w > 0 {
		title = util.TruncateWidth(title, w)
	}
	return m.theme.Header.Width(m.width).Render(m.theme.HeaderTitle.Render("EyeQ") + "  " + title)
}

func (m Model) renderSidebar() string {
	var lines []string
	active := m.repo.ActiveID()
	height := m.bodyHeight()

	for _, c := range m.repo.SortedView() {
		if len(lines) >= height {
			break
		}
		marker := "    "
		if c.Pinned {
			marker = m.theme.SessionPinned.Render(styles.StatusIndicators.Pinned) + " "
		}
		titleWidth := sidebarWidth - 4
		if m.ctl.Phase(c.ID).Busy() || m.cancels.running(c.ID) {
			titleWidth -= 2
		}
		title := util.PadWidth(util.TruncateWidth(util.SingleLine(c.Title), titleWidth), titleWidth)
		if titleWidth < sidebarWidth-4 {
			title += " " + m.spinner.View()
		}

		style := m.theme.SessionItem
		if c.ID == active {
			style = m.theme.SessionItemSelected
		}
		lines = append(lines, marker+style.Render(title))
	}

	if len(lines) == 0 {
		lines = append(lines, m.theme.SessionMeta.Render("No conversations yet"))
	}

	return m.theme.Sidebar.
		Width(sidebarWidth).
		Height(height).
		Render(strings.Join(lines, "\n"))
}

func (m Model) renderStatus() string {
	var parts []string

	if id := m.repo.ActiveID(); id != "" {
		if p := m.ctl.Phase(id); p.Busy() {
			parts = append(parts, m.theme.Streaming.Render(p.String()))
		}
	}
	if m.editingConvID != "" {
		parts = append(parts, "editing")
	}
	if m.pendingFile != nil {
		parts = append(parts, "file: "+m.pendingFile.Name)
	}
	if m.status != "" {
		if m.statusIsError {
			parts = append(parts, m.theme.ErrorStyle.Render(m.status))
		} else {
			parts = append(parts, m.status)
		}
	}

	var help []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		help = append(help, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDsc.Render(h.Desc))
	}
	parts = append(parts, strings.Join(help, "  "))

	return m.theme.StatusBar.Width(m.width).Render(strings.Join(parts, " | "))
}

// =============================================================================
// CONVERSATION
// =============================================================================

func (m Model) renderConversation() string {
	conv, ok := m.repo.Active()
	if !ok {
		return m.renderWelcome()
	}

	blocks := make([]string, 0, len(conv.Messages))
	for _, msg := range conv.Messages {
		blocks = append(blocks, m.renderMessage(msg))
	}
	return strings.Join(blocks, "\n\n")
}

func (m Model) renderWelcome() string {
	text := "EyeQ compliance review\n\n" +
		"Paste ad copy or a claim below and press Enter.\n" +
		"Type /attach <path> to send a file with your next message.\n"
	if n := len(m.repo.SortedView()); n > 0 {
		text += fmt.Sprintf("\n%d saved conversation(s). Alt+Up/Down to open one.", n)
	}
	return m.theme.Welcome.Render(text)
}

func (m Model) renderMessage(msg model.Message) string {
	var sb strings.Builder

	label := m.theme.UserLabel.Render(msg.Role.DisplayName())
	if msg.Role == model.RoleAssistant {
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	}
	sb.WriteString(label)
	if !msg.CreatedAt.IsZero() {
		sb.WriteString(" " + m.theme.Timestamp.Render(msg.CreatedAt.Format("15:04")))
	}
	sb.WriteString("\n")

	switch {
	case msg.IsLoading(), msg.IsStreaming() && msg.Content == "":
		sb.WriteString(m.spinner.View() + " " + m.theme.Streaming.Render("Analyzing..."))

	case msg.IsStreaming():
		sb.WriteString(m.wrap(msg.Content))
		sb.WriteString("\n" + m.spinner.View())

	case msg.IsError():
		sb.WriteString(m.theme.ErrorMessage.Render(styles.StatusIndicators.Error + " " + msg.Content))
		if msg.Partial != "" {
			sb.WriteString("\n" + m.theme.PartialText.Render(m.wrap(msg.Partial)))
		}

	case msg.Role == model.RoleUser:
		sb.WriteString(m.wrap(msg.Content))
		if msg.FileName != "" {
			sb.WriteString("\n" + m.theme.SessionMeta.Render("File: "+msg.FileName))
		}
		for _, att := range msg.Attachments {
			sb.WriteString("\n" + m.theme.SessionMeta.Render(fmt.Sprintf("Attachment: %s (%s)", att.Title, att.Kind)))
		}

	default:
		sb.WriteString(m.markdown(msg))
		sb.WriteString(m.renderAnalysis(msg))
	}

	return sb.String()
}

func (m Model) renderAnalysis(msg model.Message) string {
	var lines []string

	if a := msg.Analysis; a != nil {
		lines = append(lines, "", m.theme.AnalysisTitle.Render("Analysis"))
		if a.Summary != "" {
			lines = append(lines, m.wrap(a.Summary))
		}
		for _, c := range a.ApprovedClaims {
			lines = append(lines, m.theme.Approved.Render(styles.StatusIndicators.Success+" "+c))
		}
		for _, issue := range a.Issues {
			lines = append(lines, m.theme.Issue.Render(styles.StatusIndicators.Error+" "+issue))
		}
		if a.DisclaimerPresent {
			lines = append(lines, m.theme.Approved.Render(styles.StatusIndicators.Success+" Disclaimer present"))
		}
	}

	if len(msg.Citations) > 0 {
		lines = append(lines, "", m.theme.AnalysisTitle.Render("References"))
		for _, c := range msg.Citations {
			ref := fmt.Sprintf("[%d] %s", c.Number, c.Title)
			if c.URL != "" {
				ref += " " + m.theme.Citation.Render(c.URL)
			}
			lines = append(lines, ref)
		}
	}

	if msg.Feedback != model.FeedbackNone {
		lines = append(lines, m.theme.SessionMeta.Render("Feedback: "+string(msg.Feedback)))
	}

	if len(lines) == 0 {
		return ""
	}
	return "\n" + strings.Join(lines, "\n")
}

// markdown renders final assistant content, cached per message.
func (m Model) markdown(msg model.Message) string {
	if m.md == nil {
		return m.wrap(msg.Content)
	}
	if c, ok := m.cache[msg.ID]; ok && c.src == msg.Content {
		return c.out
	}
	out, err := m.md.Render(msg.Content)
	if err != nil {
		m.log.Debug("markdown render failed", "message", msg.ID, "error", err)
		return m.wrap(msg.Content)
	}
	out = strings.Trim(out, "\n")
	m.cache[msg.ID] = renderedContent{src: msg.Content, out: out}
	return out
}

func (m Model) wrap(s string) string {
	w := m.contentWidth()
	if w <= 0 {
		return s
	}
	return m.theme.Renderer().NewStyle().Width(w).Render(s)
}
