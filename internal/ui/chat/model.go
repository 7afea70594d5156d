// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/eyeq-tui/internal/controller"
	"github.com/jeranaias/eyeq-tui/internal/conversation"
	"github.com/jeranaias/eyeq-tui/internal/model"
	"github.com/jeranaias/eyeq-tui/internal/ui/styles"
)

// FeedbackTimeout bounds a like or dislike round trip.
const FeedbackTimeout = 15 * time.Second

// =============================================================================
// DEPENDENCIES
// =============================================================================

// Conversations is the part of the conversation repository the view uses.
type Conversations interface {
	SortedView() []*model.Conversation
	Active() (*model.Conversation, bool)
	ActiveID() string
	CreateOnFirstMessage() string
	SwitchTo(id string) bool
	ReturnToHomepage()
	TogglePin(id string) (bool, error)
	Delete(id string) error
	Theme() string
	SetTheme(theme string)
	Subscribe(fn func(conversation.Event)) func()
}

// Exchanger runs exchanges. *controller.Controller satisfies it.
type Exchanger interface {
	SendTo(ctx context.Context, convID, text string, file *controller.FileInput, attachments []model.Attachment) (controller.Result, error)
	Regenerate(ctx context.Context, assistantMessageID string) (controller.Result, error)
	EditLast(ctx context.Context, convID, newText string) (controller.Result, error)
	SubmitFeedback(ctx context.Context, messageID string, fb model.Feedback) error
	Phase(conversationID string) controller.Phase
}

// Options configures the chat view.
type Options struct {
	// Theme is the configured ui.theme. A theme chosen in the TUI and
	// persisted by the repository takes precedence.
	Theme string

	RenderMarkdown bool
	Logger         *slog.Logger
}

// =============================================================================
// MODEL
// =============================================================================

type renderedContent struct {
	src string
	out string
}

// Model is the Bubble Tea model for the chat screen.
type Model struct {
	repo Conversations
	ctl  Exchanger
	log  *slog.Logger
	keys KeyMap

	theme          *styles.Theme
	configTheme    string
	renderMarkdown bool
	md             *glamour.TermRenderer
	cache          map[string]renderedContent

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model

	bridge  *eventBridge
	cancels *cancelManager

	width  int
	height int
	ready  bool

	editingConvID string
	pendingFile   *controller.FileInput

	status        string
	statusIsError bool
	quitting      bool
}

// New creates the chat model. Call Close once the program exits.
func New(repo Conversations, ctl Exchanger, opts Options) Model {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	input := textarea.New()
	input.Placeholder = "Paste ad copy or ask about a claim..."
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(composerHeight)
	input.KeyMap.InsertNewline.SetKeys("alt+enter")
	input.Focus()

	m := Model{
		repo:           repo,
		ctl:            ctl,
		log:            logger,
		keys:           DefaultKeyMap(),
		configTheme:    opts.Theme,
		renderMarkdown: opts.RenderMarkdown,
		viewport:       viewport.New(0, 0),
		input:          input,
		spinner:        spinner.New(spinner.WithSpinner(spinner.Dot)),
		bridge:         newEventBridge(repo),
		cancels:        newCancelManager(),
	}
	m.applyTheme(repo.Theme())
	return m
}

// Init starts the cursor blink, the spinner and the event pump.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick, m.bridge.wait())
}

// Close cancels in-flight exchanges and stops listening to the repository.
func (m Model) Close() {
	m.cancels.cancelAll()
	m.bridge.close()
}

// Update handles messages and user input.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case RepoEventsMsg:
		return m.handleRepoEvents(msg)

	case ExchangeDoneMsg:
		return m.handleExchangeDone(msg)

	case FeedbackDoneMsg:
		if msg.Err != nil {
			m.setStatus(fmt.Sprintf("Feedback saved locally; delivery failed: %v", msg.Err), true)
		} else {
			m.setStatus("Thanks for the feedback", false)
		}
		return m, nil

	case ConfigChangedMsg:
		return m.handleConfigChanged(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if id := m.repo.ActiveID(); id != "" && m.ctl.Phase(id).Busy() {
			m.refresh()
		}
		return m, cmd
	}

	return m, nil
}

// =============================================================================
// HANDLERS
// =============================================================================

func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.ready = true

	w := m.contentWidth()
	m.input.SetWidth(w)
	m.viewport.Width = w
	m.viewport.Height = m.bodyHeight()

	m.buildRenderer()
	m.refresh()
	return m, nil
}

func (m Model) handleRepoEvents(msg RepoEventsMsg) (tea.Model, tea.Cmd) {
	for _, ev := range msg.Events {
		switch ev.Kind {
		case conversation.EventThemeChanged:
			if name := m.repo.Theme(); name != m.theme.Name {
				m.applyTheme(name)
			}
		case conversation.EventDeleted:
			if ev.ConversationID == m.editingConvID {
				m.editingConvID = ""
			}
		case conversation.EventCleared:
			m.editingConvID = ""
			m.cache = make(map[string]renderedContent)
		}
	}
	m.refresh()
	return m, m.bridge.wait()
}

func (m Model) handleExchangeDone(msg ExchangeDoneMsg) (tea.Model, tea.Cmd) {
	m.cancels.finish(msg.ConversationID, msg.token)

	switch {
	case errors.Is(msg.Err, controller.ErrExchangeInProgress):
		m.setStatus("A review is already running in this chat", true)
	case msg.Err != nil:
		m.setStatus(msg.Err.Error(), true)
	case msg.Result.Phase == controller.PhaseSettledError:
		if errors.Is(msg.Result.Err, context.Canceled) {
			m.setStatus("Cancelled", false)
		} else {
			m.setStatus("Review failed", true)
		}
		m.log.Warn("exchange failed", "conversation", msg.ConversationID, "error", msg.Result.Err)
	default:
		m.setStatus("", false)
	}
	m.refresh()
	return m, nil
}

func (m Model) handleConfigChanged(msg ConfigChangedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.setStatus(fmt.Sprintf("Config reload failed: %v", msg.Err), true)
		return m, nil
	}
	m.configTheme = msg.Config.UI.Theme
	m.renderMarkdown = msg.Config.UI.RenderMarkdown
	if m.repo.Theme() == "" {
		m.applyTheme("")
	}
	m.cache = make(map[string]renderedContent)
	m.setStatus("Config reloaded", false)
	m.refresh()
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.cancels.cancelAll()
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		if m.editingConvID != "" {
			m.editingConvID = ""
			m.input.Reset()
			m.setStatus("Edit cancelled", false)
		} else if id := m.repo.ActiveID(); id != "" && m.cancels.cancel(id) {
			m.setStatus("Cancelling...", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submit()

	case key.Matches(msg, m.keys.NewChat):
		m.editingConvID = ""
		m.repo.ReturnToHomepage()
		return m, nil

	case key.Matches(msg, m.keys.Regenerate):
		return m.regenerate()

	case key.Matches(msg, m.keys.Edit):
		m.startEdit()
		return m, nil

	case key.Matches(msg, m.keys.Pin):
		if id := m.repo.ActiveID(); id != "" {
			if _, err := m.repo.TogglePin(id); err != nil {
				m.setStatus(err.Error(), true)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Theme):
		next := m.theme.Next()
		m.repo.SetTheme(next)
		m.applyTheme(next)
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if id := m.repo.ActiveID(); id != "" {
			m.cancels.cancel(id)
			if err := m.repo.Delete(id); err != nil {
				m.setStatus(err.Error(), true)
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevConv):
		m.cycle(-1)
		return m, nil

	case key.Matches(msg, m.keys.NextConv):
		m.cycle(1)
		return m, nil

	case key.Matches(msg, m.keys.Like):
		return m.feedback(model.FeedbackLiked)

	case key.Matches(msg, m.keys.Dislike):
		return m.feedback(model.FeedbackDisliked)

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// INTENTS
// =============================================================================

func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())

	if path, ok := strings.CutPrefix(text, "/attach "); ok {
		in, err := controller.ReadFileInput(strings.TrimSpace(path))
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.pendingFile = in
		m.input.Reset()
		m.setStatus("Attached "+in.Name, false)
		return m, nil
	}

	if m.editingConvID != "" {
		convID := m.editingConvID
		if m.repo.ActiveID() != convID {
			m.editingConvID = ""
			m.setStatus("Edit cancelled: conversation changed", true)
			return m, nil
		}
		if text == "" {
			return m, nil
		}
		if m.busy(convID) {
			m.setStatus(busyStatus, true)
			return m, nil
		}
		m.editingConvID = ""
		m.input.Reset()
		ctl := m.ctl
		return m, m.runExchange(convID, func(ctx context.Context) (controller.Result, error) {
			return ctl.EditLast(ctx, convID, text)
		})
	}

	if text == "" && m.pendingFile == nil {
		return m, nil
	}

	convID := m.repo.ActiveID()
	if convID != "" && m.busy(convID) {
		m.setStatus(busyStatus, true)
		return m, nil
	}
	if convID == "" {
		convID = m.repo.CreateOnFirstMessage()
	}

	file := m.pendingFile
	m.pendingFile = nil
	m.input.Reset()
	m.setStatus("", false)

	ctl := m.ctl
	return m, m.runExchange(convID, func(ctx context.Context) (controller.Result, error) {
		return ctl.SendTo(ctx, convID, text, file, nil)
	})
}

func (m Model) regenerate() (tea.Model, tea.Cmd) {
	conv, ok := m.repo.Active()
	if !ok {
		return m, nil
	}
	if m.busy(conv.ID) {
		m.setStatus(busyStatus, true)
		return m, nil
	}
	target, ok := lastAssistant(conv)
	if !ok {
		m.setStatus("Nothing to regenerate", true)
		return m, nil
	}
	ctl := m.ctl
	return m, m.runExchange(conv.ID, func(ctx context.Context) (controller.Result, error) {
		return ctl.Regenerate(ctx, target.ID)
	})
}

func (m *Model) startEdit() {
	conv, ok := m.repo.Active()
	if !ok {
		return
	}
	i := conv.LastUserIndex()
	if i < 0 {
		m.setStatus("Nothing to edit", true)
		return
	}
	m.editingConvID = conv.ID
	m.input.SetValue(conv.Messages[i].Content)
	m.input.CursorEnd()
	m.setStatus("Editing last message (esc to cancel)", false)
}

func (m Model) feedback(fb model.Feedback) (tea.Model, tea.Cmd) {
	conv, ok := m.repo.Active()
	if !ok {
		return m, nil
	}
	target, ok := lastAssistant(conv)
	if !ok || !target.Status.Terminal() {
		return m, nil
	}
	ctl := m.ctl
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), FeedbackTimeout)
		defer cancel()
		return FeedbackDoneMsg{MessageID: target.ID, Err: ctl.SubmitFeedback(ctx, target.ID, fb)}
	}
}

const busyStatus = "A review is already running in this chat"

// busy reports whether convID has an exchange this view started or the
// controller still reports as running.
func (m Model) busy(convID string) bool {
	return m.cancels.running(convID) || m.ctl.Phase(convID).Busy()
}

// runExchange starts fn on a command goroutine with a cancellable context
// registered for convID. It returns nil if convID already has one.
func (m Model) runExchange(convID string, fn func(context.Context) (controller.Result, error)) tea.Cmd {
	ctx, cancel := context.WithCancel(context.Background())
	token, ok := m.cancels.set(convID, cancel)
	if !ok {
		cancel()
		return nil
	}
	return func() tea.Msg {
		defer cancel()
		res, err := fn(ctx)
		return ExchangeDoneMsg{ConversationID: convID, Result: res, Err: err, token: token}
	}
}

func (m *Model) cycle(dir int) {
	list := m.repo.SortedView()
	if len(list) == 0 {
		return
	}
	idx := -1
	active := m.repo.ActiveID()
	for i, c := range list {
		if c.ID == active {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && dir > 0:
		idx = 0
	case idx < 0:
		idx = len(list) - 1
	default:
		idx = (idx + dir + len(list)) % len(list)
	}
	m.editingConvID = ""
	m.repo.SwitchTo(list[idx].ID)
}

// =============================================================================
// HELPERS
// =============================================================================

func lastAssistant(conv *model.Conversation) (model.Message, bool) {
	for i := len(conv.Messages) - 1; i >= 1; i-- {
		if conv.Messages[i].Role == model.RoleAssistant {
			return conv.Messages[i], true
		}
	}
	return model.Message{}, false
}

func (m *Model) setStatus(s string, isErr bool) {
	m.status = s
	m.statusIsError = isErr
}

// applyTheme switches to name, or to the configured theme when name is "".
func (m *Model) applyTheme(name string) {
	if name == "" {
		name = m.configTheme
	}
	m.theme = styles.NewTheme(name)
	m.spinner.Style = m.theme.Spinner
	m.buildRenderer()
}

func (m *Model) buildRenderer() {
	m.cache = make(map[string]renderedContent)
	m.md = nil
	if !m.renderMarkdown || m.contentWidth() <= 0 {
		return
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(m.theme.GlamourStyle()),
		glamour.WithWordWrap(m.contentWidth()-2),
	)
	if err != nil {
		m.log.Warn("markdown renderer unavailable", "error", err)
		return
	}
	m.md = r
}

// refresh re-renders the active conversation into the viewport.
func (m *Model) refresh() {
	if !m.ready {
		return
	}
	follow := m.viewport.AtBottom() || m.viewport.TotalLineCount() == 0
	m.viewport.SetContent(m.renderConversation())
	if follow {
		m.viewport.GotoBottom()
	}
}

// Theme returns the theme in use.
func (m Model) Theme() *styles.Theme { return m.theme }

// Status returns the status bar message and whether it is an error.
func (m Model) Status() (string, bool) { return m.status, m.statusIsError }

// Editing reports whether the composer holds an edit of the last message.
func (m Model) Editing() bool { return m.editingConvID != "" }

// PendingFile returns the file picked with /attach, if any.
func (m Model) PendingFile() *controller.FileInput { return m.pendingFile }

// Input returns the composer text.
func (m Model) Input() string { return m.input.Value() }
