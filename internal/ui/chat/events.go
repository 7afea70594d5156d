// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/eyeq-tui/internal/config"
	"github.com/jeranaias/eyeq-tui/internal/controller"
	"github.com/jeranaias/eyeq-tui/internal/conversation"
)

// =============================================================================
// MESSAGES
// =============================================================================

// RepoEventsMsg carries repository changes that happened since the last one.
type RepoEventsMsg struct {
	Events []conversation.Event
}

// ExchangeDoneMsg reports how a send, regenerate or edit ended.
type ExchangeDoneMsg struct {
	ConversationID string
	Result         controller.Result
	Err            error

	token uint64
}

// FeedbackDoneMsg reports the outcome of a like or dislike.
type FeedbackDoneMsg struct {
	MessageID string
	Err       error
}

// ConfigChangedMsg is sent by the program owner when the config file changes.
type ConfigChangedMsg struct {
	Config *config.Config
	Err    error
}

// =============================================================================
// EVENT BRIDGE
// =============================================================================

// eventBridge queues repository events without ever blocking the mutating
// goroutine. A single-slot signal channel wakes the waiting command, which
// drains everything queued so far.
type eventBridge struct {
	mu      sync.Mutex
	pending []conversation.Event
	signal  chan struct{}
	closed  chan struct{}
	unsub   func()
	once    sync.Once
}

func newEventBridge(repo Conversations) *eventBridge {
	b := &eventBridge{
		signal: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
	b.unsub = repo.Subscribe(b.push)
	return b
}

func (b *eventBridge) push(ev conversation.Event) {
	b.mu.Lock()
	b.pending = append(b.pending, ev)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
}

func (b *eventBridge) drain() []conversation.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	evs := b.pending
	b.pending = nil
	return evs
}

// wait returns a command that blocks until events are queued.
func (b *eventBridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-b.signal:
			return RepoEventsMsg{Events: b.drain()}
		case <-b.closed:
			return nil
		}
	}
}

func (b *eventBridge) close() {
	b.once.Do(func() {
		b.unsub()
		close(b.closed)
	})
}
