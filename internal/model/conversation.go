// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"

	"github.com/google/uuid"
)

// SentinelTitle is the title of a conversation until one is derived.
const SentinelTitle = "New Chat"

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation holds a chat conversation with history and metadata.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation with a generated ID and the
// sentinel title.
func NewConversation() *Conversation {
	now := time.Now()
	return &Conversation{
		ID:        "conv_" + uuid.NewString(),
		Title:     SentinelTitle,
		Messages:  make([]Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// HasSentinelTitle reports whether the title has not been derived or set.
func (c *Conversation) HasSentinelTitle() bool {
	return c.Title == "" || c.Title == SentinelTitle
}

// IndexOf returns the index of the message with id, or -1.
func (c *Conversation) IndexOf(id string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// LastUserIndex returns the index of the most recent user message, or -1.
func (c *Conversation) LastUserIndex() int {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == RoleUser {
			return i
		}
	}
	return -1
}

// FirstUserMessage returns the first user message, if any.
func (c *Conversation) FirstUserMessage() (Message, bool) {
	for _, m := range c.Messages {
		if m.Role == RoleUser {
			return m, true
		}
	}
	return Message{}, false
}

// StreamingCount returns how many messages are still in flight, loading or
// streaming.
func (c *Conversation) StreamingCount() int {
	n := 0
	for _, m := range c.Messages {
		if m.IsStreaming() || m.IsLoading() {
			n++
		}
	}
	return n
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Preview returns a one-line preview of the first user message.
func (c *Conversation) Preview(maxRunes int) string {
	m, ok := c.FirstUserMessage()
	if !ok {
		return ""
	}
	runes := []rune(m.Content)
	if len(runes) <= maxRunes {
		return m.Content
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.Messages = CloneMessages(c.Messages)
	return &clone
}

// CloneMessages deep-copies a message slice.
func CloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
