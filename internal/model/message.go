// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "EyeQ"
	default:
		return string(r)
	}
}

// =============================================================================
// STATUS TYPE
// =============================================================================

// Status is the lifecycle phase of a message. A message moves through
// loading -> streaming -> (final | error) and never backwards.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusStreaming Status = "streaming"
	StatusFinal     Status = "final"
	StatusError     Status = "error"
)

// Terminal reports whether no further content will arrive.
func (s Status) Terminal() bool {
	return s == StatusFinal || s == StatusError
}

// =============================================================================
// PAYLOAD TYPES
// =============================================================================

// AttachmentKind classifies an attachment.
type AttachmentKind string

const (
	AttachmentText  AttachmentKind = "text"
	AttachmentFile  AttachmentKind = "file"
	AttachmentImage AttachmentKind = "image"
)

// Attachment is extra material carried with a message.
type Attachment struct {
	Kind            AttachmentKind `json:"kind"`
	Title           string         `json:"title"`
	Content         string         `json:"content"`
	SourceMessageID string         `json:"source_message_id,omitempty"`
}

// AnalysisResult is the structured compliance verdict attached to a
// completed assistant message.
type AnalysisResult struct {
	Summary        string   `json:"summary,omitempty"`
	ApprovedClaims []string `json:"approved_claims,omitempty"`
	Issues         []string `json:"issues,omitempty"`

	DisclaimerPresent bool `json:"disclaimer_present,omitempty"`
}

// Citation is one numbered reference from a response's References section.
type Citation struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

// SortCitations orders citations by number.
func SortCitations(c []Citation) {
	sort.Slice(c, func(i, j int) bool { return c[i].Number < c[j].Number })
}

// Feedback is the user's verdict on an assistant message.
type Feedback string

const (
	FeedbackNone     Feedback = ""
	FeedbackLiked    Feedback = "liked"
	FeedbackDisliked Feedback = "disliked"
)

// Valid reports whether f is a verdict the backend accepts.
func (f Feedback) Valid() bool {
	return f == FeedbackLiked || f == FeedbackDisliked
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a conversation.
//
// Messages are treated as values: the repository replaces whole message
// lists and never mutates a message it has already handed out.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Status    Status    `json:"status"`
	CreatedAt time.Time `json:"created_at"`

	Attachments []Attachment    `json:"attachments,omitempty"`
	Analysis    *AnalysisResult `json:"analysis,omitempty"`
	Citations   []Citation      `json:"citations,omitempty"`
	Feedback    Feedback        `json:"feedback,omitempty"`

	// FileContent is the extracted text of the file sent with a user
	// message, kept so the exchange can be regenerated.
	FileName    string `json:"file_name,omitempty"`
	FileContent string `json:"file_content,omitempty"`

	// Review is set on a user message sent as a comprehensive review.
	Review *ReviewMode `json:"review,omitempty"`

	// Partial holds whatever streamed before an exchange failed. The
	// user-facing Content of an error message is always the apology.
	Partial string `json:"partial,omitempty"`
}

// ReviewMode holds the options of a comprehensive review.
type ReviewMode struct {
	Product string `json:"product,omitempty"`
}

// IsStreaming reports whether content is still arriving.
func (m Message) IsStreaming() bool { return m.Status == StatusStreaming }

// IsLoading reports whether the message is a placeholder with no content yet.
func (m Message) IsLoading() bool { return m.Status == StatusLoading }

// IsError reports whether the message ended in failure.
func (m Message) IsError() bool { return m.Status == StatusError }

// NewUserMessage creates a finalized user message.
func NewUserMessage(content string) Message {
	return Message{
		ID:        NewMessageID(),
		Role:      RoleUser,
		Content:   content,
		Status:    StatusFinal,
		CreatedAt: time.Now(),
	}
}

// NewAssistantPlaceholder creates the placeholder for an exchange. It stays
// loading until the first chunk arrives.
func NewAssistantPlaceholder() Message {
	return Message{
		ID:        NewMessageID(),
		Role:      RoleAssistant,
		Status:    StatusLoading,
		CreatedAt: time.Now(),
	}
}

// WithContent returns a copy of m carrying content. A loading message moves
// to streaming.
func (m Message) WithContent(content string) Message {
	m.Content = content
	if m.Status == StatusLoading {
		m.Status = StatusStreaming
	}
	return m
}

// Finalize returns a copy of m in the final state.
func (m Message) Finalize(content string, analysis *AnalysisResult, citations []Citation) Message {
	m.Content = content
	m.Status = StatusFinal
	m.Analysis = analysis
	m.Citations = citations
	m.Partial = ""
	return m
}

// Fail returns a copy of m in the error state. partial is whatever content
// streamed before the failure.
func (m Message) Fail(apology, partial string) Message {
	m.Content = apology
	m.Status = StatusError
	m.Partial = partial
	return m
}

// Clone returns a deep copy of the message.
func (m Message) Clone() Message {
	if m.Attachments != nil {
		m.Attachments = append([]Attachment(nil), m.Attachments...)
	}
	if m.Citations != nil {
		m.Citations = append([]Citation(nil), m.Citations...)
	}
	if m.Analysis != nil {
		a := *m.Analysis
		a.ApprovedClaims = append([]string(nil), a.ApprovedClaims...)
		a.Issues = append([]string(nil), a.Issues...)
		m.Analysis = &a
	}
	if m.Review != nil {
		r := *m.Review
		m.Review = &r
	}
	return m
}

// =============================================================================
// MESSAGE IDS
// =============================================================================

// idSource mints message ids for one process. The suffix keeps ids from
// two processes sharing a store apart when they land on the same millisecond.
type idSource struct {
	mu     sync.Mutex
	last   int64
	suffix string
}

func newIDSource() *idSource {
	return &idSource{suffix: strings.ReplaceAll(uuid.NewString(), "-", "")[:8]}
}

func (s *idSource) next(ms int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ms <= s.last {
		ms = s.last + 1
	}
	s.last = ms
	return strconv.FormatInt(ms, 10) + "-" + s.suffix
}

var messageIDs = newIDSource()

// NewMessageID returns a timestamp-derived identifier of the form
// "<unix-millis>-<process suffix>". The millisecond part strictly increases
// within the process, even when called twice in one millisecond.
func NewMessageID() string {
	return messageIDs.next(time.Now().UnixMilli())
}
