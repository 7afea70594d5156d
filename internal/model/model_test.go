// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// TITLE DERIVATION TESTS
// =============================================================================

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "check this claim", "This claim"},
		{"leading whitespace", "   hello there  ", "Hello there"},
		{"please", "please review my brochure", "Review my brochure"},
		{"case insensitive", "Can You look at this", "Look at this"},
		{"could you", "could you, summarize", "Summarize"},
		{"help me", "Help me with the label", "With the label"},
		{"i need", "I need a second opinion", "A second opinion"},
		{"analyze", "analyze: efficacy claims", "Efficacy claims"},
		{"prefix only", "the review is done", "The review is done"},
		{"not a word boundary", "checking the footnotes", "Checking the footnotes"},
		{"empty", "", SentinelTitle},
		{"whitespace only", "   \n\t ", SentinelTitle},
		{"only filler", "please", SentinelTitle},
		{"unicode first letter", "élan claims", "Élan claims"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveTitle(tc.input))
		})
	}
}

func TestDeriveTitle_Truncation(t *testing.T) {
	input := strings.Repeat("a", 80)
	got := DeriveTitle(input)

	require.Len(t, []rune(got), MaxTitleRunes)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "A"+strings.Repeat("a", 46)+"...", got)

	exact := strings.Repeat("b", MaxTitleRunes)
	assert.Equal(t, "B"+strings.Repeat("b", MaxTitleRunes-1), DeriveTitle(exact))
}

func TestDeriveTitle_Deterministic(t *testing.T) {
	inputs := []string{
		"please check this ad for Clareon PanOptix: reduces glare by 90%",
		"",
		"Could you review the ISI section?",
		strings.Repeat("long text ", 20),
	}
	for _, in := range inputs {
		first := DeriveTitle(in)
		assert.Equal(t, first, DeriveTitle(in), "input %q", in)
	}

	got := DeriveTitle("please check this ad for Clareon PanOptix: ...")
	assert.False(t, strings.HasPrefix(strings.ToLower(got), "please"), "got %q", got)
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessageLifecycle(t *testing.T) {
	m := NewAssistantPlaceholder()
	assert.True(t, m.IsLoading())
	assert.False(t, m.IsStreaming())
	assert.False(t, m.IsError())
	assert.False(t, m.Status.Terminal())

	partial := m.WithContent("AB")
	assert.Equal(t, "AB", partial.Content)
	assert.True(t, partial.IsStreaming(), "first content moves loading to streaming")
	assert.True(t, m.IsLoading())
	assert.Equal(t, "", m.Content, "WithContent must not mutate the receiver")

	final := partial.Finalize("ABC", &AnalysisResult{Summary: "ok"}, nil)
	assert.Equal(t, StatusFinal, final.Status)
	assert.False(t, final.IsStreaming())
	assert.Equal(t, "ok", final.Analysis.Summary)

	failed := partial.Fail("sorry", "AB")
	assert.True(t, failed.IsError())
	assert.Equal(t, "sorry", failed.Content)
	assert.Equal(t, "AB", failed.Partial)
}

func TestMessageClone_Deep(t *testing.T) {
	m := NewUserMessage("x")
	m.Attachments = []Attachment{{Kind: AttachmentText, Title: "t"}}
	m.Analysis = &AnalysisResult{Issues: []string{"one"}}

	c := m.Clone()
	c.Attachments[0].Title = "changed"
	c.Analysis.Issues[0] = "changed"

	assert.Equal(t, "t", m.Attachments[0].Title)
	assert.Equal(t, "one", m.Analysis.Issues[0])
}

func TestNewMessageID_Monotonic(t *testing.T) {
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		millis, suffix, ok := strings.Cut(NewMessageID(), "-")
		require.True(t, ok)
		require.Len(t, suffix, 8)
		id, err := strconv.ParseInt(millis, 10, 64)
		require.NoError(t, err)
		require.Greater(t, id, prev)
		prev = id
	}
}

func TestMessageIDs_DistinctAcrossProcesses(t *testing.T) {
	a, b := newIDSource(), newIDSource()
	require.NotEqual(t, a.suffix, b.suffix)

	first, other := a.next(1700000000000), b.next(1700000000000)
	assert.NotEqual(t, first, other, "same millisecond in two processes")

	again := a.next(1700000000000)
	assert.Equal(t, "1700000000001-"+a.suffix, again)
}

func TestStreamingCount_IncludesLoading(t *testing.T) {
	c := NewConversation()
	c.Messages = []Message{
		NewUserMessage("q"),
		NewAssistantPlaceholder(),
		NewAssistantPlaceholder().WithContent("x"),
		NewAssistantPlaceholder().Finalize("done", nil, nil),
	}
	assert.Equal(t, 2, c.StreamingCount())
}

func TestFeedbackValid(t *testing.T) {
	assert.True(t, FeedbackLiked.Valid())
	assert.True(t, FeedbackDisliked.Valid())
	assert.False(t, FeedbackNone.Valid())
	assert.False(t, Feedback("meh").Valid())
}

func TestSortCitations(t *testing.T) {
	c := []Citation{{Number: 3}, {Number: 1}, {Number: 2}}
	SortCitations(c)
	assert.Equal(t, []int{1, 2, 3}, []int{c[0].Number, c[1].Number, c[2].Number})
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestNewConversation(t *testing.T) {
	c := NewConversation()
	assert.True(t, strings.HasPrefix(c.ID, "conv_"))
	assert.Equal(t, SentinelTitle, c.Title)
	assert.True(t, c.HasSentinelTitle())
	assert.True(t, c.IsEmpty())
	assert.NotEqual(t, c.ID, NewConversation().ID)
}

func TestConversationLookups(t *testing.T) {
	c := NewConversation()
	u1 := NewUserMessage("first")
	a1 := NewAssistantPlaceholder().Finalize("reply", nil, nil)
	u2 := NewUserMessage("second")
	c.Messages = []Message{u1, a1, u2}

	assert.Equal(t, 1, c.IndexOf(a1.ID))
	assert.Equal(t, -1, c.IndexOf("missing"))
	assert.Equal(t, 2, c.LastUserIndex())

	first, ok := c.FirstUserMessage()
	require.True(t, ok)
	assert.Equal(t, "first", first.Content)
	assert.Equal(t, 0, c.StreamingCount())
	assert.Equal(t, "first", c.Preview(20))
}

func TestConversationClone(t *testing.T) {
	c := NewConversation()
	c.Messages = []Message{NewUserMessage("hello")}

	clone := c.Clone()
	clone.Messages[0].Content = "changed"
	clone.Title = "other"

	assert.Equal(t, "hello", c.Messages[0].Content)
	assert.Equal(t, SentinelTitle, c.Title)
}
