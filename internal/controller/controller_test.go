// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/eyeq-tui/internal/backend"
	"github.com/jeranaias/eyeq-tui/internal/conversation"
	"github.com/jeranaias/eyeq-tui/internal/model"
	"github.com/jeranaias/eyeq-tui/internal/storage"
)

// =============================================================================
// FAKE BACKEND
// =============================================================================

type fakeBackend struct {
	mu sync.Mutex

	events []backend.Event
	err    error

	// onAnalyze runs before any event is delivered.
	onAnalyze func()
	// gate, when set, holds Analyze until closed.
	gate    chan struct{}
	started chan struct{}

	requests []backend.AnalyzeRequest
	reviews  []backend.ReviewRequest

	uploadResult *backend.UploadResult
	uploadErr    error
	uploads      []string

	feedback    []backend.FeedbackRequest
	feedbackErr error
}

func (f *fakeBackend) Analyze(ctx context.Context, req backend.AnalyzeRequest, cb backend.Callback) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.play(ctx, cb)
}

func (f *fakeBackend) ComprehensiveReview(ctx context.Context, req backend.ReviewRequest, cb backend.Callback) error {
	f.mu.Lock()
	f.reviews = append(f.reviews, req)
	f.mu.Unlock()
	return f.play(ctx, cb)
}

// play delivers the scripted events.
func (f *fakeBackend) play(ctx context.Context, cb backend.Callback) error {
	f.mu.Lock()
	events, err, hook, gate, started := f.events, f.err, f.onAnalyze, f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if hook != nil {
		hook()
	}
	for _, ev := range events {
		cb(ev)
	}
	return err
}

func (f *fakeBackend) Upload(ctx context.Context, name string, data []byte) (*backend.UploadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, name)
	return f.uploadResult, f.uploadErr
}

func (f *fakeBackend) Feedback(ctx context.Context, fb backend.FeedbackRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedback = append(f.feedback, fb)
	return f.feedbackErr
}

func (f *fakeBackend) lastRequest(t *testing.T) backend.AnalyzeRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.requests)
	return f.requests[len(f.requests)-1]
}

func chunk(s string) backend.Event { return backend.Event{Kind: backend.EventChunk, Chunk: s} }

func done() backend.Event { return backend.Event{Kind: backend.EventDone} }

func doneWith(full string) backend.Event {
	return backend.Event{Kind: backend.EventDone, FullResponse: full, HasFullResponse: true}
}

func newTestController(t *testing.T, fb *fakeBackend, opts Options) (*Controller, *conversation.Repository) {
	t.Helper()
	repo := conversation.New(storage.New(storage.NewMemoryBackend(), nil), nil)
	t.Cleanup(repo.Close)
	return New(repo, fb, opts), repo
}

// seed creates an active conversation holding msgs.
func seed(t *testing.T, repo *conversation.Repository, msgs ...model.Message) string {
	t.Helper()
	id := repo.CreateOnFirstMessage()
	require.NoError(t, repo.ReplaceMessages(id, msgs))
	return id
}

func final(content string) model.Message {
	return model.NewAssistantPlaceholder().Finalize(content, nil, nil)
}

// watchStreaming fails the test if any repository snapshot shows more than
// one streaming message in a conversation.
func watchStreaming(t *testing.T, repo *conversation.Repository) {
	t.Helper()
	unsubscribe := repo.Subscribe(func(ev conversation.Event) {
		if c, ok := repo.Get(ev.ConversationID); ok {
			assert.LessOrEqual(t, c.StreamingCount(), 1, "conversation %s", c.ID)
		}
	})
	t.Cleanup(unsubscribe)
}

// =============================================================================
// SEND
// =============================================================================

func TestSendMessage_FreshState(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("OK"), done()}}
	ctrl, repo := newTestController(t, fb, Options{})

	res, err := ctrl.SendMessage(context.Background(), "Check this claim", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseSettledSuccess, res.Phase)
	assert.NoError(t, res.Err)

	require.Equal(t, 1, repo.Len())
	conv, ok := repo.Active()
	require.True(t, ok)
	assert.Equal(t, res.ConversationID, conv.ID)
	require.Len(t, conv.Messages, 2)

	user, assistant := conv.Messages[0], conv.Messages[1]
	assert.Equal(t, model.RoleUser, user.Role)
	assert.Equal(t, "Check this claim", user.Content)
	assert.Equal(t, model.RoleAssistant, assistant.Role)
	assert.Equal(t, "OK", assistant.Content)
	assert.False(t, assistant.IsStreaming())
	assert.Equal(t, model.StatusFinal, assistant.Status)
	assert.Equal(t, res.MessageID, assistant.ID)
	assert.Equal(t, "This claim", conv.Title)
}

func TestSendMessage_OptimisticUserMessage(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{done()}}
	ctrl, repo := newTestController(t, fb, Options{})

	var seen []model.Message
	fb.onAnalyze = func() {
		c, _ := repo.Active()
		seen = c.Messages
	}

	_, err := ctrl.SendMessage(context.Background(), "hello", nil, nil)
	require.NoError(t, err)

	require.Len(t, seen, 2, "user message and placeholder exist before the stream starts")
	assert.Equal(t, "hello", seen[0].Content)
	assert.True(t, seen[1].IsLoading(), "placeholder waits in loading until the first chunk")
	assert.Empty(t, seen[1].Content)
}

func TestSendMessage_ChunkOrder(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("A"), chunk("B"), chunk("C"), done()}}
	ctrl, repo := newTestController(t, fb, Options{})

	var mu sync.Mutex
	var streamed []string
	repo.Subscribe(func(ev conversation.Event) {
		c, ok := repo.Get(ev.ConversationID)
		if !ok || len(c.Messages) == 0 {
			return
		}
		last := c.Messages[len(c.Messages)-1]
		if last.IsStreaming() && last.Content != "" {
			mu.Lock()
			streamed = append(streamed, last.Content)
			mu.Unlock()
		}
	})

	_, err := ctrl.SendMessage(context.Background(), "go", nil, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"A", "AB", "ABC"}, streamed)

	c, _ := repo.Active()
	assert.Equal(t, "ABC", c.Messages[1].Content)
}

func TestSendMessage_FullResponseWins(t *testing.T) {
	analysis := &model.AnalysisResult{Summary: "1 issue", Issues: []string{"unsupported superiority claim"}}
	citations := []model.Citation{{Number: 1, Title: "FDA guidance", URL: "https://fda.gov"}}
	fb := &fakeBackend{events: []backend.Event{
		chunk("partial"),
		{Kind: backend.EventDone, FullResponse: "final", HasFullResponse: true, Analysis: analysis, Citations: citations},
	}}
	ctrl, repo := newTestController(t, fb, Options{})

	_, err := ctrl.SendMessage(context.Background(), "review", nil, nil)
	require.NoError(t, err)

	c, _ := repo.Active()
	got := c.Messages[1]
	assert.Equal(t, "final", got.Content)
	require.NotNil(t, got.Analysis)
	assert.Equal(t, "1 issue", got.Analysis.Summary)
	assert.Equal(t, citations, got.Citations)
}

func TestSendMessage_SyntheticDoneUsesAccumulated(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("kept"), {Kind: backend.EventDone, Synthetic: true}}}
	ctrl, repo := newTestController(t, fb, Options{})

	_, err := ctrl.SendMessage(context.Background(), "x", nil, nil)
	require.NoError(t, err)
	c, _ := repo.Active()
	assert.Equal(t, "kept", c.Messages[1].Content)
	assert.Equal(t, model.StatusFinal, c.Messages[1].Status)
}

func TestSendMessage_StreamErrorKeepsPartialAside(t *testing.T) {
	streamErr := &backend.StreamError{Partial: "par", Err: &backend.RemoteError{Message: "internal: db down"}}
	fb := &fakeBackend{events: []backend.Event{chunk("par")}, err: streamErr}
	ctrl, repo := newTestController(t, fb, Options{})

	res, err := ctrl.SendMessage(context.Background(), "x", nil, nil)
	require.NoError(t, err, "exchange failures do not propagate")
	assert.Equal(t, PhaseSettledError, res.Phase)
	assert.ErrorIs(t, res.Err, streamErr)

	c, _ := repo.Active()
	got := c.Messages[1]
	assert.True(t, got.IsError())
	assert.Equal(t, SendApology, got.Content)
	assert.Equal(t, "par", got.Partial)
	assert.NotContains(t, got.Content, "db down")
}

func TestSendMessage_TransportErrorBeforeBytes(t *testing.T) {
	fb := &fakeBackend{err: errors.New("dial tcp: connection refused")}
	ctrl, repo := newTestController(t, fb, Options{})

	res, err := ctrl.SendMessage(context.Background(), "x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseSettledError, res.Phase)

	c, _ := repo.Active()
	require.Len(t, c.Messages, 2)
	assert.Equal(t, SendApology, c.Messages[1].Content)
	assert.Empty(t, c.Messages[1].Partial)
	assert.Equal(t, 0, c.StreamingCount())
}

func TestSendMessage_EmptyDoneIsFinal(t *testing.T) {
	tests := []struct {
		name   string
		events []backend.Event
	}{
		{"done without chunks", []backend.Event{done()}},
		{"empty full response replaces chunks", []backend.Event{chunk("partial"), doneWith("")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fb := &fakeBackend{events: tt.events}
			ctrl, repo := newTestController(t, fb, Options{})

			res, err := ctrl.SendMessage(context.Background(), "x", nil, nil)
			require.NoError(t, err)
			assert.Equal(t, PhaseSettledSuccess, res.Phase)
			assert.NoError(t, res.Err)

			c, _ := repo.Active()
			require.Len(t, c.Messages, 2)
			assert.Equal(t, model.StatusFinal, c.Messages[1].Status)
			assert.Equal(t, "", c.Messages[1].Content)
			assert.Empty(t, c.Messages[1].Partial)
		})
	}
}

func TestSendMessage_NoDoneIsError(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("x")}}
	ctrl, _ := newTestController(t, fb, Options{})

	res, err := ctrl.SendMessage(context.Background(), "x", nil, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, res.Err, backend.ErrEmptyStream)
}

func TestSendMessage_EmptyDoesNotCreate(t *testing.T) {
	fb := &fakeBackend{}
	ctrl, repo := newTestController(t, fb, Options{})

	_, err := ctrl.SendMessage(context.Background(), "   ", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Equal(t, 0, repo.Len())
}

func TestSendMessage_UsesActiveConversation(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("b"), done()}}
	ctrl, repo := newTestController(t, fb, Options{})
	id := seed(t, repo, model.NewUserMessage("first"), final("a"))

	res, err := ctrl.SendMessage(context.Background(), "second", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, id, res.ConversationID)
	assert.Equal(t, 1, repo.Len())

	c, _ := repo.Get(id)
	require.Len(t, c.Messages, 4)
	assert.Equal(t, "second", c.Messages[2].Content)
	assert.Equal(t, "b", c.Messages[3].Content)
}

func TestSendTo_TargetsInactiveConversation(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("OK"), done()}}
	ctrl, repo := newTestController(t, fb, Options{})

	first := seed(t, repo)
	repo.ReturnToHomepage()

	res, err := ctrl.SendTo(context.Background(), first, "claim", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, first, res.ConversationID)
	assert.Empty(t, repo.ActiveID(), "sending does not change the active pointer")
	assert.Equal(t, 1, repo.Len())

	c, ok := repo.Get(first)
	require.True(t, ok)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "OK", c.Messages[1].Content)

	_, err = ctrl.SendTo(context.Background(), first, "  ", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestSendMessage_SessionID(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{doneWith("ok")}}
	ctrl, _ := newTestController(t, fb, Options{})

	res, err := ctrl.SendMessage(context.Background(), "x", nil, nil)
	require.NoError(t, err)
	req := fb.lastRequest(t)
	assert.Equal(t, res.ConversationID, req.SessionID)
	assert.True(t, req.Streaming)
	assert.Equal(t, "x", req.Message)

	fb2 := &fakeBackend{events: []backend.Event{doneWith("ok")}}
	ctrl2, _ := newTestController(t, fb2, Options{SessionID: "shared"})
	_, err = ctrl2.SendMessage(context.Background(), "x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "shared", fb2.lastRequest(t).SessionID)
}

func TestSendMessage_Phases(t *testing.T) {
	var mu sync.Mutex
	var phases []Phase
	fb := &fakeBackend{
		events:       []backend.Event{doneWith("ok")},
		uploadResult: &backend.UploadResult{Content: "text"},
	}
	ctrl, _ := newTestController(t, fb, Options{OnPhase: func(_ string, p Phase) {
		mu.Lock()
		phases = append(phases, p)
		mu.Unlock()
	}})

	_, err := ctrl.SendMessage(context.Background(), "x", &FileInput{Name: "a.txt", Data: []byte("a")}, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []Phase{PhaseAwaitingConversation, PhaseUploading, PhaseStreaming, PhaseSettledSuccess}, phases)
}

// =============================================================================
// FILES
// =============================================================================

func TestSendMessage_FileContentFramed(t *testing.T) {
	fb := &fakeBackend{
		events:       []backend.Event{doneWith("ok")},
		uploadResult: &backend.UploadResult{Content: "Reduces glare by 90%", Filename: "ad.pdf"},
	}
	ctrl, repo := newTestController(t, fb, Options{})

	_, err := ctrl.SendMessage(context.Background(), "Check this ad", &FileInput{Name: "ad.pdf", Data: []byte("%PDF")}, nil)
	require.NoError(t, err)

	want := "Check this ad\n\n=== FILE CONTENT ===\nReduces glare by 90%\n=== END FILE CONTENT ==="
	assert.Equal(t, want, fb.lastRequest(t).Message)
	assert.Equal(t, []string{"ad.pdf"}, fb.uploads)

	c, _ := repo.Active()
	assert.Equal(t, "Check this ad", c.Messages[0].Content, "the visible message is not framed")
	assert.Equal(t, "ad.pdf", c.Messages[0].FileName)
	assert.Equal(t, "Reduces glare by 90%", c.Messages[0].FileContent)
}

func TestSendMessage_ExtractionFailureContinues(t *testing.T) {
	fb := &fakeBackend{
		events:    []backend.Event{doneWith("ok")},
		uploadErr: &backend.StatusError{Status: 500, Message: "ocr crashed"},
	}
	ctrl, repo := newTestController(t, fb, Options{})

	res, err := ctrl.SendMessage(context.Background(), "Check", &FileInput{Name: "scan.png", Data: []byte{0x89}}, nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseSettledSuccess, res.Phase)

	msg := fb.lastRequest(t).Message
	assert.Contains(t, msg, FileContentStart+"\n"+ExtractionPlaceholder("scan.png")+"\n"+FileContentEnd)

	c, _ := repo.Active()
	assert.Equal(t, "ok", c.Messages[1].Content)
}

func TestSendMessage_FileOnly(t *testing.T) {
	fb := &fakeBackend{
		events:       []backend.Event{doneWith("ok")},
		uploadResult: &backend.UploadResult{Content: "body"},
	}
	ctrl, _ := newTestController(t, fb, Options{})

	_, err := ctrl.SendMessage(context.Background(), "", &FileInput{Name: "a.txt", Data: []byte("body")}, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(fb.lastRequest(t).Message, "\n\n"+FileContentStart))
}

func TestSendMessage_Attachments(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{doneWith("ok")}}
	ctrl, repo := newTestController(t, fb, Options{})

	att := []model.Attachment{{Kind: model.AttachmentText, Title: "Prior claim", Content: "Works in 3 days"}}
	_, err := ctrl.SendMessage(context.Background(), "Compare", nil, att)
	require.NoError(t, err)

	assert.Equal(t, "Compare\n\n[Prior claim]\nWorks in 3 days", fb.lastRequest(t).Message)
	c, _ := repo.Active()
	assert.Equal(t, att, c.Messages[0].Attachments)
}

func TestReadFileInput(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadFileInput(dir)
	assert.Error(t, err)

	_, err = ReadFileInput(dir + "/missing.txt")
	assert.Error(t, err)
}

// =============================================================================
// REGENERATE AND EDIT
// =============================================================================

func TestRegenerate(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("new answer"), done()}}
	ctrl, repo := newTestController(t, fb, Options{})

	user := model.NewUserMessage("Is this compliant?")
	user.FileContent = "file body"
	old := final("old answer")
	id := seed(t, repo, user, old)
	watchStreaming(t, repo)

	res, err := ctrl.Regenerate(context.Background(), old.ID)
	require.NoError(t, err)
	assert.Equal(t, PhaseSettledSuccess, res.Phase)

	c, _ := repo.Get(id)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, user.ID, c.Messages[0].ID)
	assert.NotEqual(t, old.ID, c.Messages[1].ID)
	assert.Equal(t, "new answer", c.Messages[1].Content)

	assert.Equal(t, "Is this compliant?\n\n=== FILE CONTENT ===\nfile body\n=== END FILE CONTENT ===", fb.lastRequest(t).Message)
}

func TestRegenerate_DropsLaterMessages(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{doneWith("again")}}
	ctrl, repo := newTestController(t, fb, Options{})

	u1, a1 := model.NewUserMessage("one"), final("a1")
	u2, a2 := model.NewUserMessage("two"), final("a2")
	id := seed(t, repo, u1, a1, u2, a2)

	_, err := ctrl.Regenerate(context.Background(), a1.ID)
	require.NoError(t, err)

	c, _ := repo.Get(id)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "again", c.Messages[1].Content)
}

func TestRegenerate_Invalid(t *testing.T) {
	fb := &fakeBackend{}
	ctrl, repo := newTestController(t, fb, Options{})
	u := model.NewUserMessage("q")
	seed(t, repo, u, final("a"))

	_, err := ctrl.Regenerate(context.Background(), u.ID)
	assert.ErrorIs(t, err, ErrNotRegenerable)

	_, err = ctrl.Regenerate(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	// An assistant message with no user message before it.
	orphan := final("orphan")
	seed(t, repo, orphan)
	_, err = ctrl.Regenerate(context.Background(), orphan.ID)
	assert.ErrorIs(t, err, ErrNotRegenerable)
	assert.Empty(t, fb.requests)
}

func TestRegenerate_ErrorApology(t *testing.T) {
	fb := &fakeBackend{err: errors.New("boom")}
	ctrl, repo := newTestController(t, fb, Options{})
	a := final("a")
	id := seed(t, repo, model.NewUserMessage("q"), a)

	_, err := ctrl.Regenerate(context.Background(), a.ID)
	require.NoError(t, err)
	c, _ := repo.Get(id)
	assert.Equal(t, RegenerateApology, c.Messages[1].Content)
}

func TestEditAndResend_Truncates(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("re"), done()}}
	ctrl, repo := newTestController(t, fb, Options{})

	u1, a1 := model.NewUserMessage("user1"), final("assistant1")
	u2, a2 := model.NewUserMessage("user2"), final("assistant2")
	id := seed(t, repo, u1, a1, u2, a2)
	watchStreaming(t, repo)

	var before []model.Message
	fb.onAnalyze = func() {
		c, _ := repo.Get(id)
		before = c.Messages
	}

	_, err := ctrl.EditAndResend(context.Background(), "user2 edited")
	require.NoError(t, err)

	require.Len(t, before, 4)
	assert.Equal(t, []string{u1.ID, a1.ID, u2.ID}, []string{before[0].ID, before[1].ID, before[2].ID})
	assert.Equal(t, "user2 edited", before[2].Content)
	assert.True(t, before[3].IsLoading())
	assert.NotEqual(t, a2.ID, before[3].ID)

	c, _ := repo.Get(id)
	require.Len(t, c.Messages, 4)
	assert.Equal(t, "re", c.Messages[3].Content)
	assert.Equal(t, "user2 edited", fb.lastRequest(t).Message)
}

func TestEditAndResend_Errors(t *testing.T) {
	fb := &fakeBackend{err: errors.New("boom")}
	ctrl, repo := newTestController(t, fb, Options{})

	_, err := ctrl.EditAndResend(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoActiveConversation)

	id := seed(t, repo)
	_, err = ctrl.EditAndResend(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNoUserMessage)

	_, err = ctrl.EditAndResend(context.Background(), " ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	require.NoError(t, repo.ReplaceMessages(id, []model.Message{model.NewUserMessage("q")}))
	_, err = ctrl.EditAndResend(context.Background(), "q2")
	require.NoError(t, err)
	c, _ := repo.Get(id)
	assert.Equal(t, EditApology, c.Messages[1].Content)
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestExchangeInProgressGuard(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	fb := &fakeBackend{events: []backend.Event{doneWith("ok")}, gate: gate, started: started}
	ctrl, repo := newTestController(t, fb, Options{})
	id := seed(t, repo, model.NewUserMessage("q"), final("a"))
	watchStreaming(t, repo)

	errc := make(chan error, 1)
	go func() {
		_, err := ctrl.SendMessage(context.Background(), "first", nil, nil)
		errc <- err
	}()
	<-started
	assert.True(t, ctrl.Busy(id))
	assert.Equal(t, PhaseStreaming, ctrl.Phase(id))

	before, _ := repo.Get(id)
	_, err := ctrl.SendMessage(context.Background(), "second", nil, nil)
	assert.ErrorIs(t, err, ErrExchangeInProgress)
	_, err = ctrl.EditAndResend(context.Background(), "edit")
	assert.ErrorIs(t, err, ErrExchangeInProgress)
	after, _ := repo.Get(id)
	assert.Equal(t, len(before.Messages), len(after.Messages))

	close(gate)
	require.NoError(t, <-errc)
	assert.False(t, ctrl.Busy(id))
	assert.Equal(t, PhaseSettledSuccess, ctrl.Phase(id))
}

func TestCancellationSettlesPlaceholder(t *testing.T) {
	gate := make(chan struct{})
	started := make(chan struct{})
	fb := &fakeBackend{gate: gate, started: started}
	ctrl, repo := newTestController(t, fb, Options{})
	defer close(gate)

	ctx, cancel := context.WithCancel(context.Background())
	resc := make(chan Result, 1)
	go func() {
		res, _ := ctrl.SendMessage(ctx, "x", nil, nil)
		resc <- res
	}()
	<-started
	cancel()

	select {
	case res := <-resc:
		assert.ErrorIs(t, res.Err, context.Canceled)
	case <-time.After(3 * time.Second):
		t.Fatal("exchange did not settle after cancellation")
	}
	c, _ := repo.Active()
	assert.Equal(t, 0, c.StreamingCount())
}

func TestConversationDeletedMidStream(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("a"), chunk("b"), done()}}
	ctrl, repo := newTestController(t, fb, Options{})
	fb.onAnalyze = func() { repo.ClearAll() }

	res, err := ctrl.SendMessage(context.Background(), "x", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, repo.Len())
	assert.NotEmpty(t, res.ConversationID)
}

func TestAtMostOneStreaming_Sequence(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("1"), chunk("2"), done()}}
	ctrl, repo := newTestController(t, fb, Options{})
	watchStreaming(t, repo)

	ctx := context.Background()
	res, err := ctrl.SendMessage(ctx, "a", nil, nil)
	require.NoError(t, err)
	_, err = ctrl.SendMessage(ctx, "b", nil, nil)
	require.NoError(t, err)
	_, err = ctrl.Regenerate(ctx, res.MessageID)
	require.NoError(t, err)
	_, err = ctrl.EditAndResend(ctx, "c")
	require.NoError(t, err)

	c, _ := repo.Active()
	assert.Equal(t, 0, c.StreamingCount())
	assert.Len(t, c.Messages, 2)
}

// =============================================================================
// COMPREHENSIVE REVIEW
// =============================================================================

func TestReview_UsesReviewEndpoint(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{chunk("## Review"), doneWith("## Review\nAll clear")}}
	ctrl, repo := newTestController(t, fb, Options{SessionID: "fixed"})
	id := repo.CreateOnFirstMessage()

	res, err := ctrl.Review(context.Background(), id, "  Full brochure text  ", " Widget ", nil)
	require.NoError(t, err)
	assert.Equal(t, PhaseSettledSuccess, res.Phase)

	assert.Empty(t, fb.requests, "a review never goes through the chat endpoint")
	require.Len(t, fb.reviews, 1)
	assert.Equal(t, backend.ReviewRequest{
		MaterialText: "Full brochure text",
		ProductName:  "Widget",
		SessionID:    "fixed",
		Streaming:    true,
	}, fb.reviews[0])

	c, _ := repo.Get(id)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "Full brochure text", c.Messages[0].Content)
	require.NotNil(t, c.Messages[0].Review)
	assert.Equal(t, "Widget", c.Messages[0].Review.Product)
	assert.Equal(t, "## Review\nAll clear", c.Messages[1].Content)
}

func TestReview_FileMaterial(t *testing.T) {
	fb := &fakeBackend{
		events:       []backend.Event{doneWith("ok")},
		uploadResult: &backend.UploadResult{Content: "Label copy", Filename: "label.pdf"},
	}
	ctrl, repo := newTestController(t, fb, Options{})
	id := repo.CreateOnFirstMessage()

	_, err := ctrl.Review(context.Background(), id, "", "", &FileInput{Name: "label.pdf", Data: []byte("%PDF")})
	require.NoError(t, err)

	require.Len(t, fb.reviews, 1)
	assert.Equal(t, "\n\n=== FILE CONTENT ===\nLabel copy\n=== END FILE CONTENT ===", fb.reviews[0].MaterialText)
	assert.Empty(t, fb.reviews[0].ProductName)
}

func TestReview_Empty(t *testing.T) {
	fb := &fakeBackend{}
	ctrl, repo := newTestController(t, fb, Options{})
	id := repo.CreateOnFirstMessage()

	_, err := ctrl.Review(context.Background(), id, " \n ", "Widget", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, fb.reviews)
}

func TestReview_RegenerateAndEditStayOnReviewEndpoint(t *testing.T) {
	fb := &fakeBackend{events: []backend.Event{doneWith("first")}}
	ctrl, repo := newTestController(t, fb, Options{})
	id := repo.CreateOnFirstMessage()

	res, err := ctrl.Review(context.Background(), id, "v1 material", "Widget", nil)
	require.NoError(t, err)

	_, err = ctrl.Regenerate(context.Background(), res.MessageID)
	require.NoError(t, err)

	_, err = ctrl.EditLast(context.Background(), id, "v2 material")
	require.NoError(t, err)

	assert.Empty(t, fb.requests)
	require.Len(t, fb.reviews, 3)
	assert.Equal(t, "v1 material", fb.reviews[1].MaterialText)
	assert.Equal(t, "v2 material", fb.reviews[2].MaterialText)
	assert.Equal(t, "Widget", fb.reviews[2].ProductName)
}

// =============================================================================
// FEEDBACK
// =============================================================================

func TestSubmitFeedback(t *testing.T) {
	fb := &fakeBackend{}
	ctrl, repo := newTestController(t, fb, Options{})
	a := final("looks compliant")
	id := seed(t, repo, model.NewUserMessage("q"), a)

	require.NoError(t, ctrl.SubmitFeedback(context.Background(), a.ID, model.FeedbackLiked))

	c, _ := repo.Get(id)
	assert.Equal(t, model.FeedbackLiked, c.Messages[1].Feedback)
	require.Len(t, fb.feedback, 1)
	assert.Equal(t, backend.FeedbackRequest{
		MessageID:      a.ID,
		MessageContent: "looks compliant",
		FeedbackType:   model.FeedbackLiked,
		ConversationID: id,
	}, fb.feedback[0])
}

func TestSubmitFeedback_Errors(t *testing.T) {
	fb := &fakeBackend{feedbackErr: errors.New("offline")}
	ctrl, repo := newTestController(t, fb, Options{})
	u, a := model.NewUserMessage("q"), final("a")
	id := seed(t, repo, u, a)

	assert.Error(t, ctrl.SubmitFeedback(context.Background(), a.ID, "meh"))
	assert.ErrorIs(t, ctrl.SubmitFeedback(context.Background(), "missing", model.FeedbackLiked), ErrMessageNotFound)
	assert.Error(t, ctrl.SubmitFeedback(context.Background(), u.ID, model.FeedbackLiked))

	err := ctrl.SubmitFeedback(context.Background(), a.ID, model.FeedbackDisliked)
	assert.Error(t, err)
	c, _ := repo.Get(id)
	assert.Equal(t, model.FeedbackDisliked, c.Messages[1].Feedback, "local verdict survives delivery failure")
}

func TestComposePayload(t *testing.T) {
	assert.Equal(t, "hi", ComposePayload("hi", "", nil))
	assert.Equal(t, "hi\n\n=== FILE CONTENT ===\nbody\n=== END FILE CONTENT ===", ComposePayload("hi", "body", nil))
	assert.Equal(t, "hi", ComposePayload("hi", "", []model.Attachment{{Title: "empty", Content: "  "}}))
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "streaming", PhaseStreaming.String())
	assert.True(t, PhaseUploading.Busy())
	assert.True(t, PhaseSettledError.Settled())
	assert.False(t, PhaseIdle.Busy())
}
