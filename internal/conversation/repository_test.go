// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/eyeq-tui/internal/model"
	"github.com/jeranaias/eyeq-tui/internal/storage"
)

func newTestRepo(t *testing.T) (*Repository, *storage.MemoryBackend) {
	t.Helper()
	backend := storage.NewMemoryBackend()
	repo := New(storage.New(backend, nil), nil)
	t.Cleanup(repo.Close)
	return repo, backend
}

func storedConversations(t *testing.T, backend *storage.MemoryBackend) []model.Conversation {
	t.Helper()
	data, err := backend.Get(storage.KeyConversations)
	require.NoError(t, err)
	var out []model.Conversation
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestNavigationNeverCreates(t *testing.T) {
	repo, backend := newTestRepo(t)

	repo.ReturnToHomepage()
	assert.False(t, repo.SwitchTo("missing"))
	repo.SortedView()
	repo.Active()
	repo.ReturnToHomepage()
	repo.Flush()

	assert.Equal(t, 0, repo.Len())
	assert.Equal(t, "", repo.ActiveID())
	assert.Equal(t, 0, backend.Puts())
}

func TestCreateOnFirstMessage(t *testing.T) {
	repo, backend := newTestRepo(t)

	id := repo.CreateOnFirstMessage()
	require.NotEmpty(t, id)
	assert.Equal(t, id, repo.ActiveID())

	c, ok := repo.Get(id)
	require.True(t, ok)
	assert.Equal(t, model.SentinelTitle, c.Title)
	assert.Empty(t, c.Messages)

	repo.Flush()
	stored := storedConversations(t, backend)
	require.Len(t, stored, 1)
	assert.Equal(t, id, stored[0].ID)

	second := repo.CreateOnFirstMessage()
	assert.NotEqual(t, id, second)
	assert.Equal(t, 2, repo.Len())
}

func TestReturnToHomepage(t *testing.T) {
	repo, _ := newTestRepo(t)
	id := repo.CreateOnFirstMessage()

	repo.ReturnToHomepage()
	assert.Equal(t, "", repo.ActiveID())
	_, ok := repo.Active()
	assert.False(t, ok)

	assert.True(t, repo.SwitchTo(id))
	assert.Equal(t, id, repo.ActiveID())
}

func TestReplaceMessages_DerivesTitle(t *testing.T) {
	repo, _ := newTestRepo(t)
	id := repo.CreateOnFirstMessage()
	before, _ := repo.Get(id)

	msgs := []model.Message{model.NewUserMessage("please check this ad for Clareon PanOptix: results")}
	require.NoError(t, repo.ReplaceMessages(id, msgs))

	c, _ := repo.Get(id)
	assert.Equal(t, "Check this ad for Clareon PanOptix: results", c.Title)
	assert.False(t, c.UpdatedAt.Before(before.UpdatedAt))
	require.Len(t, c.Messages, 1)

	// A derived title is not re-derived from later messages.
	msgs = append(c.Messages, model.NewAssistantPlaceholder().Finalize("ok", nil, nil),
		model.NewUserMessage("something else entirely"))
	require.NoError(t, repo.ReplaceMessages(id, msgs))
	c, _ = repo.Get(id)
	assert.Equal(t, "Check this ad for Clareon PanOptix: results", c.Title)
}

func TestReplaceMessages_RenamedTitleKept(t *testing.T) {
	repo, _ := newTestRepo(t)
	id := repo.CreateOnFirstMessage()
	require.NoError(t, repo.Rename(id, "Q3 mailer"))

	require.NoError(t, repo.ReplaceMessages(id, []model.Message{model.NewUserMessage("review claims")}))
	c, _ := repo.Get(id)
	assert.Equal(t, "Q3 mailer", c.Title)
}

func TestReplaceMessages_CopiesInput(t *testing.T) {
	repo, _ := newTestRepo(t)
	id := repo.CreateOnFirstMessage()

	msgs := []model.Message{model.NewUserMessage("hello")}
	require.NoError(t, repo.ReplaceMessages(id, msgs))
	msgs[0].Content = "mutated"

	c, _ := repo.Get(id)
	assert.Equal(t, "hello", c.Messages[0].Content)

	c.Messages[0].Content = "mutated again"
	c2, _ := repo.Get(id)
	assert.Equal(t, "hello", c2.Messages[0].Content)
}

func TestReplaceMessages_RejectsTwoStreaming(t *testing.T) {
	repo, _ := newTestRepo(t)
	id := repo.CreateOnFirstMessage()

	msgs := []model.Message{
		model.NewUserMessage("a"),
		model.NewAssistantPlaceholder(),
		model.NewUserMessage("b"),
		model.NewAssistantPlaceholder(),
	}
	assert.ErrorIs(t, repo.ReplaceMessages(id, msgs), ErrMultipleStreaming)

	c, _ := repo.Get(id)
	assert.Empty(t, c.Messages)
}

func TestUnknownIDsAreNoOps(t *testing.T) {
	repo, _ := newTestRepo(t)

	assert.ErrorIs(t, repo.ReplaceMessages("nope", nil), ErrNotFound)
	assert.ErrorIs(t, repo.Rename("nope", "x"), ErrNotFound)
	assert.ErrorIs(t, repo.Delete("nope"), ErrNotFound)
	_, err := repo.TogglePin("nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, repo.Len())
}

func TestRename(t *testing.T) {
	repo, _ := newTestRepo(t)
	id := repo.CreateOnFirstMessage()

	assert.ErrorIs(t, repo.Rename(id, "   "), ErrEmptyTitle)
	require.NoError(t, repo.Rename(id, "  Line one\nline two  "))

	c, _ := repo.Get(id)
	assert.Equal(t, "Line one line two", c.Title)
}

func TestSortedView_PinnedFirstThenInsertionOrder(t *testing.T) {
	repo, _ := newTestRepo(t)
	a := repo.CreateOnFirstMessage()
	b := repo.CreateOnFirstMessage()
	c := repo.CreateOnFirstMessage()

	// Touching a must not move it: order is insertion, not time.
	require.NoError(t, repo.ReplaceMessages(a, []model.Message{model.NewUserMessage("x")}))

	pinned, err := repo.TogglePin(c)
	require.NoError(t, err)
	assert.True(t, pinned)

	ids := func() []string {
		var out []string
		for _, conv := range repo.SortedView() {
			out = append(out, conv.ID)
		}
		return out
	}
	assert.Equal(t, []string{c, a, b}, ids())

	pinned, err = repo.TogglePin(c)
	require.NoError(t, err)
	assert.False(t, pinned)
	assert.Equal(t, []string{a, b, c}, ids())
}

func TestDeleteAndClearAll(t *testing.T) {
	repo, backend := newTestRepo(t)
	a := repo.CreateOnFirstMessage()
	b := repo.CreateOnFirstMessage()

	require.NoError(t, repo.Delete(b))
	assert.Equal(t, "", repo.ActiveID(), "deleting the active conversation returns home")
	assert.Equal(t, 1, repo.Len())

	repo.SwitchTo(a)
	repo.ClearAll()
	assert.Equal(t, 0, repo.Len())
	assert.Equal(t, "", repo.ActiveID())

	repo.Flush()
	assert.Empty(t, storedConversations(t, backend))
}

func TestPersistenceAcrossInstances(t *testing.T) {
	backend := storage.NewMemoryBackend()
	store := storage.New(backend, nil)

	repo := New(store, nil)
	id := repo.CreateOnFirstMessage()
	require.NoError(t, repo.ReplaceMessages(id, []model.Message{
		model.NewUserMessage("Check this claim"),
		model.NewAssistantPlaceholder().Finalize("OK", &model.AnalysisResult{Summary: "fine"}, nil),
	}))
	_, err := repo.TogglePin(id)
	require.NoError(t, err)
	repo.SetTheme("light")
	repo.Close()

	reloaded := New(store, nil)
	defer reloaded.Close()

	assert.Equal(t, "light", reloaded.Theme())
	assert.Equal(t, "", reloaded.ActiveID(), "startup lands on the homepage")
	c, ok := reloaded.Get(id)
	require.True(t, ok)
	assert.True(t, c.Pinned)
	assert.Equal(t, "This claim", c.Title)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "fine", c.Messages[1].Analysis.Summary)
}

func TestLoad_RecoversInterruptedStream(t *testing.T) {
	backend := storage.NewMemoryBackend()
	store := storage.New(backend, nil)

	conv := model.NewConversation()
	conv.Messages = []model.Message{
		model.NewUserMessage("hi"),
		model.NewAssistantPlaceholder().WithContent("half an ans"),
	}
	store.Save(storage.KeyConversations, []model.Conversation{*conv})

	repo := New(store, nil)
	defer repo.Close()

	c, ok := repo.Get(conv.ID)
	require.True(t, ok)
	last := c.Messages[1]
	assert.True(t, last.IsError())
	assert.Equal(t, InterruptedNotice, last.Content)
	assert.Equal(t, "half an ans", last.Partial)
	assert.Equal(t, 0, c.StreamingCount())
}

func TestLoad_CorruptStoreYieldsEmpty(t *testing.T) {
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.Put(storage.KeyConversations, []byte("{not json")))

	repo := New(storage.New(backend, nil), nil)
	defer repo.Close()
	assert.Equal(t, 0, repo.Len())
}

func TestUnavailableStore(t *testing.T) {
	repo := New(nil, nil)
	defer repo.Close()

	id := repo.CreateOnFirstMessage()
	require.NoError(t, repo.ReplaceMessages(id, []model.Message{model.NewUserMessage("x")}))
	repo.Flush()
	assert.Equal(t, 1, repo.Len())
}

func TestSubscribe(t *testing.T) {
	repo, _ := newTestRepo(t)

	var mu sync.Mutex
	var events []Event
	unsubscribe := repo.Subscribe(func(ev Event) {
		// Reading inside the callback must not deadlock.
		repo.Len()
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	})

	id := repo.CreateOnFirstMessage()
	require.NoError(t, repo.ReplaceMessages(id, []model.Message{model.NewUserMessage("x")}))
	repo.ReturnToHomepage()
	repo.SetTheme("dark")
	require.NoError(t, repo.Delete(id))

	unsubscribe()
	unsubscribe()
	repo.CreateOnFirstMessage()

	mu.Lock()
	defer mu.Unlock()
	kinds := make([]EventKind, len(events))
	for i, ev := range events {
		kinds[i] = ev.Kind
	}
	assert.Equal(t, []EventKind{EventCreated, EventUpdated, EventActiveChanged, EventThemeChanged, EventDeleted}, kinds)
	assert.Equal(t, id, events[0].ConversationID)
}

func TestConcurrentMutation(t *testing.T) {
	repo, backend := newTestRepo(t)

	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := repo.CreateOnFirstMessage()
			_ = repo.ReplaceMessages(id, []model.Message{model.NewUserMessage("concurrent")})
			ids <- id
		}()
	}
	wg.Wait()
	close(ids)

	repo.Flush()
	assert.Equal(t, 20, repo.Len())
	assert.Len(t, storedConversations(t, backend), 20)
}

func TestFindMessage(t *testing.T) {
	repo, _ := newTestRepo(t)
	id := repo.CreateOnFirstMessage()
	m := model.NewUserMessage("find me")
	require.NoError(t, repo.ReplaceMessages(id, []model.Message{m}))

	convID, got, ok := repo.FindMessage(m.ID)
	require.True(t, ok)
	assert.Equal(t, id, convID)
	assert.Equal(t, "find me", got.Content)

	_, _, ok = repo.FindMessage("missing")
	assert.False(t, ok)
}
