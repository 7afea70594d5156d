// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/eyeq-tui/internal/model"
)

// failingBackend rejects every operation.
type failingBackend struct{}

func (failingBackend) Get(string) ([]byte, error) { return nil, errors.New("disk on fire") }
func (failingBackend) Put(string, []byte) error   { return errors.New("disk on fire") }
func (failingBackend) Delete(string) error        { return errors.New("disk on fire") }
func (failingBackend) Close() error               { return nil }

func sampleConversations() []model.Conversation {
	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	return []model.Conversation{
		{
			ID:    "conv_1",
			Title: "Efficacy claims",
			Messages: []model.Message{
				{ID: "1", Role: model.RoleUser, Content: "Check this claim", Status: model.StatusFinal, CreatedAt: created,
					Attachments: []model.Attachment{{Kind: model.AttachmentFile, Title: "ad.pdf", Content: "text", SourceMessageID: "1"}}},
				{ID: "2", Role: model.RoleAssistant, Content: "OK", Status: model.StatusFinal, CreatedAt: created,
					Analysis:  &model.AnalysisResult{Summary: "fine", ApprovedClaims: []string{"a"}, Issues: []string{"b"}},
					Citations: []model.Citation{{Number: 1, Title: "FDA", URL: "https://fda.gov"}}},
			},
			Pinned:    true,
			CreatedAt: created,
			UpdatedAt: created.Add(time.Minute),
		},
		{ID: "conv_2", Title: model.SentinelTitle, Messages: []model.Message{}, CreatedAt: created, UpdatedAt: created},
	}
}

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	fileBackend, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	sqliteBackend, err := NewSQLiteBackend(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqliteBackend.Close() })

	return map[string]Backend{
		"memory": NewMemoryBackend(),
		"file":   fileBackend,
		"sqlite": sqliteBackend,
	}
}

// =============================================================================
// ROUND TRIP
// =============================================================================

func TestStore_RoundTrip(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := New(backend, nil)

			want := sampleConversations()
			store.Save(KeyConversations, want)
			got := Load(store, KeyConversations, []model.Conversation(nil))
			assert.Equal(t, want, got)

			store.Save(KeyConversations, []model.Conversation{})
			empty := Load(store, KeyConversations, []model.Conversation(nil))
			require.NotNil(t, empty)
			assert.Empty(t, empty)

			store.Save(KeyTheme, "dark")
			assert.Equal(t, "dark", Load(store, KeyTheme, "auto"))
		})
	}
}

func TestStore_MissingKeyReturnsDefault(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			store := New(backend, nil)
			assert.Equal(t, "auto", Load(store, KeyTheme, "auto"))
		})
	}
}

func TestStore_CorruptValueReturnsDefault(t *testing.T) {
	dir := t.TempDir()
	backend, err := NewFileBackend(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "conversations.json"), []byte("{not json"), 0600))

	store := New(backend, nil)
	got := Load(store, KeyConversations, []model.Conversation{})
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestStore_RemoveDeletesKey(t *testing.T) {
	store := New(NewMemoryBackend(), nil)
	store.Save(KeyTheme, "light")
	store.Remove(KeyTheme)
	assert.Equal(t, "auto", Load(store, KeyTheme, "auto"))
}

// =============================================================================
// FAILURE TOLERANCE
// =============================================================================

func TestStore_FailuresAreSwallowed(t *testing.T) {
	store := New(failingBackend{}, nil)

	assert.NotPanics(t, func() {
		store.Save(KeyTheme, "dark")
		store.Remove(KeyTheme)
	})
	assert.Equal(t, "auto", Load(store, KeyTheme, "auto"))
}

func TestStore_UnencodableValueIsDropped(t *testing.T) {
	backend := NewMemoryBackend()
	store := New(backend, nil)
	store.Save(KeyTheme, make(chan int))
	assert.Equal(t, 0, backend.Puts())
}

func TestStore_InvalidKey(t *testing.T) {
	backend := NewMemoryBackend()
	store := New(backend, nil)

	store.Save("../escape", "x")
	assert.Equal(t, 0, backend.Puts())
	assert.Equal(t, "def", Load(store, "../escape", "def"))
	assert.ErrorIs(t, ValidateKey("a/b"), ErrInvalidKey)
	assert.NoError(t, ValidateKey("ui.theme"))
}

func TestNoopStore(t *testing.T) {
	store := Noop(nil)
	assert.False(t, store.Available())
	store.Save(KeyTheme, "dark")
	assert.Equal(t, "auto", Load(store, KeyTheme, "auto"))
	assert.NoError(t, store.Close())

	var nilStore *Store
	assert.False(t, nilStore.Available())
}

// =============================================================================
// OPEN
// =============================================================================

func TestOpen_UnavailableMediumIsNoop(t *testing.T) {
	store := Open(Options{Dir: ""}, nil)
	assert.False(t, store.Available())

	// A regular file where the directory should be
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))
	store = Open(Options{Dir: filepath.Join(blocker, "sub")}, nil)
	assert.False(t, store.Available())
}

func TestOpen_Drivers(t *testing.T) {
	fileStore := Open(Options{Dir: t.TempDir(), Driver: DriverFile}, nil)
	require.True(t, fileStore.Available())
	fileStore.Save(KeyTheme, "light")
	assert.Equal(t, "light", Load(fileStore, KeyTheme, ""))

	sqliteStore := Open(Options{Dir: t.TempDir(), Driver: DriverSQLite}, nil)
	require.True(t, sqliteStore.Available())
	defer sqliteStore.Close()
	sqliteStore.Save(KeyTheme, "dark")
	assert.Equal(t, "dark", Load(sqliteStore, KeyTheme, ""))
}

func TestFileBackend_Closed(t *testing.T) {
	b, err := NewFileBackend(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, b.Close())

	_, err = b.Get("x")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Put("x", nil), ErrClosed)
}

func TestSQLiteBackend_Persists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")

	b, err := NewSQLiteBackend(path)
	require.NoError(t, err)
	require.NoError(t, b.Put("k", []byte(`"v1"`)))
	require.NoError(t, b.Put("k", []byte(`"v2"`)))
	require.NoError(t, b.Close())

	b, err = NewSQLiteBackend(path)
	require.NoError(t, err)
	defer b.Close()

	got, err := b.Get("k")
	require.NoError(t, err)
	assert.Equal(t, `"v2"`, string(got))

	require.NoError(t, b.Delete("k"))
	_, err = b.Get("k")
	assert.ErrorIs(t, err, ErrNotFound)
}
