// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
)

// Well-known keys.
const (
	KeyConversations = "conversations"
	KeyTheme         = "ui.theme"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrNotFound is returned by a Backend when a key has no value.
	ErrNotFound = errors.New("key not found")

	// ErrInvalidKey is returned for keys that cannot be mapped to storage.
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrClosed is returned by a Backend after Close.
	ErrClosed = errors.New("store closed")
)

var validKey = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// ValidateKey checks that key is usable by every backend.
func ValidateKey(key string) error {
	if !validKey.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is a raw key-value medium.
type Backend interface {
	// Get returns the stored bytes for key or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put stores data under key, replacing any previous value.
	Put(key string, data []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(key string) error

	// Close releases resources.
	Close() error
}

// =============================================================================
// STORE
// =============================================================================

// Store is the best-effort persistence facade used by the rest of the app.
// A Store with a nil backend is a valid no-op store.
type Store struct {
	backend Backend
	log     *slog.Logger
}

// New wraps backend. A nil backend yields a no-op store.
func New(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{backend: backend, log: logger.With("component", "storage")}
}

// Noop returns a store that loads defaults and drops writes.
func Noop(logger *slog.Logger) *Store {
	return New(nil, logger)
}

// Available reports whether writes reach a real medium.
func (s *Store) Available() bool {
	return s != nil && s.backend != nil
}

// Save serializes value as JSON and writes it under key. Failures are
// logged and swallowed.
func (s *Store) Save(key string, value any) {
	if !s.Available() {
		return
	}
	if err := ValidateKey(key); err != nil {
		s.log.Error("save rejected", "key", key, "error", err)
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		s.log.Error("failed to encode value", "key", key, "error", err)
		return
	}
	if err := s.backend.Put(key, data); err != nil {
		s.log.Error("failed to write value", "key", key, "error", err)
	}
}

// Remove deletes key. Failures are logged and swallowed.
func (s *Store) Remove(key string) {
	if !s.Available() {
		return
	}
	if err := s.backend.Delete(key); err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Error("failed to delete value", "key", key, "error", err)
	}
}

// Close closes the backend.
func (s *Store) Close() error {
	if !s.Available() {
		return nil
	}
	return s.backend.Close()
}

// raw fetches the bytes for key, reporting whether a usable value exists.
func (s *Store) raw(key string) ([]byte, bool) {
	if !s.Available() {
		return nil, false
	}
	if err := ValidateKey(key); err != nil {
		s.log.Error("load rejected", "key", key, "error", err)
		return nil, false
	}
	data, err := s.backend.Get(key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.log.Warn("failed to read value", "key", key, "error", err)
		}
		return nil, false
	}
	return data, true
}

// Load decodes the value under key into a T. A missing key, a read error
// or a decode error all yield def.
func Load[T any](s *Store, key string, def T) T {
	data, ok := s.raw(key)
	if !ok {
		return def
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.log.Warn("discarding corrupt value", "key", key, "error", err)
		return def
	}
	return v
}
