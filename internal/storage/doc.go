// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides best-effort local persistence for eyeq.
//
// A Store wraps a key-value Backend and never surfaces failures to its
// callers: Load returns the caller's default on a missing key or corrupt
// value, and Save logs write errors instead of returning them.
//
// # Backends
//
//   - FileBackend: one JSON file per key under a directory, written atomically
//   - SQLiteBackend: a single kv table in a SQLite database (modernc.org/sqlite)
//   - MemoryBackend: in-process map, used by tests
//
// Open picks a backend from Options and falls back to a no-op store when the
// storage directory cannot be created or written.
//
// # Usage
//
//	store := storage.Open(storage.Options{Dir: dir, Driver: "file"}, logger)
//	convs := storage.Load(store, storage.KeyConversations, []model.Conversation{})
//	store.Save(storage.KeyConversations, convs)
package storage
