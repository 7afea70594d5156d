// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation holds the in-memory conversation collection, the
// single source of truth for chat history.
//
// All message mutation goes through Repository.ReplaceMessages. Every change
// is handed to a background persister that coalesces snapshots, so callers
// never wait on disk. Subscribers are notified after the lock is released.
package conversation
