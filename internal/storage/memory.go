// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "sync"

// MemoryBackend keeps values in a map. Values are copied on the way in and
// out so callers cannot alias stored bytes.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	puts int
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string][]byte)}
}

// Get implements Backend.
func (b *MemoryBackend) Get(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Put implements Backend.
func (b *MemoryBackend) Put(key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = append([]byte(nil), data...)
	b.puts++
	return nil
}

// Delete implements Backend.
func (b *MemoryBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, key)
	return nil
}

// Close implements Backend.
func (b *MemoryBackend) Close() error { return nil }

// Puts returns how many writes the backend has accepted.
func (b *MemoryBackend) Puts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.puts
}
