// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/jeranaias/eyeq-tui/internal/util"
)

// FileBackend stores each key as <dir>/<key>.json.
type FileBackend struct {
	mu     sync.Mutex
	dir    string
	closed bool
}

// NewFileBackend creates the directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &FileBackend{dir: dir}, nil
}

// Dir returns the backing directory.
func (b *FileBackend) Dir() string {
	return b.dir
}

// Get implements Backend.
func (b *FileBackend) Get(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// Put implements Backend.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func (b *FileBackend) Put(key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	return util.AtomicWriteFileWithDir(b.path(key), data, 0600, 0700)
}

// Delete implements Backend.
func (b *FileBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := os.Remove(b.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Close implements Backend.
func (b *FileBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, key+".json")
}
