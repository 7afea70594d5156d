// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/jeranaias/eyeq-tui/internal/util"
)

// Driver names accepted by Open.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Options selects and locates a backend.
type Options struct {
	// Dir is the storage directory. Empty means no medium is available.
	Dir string

	// Driver is "file" (default) or "sqlite".
	Driver string
}

// Open returns a Store for opts. It never fails: when the medium is
// unavailable or the backend cannot be opened, the returned store is a
// no-op and the reason is logged.
func Open(opts Options, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if !util.WritableDir(opts.Dir) {
		logger.Warn("storage medium unavailable, persistence disabled", "dir", opts.Dir)
		return Noop(logger)
	}

	switch strings.ToLower(opts.Driver) {
	case DriverSQLite:
		b, err := NewSQLiteBackend(filepath.Join(opts.Dir, "eyeq.db"))
		if err != nil {
			logger.Error("failed to open sqlite store, persistence disabled", "error", err)
			return Noop(logger)
		}
		return New(b, logger)
	default:
		b, err := NewFileBackend(opts.Dir)
		if err != nil {
			logger.Error("failed to open file store, persistence disabled", "error", err)
			return Noop(logger)
		}
		return New(b, logger)
	}
}
