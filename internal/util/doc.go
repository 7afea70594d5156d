// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the eyeq packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writing with fsync, used by the
//     file-backed persistent store and config saving
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth, PadWidth: display-width aware helpers for the sidebar
//     and session listings (go-runewidth)
//
// # Usage
//
//	label := util.TruncateWidth(conv.Title, 24)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
