// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// UploadedFile is a file picked for the next send. It lives only for the
// process lifetime and is never written to the persistent store.
type UploadedFile struct {
	ID         string
	Name       string
	Size       int64
	Type       string
	UploadedAt time.Time
	Content    string
	IsLocal    bool
	IsImage    bool
	OCRMethod  string
}
