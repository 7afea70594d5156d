// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/eyeq-tui/internal/backend"
	"github.com/jeranaias/eyeq-tui/internal/model"
)

const (
	// FileContentStart and FileContentEnd frame extracted file text in the
	// outbound message.
	FileContentStart = "=== FILE CONTENT ==="
	FileContentEnd   = "=== END FILE CONTENT ==="

	// extractionFailedFormat replaces file text that could not be extracted.
	extractionFailedFormat = "[File: %s - Content extraction failed]"
)

// FileInput is a local file attached to a send.
type FileInput struct {
	Name string
	Data []byte
}

// ReadFileInput loads path for attaching to a message.
func ReadFileInput(path string) (*FileInput, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	if info.Size() > backend.MaxUploadSize {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d", path, info.Size(), backend.MaxUploadSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &FileInput{Name: filepath.Base(path), Data: data}, nil
}

// ExtractionPlaceholder is the file text used when extraction fails.
func ExtractionPlaceholder(name string) string {
	return fmt.Sprintf(extractionFailedFormat, name)
}

// ingest uploads in for extraction. It never fails: a failed or empty
// extraction yields a placeholder so the send can continue without it.
func (c *Controller) ingest(ctx context.Context, in *FileInput) *model.UploadedFile {
	f := &model.UploadedFile{
		ID:         uuid.NewString(),
		Name:       in.Name,
		Size:       int64(len(in.Data)),
		Type:       backend.DetectContentType(in.Name, in.Data),
		UploadedAt: time.Now(),
		IsLocal:    true,
	}

	res, err := c.backend.Upload(ctx, in.Name, in.Data)
	switch {
	case err != nil:
		c.log.Warn("file extraction failed, sending placeholder", "file", in.Name, "error", err)
		f.Content = ExtractionPlaceholder(in.Name)
	case strings.TrimSpace(res.Content) == "":
		c.log.Warn("file extraction returned no text, sending placeholder", "file", in.Name)
		f.Content = ExtractionPlaceholder(in.Name)
		f.IsImage = res.IsImage
	default:
		f.Content = res.Content
		f.IsImage = res.IsImage
		f.OCRMethod = res.OCRMethod
	}
	return f
}

// ComposePayload builds the outbound message text from the user's text,
// any extracted file content and text attachments.
func ComposePayload(text, fileContent string, attachments []model.Attachment) string {
	var sb strings.Builder
	sb.WriteString(text)

	for _, a := range attachments {
		if strings.TrimSpace(a.Content) == "" {
			continue
		}
		sb.WriteString("\n\n")
		if a.Title != "" {
			sb.WriteString("[" + a.Title + "]\n")
		}
		sb.WriteString(a.Content)
	}

	if fileContent != "" {
		sb.WriteString("\n\n")
		sb.WriteString(FileContentStart)
		sb.WriteString("\n")
		sb.WriteString(fileContent)
		sb.WriteString("\n")
		sb.WriteString(FileContentEnd)
	}
	return sb.String()
}
