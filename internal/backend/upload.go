// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
)

// MaxUploadSize caps files sent for extraction (25MB).
const MaxUploadSize = 25 * 1024 * 1024

// UploadResult is the extraction response of the upload endpoint.
type UploadResult struct {
	Content   string `json:"content"`
	Filename  string `json:"filename"`
	FileID    string `json:"file_id"`
	OCRMethod string `json:"ocr_method"`
	IsImage   bool   `json:"is_image"`
}

// Upload sends a file for content extraction as multipart field "file".
func (c *Client) Upload(ctx context.Context, name string, data []byte) (*UploadResult, error) {
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("upload: %s is %d bytes, limit is %d", name, len(data), MaxUploadSize)
	}
	name = filepath.Base(name)

	body, contentType, err := multipartBody(name, data)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(c.opts.UploadPath), bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	defer resp.Body.Close()

	var result UploadResult
	if err := decodeInto(resp, &result); err != nil {
		return nil, fmt.Errorf("upload %s: %w", name, err)
	}
	if result.Filename == "" {
		result.Filename = name
	}
	c.log.Debug("file extracted", "name", name, "chars", len(result.Content), "ocr", result.OCRMethod)
	return &result, nil
}

// multipartBody encodes data as a single "file" part.
func multipartBody(name string, data []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(name)))
	h.Set("Content-Type", DetectContentType(name, data))

	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// DetectContentType guesses a MIME type from the extension, then the bytes.
func DetectContentType(name string, data []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); t != "" {
		return t
	}
	return http.DetectContentType(data)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
