// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package backend is the HTTP client for the EyeQ compliance-analysis service.
//
// Analyze streams a response framed as "data: <json>" lines and reports
// chunk, done and error events through a callback. Upload, Feedback and
// Health are plain request/response calls with retry and backoff.
//
// Example:
//
//	client := backend.New(backend.Options{BaseURL: "http://127.0.0.1:5000"})
//	err := client.Analyze(ctx, backend.AnalyzeRequest{Message: "Check this claim"},
//		func(ev backend.Event) {
//			if ev.Kind == backend.EventChunk {
//				fmt.Print(ev.Chunk)
//			}
//		})
package backend
