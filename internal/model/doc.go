// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the domain types shared by the repository, the
// controller and the views.
//
// # Key Types
//
//   - Conversation: titled, ordered sequence of messages; the unit of
//     persistence and navigation
//   - Message: one user or assistant turn with a lifecycle Status
//   - Status: tagged lifecycle (loading, streaming, final, error)
//   - Attachment, AnalysisResult, Citation: optional message payloads
//   - UploadedFile: ephemeral, never persisted
//
// # Usage
//
//	conv := model.NewConversation()
//	msgs := append(conv.Messages, model.NewUserMessage("Check this claim"))
//	title := model.DeriveTitle(msgs[0].Content)
package model
