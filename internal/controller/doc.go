// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package controller turns user intents (send, regenerate, edit, feedback)
// into repository updates and backend exchanges.
//
// Each exchange walks Idle -> AwaitingConversation -> Uploading (only when a
// file is attached) -> Streaming -> Settled. Every stream event is folded
// into the conversation through Repository.ReplaceMessages in arrival
// order. Failures never escape as errors: they settle the assistant
// placeholder into an error message with a fixed apology, and the cause is
// logged and returned in Result.Err.
package controller
