// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package controller

// Phase is where a conversation's current exchange stands.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingConversation
	PhaseUploading
	PhaseStreaming
	PhaseSettledSuccess
	PhaseSettledError
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingConversation:
		return "awaiting-conversation"
	case PhaseUploading:
		return "uploading"
	case PhaseStreaming:
		return "streaming"
	case PhaseSettledSuccess:
		return "settled-success"
	case PhaseSettledError:
		return "settled-error"
	default:
		return "unknown"
	}
}

// Busy reports whether an exchange is still running in this phase.
func (p Phase) Busy() bool {
	return p == PhaseAwaitingConversation || p == PhaseUploading || p == PhaseStreaming
}

// Settled reports whether the exchange has finished.
func (p Phase) Settled() bool {
	return p == PhaseSettledSuccess || p == PhaseSettledError
}
