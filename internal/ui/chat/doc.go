// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the full-screen chat view for the EyeQ TUI.

The chat package is a Bubble Tea model over a conversation repository and
a controller. It never holds conversation state of its own: every render
reads the repository, and every user intent is dispatched to the
controller on a tea.Cmd goroutine.

# Key Components

## Model (model.go)

  - Sidebar of conversations, pinned first
  - Viewport with the active conversation's messages
  - Composer (textarea) with an edit mode for the last user message
  - Spinner shown while an exchange is loading or streaming

## Events (events.go)

Repository change events are queued by a subscriber and drained into
RepoEventsMsg, so streaming chunks re-render the view as they land.

## Keys (keys.go)

	Enter       send (or resend when editing)
	Alt+Enter   newline
	Ctrl+N      back to the homepage
	Ctrl+R      regenerate the last response
	Ctrl+E      edit the last message
	Ctrl+P      pin or unpin
	Ctrl+T      cycle theme
	Ctrl+X      delete conversation
	Alt+Up/Down previous or next conversation
	Alt+L/D     like or dislike the last response
	Esc         cancel edit, then cancel the exchange
	Ctrl+C      quit

A composer line of the form "/attach <path>" picks a file for the next send.
*/
package chat
