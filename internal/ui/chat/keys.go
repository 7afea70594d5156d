// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat interface.
type KeyMap struct {
	Submit     key.Binding
	Cancel     key.Binding
	Quit       key.Binding
	NewChat    key.Binding
	Regenerate key.Binding
	Edit       key.Binding
	Pin        key.Binding
	Theme      key.Binding
	Delete     key.Binding
	PrevConv   key.Binding
	NextConv   key.Binding
	Like       key.Binding
	Dislike    key.Binding
	PageUp     key.Binding
	PageDown   key.Binding
}

// DefaultKeyMap returns the default key bindings for the chat interface.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		Regenerate: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "regenerate"),
		),
		Edit: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("C-e", "edit last"),
		),
		Pin: key.NewBinding(
			key.WithKeys("ctrl+p"),
			key.WithHelp("C-p", "pin"),
		),
		Theme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "theme"),
		),
		Delete: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "delete"),
		),
		PrevConv: key.NewBinding(
			key.WithKeys("alt+up"),
			key.WithHelp("A-up", "prev chat"),
		),
		NextConv: key.NewBinding(
			key.WithKeys("alt+down"),
			key.WithHelp("A-down", "next chat"),
		),
		Like: key.NewBinding(
			key.WithKeys("alt+l"),
			key.WithHelp("A-l", "like"),
		),
		Dislike: key.NewBinding(
			key.WithKeys("alt+d"),
			key.WithHelp("A-d", "dislike"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
	}
}

// ShortHelp returns the bindings shown in the status bar.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NewChat, k.Regenerate, k.Edit, k.Pin, k.Theme, k.Quit}
}
