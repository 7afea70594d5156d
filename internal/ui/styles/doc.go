// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the EyeQ TUI.

Colors are lipgloss AdaptiveColor values. A Theme binds them to a
lipgloss renderer whose dark/light setting comes from the theme name:

	auto  - follow the terminal background (termenv detection)
	dark  - force the dark palette
	light - force the light palette

Usage:

	theme := styles.NewTheme(repo.Theme())
	label := theme.AssistantLabel.Render("EyeQ")
	repo.SetTheme(theme.Next())
*/
package styles
