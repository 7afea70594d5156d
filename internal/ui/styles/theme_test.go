// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"bytes"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewThemeFor_ForcedBackground(t *testing.T) {
	dark := NewThemeFor(&bytes.Buffer{}, ThemeDark)
	assert.True(t, dark.IsDark)
	assert.Equal(t, "dark", dark.GlamourStyle())

	light := NewThemeFor(&bytes.Buffer{}, ThemeLight)
	assert.False(t, light.IsDark)
	assert.Equal(t, "light", light.GlamourStyle())
}

func TestNewThemeFor_UnknownNameIsAuto(t *testing.T) {
	th := NewThemeFor(&bytes.Buffer{}, "neon")
	assert.Equal(t, ThemeAuto, th.Name)
	require.NotNil(t, th.Renderer())
}

func TestThemeNext_Cycles(t *testing.T) {
	name := ThemeAuto
	var seen []string
	for i := 0; i < 3; i++ {
		name = NewThemeFor(&bytes.Buffer{}, name).Next()
		seen = append(seen, name)
	}
	assert.Equal(t, []string{ThemeDark, ThemeLight, ThemeAuto}, seen)
}

func TestTheme_RendersText(t *testing.T) {
	th := NewThemeFor(&bytes.Buffer{}, ThemeDark)
	out := th.AssistantLabel.Render("EyeQ")
	assert.Contains(t, out, "EyeQ")
	assert.Equal(t, 4, lipgloss.Width(out))
}
