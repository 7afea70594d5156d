// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme. They match the ui.theme config values.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds all the styled components for the application.
type Theme struct {
	// Name is the requested theme; IsDark is what it resolved to.
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	renderer *lipgloss.Renderer

	// ==========================================================================
	// LAYOUT STYLES
	// ==========================================================================

	Header       lipgloss.Style
	HeaderTitle  lipgloss.Style
	Sidebar      lipgloss.Style
	Conversation lipgloss.Style
	Composer     lipgloss.Style
	StatusBar    lipgloss.Style

	// ==========================================================================
	// SIDEBAR STYLES
	// ==========================================================================

	SessionItem         lipgloss.Style
	SessionItemSelected lipgloss.Style
	SessionPinned       lipgloss.Style
	SessionMeta         lipgloss.Style

	// ==========================================================================
	// MESSAGE STYLES
	// ==========================================================================

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	Timestamp      lipgloss.Style
	ErrorMessage   lipgloss.Style
	PartialText    lipgloss.Style
	Streaming      lipgloss.Style

	// ==========================================================================
	// ANALYSIS STYLES
	// ==========================================================================

	AnalysisTitle lipgloss.Style
	Approved      lipgloss.Style
	Issue         lipgloss.Style
	Citation      lipgloss.Style

	// ==========================================================================
	// MISC
	// ==========================================================================

	Spinner     lipgloss.Style
	ShortcutKey lipgloss.Style
	ShortcutDsc lipgloss.Style
	Welcome     lipgloss.Style
	ErrorStyle  lipgloss.Style
}

// NewTheme creates a theme for stdout. "auto" follows the terminal background.
func NewTheme(name string) *Theme {
	return NewThemeFor(os.Stdout, name)
}

// NewThemeFor creates a theme rendering to w.
func NewThemeFor(w io.Writer, name string) *Theme {
	r := lipgloss.NewRenderer(w)

	switch name {
	case ThemeDark:
		r.SetHasDarkBackground(true)
	case ThemeLight:
		r.SetHasDarkBackground(false)
	default:
		name = ThemeAuto
	}

	t := &Theme{
		Name:         name,
		IsDark:       r.HasDarkBackground(),
		ColorProfile: r.ColorProfile(),
		renderer:     r,
	}
	t.initStyles()
	return t
}

// Next returns the theme name that follows t in the auto -> dark -> light cycle.
func (t *Theme) Next() string {
	switch t.Name {
	case ThemeAuto:
		return ThemeDark
	case ThemeDark:
		return ThemeLight
	default:
		return ThemeAuto
	}
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

// Renderer returns the lipgloss renderer the styles were built on.
func (t *Theme) Renderer() *lipgloss.Renderer {
	return t.renderer
}

func (t *Theme) initStyles() {
	s := t.renderer.NewStyle

	t.Header = s().
		Bold(true).
		Foreground(Cyan).
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = s().Bold(true).Foreground(Purple)

	t.Sidebar = s().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)
	t.Conversation = s().PaddingLeft(1)
	t.Composer = s().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay)
	t.StatusBar = s().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.SessionItem = s().Foreground(TextPrimary)
	t.SessionItemSelected = s().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true)
	t.SessionPinned = s().Foreground(Amber)
	t.SessionMeta = s().Foreground(TextMuted)

	t.UserLabel = s().Bold(true).Foreground(Cyan)
	t.AssistantLabel = s().Bold(true).Foreground(Purple)
	t.Timestamp = s().Foreground(TextMuted)
	t.ErrorMessage = s().Foreground(Rose)
	t.PartialText = s().Foreground(TextMuted).Italic(true)
	t.Streaming = s().Foreground(Amber)

	t.AnalysisTitle = s().Bold(true).Foreground(TextSecondary)
	t.Approved = s().Foreground(Emerald)
	t.Issue = s().Foreground(Rose)
	t.Citation = s().Foreground(TextMuted).Underline(true)

	t.Spinner = s().Foreground(Purple)
	t.ShortcutKey = s().Bold(true).Foreground(Cyan)
	t.ShortcutDsc = s().Foreground(TextMuted)
	t.Welcome = s().Foreground(TextSecondary).Padding(1, 2)
	t.ErrorStyle = s().Bold(true).Foreground(Rose)
}
