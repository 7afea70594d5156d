// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render(label), value)
}

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope printed for --json output.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Command   string  `json:"command"`
	Data      any     `json:"data,omitempty"`
	Error     *string `json:"error,omitempty"`
	Timestamp string  `json:"timestamp"`
}

func writeJSON(w io.Writer, command string, data any, cmdErr error) error {
	resp := JSONResponse{
		Success:   cmdErr == nil,
		Command:   command,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if cmdErr != nil {
		msg := cmdErr.Error()
		resp.Error = &msg
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return cmdErr
}
