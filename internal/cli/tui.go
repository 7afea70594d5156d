// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/eyeq-tui/internal/config"
	"github.com/jeranaias/eyeq-tui/internal/ui/chat"
)

func newTUICommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive review interface (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}
}

// runTUI opens the full-screen interface and forwards config file changes
// into it until the user quits.
func runTUI(cmd *cobra.Command, opts *globalOptions) error {
	if !IsTTY() {
		return usageError("tui", "the interactive interface needs a terminal; try 'eyeq ask' or 'eyeq chat'")
	}

	app, err := opts.open()
	if err != nil {
		return err
	}
	defer app.Close()

	m := chat.New(app.Repo, app.Controller, chat.Options{
		Theme:          app.Config.UI.Theme,
		RenderMarkdown: app.Config.UI.RenderMarkdown,
		Logger:         app.Log,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())

	watchPath := app.ConfigPath
	if watchPath == "" {
		watchPath, _ = config.ConfigPathTOML()
	}
	if watchPath != "" {
		w, err := config.Watch(watchPath, 0, func(cfg *config.Config, err error) {
			p.Send(chat.ConfigChangedMsg{Config: cfg, Err: err})
		})
		if err != nil {
			app.Log.Debug("config watch disabled", "path", watchPath, "error", err)
		} else {
			defer w.Close()
		}
	}

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run interface: %w", err)
	}
	return nil
}
