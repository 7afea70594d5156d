// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/eyeq-tui/internal/config"
)

func newConfigCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or create the configuration file",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return configError(err)
			}
			if opts.jsonOut {
				return writeJSON(cmd.OutOrStdout(), "config show", cfg, nil)
			}
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}

	path := &cobra.Command{
		Use:   "path",
		Short: "Print the configuration file in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := config.ResolvePath(opts.configPath)
			if p == "" {
				def, err := config.ConfigPathTOML()
				if err != nil {
					return configError(err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), def, dimStyle.Render("(not created; defaults in use)"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), p)
			return nil
		},
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p := opts.configPath
			if p == "" {
				def, err := config.ConfigPathTOML()
				if err != nil {
					return configError(err)
				}
				p = def
			}
			if _, err := os.Stat(p); err == nil && !force {
				return usageError("config init", "%s already exists (use --force to overwrite)", p)
			}
			if err := config.SaveTOML(config.Default(), p); err != nil {
				return configError(err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("Wrote"), p)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	cmd.AddCommand(show, path, initCmd)
	return cmd
}
