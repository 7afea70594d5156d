// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "dev"

// globalOptions are the persistent flags shared by all commands.
type globalOptions struct {
	configPath string
	logLevel   string
	jsonOut    bool
}

func (g *globalOptions) open() (*App, error) {
	return OpenApp(g.configPath, g.logLevel)
}

// NewRootCommand builds the eyeq command tree.
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "eyeq",
		Short: "EyeQ compliance review client",
		Long: `eyeq sends marketing copy and documents to the EyeQ compliance
review service and keeps the resulting conversations on disk.

Run without a subcommand to open the interactive interface.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd, opts)
		},
	}

	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &CommandError{Command: cmd.Name(), Code: ExitUsageError, Err: err}
	})

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (default ~/.eyeq/config.toml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&opts.jsonOut, "json", false, "print JSON where supported")

	root.AddCommand(
		newTUICommand(opts),
		newAskCommand(opts),
		newReviewCommand(opts),
		newKnowledgeCommand(opts),
		newChatCommand(opts),
		newSessionsCommand(opts),
		newExportCommand(opts),
		newFeedbackCommand(opts),
		newHealthCommand(opts),
		newConfigCommand(opts),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		return ExitCode(err)
	}
	return ExitSuccess
}
