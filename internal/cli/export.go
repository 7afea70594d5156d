// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/eyeq-tui/internal/export"
)

func newExportCommand(opts *globalOptions) *cobra.Command {
	var (
		format string
		outDir string
		open   bool
		theme  string
	)

	cmd := &cobra.Command{
		Use:   "export <conversation-id>",
		Short: "Export a conversation to a file",
		Long: fmt.Sprintf(`Export a conversation as %s.
Use --out - to write to stdout instead of a file.`, strings.Join(export.Formats(), ", ")),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(opts, func(app *App) error {
				conv, ok := app.Repo.Get(args[0])
				if !ok {
					return notFound("export", args[0])
				}

				eo := export.DefaultOptions()
				eo.OutputDir = outDir
				eo.OpenAfterExport = open
				if theme != "" {
					eo.Theme = theme
				}
				exporter, err := export.ForFormat(format, eo)
				if err != nil {
					return usageError("export", "%v", err)
				}

				if outDir == "-" {
					data, err := exporter.Export(conv)
					if err != nil {
						return err
					}
					_, err = cmd.OutOrStdout().Write(data)
					return err
				}

				path, err := export.ExportToFile(conv, exporter, eo)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "md", "output format")
	f.StringVarP(&outDir, "out", "o", "", "output directory (default: current directory)")
	f.BoolVar(&open, "open", false, "open the file after exporting")
	f.StringVar(&theme, "theme", "", "HTML theme: dark or light")
	return cmd
}
