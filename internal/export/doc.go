// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations out of the local store.
//
// # Key Types
//
//   - Exporter: converts one conversation to bytes in a given format
//   - Options: export configuration options
//
// # Supported Formats
//
//   - Markdown: human-readable, YAML frontmatter with metadata
//   - JSON: the stored conversation record, verbatim
//   - YAML: the same record as YAML
//   - HTML: message content rendered from markdown, styled for browsers
//
// # Usage
//
//	exp, err := export.ForFormat("md", nil)
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(conv, exp, opts)
package export
