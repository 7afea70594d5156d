// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the eyeq command line.
//
// Running eyeq with no subcommand opens the interactive review TUI. The
// other commands drive the same conversation repository and controller
// without the full-screen interface:
//
//	eyeq ask "Is this claim compliant?" --file ad.pdf
//	eyeq review --file brochure.pdf --product "Glare Guard"
//	eyeq knowledge superlative claims
//	eyeq chat                       # line-oriented REPL
//	eyeq sessions list|show|rename|pin|delete|clear
//	eyeq export <conversation-id> --format html
//	eyeq feedback <message-id> liked
//	eyeq health
//	eyeq config show|path|init
//
// Global flags:
//
//	--config <path>     config file (default ~/.eyeq/config.toml)
//	--log-level <lvl>   overrides logging.level
//	--json              JSON output for list, show, knowledge, health and config show
//
// Exit codes follow the table in errors.go so scripts can tell a
// configuration problem from an unreachable backend.
package cli
