// EyeQ - terminal client for the EyeQ compliance review service.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"os"

	"github.com/jeranaias/eyeq-tui/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

func main() {
	cli.Version = Version + " (" + GitCommit + ")"
	os.Exit(cli.Execute())
}
