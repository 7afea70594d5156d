// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for eyeq.
//
// Configuration file locations (in order of precedence):
//   - the path passed with --config
//   - ~/.eyeq/config.toml
//   - ~/.eyeq/config.json
//   - built-in defaults
//
// A .env file in the working directory or the config directory is loaded
// before environment overrides are applied, so EYEQ_* variables can live
// next to the project. EYEQ_HOME relocates the whole config directory.
package config
