// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/jeranaias/eyeq-tui/internal/backend"
	"github.com/jeranaias/eyeq-tui/internal/config"
	"github.com/jeranaias/eyeq-tui/internal/controller"
	"github.com/jeranaias/eyeq-tui/internal/conversation"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitConfigError  = 3
	ExitNetworkError = 5
	ExitNotFound     = 7
	ExitTimeout      = 8
)

// =============================================================================
// COMMAND ERRORS
// =============================================================================

// CommandError carries the exit code a failed command should produce.
type CommandError struct {
	Command string
	Code    int
	Err     error
}

func (e *CommandError) Error() string {
	if e.Command == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

func usageError(command, format string, args ...any) error {
	return &CommandError{Command: command, Code: ExitUsageError, Err: fmt.Errorf(format, args...)}
}

func configError(err error) error {
	return &CommandError{Command: "config", Code: ExitConfigError, Err: err}
}

// ExitCode maps an error returned by a command to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.Code != 0 {
		return cmdErr.Code
	}

	var validate config.ValidateErrors
	var statusErr *backend.StatusError
	var netErr net.Error

	switch {
	case errors.As(err, &validate):
		return ExitConfigError
	case errors.Is(err, conversation.ErrNotFound), errors.Is(err, controller.ErrMessageNotFound):
		return ExitNotFound
	case errors.Is(err, backend.ErrIdleTimeout), errors.Is(err, context.DeadlineExceeded):
		return ExitTimeout
	case errors.Is(err, backend.ErrUnhealthy), errors.Is(err, backend.ErrNotConfigured),
		errors.As(err, &statusErr), errors.As(err, &netErr):
		return ExitNetworkError
	}
	return ExitGeneralError
}
