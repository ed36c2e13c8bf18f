package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/njsecure/orbit"
)

// Exit codes.
const (
	exitSuccess     = 0
	exitError       = 1
	exitRunAborted  = 2
	exitUnhealthy   = 3
	exitCancelled   = 4
	exitConfigError = 10
	exitStoreError  = 12
)

// cliError carries an exit code.
type cliError struct {
	code    int
	message string
	cause   error
}

func (e *cliError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *cliError) Unwrap() error { return e.cause }

func newCLIError(code int, message string) *cliError {
	return &cliError{code: code, message: message}
}

// exitCode maps err to the process exit status.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}

	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}

	switch {
	case errors.Is(err, context.Canceled):
		return exitCancelled
	case errors.Is(err, orbit.ErrInvalidConfig), errors.Is(err, orbit.ErrUnknownSource):
		return exitConfigError
	case errors.Is(err, orbit.ErrStoreFailed):
		return exitStoreError
	default:
		return exitError
	}
}

// handleError prints err and returns its exit code.
func handleError(cmd *cobra.Command, err error) int {
	code := exitCode(err)
	if code == exitCancelled {
		cmd.PrintErrln("Operation cancelled")
		return code
	}
	cmd.PrintErrln("Error:", err)
	return code
}
