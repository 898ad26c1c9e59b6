// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"

	"mvdan.cc/sh/v3/interp"
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside 0-255.
	InvalidExitCodeError struct {
		Value ExitCode
	}

	// Result is the outcome of one command.
	Result struct {
		ExitCode ExitCode
		// Error is set when the command could not run at all.
		Error error
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the code is outside 0-255.
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }

// resultFromError maps a run error to a Result. Non-zero exits of a command
// that did run are not errors.
func resultFromError(err error) *Result {
	if err == nil {
		return &Result{}
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := ExitCode(exitErr.ExitCode())
		if code < 0 {
			// Killed by a signal.
			return &Result{ExitCode: 1, Error: err}
		}
		if validateErr := code.Validate(); validateErr != nil {
			return &Result{ExitCode: 1, Error: validateErr}
		}
		return &Result{ExitCode: code}
	}

	var status interp.ExitStatus
	if errors.As(err, &status) {
		return &Result{ExitCode: ExitCode(status)}
	}

	return &Result{ExitCode: 1, Error: err}
}
