// SPDX-License-Identifier: MPL-2.0

package tui

import (
	"io"
	"os"

	"golang.org/x/term"
)

// AccessibleEnvVar forces the plain line-based prompt.
const AccessibleEnvVar = "ACCESSIBLE"

// Config holds common configuration for TUI components.
type Config struct {
	// Input is where answers are read from.
	Input io.Reader
	// Output is where the prompt renders.
	Output io.Writer
	// Accessible replaces the Bubble Tea program with a plain line prompt.
	Accessible bool
	// Interactive reports whether a user can answer. Nil means detect from
	// the process's stdin and stderr.
	Interactive func() bool
}

// DefaultConfig returns the configuration for prompting on the controlling
// terminal: read stdin, render to stderr.
func DefaultConfig() Config {
	return Config{
		Input:      os.Stdin,
		Output:     os.Stderr,
		Accessible: os.Getenv(AccessibleEnvVar) != "",
	}
}

func (c Config) interactive() bool {
	if c.Interactive != nil {
		return c.Interactive()
	}
	return isTerminal(c.Input) && isTerminal(c.Output)
}

// isTerminal returns true if v is a file connected to a terminal. Pipes and
// command substitution ($()) are not terminals.
func isTerminal(v any) bool {
	f, ok := v.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}
