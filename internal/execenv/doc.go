// SPDX-License-Identifier: MPL-2.0

// Package execenv runs a command inside a toolset's environment. Argument
// vectors are executed directly; -c strings run in an in-process POSIX shell.
package execenv
