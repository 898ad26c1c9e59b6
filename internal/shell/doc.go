// SPDX-License-Identifier: MPL-2.0

// Package shell renders environment changes and activation hooks for bash,
// zsh, fish and elvish.
package shell
