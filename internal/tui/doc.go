// SPDX-License-Identifier: MPL-2.0

// Package tui provides the terminal prompts rtvm shows while resolving a
// toolset, built on Bubble Tea and Lip Gloss.
//
// Prompts render to stderr so that shell hooks evaluating rtvm's stdout never
// capture them. When stdin or stderr is not a terminal, prompts report
// toolset.ErrPromptUnavailable instead of blocking.
package tui
