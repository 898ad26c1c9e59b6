// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the rtvm command tree.
//
// App is the composition root: it owns the process's stdio, environment and
// working directory, loads settings once per invocation and assembles a
// toolset.Engine for the command being run. Commands that a shell hook
// evaluates write only shell statements to stdout; everything else goes to
// stderr.
package cmd
