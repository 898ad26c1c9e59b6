// SPDX-License-Identifier: MPL-2.0

// Package config handles rtvm settings using Viper with CUE as the file format.
//
// Settings are loaded from config.cue in the rtvm configuration directory
// ($RTVM_CONFIG_DIR, else $XDG_CONFIG_HOME/rtvm on Linux, ~/Library/Application
// Support/rtvm on macOS, %APPDATA%\rtvm on Windows) and validated against an
// embedded CUE schema. Every scalar setting can be overridden by an RTVM_*
// environment variable, which takes precedence over the file.
//
// The loaded Config is read-only to the rest of rtvm: the toolset engine consumes
// jobs, missing_runtime_behavior, aliases, tools and the remote-list staleness
// duration without ever writing them back.
package config
