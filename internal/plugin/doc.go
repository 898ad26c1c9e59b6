// SPDX-License-Identifier: MPL-2.0

// Package plugin adapts per-tool installers to a common interface.
//
// A plugin knows how to list the versions a tool publishes, which versions are
// present on disk, how to install one, where its executables live and which
// extra environment variables it needs. ScriptPlugin implements the interface
// over an asdf-compatible directory of executable scripts; Registry finds plugins
// by name. Remote version lists are cached on disk by RemoteCache.
package plugin
