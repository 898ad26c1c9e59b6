// SPDX-License-Identifier: MPL-2.0

// Package toolspec defines version specs: a plugin name paired with a version
// requirement, as parsed from CLI arguments, version files, and configuration.
//
// Specs are immutable once parsed. Several specs for the same plugin may coexist
// while they are being collected from different sources; only one of them
// survives toolset resolution.
package toolspec
