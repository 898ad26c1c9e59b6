// SPDX-License-Identifier: MPL-2.0

// Package platform holds the cross-platform facts rtvm needs in more than one
// place: OS names and the file names Windows refuses to create. Plugin names
// become directories under the data dir, so they are checked against the
// reserved list on every OS to keep a .tool-versions file portable.
package platform
