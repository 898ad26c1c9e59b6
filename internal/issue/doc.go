// SPDX-License-Identifier: MPL-2.0

// Package issue provides actionable error handling with user-friendly messages.
//
// ActionableError carries an operation, a resource and remediation hints for
// single-line stderr output. The Issue catalog holds longer Markdown guidance,
// rendered with glamour, for the failure classes a user can fix themselves:
// broken config, malformed version specs, missing plugins, failed installs and
// shell activation problems.
package issue
