// SPDX-License-Identifier: MPL-2.0

// Package hookenv keeps a shell's environment in step with the toolset of its
// working directory across prompts.
//
// Each hook-env run is a fresh process. What the previous run changed is
// carried in the shell itself, in the MarkerVar variable, so the next run can
// undo exactly that and nothing the user set. Reconcile emits only the
// difference; running it twice without a directory or config change yields an
// empty Plan the second time.
package hookenv
