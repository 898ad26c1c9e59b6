// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package plugin

// installLock is a no-op where flock is unavailable. Installs of one version
// are still de-duplicated within a process by the installer.
type installLock struct{}

func acquireInstallLock(string) (*installLock, error) { return &installLock{}, nil }

// Release is a no-op.
func (l *installLock) Release() {}
