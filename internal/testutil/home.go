// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/rtvm/rtvm/pkg/platform"
)

// SetHomeDir sets the platform's home directory variable (USERPROFILE on
// Windows, HOME elsewhere) and returns a cleanup function restoring it.
//
//	t.Cleanup(testutil.SetHomeDir(t, t.TempDir()))
func SetHomeDir(t testing.TB, dir string) func() {
	t.Helper()

	switch runtime.GOOS {
	case platform.Windows:
		return MustSetenv(t, "USERPROFILE", dir)
	default:
		return MustSetenv(t, "HOME", dir)
	}
}

// IsolateDirs points every rtvm directory and XDG base at fresh temp dirs
// so a test never reads or writes the real user environment.
func IsolateDirs(t testing.TB, root string) {
	t.Helper()

	t.Cleanup(SetHomeDir(t, root))
	for key, sub := range map[string]string{
		"RTVM_CONFIG_DIR": "config",
		"RTVM_DATA_DIR":   "data",
		"RTVM_CACHE_DIR":  "cache",
		"XDG_CONFIG_HOME": "xdg-config",
		"XDG_DATA_HOME":   "xdg-data",
	} {
		t.Cleanup(MustSetenv(t, key, filepath.Join(root, sub)))
	}
}
