// SPDX-License-Identifier: MPL-2.0

package testutil

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"testing"

	"github.com/rtvm/rtvm/pkg/platform"
)

// ScriptPlugin describes a fake plugin laid down as shell scripts.
type ScriptPlugin struct {
	// Name is the plugin directory name and the name of the installed executable.
	Name string
	// Versions are printed by bin/list-all, oldest first.
	Versions []string
	// FailVersions make bin/install exit 1 after creating a partial directory.
	FailVersions []string
	// LegacyFilenames are printed by bin/list-legacy-filenames.
	LegacyFilenames []string
	// ExecEnv lines are emitted by bin/exec-env as `export KEY="VALUE"`.
	// Values may reference $ASDF_INSTALL_PATH.
	ExecEnv map[string]string
	// InstallLog, when set, receives one line per bin/install invocation.
	InstallLog string
}

// WriteScriptPlugin writes p under pluginsDir and returns the plugin directory.
// Installed versions provide bin/<Name>, which prints "<Name> <version>".
func WriteScriptPlugin(t testing.TB, pluginsDir string, p ScriptPlugin) string {
	t.Helper()
	if runtime.GOOS == platform.Windows {
		t.Skip("script plugins require a POSIX shell")
	}

	dir := filepath.Join(pluginsDir, p.Name)
	bin := filepath.Join(dir, "bin")

	MustWriteFile(t, filepath.Join(bin, "list-all"),
		"#!/bin/sh\necho \""+strings.Join(p.Versions, " ")+"\"\n", 0o755)

	var install strings.Builder
	install.WriteString("#!/bin/sh\nset -e\n")
	if p.InstallLog != "" {
		fmt.Fprintf(&install, "echo \"$ASDF_INSTALL_VERSION\" >> %q\n", p.InstallLog)
	}
	install.WriteString("mkdir -p \"$ASDF_INSTALL_PATH/bin\"\n")
	if len(p.FailVersions) > 0 {
		install.WriteString("case \"$ASDF_INSTALL_VERSION\" in\n")
		fmt.Fprintf(&install, "  %s) echo \"cannot build $ASDF_INSTALL_VERSION\" >&2; exit 1 ;;\n",
			strings.Join(p.FailVersions, "|"))
		install.WriteString("esac\n")
	}
	fmt.Fprintf(&install, "printf '#!/bin/sh\\necho \"%s %%s\"\\n' \"$ASDF_INSTALL_VERSION\" > \"$ASDF_INSTALL_PATH/bin/%s\"\n",
		p.Name, p.Name)
	fmt.Fprintf(&install, "chmod +x \"$ASDF_INSTALL_PATH/bin/%s\"\n", p.Name)
	MustWriteFile(t, filepath.Join(bin, "install"), install.String(), 0o755)

	if len(p.ExecEnv) > 0 {
		var env strings.Builder
		env.WriteString("#!/bin/sh\n")
		keys := make([]string, 0, len(p.ExecEnv))
		for k := range p.ExecEnv {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(&env, "export %s=\"%s\"\n", k, p.ExecEnv[k])
		}
		MustWriteFile(t, filepath.Join(bin, "exec-env"), env.String(), 0o755)
	}

	if len(p.LegacyFilenames) > 0 {
		MustWriteFile(t, filepath.Join(bin, "list-legacy-filenames"),
			"#!/bin/sh\necho \""+strings.Join(p.LegacyFilenames, " ")+"\"\n", 0o755)
		MustWriteFile(t, filepath.Join(bin, "parse-legacy-file"),
			"#!/bin/sh\nsed -e 's/^v//' -e 's/[[:space:]]*$//' \"$1\" | head -n 1\n", 0o755)
	}

	return dir
}
