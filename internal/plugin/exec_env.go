// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"
)

// hostEnvKeys are the only caller variables exec-env scripts see.
var hostEnvKeys = []string{"HOME", "USER", "LOGNAME", "TMPDIR", "LANG", "LC_ALL"}

// execEnvBase builds the starting environment for exec-env: a few host
// identity variables, a PATH stripped of entries under installsDir, and the
// install variables.
func execEnvBase(getenv func(string) string, installsDir string, install []string) []string {
	base := make([]string, 0, len(hostEnvKeys)+1+len(install))
	for _, key := range hostEnvKeys {
		if v := getenv(key); v != "" {
			base = append(base, key+"="+v)
		}
	}

	var path []string
	for _, entry := range filepath.SplitList(getenv("PATH")) {
		if entry == "" || isWithin(installsDir, entry) {
			continue
		}
		path = append(path, entry)
	}
	base = append(base, "PATH="+strings.Join(path, string(os.PathListSeparator)))
	return append(base, install...)
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// sourceExports runs the POSIX shell file at path with base as its initial
// environment and returns every exported string variable the script set,
// other than those already in base. PATH is left out: bin paths are the
// plugin's PATH contract.
func sourceExports(ctx context.Context, path string, base []string, dir string, stderr io.Writer) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := syntax.NewParser().Parse(f, path)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	runner, err := interp.New(
		interp.Env(expand.ListEnviron(base...)),
		interp.StdIO(nil, stderr, stderr),
		interp.Dir(dir),
	)
	if err != nil {
		return nil, fmt.Errorf("create shell: %w", err)
	}
	if err := runner.Run(ctx, file); err != nil {
		return nil, err
	}

	before := make(map[string]string, len(base))
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			before[k] = v
		}
	}

	vars := make(map[string]string)
	for name, vr := range runner.Vars {
		if name == "PATH" || !vr.Exported || !vr.IsSet() || vr.Kind != expand.String {
			continue
		}
		if old, ok := before[name]; ok && old == vr.Str {
			continue
		}
		vars[name] = vr.Str
	}
	return vars, nil
}
