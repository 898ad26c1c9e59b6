// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/rtvm/rtvm/internal/testutil"
)

func newTestPlugin(t *testing.T, spec testutil.ScriptPlugin) (*ScriptPlugin, string) {
	t.Helper()

	root := t.TempDir()
	dir := testutil.WriteScriptPlugin(t, filepath.Join(root, "plugins"), spec)
	installs := filepath.Join(root, "installs")
	return NewScriptPlugin(spec.Name, dir, installs), installs
}

func TestScriptPlugin_ListRemoteVersions(t *testing.T) {
	t.Parallel()

	p, _ := newTestPlugin(t, testutil.ScriptPlugin{Name: "node", Versions: []string{"20.10.0", "18.19.0", "20.9.0"}})

	got, err := p.ListRemoteVersions(context.Background())
	if err != nil {
		t.Fatalf("ListRemoteVersions() returned error: %v", err)
	}
	want := []string{"18.19.0", "20.9.0", "20.10.0"}
	if !slices.Equal(got, want) {
		t.Errorf("ListRemoteVersions() = %v, want %v", got, want)
	}
}

func TestScriptPlugin_InstallLifecycle(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	log := filepath.Join(root, "install.log")
	p, installs := newTestPlugin(t, testutil.ScriptPlugin{
		Name:       "node",
		Versions:   []string{"20.10.0"},
		ExecEnv:    map[string]string{"NODE_HOME": "$ASDF_INSTALL_PATH"},
		InstallLog: log,
	})
	ctx := context.Background()

	if _, err := p.BinPaths(ctx, "20.10.0"); !errors.Is(err, ErrNotInstalled) {
		t.Errorf("BinPaths() before install error = %v, want ErrNotInstalled", err)
	}

	for range 2 {
		if err := p.Install(ctx, "20.10.0"); err != nil {
			t.Fatalf("Install() returned error: %v", err)
		}
	}

	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatalf("read install log: %v", err)
	}
	if got := strings.Count(string(data), "20.10.0"); got != 1 {
		t.Errorf("install script ran %d times, want 1", got)
	}

	installed, err := p.ListInstalledVersions(ctx)
	if err != nil {
		t.Fatalf("ListInstalledVersions() returned error: %v", err)
	}
	if !slices.Equal(installed, []string{"20.10.0"}) {
		t.Errorf("ListInstalledVersions() = %v", installed)
	}

	bins, err := p.BinPaths(ctx, "20.10.0")
	if err != nil {
		t.Fatalf("BinPaths() returned error: %v", err)
	}
	wantBin := filepath.Join(installs, "node", "20.10.0", "bin")
	if !slices.Equal(bins, []string{wantBin}) {
		t.Errorf("BinPaths() = %v, want [%s]", bins, wantBin)
	}

	env, err := p.ExecEnv(ctx, "20.10.0")
	if err != nil {
		t.Fatalf("ExecEnv() returned error: %v", err)
	}
	if got := env["NODE_HOME"]; got != filepath.Join(installs, "node", "20.10.0") {
		t.Errorf("ExecEnv()[NODE_HOME] = %q", got)
	}
	if _, ok := env["PATH"]; ok {
		t.Error("ExecEnv() must not return PATH")
	}
	if _, ok := env["ASDF_INSTALL_PATH"]; ok {
		t.Error("ExecEnv() should only return variables the script exported")
	}
}

func TestScriptPlugin_ExecEnvIgnoresCallerEnvironment(t *testing.T) {
	p, installs := newTestPlugin(t, testutil.ScriptPlugin{
		Name:     "node",
		Versions: []string{"20.10.0"},
		ExecEnv: map[string]string{
			"NODE_HOME":    "$ASDF_INSTALL_PATH",
			"NODE_OPTIONS": "${NODE_OPTIONS}--max-old-space-size=4096",
		},
	})
	ctx := context.Background()
	if err := p.Install(ctx, "20.10.0"); err != nil {
		t.Fatalf("Install() returned error: %v", err)
	}
	home := filepath.Join(installs, "node", "20.10.0")

	first, err := p.ExecEnv(ctx, "20.10.0")
	if err != nil {
		t.Fatalf("ExecEnv() returned error: %v", err)
	}

	// The caller's shell already carries the previous result.
	t.Setenv("NODE_HOME", home)
	t.Setenv("NODE_OPTIONS", first["NODE_OPTIONS"])
	t.Setenv("PATH", filepath.Join(home, "bin")+string(os.PathListSeparator)+os.Getenv("PATH"))

	second, err := p.ExecEnv(ctx, "20.10.0")
	if err != nil {
		t.Fatalf("ExecEnv() returned error: %v", err)
	}
	if !maps.Equal(first, second) {
		t.Errorf("ExecEnv() = %v after activation, want %v", second, first)
	}
	if got := second["NODE_HOME"]; got != home {
		t.Errorf("ExecEnv()[NODE_HOME] = %q, want %q", got, home)
	}
	if got, want := second["NODE_OPTIONS"], "--max-old-space-size=4096"; got != want {
		t.Errorf("ExecEnv()[NODE_OPTIONS] = %q, want %q", got, want)
	}
}

func TestExecEnvBase(t *testing.T) {
	t.Parallel()

	installs := filepath.Join(string(filepath.Separator)+"data", "installs")
	sep := string(os.PathListSeparator)
	host := map[string]string{
		"HOME":      "/home/u",
		"NODE_HOME": "/leaked",
		"PATH":      filepath.Join(installs, "node", "20", "bin") + sep + "/usr/bin" + sep + "/data/installs-other/bin",
	}

	got := execEnvBase(func(k string) string { return host[k] }, installs, []string{"ASDF_INSTALL_VERSION=20"})
	want := []string{"HOME=/home/u", "PATH=/usr/bin" + sep + "/data/installs-other/bin", "ASDF_INSTALL_VERSION=20"}
	if !slices.Equal(got, want) {
		t.Errorf("execEnvBase() = %v, want %v", got, want)
	}
}

func TestScriptPlugin_FailedInstallLeavesNothing(t *testing.T) {
	t.Parallel()

	p, installs := newTestPlugin(t, testutil.ScriptPlugin{
		Name:         "python",
		Versions:     []string{"3.12.1"},
		FailVersions: []string{"3.12.1"},
	})
	ctx := context.Background()

	err := p.Install(ctx, "3.12.1")
	var se *ScriptError
	if !errors.As(err, &se) || se.Script != "install" {
		t.Fatalf("Install() error = %v, want *ScriptError for install", err)
	}

	if _, statErr := os.Stat(filepath.Join(installs, "python", "3.12.1")); !errors.Is(statErr, os.ErrNotExist) {
		t.Errorf("partial install directory left behind: %v", statErr)
	}
	installed, _ := p.ListInstalledVersions(ctx)
	if len(installed) != 0 {
		t.Errorf("ListInstalledVersions() = %v, want none", installed)
	}
}

func TestScriptPlugin_IncompleteInstallIsNotInstalled(t *testing.T) {
	t.Parallel()

	p, installs := newTestPlugin(t, testutil.ScriptPlugin{Name: "ruby", Versions: []string{"3.3.0"}})
	testutil.MustWriteFile(t, filepath.Join(installs, "ruby", "3.3.0", incompleteMarker), "", 0o644)

	installed, err := p.ListInstalledVersions(context.Background())
	if err != nil {
		t.Fatalf("ListInstalledVersions() returned error: %v", err)
	}
	if len(installed) != 0 {
		t.Errorf("ListInstalledVersions() = %v, want none", installed)
	}

	if err := p.Install(context.Background(), "3.3.0"); err != nil {
		t.Fatalf("Install() over a partial directory returned error: %v", err)
	}
	if installed, _ = p.ListInstalledVersions(context.Background()); !slices.Equal(installed, []string{"3.3.0"}) {
		t.Errorf("ListInstalledVersions() after reinstall = %v", installed)
	}
}

func TestScriptPlugin_ConcurrentInstallRunsOnce(t *testing.T) {
	t.Parallel()

	log := filepath.Join(t.TempDir(), "install.log")
	p, _ := newTestPlugin(t, testutil.ScriptPlugin{Name: "go", Versions: []string{"1.22.0"}, InstallLog: log})

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.Install(context.Background(), "1.22.0"); err != nil {
				t.Errorf("Install() returned error: %v", err)
			}
		}()
	}
	wg.Wait()

	data, err := os.ReadFile(log)
	if err != nil {
		t.Fatalf("read install log: %v", err)
	}
	if got := strings.Count(string(data), "1.22.0"); got != 1 {
		t.Errorf("install script ran %d times, want 1", got)
	}
}

func TestScriptPlugin_RejectsEscapingVersion(t *testing.T) {
	t.Parallel()

	p, _ := newTestPlugin(t, testutil.ScriptPlugin{Name: "node"})
	for _, v := range []string{"../x", "..", ".hidden", "a/b"} {
		if err := p.Install(context.Background(), v); err == nil {
			t.Errorf("Install(%q) should fail", v)
		}
	}
}

func TestScriptPlugin_LegacyFiles(t *testing.T) {
	t.Parallel()

	p, _ := newTestPlugin(t, testutil.ScriptPlugin{Name: "node", LegacyFilenames: []string{".nvmrc", ".node-version"}})
	ctx := context.Background()

	names, err := p.LegacyFilenames(ctx)
	if err != nil {
		t.Fatalf("LegacyFilenames() returned error: %v", err)
	}
	if !slices.Equal(names, []string{".nvmrc", ".node-version"}) {
		t.Errorf("LegacyFilenames() = %v", names)
	}

	nvmrc := filepath.Join(t.TempDir(), ".nvmrc")
	testutil.MustWriteFile(t, nvmrc, "v20.10.0\n", 0o644)
	got, err := p.ParseLegacyFile(ctx, nvmrc)
	if err != nil {
		t.Fatalf("ParseLegacyFile() returned error: %v", err)
	}
	if got != "20.10.0" {
		t.Errorf("ParseLegacyFile() = %q, want %q", got, "20.10.0")
	}
}

func TestDirRegistry(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	plugins := filepath.Join(root, "plugins")
	testutil.WriteScriptPlugin(t, plugins, testutil.ScriptPlugin{Name: "python"})
	testutil.WriteScriptPlugin(t, plugins, testutil.ScriptPlugin{Name: "node"})

	r := NewDirRegistry(plugins, filepath.Join(root, "installs"), nil, nil)

	names, err := r.List()
	if err != nil {
		t.Fatalf("List() returned error: %v", err)
	}
	if !slices.Equal(names, []string{"node", "python"}) {
		t.Errorf("List() = %v", names)
	}

	a, err := r.Get("node")
	if err != nil {
		t.Fatalf("Get(node) returned error: %v", err)
	}
	b, _ := r.Get("node")
	if a != b {
		t.Error("Get() should reuse plugin instances")
	}

	if _, err := r.Get("ruby"); !errors.Is(err, ErrPluginNotFound) {
		t.Errorf("Get(ruby) error = %v, want ErrPluginNotFound", err)
	}
	if _, err := r.Get("../etc"); err == nil {
		t.Error("Get(../etc) should reject the name")
	}
}

func TestMapRegistry(t *testing.T) {
	t.Parallel()

	r := NewMapRegistry(NewScriptPlugin("b", "", ""), NewScriptPlugin("a", "", ""))
	names, _ := r.List()
	if !slices.Equal(names, []string{"a", "b"}) {
		t.Errorf("List() = %v", names)
	}

	var nf *NotFoundError
	if _, err := r.Get("c"); !errors.As(err, &nf) || nf.Name != "c" {
		t.Errorf("Get(c) error = %v, want *NotFoundError", err)
	}
}
