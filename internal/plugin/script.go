// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rtvm/rtvm/pkg/toolspec"
)

const (
	// incompleteMarker sits inside an install directory until the install script succeeds.
	incompleteMarker = ".rtvm-incomplete"

	scriptListAll        = "list-all"
	scriptInstall        = "install"
	scriptListBinPaths   = "list-bin-paths"
	scriptExecEnv        = "exec-env"
	scriptLegacyNames    = "list-legacy-filenames"
	scriptParseLegacy    = "parse-legacy-file"
	defaultBinPathSubdir = "bin"
)

// ErrScriptMissing is returned when a plugin lacks a required script.
var ErrScriptMissing = errors.New("plugin script missing")

type (
	// ScriptPlugin drives an asdf-compatible plugin directory: executables
	// under <dir>/bin named list-all, install, and optionally list-bin-paths,
	// exec-env, list-legacy-filenames and parse-legacy-file.
	ScriptPlugin struct {
		name        string
		dir         string
		installsDir string
		cache       *RemoteCache
		stderr      io.Writer
	}

	// ScriptOption configures a ScriptPlugin.
	ScriptOption func(*ScriptPlugin)

	// ScriptError reports a plugin script that exited unsuccessfully.
	ScriptError struct {
		Plugin string
		Script string
		Err    error
	}
)

// Error implements the error interface.
func (e *ScriptError) Error() string {
	return fmt.Sprintf("plugin %s: %s: %v", e.Plugin, e.Script, e.Err)
}

// Unwrap returns the underlying process error.
func (e *ScriptError) Unwrap() error { return e.Err }

// WithStderr sets where script diagnostics and install output go.
func WithStderr(w io.Writer) ScriptOption {
	return func(p *ScriptPlugin) { p.stderr = w }
}

// WithRemoteCache caches list-all output.
func WithRemoteCache(c *RemoteCache) ScriptOption {
	return func(p *ScriptPlugin) { p.cache = c }
}

// NewScriptPlugin creates a plugin named name whose scripts live in dir and
// whose versions install under installsDir/name.
func NewScriptPlugin(name, dir, installsDir string, opts ...ScriptOption) *ScriptPlugin {
	p := &ScriptPlugin{name: name, dir: dir, installsDir: installsDir, stderr: io.Discard}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the plugin name.
func (p *ScriptPlugin) Name() string { return p.name }

// InstallPath returns the directory version installs into.
func (p *ScriptPlugin) InstallPath(version string) string {
	return filepath.Join(p.installsDir, p.name, version)
}

// ListRemoteVersions runs bin/list-all, through the remote cache when configured.
func (p *ScriptPlugin) ListRemoteVersions(ctx context.Context) ([]string, error) {
	if !p.hasScript(scriptListAll) {
		return nil, fmt.Errorf("%s: %s: %w", p.name, scriptListAll, ErrScriptMissing)
	}
	fetch := func(ctx context.Context) ([]string, error) {
		out, err := p.output(ctx, nil, scriptListAll)
		if err != nil {
			return nil, err
		}
		return toolspec.SortVersions(strings.Fields(out)), nil
	}
	return p.cache.Versions(ctx, p.name, fetch)
}

// ListInstalledVersions lists complete install directories.
func (p *ScriptPlugin) ListInstalledVersions(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(p.installsDir, p.name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list installed %s versions: %w", p.name, err)
	}

	var versions []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if p.isInstalled(e.Name()) {
			versions = append(versions, e.Name())
		}
	}
	return toolspec.SortVersions(versions), nil
}

// Install runs bin/install for version under a cross-process lock. A present
// install is left alone; a failed one is removed so it never looks installed.
func (p *ScriptPlugin) Install(ctx context.Context, version string) error {
	if err := validateVersionDir(version); err != nil {
		return err
	}
	if !p.hasScript(scriptInstall) {
		return fmt.Errorf("%s: %s: %w", p.name, scriptInstall, ErrScriptMissing)
	}

	pluginInstalls := filepath.Join(p.installsDir, p.name)
	if err := os.MkdirAll(pluginInstalls, 0o755); err != nil {
		return fmt.Errorf("create installs directory: %w", err)
	}

	lock, err := acquireInstallLock(filepath.Join(pluginInstalls, "."+version+".lock"))
	if err != nil {
		return err
	}
	defer lock.Release()

	if p.isInstalled(version) {
		slog.Debug("already installed", "plugin", p.name, "version", version)
		return nil
	}

	path := p.InstallPath(version)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("remove partial install %s: %w", path, err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create install directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(path, incompleteMarker), nil, 0o644); err != nil {
		return fmt.Errorf("mark install in progress: %w", err)
	}

	slog.Info("installing", "plugin", p.name, "version", version)
	cmd := p.command(ctx, p.installEnv(version), scriptInstall)
	cmd.Stdout = p.stderr
	cmd.Stderr = p.stderr
	if err := cmd.Run(); err != nil {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			slog.Warn("could not remove failed install", "path", path, "error", rmErr)
		}
		return &ScriptError{Plugin: p.name, Script: scriptInstall, Err: err}
	}

	if err := os.Remove(filepath.Join(path, incompleteMarker)); err != nil {
		return fmt.Errorf("finish install: %w", err)
	}
	return nil
}

// BinPaths returns the directories listed by bin/list-bin-paths, or the
// install's bin/ directory when the plugin has no such script.
func (p *ScriptPlugin) BinPaths(ctx context.Context, version string) ([]string, error) {
	if !p.isInstalled(version) {
		return nil, fmt.Errorf("%s@%s: %w", p.name, version, ErrNotInstalled)
	}

	rel := []string{defaultBinPathSubdir}
	if p.hasScript(scriptListBinPaths) {
		out, err := p.output(ctx, p.installEnv(version), scriptListBinPaths)
		if err != nil {
			return nil, err
		}
		rel = strings.Fields(out)
	}

	base := p.InstallPath(version)
	paths := make([]string, 0, len(rel))
	for _, r := range rel {
		paths = append(paths, filepath.Join(base, r))
	}
	return paths, nil
}

// ExecEnv sources bin/exec-env in an embedded shell and returns the variables
// it exported. Plugins without the script need no extra variables.
func (p *ScriptPlugin) ExecEnv(ctx context.Context, version string) (map[string]string, error) {
	if !p.isInstalled(version) {
		return nil, fmt.Errorf("%s@%s: %w", p.name, version, ErrNotInstalled)
	}
	if !p.hasScript(scriptExecEnv) {
		return nil, nil
	}

	base := execEnvBase(os.Getenv, p.installsDir, p.installEnv(version))
	vars, err := sourceExports(ctx, p.script(scriptExecEnv), base, p.InstallPath(version), p.stderr)
	if err != nil {
		return nil, &ScriptError{Plugin: p.name, Script: scriptExecEnv, Err: err}
	}
	return vars, nil
}

// LegacyFilenames runs bin/list-legacy-filenames.
func (p *ScriptPlugin) LegacyFilenames(ctx context.Context) ([]string, error) {
	if !p.hasScript(scriptLegacyNames) {
		return nil, nil
	}
	out, err := p.output(ctx, nil, scriptLegacyNames)
	if err != nil {
		return nil, err
	}
	return strings.Fields(out), nil
}

// ParseLegacyFile runs bin/parse-legacy-file, or reads the first non-empty
// line of path when the plugin has no parser.
func (p *ScriptPlugin) ParseLegacyFile(ctx context.Context, path string) (string, error) {
	if p.hasScript(scriptParseLegacy) {
		out, err := p.output(ctx, nil, scriptParseLegacy, path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			return line, nil
		}
	}
	return "", scanner.Err()
}

func (p *ScriptPlugin) isInstalled(version string) bool {
	path := p.InstallPath(version)
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return false
	}
	_, err = os.Stat(filepath.Join(path, incompleteMarker))
	return errors.Is(err, os.ErrNotExist)
}

func (p *ScriptPlugin) script(name string) string {
	return filepath.Join(p.dir, "bin", name)
}

func (p *ScriptPlugin) hasScript(name string) bool {
	info, err := os.Stat(p.script(name))
	return err == nil && info.Mode().IsRegular()
}

func (p *ScriptPlugin) installEnv(version string) []string {
	path := p.InstallPath(version)
	return []string{
		"ASDF_INSTALL_TYPE=version",
		"ASDF_INSTALL_VERSION=" + version,
		"ASDF_INSTALL_PATH=" + path,
		"RTVM_INSTALL_TYPE=version",
		"RTVM_INSTALL_VERSION=" + version,
		"RTVM_INSTALL_PATH=" + path,
		"RTVM_PLUGIN_PATH=" + p.dir,
	}
}

func (p *ScriptPlugin) command(ctx context.Context, env []string, script string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, p.script(script), args...)
	cmd.Dir = p.dir
	cmd.Env = append(os.Environ(), env...)
	return cmd
}

func (p *ScriptPlugin) output(ctx context.Context, env []string, script string, args ...string) (string, error) {
	cmd := p.command(ctx, env, script, args...)
	cmd.Stderr = p.stderr
	out, err := cmd.Output()
	if err != nil {
		return "", &ScriptError{Plugin: p.name, Script: script, Err: err}
	}
	return string(out), nil
}

// validateVersionDir rejects versions that would escape the installs directory.
func validateVersionDir(version string) error {
	if version == "" || version == "." || version == ".." || strings.ContainsAny(version, `/\`) || strings.HasPrefix(version, ".") {
		return fmt.Errorf("%w: %q", toolspec.ErrInvalidRequirement, version)
	}
	return nil
}
