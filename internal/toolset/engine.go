// SPDX-License-Identifier: MPL-2.0

package toolset

import (
	"context"
	"errors"

	"github.com/rtvm/rtvm/internal/config"
	"github.com/rtvm/rtvm/pkg/toolspec"
)

// Engine runs one full resolution pass: collect, resolve, install, build.
type Engine struct {
	Sources   *Sources
	Installer *Installer
}

// Resolve collects and resolves specs for cwd without touching installs.
// A malformed spec anywhere aborts the pass.
func (e *Engine) Resolve(ctx context.Context, cwd string, args []toolspec.VersionSpec) (*Toolset, error) {
	specs, aliases, err := e.Sources.Collect(ctx, cwd, args)
	if err != nil {
		return nil, err
	}
	return Resolve(specs, aliases), nil
}

// Toolset resolves cwd and applies the installer's policy. A non-nil
// toolset is returned alongside an *InstallError.
func (e *Engine) Toolset(ctx context.Context, cwd string, args []toolspec.VersionSpec) (*Toolset, error) {
	ts, err := e.Resolve(ctx, cwd, args)
	if err != nil {
		return nil, err
	}
	return e.Installer.EnsureInstalled(ctx, ts)
}

// Inspect resolves cwd and marks what is installed, never installing and
// never warning. It backs listing commands.
func (e *Engine) Inspect(ctx context.Context, cwd string, args []toolspec.VersionSpec) (*Toolset, error) {
	ts, err := e.Resolve(ctx, cwd, args)
	if err != nil {
		return nil, err
	}
	quiet := *e.Installer
	quiet.Policy = config.Ignore
	return quiet.EnsureInstalled(ctx, ts)
}

// Env runs Toolset and builds the patch for whatever ended up installed.
// The patch is valid even when the error reports install or plugin failures.
func (e *Engine) Env(ctx context.Context, cwd string, args []toolspec.VersionSpec) (*Toolset, *EnvPatch, error) {
	ts, err := e.Toolset(ctx, cwd, args)
	if ts == nil {
		return nil, nil, err
	}
	patch, envErr := BuildEnv(ctx, e.Installer.Registry, ts)
	return ts, patch, errors.Join(err, envErr)
}
