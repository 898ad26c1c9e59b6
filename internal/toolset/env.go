// SPDX-License-Identifier: MPL-2.0

package toolset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rtvm/rtvm/internal/plugin"
)

// EnvPatch is the environment a toolset contributes: directories to put in
// front of PATH and extra variables. Vars keeps insertion order.
type EnvPatch struct {
	PathPrepend []string
	Vars        *orderedmap.OrderedMap[string, string]
}

// NewEnvPatch returns an empty patch.
func NewEnvPatch() *EnvPatch {
	return &EnvPatch{Vars: orderedmap.New[string, string]()}
}

// IsEmpty reports whether the patch changes nothing.
func (p *EnvPatch) IsEmpty() bool {
	return p == nil || (len(p.PathPrepend) == 0 && p.Vars.Len() == 0)
}

// Keys returns variable names in insertion order.
func (p *EnvPatch) Keys() []string {
	if p == nil {
		return nil
	}
	keys := make([]string, 0, p.Vars.Len())
	for pair := p.Vars.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Get returns the value of a patch variable.
func (p *EnvPatch) Get(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	return p.Vars.Get(name)
}

// Equal reports whether both patches have the same PATH prefix and the same
// variables in the same order.
func (p *EnvPatch) Equal(other *EnvPatch) bool {
	if p.IsEmpty() || other.IsEmpty() {
		return p.IsEmpty() == other.IsEmpty()
	}
	if !slices.Equal(p.PathPrepend, other.PathPrepend) || !slices.Equal(p.Keys(), other.Keys()) {
		return false
	}
	for pair := p.Vars.Oldest(); pair != nil; pair = pair.Next() {
		if v, _ := other.Vars.Get(pair.Key); v != pair.Value {
			return false
		}
	}
	return true
}

// BuildEnv computes the patch for ts. Tools that are not installed and
// system tools contribute nothing. Bin paths follow toolset order, so earlier
// plugins win PATH lookups; a directory listed twice is kept at its first
// position. Exec-env variables are merged with the last writer winning.
//
// A plugin that fails to report its paths or variables is skipped and the
// error joined into the result; the patch still holds every other tool.
func BuildEnv(ctx context.Context, reg plugin.Registry, ts *Toolset) (*EnvPatch, error) {
	patch := NewEnvPatch()
	seen := map[string]bool{}
	var errs []error

	for _, tool := range ts.Tools() {
		if !tool.Installed || tool.IsSystem() {
			continue
		}
		p, err := reg.Get(tool.Plugin)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		bins, err := p.BinPaths(ctx, tool.Version)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: bin paths: %w", tool, err))
			continue
		}
		env, err := p.ExecEnv(ctx, tool.Version)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: exec env: %w", tool, err))
			continue
		}

		for _, dir := range bins {
			if seen[dir] {
				continue
			}
			seen[dir] = true
			patch.PathPrepend = append(patch.PathPrepend, dir)
		}

		names := make([]string, 0, len(env))
		for name := range env {
			if name == "PATH" {
				continue
			}
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			if prev, ok := patch.Vars.Get(name); ok && prev != env[name] {
				slog.Debug("exec-env variable overwritten", "name", name, "tool", tool.String())
			}
			patch.Vars.Set(name, env[name])
		}
	}

	return patch, errors.Join(errs...)
}
