// SPDX-License-Identifier: MPL-2.0

package toolset

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rtvm/rtvm/internal/plugin"
	"github.com/rtvm/rtvm/pkg/toolspec"
)

// fakePlugin is an in-memory plugin. Installs are recorded, never executed.
type fakePlugin struct {
	name   string
	remote []string
	fail   map[string]error
	env    map[string]string
	bins   []string
	// legacy lists file names whose trimmed contents are a version.
	legacy []string

	mu        sync.Mutex
	installed map[string]bool
	installs  map[string]int
	running   atomic.Int32
	peak      atomic.Int32
}

func newFake(name string, remote ...string) *fakePlugin {
	return &fakePlugin{
		name:      name,
		remote:    remote,
		fail:      map[string]error{},
		installed: map[string]bool{},
		installs:  map[string]int{},
	}
}

func (f *fakePlugin) withInstalled(versions ...string) *fakePlugin {
	for _, v := range versions {
		f.installed[v] = true
	}
	return f
}

func (f *fakePlugin) Name() string { return f.name }

func (f *fakePlugin) ListRemoteVersions(context.Context) ([]string, error) {
	return toolspec.SortVersions(f.remote), nil
}

func (f *fakePlugin) ListInstalledVersions(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for v := range f.installed {
		out = append(out, v)
	}
	return toolspec.SortVersions(out), nil
}

func (f *fakePlugin) Install(_ context.Context, version string) error {
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.installs[version]++
	if err := f.fail[version]; err != nil {
		return err
	}
	f.installed[version] = true
	return nil
}

func (f *fakePlugin) installCount(version string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.installs[version]
}

func (f *fakePlugin) totalInstalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.installs {
		total += n
	}
	return total
}

func (f *fakePlugin) BinPaths(_ context.Context, version string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.installed[version] {
		return nil, plugin.ErrNotInstalled
	}
	if f.bins != nil {
		return slices.Clone(f.bins), nil
	}
	return []string{filepath.Join("/opt", f.name, version, "bin")}, nil
}

func (f *fakePlugin) ExecEnv(_ context.Context, version string) (map[string]string, error) {
	out := map[string]string{}
	for k, v := range f.env {
		out[k] = strings.ReplaceAll(v, "$VERSION", version)
	}
	return out, nil
}

// legacyFake adds legacy file support to fakePlugin.
type legacyFake struct {
	*fakePlugin
}

func (f legacyFake) LegacyFilenames(context.Context) ([]string, error) {
	return f.legacy, nil
}

func (f legacyFake) ParseLegacyFile(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(strings.TrimSpace(string(data)), "v"), nil
}

type answerPrompter struct {
	answer bool
	err    error
	asked  []string
}

func (p *answerPrompter) Confirm(_ context.Context, question string) (bool, error) {
	p.asked = append(p.asked, question)
	return p.answer, p.err
}

func argSpec(plugin, req string) toolspec.VersionSpec {
	r, err := toolspec.ParseRequirement(req)
	if err != nil {
		panic(err)
	}
	return toolspec.VersionSpec{Plugin: plugin, Requirement: r, Source: toolspec.Source{Kind: toolspec.SourceArgument}}
}

func specFrom(kind toolspec.SourceKind, plugin, req string) toolspec.VersionSpec {
	spec := argSpec(plugin, req)
	spec.Source.Kind = kind
	return spec
}
