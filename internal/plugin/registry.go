// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/rtvm/rtvm/pkg/toolspec"
)

// DirRegistry discovers ScriptPlugins as subdirectories of a plugins directory.
// Plugin instances are created on first use and reused afterwards.
type DirRegistry struct {
	pluginsDir  string
	installsDir string
	cache       *RemoteCache
	stderr      io.Writer

	mu      sync.Mutex
	plugins map[string]*ScriptPlugin
}

// NewDirRegistry creates a registry over pluginsDir. Versions install under
// installsDir and script output goes to stderr.
func NewDirRegistry(pluginsDir, installsDir string, cache *RemoteCache, stderr io.Writer) *DirRegistry {
	if stderr == nil {
		stderr = io.Discard
	}
	return &DirRegistry{
		pluginsDir:  pluginsDir,
		installsDir: installsDir,
		cache:       cache,
		stderr:      stderr,
		plugins:     make(map[string]*ScriptPlugin),
	}
}

// Get returns the plugin in <pluginsDir>/<name>.
func (r *DirRegistry) Get(name string) (Plugin, error) {
	if err := toolspec.ValidatePluginName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.plugins[name]; ok {
		return p, nil
	}

	dir := filepath.Join(r.pluginsDir, name)
	info, err := os.Stat(dir)
	if errors.Is(err, os.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, &NotFoundError{Name: name}
	}
	if err != nil {
		return nil, fmt.Errorf("stat plugin %s: %w", name, err)
	}

	p := NewScriptPlugin(name, dir, r.installsDir, WithRemoteCache(r.cache), WithStderr(r.stderr))
	r.plugins[name] = p
	return p, nil
}

// List returns the names of plugin directories, sorted.
func (r *DirRegistry) List() ([]string, error) {
	entries, err := os.ReadDir(r.pluginsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list plugins: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && toolspec.ValidatePluginName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}
