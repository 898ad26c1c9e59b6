// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	// ErrPluginNotFound is returned when no plugin is registered under a name.
	ErrPluginNotFound = errors.New("plugin not found")
	// ErrVersionNotFound is returned when a version is neither installed nor offered.
	ErrVersionNotFound = errors.New("version not found")
	// ErrNotInstalled is returned when querying paths of a version that is not on disk.
	ErrNotInstalled = errors.New("version not installed")
)

type (
	// Plugin is the adapter between rtvm and one tool's installer.
	// Implementations must be safe for concurrent use.
	Plugin interface {
		Name() string
		// ListRemoteVersions returns installable versions, oldest first.
		ListRemoteVersions(ctx context.Context) ([]string, error)
		// ListInstalledVersions returns fully installed versions, oldest first.
		ListInstalledVersions(ctx context.Context) ([]string, error)
		// Install installs version. Installing a present version is a no-op.
		Install(ctx context.Context, version string) error
		// BinPaths returns absolute directories to put on PATH for version.
		BinPaths(ctx context.Context, version string) ([]string, error)
		// ExecEnv returns extra variables version needs. PATH is never included.
		ExecEnv(ctx context.Context, version string) (map[string]string, error)
	}

	// LegacyFileParser is implemented by plugins that understand per-language
	// version files such as .nvmrc.
	LegacyFileParser interface {
		LegacyFilenames(ctx context.Context) ([]string, error)
		// ParseLegacyFile returns the version requirement text found in path.
		ParseLegacyFile(ctx context.Context, path string) (string, error)
	}

	// Registry looks plugins up by name.
	Registry interface {
		Get(name string) (Plugin, error)
		// List returns registered plugin names, sorted.
		List() ([]string, error)
	}

	// NotFoundError names the plugin that could not be found.
	// It wraps ErrPluginNotFound.
	NotFoundError struct {
		Name string
	}

	// MapRegistry is an in-memory Registry.
	MapRegistry struct {
		mu      sync.RWMutex
		plugins map[string]Plugin
	}
)

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("plugin %q not found", e.Name)
}

// Unwrap returns ErrPluginNotFound for errors.Is() compatibility.
func (e *NotFoundError) Unwrap() error { return ErrPluginNotFound }

// NewMapRegistry creates a registry holding plugins.
func NewMapRegistry(plugins ...Plugin) *MapRegistry {
	r := &MapRegistry{plugins: make(map[string]Plugin, len(plugins))}
	for _, p := range plugins {
		r.plugins[p.Name()] = p
	}
	return r
}

// Add registers p, replacing any plugin with the same name.
func (r *MapRegistry) Add(p Plugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins[p.Name()] = p
}

// Get returns the named plugin.
func (r *MapRegistry) Get(name string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[name]
	if !ok {
		return nil, &NotFoundError{Name: name}
	}
	return p, nil
}

// List returns registered plugin names, sorted.
func (r *MapRegistry) List() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.plugins))
	for name := range r.plugins {
		names = append(names, name)
	}
	slices.Sort(names)
	return names, nil
}
