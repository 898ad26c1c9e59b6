// SPDX-License-Identifier: MPL-2.0

package plugin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"
)

type (
	// Clock supplies the current time to RemoteCache.
	Clock interface {
		Now() time.Time
	}

	systemClock struct{}

	// FetchFunc produces a fresh remote version list.
	FetchFunc func(ctx context.Context) ([]string, error)

	// RemoteCache keeps each plugin's remote version list in
	// <dir>/<plugin>/remote-versions.json. Entries older than the TTL are
	// refetched; concurrent requests for one plugin share a single fetch.
	RemoteCache struct {
		dir   string
		ttl   time.Duration
		clock Clock
		group singleflight.Group
	}

	// CacheOption configures a RemoteCache.
	CacheOption func(*RemoteCache)

	cacheEntry struct {
		FetchedAt time.Time `json:"fetched_at"`
		Versions  []string  `json:"versions"`
	}
)

const remoteCacheFile = "remote-versions.json"

func (systemClock) Now() time.Time { return time.Now() }

// WithClock overrides the time source.
func WithClock(c Clock) CacheOption {
	return func(rc *RemoteCache) { rc.clock = c }
}

// NewRemoteCache creates a cache rooted at dir. A ttl of zero disables caching.
func NewRemoteCache(dir string, ttl time.Duration, opts ...CacheOption) *RemoteCache {
	rc := &RemoteCache{dir: dir, ttl: ttl, clock: systemClock{}}
	for _, opt := range opts {
		opt(rc)
	}
	return rc
}

// Versions returns the cached list for plugin, calling fetch when the entry
// is missing or stale. If fetch fails and a stale entry exists, the stale
// list is returned and the failure is logged.
func (c *RemoteCache) Versions(ctx context.Context, plugin string, fetch FetchFunc) ([]string, error) {
	if c == nil {
		return fetch(ctx)
	}

	cached, cacheErr := c.load(plugin)
	if cacheErr == nil && c.ttl > 0 && c.clock.Now().Sub(cached.FetchedAt) < c.ttl {
		return cached.Versions, nil
	}

	v, err, _ := c.group.Do(plugin, func() (any, error) {
		versions, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store(plugin, versions); err != nil {
			slog.Debug("remote version cache not written", "plugin", plugin, "error", err)
		}
		return versions, nil
	})
	if err != nil {
		if cacheErr == nil {
			slog.Warn("using stale remote version list", "plugin", plugin, "error", err)
			return cached.Versions, nil
		}
		return nil, err
	}
	return v.([]string), nil
}

// Invalidate drops the cached list for plugin.
func (c *RemoteCache) Invalidate(plugin string) error {
	err := os.Remove(c.path(plugin))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("invalidate remote cache for %s: %w", plugin, err)
	}
	return nil
}

func (c *RemoteCache) path(plugin string) string {
	return filepath.Join(c.dir, plugin, remoteCacheFile)
}

func (c *RemoteCache) load(plugin string) (cacheEntry, error) {
	data, err := os.ReadFile(c.path(plugin))
	if err != nil {
		return cacheEntry{}, err
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return cacheEntry{}, fmt.Errorf("decode %s: %w", c.path(plugin), err)
	}
	return entry, nil
}

// store writes atomically via a temp file and rename.
func (c *RemoteCache) store(plugin string, versions []string) error {
	path := c.path(plugin)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cacheEntry{FetchedAt: c.clock.Now(), Versions: versions}, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), remoteCacheFile+".*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
