// SPDX-License-Identifier: MPL-2.0

package toolspec

import "maps"

// AliasMap maps plugin name to alias name to version string.
// It is read-only during resolution.
type AliasMap map[string]map[string]string

// Lookup returns the version an alias points at.
func (m AliasMap) Lookup(plugin, alias string) (string, bool) {
	if m == nil {
		return "", false
	}
	v, ok := m[plugin][alias]
	return v, ok
}

// Merge returns a new map with other's entries layered over m's.
// Neither input is modified.
func (m AliasMap) Merge(other AliasMap) AliasMap {
	out := make(AliasMap, len(m)+len(other))
	for plugin, aliases := range m {
		out[plugin] = maps.Clone(aliases)
	}
	for plugin, aliases := range other {
		if out[plugin] == nil {
			out[plugin] = make(map[string]string, len(aliases))
		}
		maps.Copy(out[plugin], aliases)
	}
	return out
}
