// SPDX-License-Identifier: MPL-2.0

package toolset

import (
	"strings"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/rtvm/rtvm/pkg/toolspec"
)

type (
	// ResolvedTool is the single surviving entry for one plugin.
	ResolvedTool struct {
		Plugin string
		// Version is the concrete version once installed or matched, and the
		// requirement text ("20", "latest", an unresolved alias) before that.
		Version string
		// Requirement is the requirement after alias resolution.
		Requirement toolspec.Requirement
		Source      toolspec.Source
		// AliasUnresolved marks an alias with no target; it fails at install time
		// unless a version with the alias's literal name exists.
		AliasUnresolved bool
		// Installed reports that Version is present on disk and usable.
		Installed bool
	}

	// Toolset is an ordered set of ResolvedTools keyed by plugin. Overwriting
	// an entry keeps its original position, so plugin order is first-seen order.
	Toolset struct {
		tools *orderedmap.OrderedMap[string, ResolvedTool]
	}
)

// String renders the tool as plugin@version.
func (t ResolvedTool) String() string {
	return t.Plugin + "@" + t.Version
}

// IsSystem reports whether the tool defers to the shell's own PATH.
func (t ResolvedTool) IsSystem() bool {
	return t.Requirement.Kind == toolspec.KindSystem
}

// New returns an empty Toolset.
func New() *Toolset {
	return &Toolset{tools: orderedmap.New[string, ResolvedTool]()}
}

// Set inserts or overwrites the entry for tool.Plugin.
func (ts *Toolset) Set(tool ResolvedTool) {
	ts.tools.Set(tool.Plugin, tool)
}

// Get returns the entry for plugin.
func (ts *Toolset) Get(plugin string) (ResolvedTool, bool) {
	return ts.tools.Get(plugin)
}

// Len returns the number of plugins.
func (ts *Toolset) Len() int {
	return ts.tools.Len()
}

// Tools returns the entries in order.
func (ts *Toolset) Tools() []ResolvedTool {
	out := make([]ResolvedTool, 0, ts.tools.Len())
	for pair := ts.tools.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Clone returns an independent copy.
func (ts *Toolset) Clone() *Toolset {
	out := New()
	for pair := ts.tools.Oldest(); pair != nil; pair = pair.Next() {
		out.Set(pair.Value)
	}
	return out
}

// String renders the toolset as space-separated plugin@version pairs.
func (ts *Toolset) String() string {
	parts := make([]string, 0, ts.Len())
	for _, tool := range ts.Tools() {
		parts = append(parts, tool.String())
	}
	return "[" + strings.Join(parts, " ") + "]"
}
