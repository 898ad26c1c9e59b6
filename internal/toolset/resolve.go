// SPDX-License-Identifier: MPL-2.0

package toolset

import (
	"log/slog"
	"slices"

	"github.com/rtvm/rtvm/pkg/toolspec"
)

// Resolve merges specs into a Toolset. Specs are ranked by source kind, so an
// argument beats the environment, which beats project files, legacy files and
// the global config in turn; within one kind, later specs win. An overwrite
// keeps the plugin's first-seen position. Alias requirements are looked up in
// aliases; a missing alias is kept with AliasUnresolved set rather than dropped.
func Resolve(specs []toolspec.VersionSpec, aliases toolspec.AliasMap) *Toolset {
	ranked := slices.Clone(specs)
	slices.SortStableFunc(ranked, func(a, b toolspec.VersionSpec) int {
		return int(a.Source.Kind) - int(b.Source.Kind)
	})

	ts := New()
	for _, spec := range ranked {
		ts.Set(resolveSpec(spec, aliases))
	}
	return ts
}

func resolveSpec(spec toolspec.VersionSpec, aliases toolspec.AliasMap) ResolvedTool {
	tool := ResolvedTool{
		Plugin:      spec.Plugin,
		Requirement: spec.Requirement,
		Version:     spec.Requirement.String(),
		Source:      spec.Source,
	}
	if spec.Requirement.Kind != toolspec.KindAlias {
		return tool
	}

	target, ok := aliases.Lookup(spec.Plugin, spec.Requirement.Value)
	if !ok {
		slog.Debug("alias not defined", "plugin", spec.Plugin, "alias", spec.Requirement.Value)
		tool.AliasUnresolved = true
		return tool
	}

	// Aliases resolve one level. A target that is itself an alias name, or
	// not a valid requirement, is taken as a literal version.
	req, err := toolspec.ParseRequirement(target)
	if err != nil || req.Kind == toolspec.KindAlias {
		req = toolspec.Exact(target)
	}
	tool.Requirement = req
	tool.Version = req.String()
	return tool
}
