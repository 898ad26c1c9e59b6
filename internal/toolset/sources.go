// SPDX-License-Identifier: MPL-2.0

package toolset

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/rtvm/rtvm/internal/configfile"
	"github.com/rtvm/rtvm/internal/plugin"
	"github.com/rtvm/rtvm/pkg/toolspec"
)

// Sources gathers version specs from every place a user can pin a tool.
type Sources struct {
	// GlobalTools is the tools table of the global config.
	GlobalTools map[string]string
	// GlobalPath names the global config file in diagnostics.
	GlobalPath string
	// Aliases are the configured aliases; project files layer over them.
	Aliases toolspec.AliasMap
	// Legacy enables per-language files such as .nvmrc.
	Legacy   bool
	Finder   configfile.Finder
	Registry plugin.Registry
	// Environ is consulted for RTVM_<PLUGIN>_VERSION overrides.
	Environ []string
}

// Collect returns every spec that applies in cwd, lowest precedence first:
// global config, legacy files, project files, environment, then args. The
// returned alias map includes aliases defined by project files.
func (s *Sources) Collect(ctx context.Context, cwd string, args []toolspec.VersionSpec) ([]toolspec.VersionSpec, toolspec.AliasMap, error) {
	var specs []toolspec.VersionSpec

	global, err := s.globalSpecs()
	if err != nil {
		return nil, nil, err
	}
	specs = append(specs, global...)

	if s.Legacy && s.Registry != nil {
		legacy, err := s.legacySpecs(ctx, cwd)
		if err != nil {
			return nil, nil, err
		}
		specs = append(specs, legacy...)
	}

	files, err := s.Finder.FindProjectFiles(cwd)
	if err != nil {
		return nil, nil, err
	}
	aliases := s.Aliases.Merge(nil)
	for _, file := range files {
		specs = append(specs, file.Specs...)
		if len(file.Aliases) > 0 {
			aliases = aliases.Merge(file.Aliases)
		}
	}

	env, err := s.envSpecs(specs)
	if err != nil {
		return nil, nil, err
	}
	specs = append(specs, env...)

	return append(specs, args...), aliases, nil
}

func (s *Sources) globalSpecs() ([]toolspec.VersionSpec, error) {
	plugins := make([]string, 0, len(s.GlobalTools))
	for name := range s.GlobalTools {
		plugins = append(plugins, name)
	}
	slices.Sort(plugins)

	specs := make([]toolspec.VersionSpec, 0, len(plugins))
	for _, name := range plugins {
		spec, err := toolspec.New(name, s.GlobalTools[name], toolspec.Source{Kind: toolspec.SourceGlobalConfig, Path: s.GlobalPath})
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// legacySpecs asks every plugin that understands legacy files which names it
// claims, walks for them, and lets the claiming plugins parse each one.
// Plugin script failures are logged and skipped; a malformed version is not.
func (s *Sources) legacySpecs(ctx context.Context, cwd string) ([]toolspec.VersionSpec, error) {
	names, err := s.Registry.List()
	if err != nil {
		return nil, err
	}

	parsers := map[string]plugin.LegacyFileParser{}
	claims := map[string][]string{}
	for _, name := range names {
		p, err := s.Registry.Get(name)
		if err != nil {
			continue
		}
		parser, ok := p.(plugin.LegacyFileParser)
		if !ok {
			continue
		}
		filenames, err := parser.LegacyFilenames(ctx)
		if err != nil {
			slog.Warn("list legacy filenames failed", "plugin", name, "error", err)
			continue
		}
		parsers[name] = parser
		for _, filename := range filenames {
			claims[filename] = append(claims[filename], name)
		}
	}
	if len(claims) == 0 {
		return nil, nil
	}

	found, err := configfile.FindLegacyFiles(cwd, claims)
	if err != nil {
		return nil, err
	}

	var specs []toolspec.VersionSpec
	for _, lf := range found {
		for _, name := range lf.Plugins {
			text, err := parsers[name].ParseLegacyFile(ctx, lf.Path)
			if err != nil {
				slog.Warn("parse legacy file failed", "plugin", name, "path", lf.Path, "error", err)
				continue
			}
			if text = strings.TrimSpace(text); text == "" {
				continue
			}
			spec, err := toolspec.New(name, text, toolspec.Source{Kind: toolspec.SourceLegacyFile, Path: lf.Path})
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
		}
	}
	return specs, nil
}

// envSpecs reads RTVM_<PLUGIN>_VERSION for plugins that are registered or
// already requested. Restricting the lookup to known plugins keeps settings
// such as RTVM_INSTALL_VERSION from being mistaken for a plugin pin.
func (s *Sources) envSpecs(seen []toolspec.VersionSpec) ([]toolspec.VersionSpec, error) {
	if len(s.Environ) == 0 {
		return nil, nil
	}
	environ := map[string]string{}
	for _, kv := range s.Environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			environ[k] = v
		}
	}

	var known []string
	if s.Registry != nil {
		names, err := s.Registry.List()
		if err != nil {
			return nil, err
		}
		known = append(known, names...)
	}
	for _, spec := range seen {
		known = append(known, spec.Plugin)
	}
	slices.Sort(known)
	known = slices.Compact(known)

	var specs []toolspec.VersionSpec
	for _, name := range known {
		key := VersionEnvVar(name)
		value, ok := environ[key]
		if !ok || strings.TrimSpace(value) == "" {
			continue
		}
		spec, err := toolspec.New(name, strings.TrimSpace(value), toolspec.Source{Kind: toolspec.SourceEnvironment, Path: key})
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

// VersionEnvVar returns the variable that pins plugin, e.g. RTVM_NODE_VERSION.
func VersionEnvVar(plugin string) string {
	return "RTVM_" + strings.ToUpper(strings.ReplaceAll(plugin, "-", "_")) + "_VERSION"
}
