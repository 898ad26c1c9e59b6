// SPDX-License-Identifier: MPL-2.0

package configfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/rtvm/rtvm/pkg/toolspec"
)

// ErrMalformedLine is returned for a .tool-versions line without a version.
var ErrMalformedLine = errors.New("expected '<plugin> <version>'")

// File is one parsed project file.
type File struct {
	Path string
	Kind Kind
	// Specs are in file order (.tool-versions) or plugin-name order (.rtvm.toml).
	Specs []toolspec.VersionSpec
	// Aliases come from [alias.<plugin>] tables; nil for .tool-versions.
	Aliases toolspec.AliasMap
}

type projectDocument struct {
	Tools map[string]any               `toml:"tools"`
	Alias map[string]map[string]string `toml:"alias"`
}

// ParseToolVersions parses asdf-style lines of "plugin version [fallback...]".
// Comments start with '#'. Only the first version on a line is used.
func ParseToolVersions(path string, data []byte) (*File, error) {
	file := &File{Path: path, Kind: KindToolVersions}

	scanner := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}

		src := toolspec.Source{Kind: toolspec.SourceProjectConfig, Path: path, Line: line}
		if len(fields) < 2 {
			return nil, &toolspec.ParseError{Source: src, Input: strings.TrimSpace(text), Cause: ErrMalformedLine}
		}
		spec, err := toolspec.New(fields[0], fields[1], src)
		if err != nil {
			return nil, err
		}
		file.Specs = append(file.Specs, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return file, nil
}

// ParseProject parses a .rtvm.toml document:
//
//	[tools]
//	node = "20"
//	python = ["3.12", "3.11"]  # first entry wins
//
//	[alias.node]
//	lts = "20.10.0"
func ParseProject(path string, data []byte) (*File, error) {
	var doc projectDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		src := toolspec.Source{Kind: toolspec.SourceProjectConfig, Path: path}
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			src.Line, _ = derr.Position()
		}
		return nil, &toolspec.ParseError{Source: src, Input: path, Cause: err}
	}

	file := &File{Path: path, Kind: KindProject}
	plugins := make([]string, 0, len(doc.Tools))
	for plugin := range doc.Tools {
		plugins = append(plugins, plugin)
	}
	slices.Sort(plugins)

	src := toolspec.Source{Kind: toolspec.SourceProjectConfig, Path: path}
	for _, plugin := range plugins {
		requirement, err := firstRequirement(doc.Tools[plugin])
		if err != nil {
			return nil, &toolspec.ParseError{Source: src, Input: "tools." + plugin, Cause: err}
		}
		spec, err := toolspec.New(plugin, requirement, src)
		if err != nil {
			return nil, err
		}
		file.Specs = append(file.Specs, spec)
	}

	if len(doc.Alias) > 0 {
		file.Aliases = toolspec.AliasMap(doc.Alias)
	}
	return file, nil
}

func firstRequirement(v any) (string, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case []any:
		if len(val) == 0 {
			return "", errors.New("empty version list")
		}
		if s, ok := val[0].(string); ok {
			return s, nil
		}
		return "", fmt.Errorf("expected a string version, got %T", val[0])
	default:
		return "", fmt.Errorf("expected a version string or list, got %T", v)
	}
}
