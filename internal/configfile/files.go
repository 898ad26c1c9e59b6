// SPDX-License-Identifier: MPL-2.0

package configfile

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
)

const (
	// DefaultToolVersionsName is the asdf-compatible project file name.
	DefaultToolVersionsName = ".tool-versions"
	// DefaultProjectName is the rtvm project file name.
	DefaultProjectName = ".rtvm.toml"

	// KindToolVersions marks a .tool-versions file.
	KindToolVersions Kind = iota
	// KindProject marks a .rtvm.toml file.
	KindProject
)

type (
	// Kind identifies a project file format.
	Kind int

	// Finder locates project files. The zero value uses the default names.
	Finder struct {
		// ToolVersionsName overrides ".tool-versions".
		ToolVersionsName string
		// ProjectName overrides ".rtvm.toml".
		ProjectName string
	}

	// LegacyFile is a per-language version file and the plugins that claim it.
	LegacyFile struct {
		Path    string
		Plugins []string
	}
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindToolVersions:
		return "tool-versions"
	case KindProject:
		return "project"
	default:
		return "unknown"
	}
}

// FinderFromEnv returns a Finder honoring RTVM_DEFAULT_TOOL_VERSIONS_FILENAME
// and RTVM_DEFAULT_CONFIG_FILENAME as reported by getenv.
func FinderFromEnv(getenv func(string) string) Finder {
	return Finder{
		ToolVersionsName: getenv("RTVM_DEFAULT_TOOL_VERSIONS_FILENAME"),
		ProjectName:      getenv("RTVM_DEFAULT_CONFIG_FILENAME"),
	}
}

func (f Finder) toolVersionsName() string {
	if f.ToolVersionsName != "" {
		return f.ToolVersionsName
	}
	return DefaultToolVersionsName
}

func (f Finder) projectName() string {
	if f.ProjectName != "" {
		return f.ProjectName
	}
	return DefaultProjectName
}

// Ancestors returns dir and every parent, ordered from the filesystem root to dir.
func Ancestors(dir string) []string {
	dir = filepath.Clean(dir)
	var chain []string
	for {
		chain = append(chain, dir)
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// FindProjectFiles parses every project file between the filesystem root and
// cwd, lowest precedence first. Within one directory .tool-versions comes
// before .rtvm.toml. The first malformed file aborts the walk.
func (f Finder) FindProjectFiles(cwd string) ([]*File, error) {
	var files []*File
	for _, dir := range Ancestors(cwd) {
		for _, candidate := range []struct {
			name string
			kind Kind
		}{
			{f.toolVersionsName(), KindToolVersions},
			{f.projectName(), KindProject},
		} {
			path := filepath.Join(dir, candidate.name)
			data, ok, err := readIfExists(path)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			var file *File
			switch candidate.kind {
			case KindToolVersions:
				file, err = ParseToolVersions(path, data)
			case KindProject:
				file, err = ParseProject(path, data)
			}
			if err != nil {
				return nil, err
			}
			slog.Debug("loaded project file", "path", path, "tools", len(file.Specs))
			files = append(files, file)
		}
	}
	return files, nil
}

// FindLegacyFiles locates legacy version files between the filesystem root
// and cwd, lowest precedence first. claims maps a file name such as ".nvmrc"
// to the plugins that parse it; within a directory, files are visited in
// sorted name order.
func FindLegacyFiles(cwd string, claims map[string][]string) ([]LegacyFile, error) {
	names := make([]string, 0, len(claims))
	for name := range claims {
		names = append(names, name)
	}
	slices.Sort(names)

	var found []LegacyFile
	for _, dir := range Ancestors(cwd) {
		for _, name := range names {
			path := filepath.Join(dir, name)
			info, err := os.Stat(path)
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("stat %s: %w", path, err)
			}
			if info.IsDir() {
				continue
			}
			found = append(found, LegacyFile{Path: path, Plugins: claims[name]})
		}
	}
	return found, nil
}

func readIfExists(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		// A directory with the file's name is not a version file.
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}
	return data, true, nil
}
