// SPDX-License-Identifier: MPL-2.0

package configfile

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/rtvm/rtvm/internal/testutil"
	"github.com/rtvm/rtvm/pkg/toolspec"
)

func TestAncestors(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	deep := filepath.Join(root, "a", "b")

	got := Ancestors(deep)
	if got[len(got)-1] != deep {
		t.Errorf("last ancestor = %q, want %q", got[len(got)-1], deep)
	}
	if got[0] != filepath.VolumeName(deep)+string(filepath.Separator) {
		t.Errorf("first ancestor = %q, want filesystem root", got[0])
	}
	for i := 1; i < len(got); i++ {
		if filepath.Dir(got[i]) != got[i-1] {
			t.Fatalf("ancestors out of order at %d: %v", i, got)
		}
	}
}

func TestParseToolVersions(t *testing.T) {
	t.Parallel()

	data := []byte("# pinned runtimes\nnode 20.10.0 18.19.0\n\npython 3.11 # comment\nruby   latest\n")
	file, err := ParseToolVersions("/p/.tool-versions", data)
	if err != nil {
		t.Fatalf("ParseToolVersions() returned error: %v", err)
	}

	want := []struct {
		plugin string
		req    toolspec.Requirement
		line   int
	}{
		{"node", toolspec.Exact("20.10.0"), 2},
		{"python", toolspec.Prefix("3.11"), 4},
		{"ruby", toolspec.Latest(), 5},
	}
	if len(file.Specs) != len(want) {
		t.Fatalf("got %d specs, want %d", len(file.Specs), len(want))
	}
	for i, w := range want {
		got := file.Specs[i]
		if got.Plugin != w.plugin || got.Requirement != w.req || got.Source.Line != w.line {
			t.Errorf("spec %d = %+v, want %s %v line %d", i, got, w.plugin, w.req, w.line)
		}
	}
}

func TestParseToolVersions_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		line int
	}{
		{"missing version", "node 20\npython\n", 2},
		{"bad characters", "node 20;rm\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := ParseToolVersions("/p/.tool-versions", []byte(tt.data))
			var pe *toolspec.ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *toolspec.ParseError", err)
			}
			if pe.Source.Line != tt.line || pe.Source.Path != "/p/.tool-versions" {
				t.Errorf("ParseError.Source = %+v, want line %d", pe.Source, tt.line)
			}
		})
	}
}

func TestParseProject(t *testing.T) {
	t.Parallel()

	data := []byte(`
[tools]
python = ["3.12", "3.11"]
node = "lts"

[alias.node]
lts = "20.10.0"
`)
	file, err := ParseProject("/p/.rtvm.toml", data)
	if err != nil {
		t.Fatalf("ParseProject() returned error: %v", err)
	}

	var plugins []string
	for _, s := range file.Specs {
		plugins = append(plugins, s.String())
	}
	if want := []string{"node@lts", "python@3.12"}; !slices.Equal(plugins, want) {
		t.Errorf("specs = %v, want %v", plugins, want)
	}
	if v, ok := file.Aliases.Lookup("node", "lts"); !ok || v != "20.10.0" {
		t.Errorf("alias node lts = %q, %v", v, ok)
	}
}

func TestParseProject_SyntaxErrorHasLine(t *testing.T) {
	t.Parallel()

	_, err := ParseProject("/p/.rtvm.toml", []byte("[tools]\nnode = \n"))
	var pe *toolspec.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error = %v, want *toolspec.ParseError", err)
	}
	if pe.Source.Line != 2 {
		t.Errorf("ParseError line = %d, want 2", pe.Source.Line)
	}
}

func TestParseProject_WrongType(t *testing.T) {
	t.Parallel()

	if _, err := ParseProject("/p/.rtvm.toml", []byte("[tools]\nnode = 20\n")); err == nil {
		t.Error("ParseProject() should reject a non-string version")
	}
}

func TestFindProjectFiles_WalksRootToCwd(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	child := filepath.Join(root, "b")
	testutil.MustWriteFile(t, filepath.Join(root, ".tool-versions"), "node 16\n", 0o644)
	testutil.MustWriteFile(t, filepath.Join(child, ".tool-versions"), "node 18\n", 0o644)
	testutil.MustWriteFile(t, filepath.Join(child, ".rtvm.toml"), "[tools]\npython = \"3.12\"\n", 0o644)

	files, err := Finder{}.FindProjectFiles(child)
	if err != nil {
		t.Fatalf("FindProjectFiles() returned error: %v", err)
	}

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	want := []string{
		filepath.Join(root, ".tool-versions"),
		filepath.Join(child, ".tool-versions"),
		filepath.Join(child, ".rtvm.toml"),
	}
	// Files above the temp dir may exist on the host; compare the tail.
	if len(paths) < len(want) || !slices.Equal(paths[len(paths)-len(want):], want) {
		t.Errorf("FindProjectFiles() paths = %v, want suffix %v", paths, want)
	}
}

func TestFinder_CustomNames(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(dir, ".versions"), "node 20\n", 0o644)

	files, err := Finder{ToolVersionsName: ".versions"}.FindProjectFiles(dir)
	if err != nil {
		t.Fatalf("FindProjectFiles() returned error: %v", err)
	}
	if len(files) == 0 || files[len(files)-1].Path != filepath.Join(dir, ".versions") {
		t.Errorf("custom file name not found: %+v", files)
	}
}

func TestFinderFromEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"RTVM_DEFAULT_TOOL_VERSIONS_FILENAME": ".versions",
		"RTVM_DEFAULT_CONFIG_FILENAME":        "rtvm.toml",
	}
	f := FinderFromEnv(func(k string) string { return env[k] })
	if got, want := f.toolVersionsName(), ".versions"; got != want {
		t.Errorf("toolVersionsName() = %q, want %q", got, want)
	}
	if got, want := f.projectName(), "rtvm.toml"; got != want {
		t.Errorf("projectName() = %q, want %q", got, want)
	}

	f = FinderFromEnv(func(string) string { return "" })
	if got := f.toolVersionsName(); got != DefaultToolVersionsName {
		t.Errorf("toolVersionsName() = %q, want %q", got, DefaultToolVersionsName)
	}
}

func TestFindLegacyFiles(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	child := filepath.Join(root, "app")
	testutil.MustWriteFile(t, filepath.Join(root, ".nvmrc"), "16\n", 0o644)
	testutil.MustWriteFile(t, filepath.Join(child, ".python-version"), "3.11\n", 0o644)
	testutil.MustWriteFile(t, filepath.Join(child, ".nvmrc"), "18\n", 0o644)

	found, err := FindLegacyFiles(child, map[string][]string{
		".nvmrc":          {"node"},
		".python-version": {"python"},
	})
	if err != nil {
		t.Fatalf("FindLegacyFiles() returned error: %v", err)
	}

	want := []string{
		filepath.Join(root, ".nvmrc"),
		filepath.Join(child, ".nvmrc"),
		filepath.Join(child, ".python-version"),
	}
	var got []string
	for _, f := range found {
		got = append(got, f.Path)
	}
	if len(got) < len(want) || !slices.Equal(got[len(got)-len(want):], want) {
		t.Errorf("FindLegacyFiles() = %v, want suffix %v", got, want)
	}
}
