// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/rtvm/rtvm/internal/config"
	"github.com/rtvm/rtvm/internal/hookenv"
	"github.com/rtvm/rtvm/internal/issue"
	"github.com/rtvm/rtvm/internal/plugin"
	"github.com/rtvm/rtvm/internal/shell"
	"github.com/rtvm/rtvm/internal/testutil"
	"github.com/rtvm/rtvm/internal/toolset"
)

const basePath = "/usr/bin:/bin"

type staticConfig struct {
	cfg *config.Config
	err error
}

func (s staticConfig) Load(context.Context, config.LoadOptions) (*config.Config, error) {
	if s.err != nil {
		return nil, s.err
	}
	cfg := *s.cfg
	return &cfg, nil
}

func (staticConfig) Path(config.LoadOptions) (string, error) { return "", nil }

type answerPrompter struct {
	answer bool
	asked  []string
}

func (p *answerPrompter) Confirm(_ context.Context, question string) (bool, error) {
	p.asked = append(p.asked, question)
	return p.answer, nil
}

// cliHarness runs the command tree against a temp data dir and a fake
// shell environment. Tests using it are not parallel: every run replaces
// the default slog logger.
type cliHarness struct {
	t           *testing.T
	pluginsDir  string
	installsDir string
	cwd         string
	cfg         *config.Config
	cfgErr      error
	prompter    *answerPrompter
	environ     []string
	stdout      bytes.Buffer
	stderr      bytes.Buffer
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()

	root := t.TempDir()
	h := &cliHarness{
		t:           t,
		pluginsDir:  filepath.Join(root, "data", "plugins"),
		installsDir: filepath.Join(root, "data", "installs"),
		cwd:         filepath.Join(root, "project"),
		cfg:         config.DefaultConfig(),
		prompter:    &answerPrompter{},
		environ:     []string{"PATH=" + basePath, "HOME=" + root},
	}
	h.cfg.MissingRuntimeBehavior = config.AutoInstall
	h.cfg.Jobs = 2

	testutil.MustMkdirAll(t, h.cwd, 0o755)
	testutil.WriteScriptPlugin(t, h.pluginsDir, testutil.ScriptPlugin{
		Name:     "tiny",
		Versions: []string{"1.0.0", "1.2.0", "2.0.0"},
		ExecEnv:  map[string]string{"TINY_HOME": "$ASDF_INSTALL_PATH"},
	})
	return h
}

func (h *cliHarness) pin(content string) {
	h.t.Helper()
	testutil.MustWriteFile(h.t, filepath.Join(h.cwd, ".tool-versions"), content, 0o644)
}

func (h *cliHarness) run(args ...string) error {
	h.t.Helper()
	h.stdout.Reset()
	h.stderr.Reset()

	app := NewApp(Dependencies{
		Config:     staticConfig{cfg: h.cfg, err: h.cfgErr},
		Registry:   plugin.NewDirRegistry(h.pluginsDir, h.installsDir, nil, nil),
		Prompter:   h.prompter,
		Stdin:      strings.NewReader(""),
		Stdout:     &h.stdout,
		Stderr:     &h.stderr,
		Environ:    func() []string { return slices.Clone(h.environ) },
		Getwd:      func() (string, error) { return h.cwd, nil },
		Executable: func() (string, error) { return "/usr/local/bin/rtvm", nil },
	})
	root := NewRootCommand(app)
	root.SetArgs(args)
	root.SetOut(&h.stdout)
	root.SetErr(&h.stderr)
	return root.ExecuteContext(context.Background())
}

func (h *cliHarness) mustRun(args ...string) string {
	h.t.Helper()
	if err := h.run(args...); err != nil {
		h.t.Fatalf("rtvm %s: %v\nstderr:\n%s", strings.Join(args, " "), err, h.stderr.String())
	}
	return h.stdout.String()
}

func (h *cliHarness) installDir(version string) string {
	return filepath.Join(h.installsDir, "tiny", version)
}

// evalBash runs script in a bash interpreter seeded with environ and returns
// the exported environment it leaves behind.
func evalBash(t *testing.T, environ []string, script string) []string {
	t.Helper()

	file, err := syntax.NewParser(syntax.Variant(syntax.LangBash)).Parse(strings.NewReader(script), "hook")
	if err != nil {
		t.Fatalf("parse emitted script: %v\n%s", err, script)
	}
	runner, err := interp.New(interp.Env(expand.ListEnviron(environ...)))
	if err != nil {
		t.Fatalf("interp.New: %v", err)
	}
	if err := runner.Run(context.Background(), file); err != nil {
		t.Fatalf("run emitted script: %v\n%s", err, script)
	}

	var out []string
	for name, vr := range runner.Vars {
		if vr.Exported && vr.IsSet() {
			out = append(out, name+"="+vr.String())
		}
	}
	slices.Sort(out)
	return out
}

func TestHookEnv_ActivatesThenSettles(t *testing.T) {
	h := newCLIHarness(t)
	h.pin("tiny 1\n")

	out := h.mustRun("hook-env", "-s", "bash")
	binDir := filepath.Join(h.installDir("1.2.0"), "bin")
	if !strings.Contains(out, binDir) {
		t.Fatalf("hook output does not put %s on PATH:\n%s", binDir, out)
	}

	h.environ = evalBash(t, h.environ, out)
	if got, want := lookupEnv(h.environ, "PATH"), binDir+string(os.PathListSeparator)+basePath; got != want {
		t.Errorf("PATH = %q, want %q", got, want)
	}
	if got, want := lookupEnv(h.environ, "TINY_HOME"), h.installDir("1.2.0"); got != want {
		t.Errorf("TINY_HOME = %q, want %q", got, want)
	}
	if lookupEnv(h.environ, hookenv.MarkerVar) == "" {
		t.Errorf("%s not set after activation", hookenv.MarkerVar)
	}

	if out := h.mustRun("hook-env", "-s", "bash"); out != "" {
		t.Errorf("second hook-env in the same directory printed %q, want nothing", out)
	}

	// Leaving the project restores the shell.
	h.cwd = t.TempDir()
	h.environ = evalBash(t, h.environ, h.mustRun("hook-env", "-s", "bash"))
	if got := lookupEnv(h.environ, "PATH"); got != basePath {
		t.Errorf("PATH after leaving = %q, want %q", got, basePath)
	}
	if got := lookupEnv(h.environ, "TINY_HOME"); got != "" {
		t.Errorf("TINY_HOME after leaving = %q, want unset", got)
	}
	if got := lookupEnv(h.environ, hookenv.MarkerVar); got != "" {
		t.Errorf("%s after leaving = %q, want unset", hookenv.MarkerVar, got)
	}
}

func TestHookEnv_StableWhenProcessInheritsShell(t *testing.T) {
	h := newCLIHarness(t)
	h.pin("tiny 1\n")
	h.environ = evalBash(t, h.environ, h.mustRun("hook-env", "-s", "bash"))

	// A real hook-env process inherits everything the previous run exported.
	for _, kv := range h.environ {
		if k, v, ok := strings.Cut(kv, "="); ok {
			t.Setenv(k, v)
		}
	}

	if out := h.mustRun("hook-env", "-s", "bash"); out != "" {
		t.Errorf("hook-env with inherited environment printed %q, want nothing", out)
	}
	if got, want := lookupEnv(h.environ, "TINY_HOME"), h.installDir("1.2.0"); got != want {
		t.Errorf("TINY_HOME = %q, want %q", got, want)
	}
}

func TestHookEnv_SwitchesVersions(t *testing.T) {
	h := newCLIHarness(t)
	h.pin("tiny 1.0.0\n")
	h.environ = evalBash(t, h.environ, h.mustRun("hook-env", "-s", "bash"))

	h.pin("tiny 2.0.0\n")
	h.environ = evalBash(t, h.environ, h.mustRun("hook-env", "-s", "bash", "--status"))

	want := filepath.Join(h.installDir("2.0.0"), "bin") + string(os.PathListSeparator) + basePath
	if got := lookupEnv(h.environ, "PATH"); got != want {
		t.Errorf("PATH = %q, want %q", got, want)
	}
	status := h.stderr.String()
	if !strings.Contains(status, "-tiny@1.0.0") || !strings.Contains(status, "+tiny@2.0.0") {
		t.Errorf("status = %q, want -tiny@1.0.0 and +tiny@2.0.0", status)
	}
}

func TestHookEnv_FailsOpen(t *testing.T) {
	h := newCLIHarness(t)
	h.pin("tiny\n")

	if out := h.mustRun("hook-env", "-s", "bash"); out != "" {
		t.Errorf("hook-env printed %q for a malformed .tool-versions, want nothing", out)
	}
	if !strings.Contains(h.stderr.String(), "failed to resolve toolset") {
		t.Errorf("stderr = %q, want a resolve warning", h.stderr.String())
	}
}

func TestHookEnv_UnresolvableDirectoryDeactivatesPrevious(t *testing.T) {
	h := newCLIHarness(t)
	h.pin("tiny 1.0.0\n")
	h.environ = evalBash(t, h.environ, h.mustRun("hook-env", "-s", "bash"))

	h.cwd = filepath.Join(t.TempDir(), "broken")
	testutil.MustMkdirAll(t, h.cwd, 0o755)
	h.pin("tiny\n")
	h.environ = evalBash(t, h.environ, h.mustRun("hook-env", "-s", "bash"))

	if got := lookupEnv(h.environ, "PATH"); got != basePath {
		t.Errorf("PATH = %q, want %q", got, basePath)
	}
	if got := lookupEnv(h.environ, "TINY_HOME"); got != "" {
		t.Errorf("TINY_HOME = %q, want unset", got)
	}
	if got := lookupEnv(h.environ, hookenv.MarkerVar); got != "" {
		t.Errorf("%s = %q, want unset", hookenv.MarkerVar, got)
	}
}

func TestHookEnv_BrokenConfigUsesDefaults(t *testing.T) {
	h := newCLIHarness(t)
	h.cfgErr = errors.New("config.cue: syntax error")

	if err := h.run("hook-env", "-s", "bash"); err != nil {
		t.Fatalf("hook-env with a broken config returned error: %v", err)
	}

	err := h.run("ls")
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.IssueID != issue.ConfigLoadFailedId {
		t.Errorf("ls with a broken config returned %v, want ConfigLoadFailedId", err)
	}
}

func TestHookEnv_UnsupportedShell(t *testing.T) {
	h := newCLIHarness(t)

	err := h.run("hook-env", "-s", "tcsh")
	if !errors.Is(err, shell.ErrUnsupportedShell) {
		t.Errorf("hook-env -s tcsh returned %v, want ErrUnsupportedShell", err)
	}
}

func TestHookEnv_DeclinedPromptLeavesShellAlone(t *testing.T) {
	h := newCLIHarness(t)
	h.cfg.MissingRuntimeBehavior = config.Prompt
	h.pin("tiny 2.0.0\n")

	if out := h.mustRun("hook-env", "-s", "bash"); out != "" {
		t.Errorf("hook-env printed %q after a declined prompt, want nothing", out)
	}
	if len(h.prompter.asked) != 1 {
		t.Errorf("prompted %d times, want 1", len(h.prompter.asked))
	}
	if _, err := os.Stat(h.installDir("2.0.0")); !os.IsNotExist(err) {
		t.Errorf("tiny 2.0.0 installed after a declined prompt (stat err %v)", err)
	}
}

func TestDeactivate_RestoresShell(t *testing.T) {
	h := newCLIHarness(t)
	h.pin("tiny 1.0.0\n")
	h.environ = evalBash(t, h.environ, h.mustRun("hook-env", "-s", "bash"))

	out := h.mustRun("deactivate", "-s", "bash")
	sh, err := shell.Get("bash")
	if err != nil {
		t.Fatal(err)
	}
	unhook := sh.Deactivate()
	if !strings.HasPrefix(out, unhook) {
		t.Fatalf("deactivate output does not start with the unhook snippet:\n%s", out)
	}

	h.environ = evalBash(t, h.environ, strings.TrimPrefix(out, unhook))
	if got := lookupEnv(h.environ, "PATH"); got != basePath {
		t.Errorf("PATH = %q, want %q", got, basePath)
	}
	if got := lookupEnv(h.environ, hookenv.MarkerVar); got != "" {
		t.Errorf("%s = %q, want unset", hookenv.MarkerVar, got)
	}
}

func TestActivate(t *testing.T) {
	h := newCLIHarness(t)

	out := h.mustRun("activate", "zsh", "--status")
	for _, want := range []string{"precmd_functions", "/usr/local/bin/rtvm", "hook-env --status -s zsh"} {
		if !strings.Contains(out, want) {
			t.Errorf("activate zsh output missing %q:\n%s", want, out)
		}
	}

	if err := h.run("activate", "tcsh"); !errors.Is(err, shell.ErrUnsupportedShell) {
		t.Errorf("activate tcsh returned %v, want ErrUnsupportedShell", err)
	}
}

func TestEnv_PrintsFullEnvironment(t *testing.T) {
	h := newCLIHarness(t)
	h.pin("tiny 1.0.0\n")

	environ := evalBash(t, h.environ, h.mustRun("env", "-s", "bash", "tiny@2.0.0"))
	want := filepath.Join(h.installDir("2.0.0"), "bin") + string(os.PathListSeparator) + basePath
	if got := lookupEnv(environ, "PATH"); got != want {
		t.Errorf("PATH = %q, want %q", got, want)
	}
	if got := lookupEnv(environ, hookenv.MarkerVar); got != "" {
		t.Errorf("env must not write the hook marker, got %q", got)
	}
}

func TestExec(t *testing.T) {
	h := newCLIHarness(t)
	h.pin("tiny 1.0.0\n")

	if out := h.mustRun("exec", "--", "tiny"); out != "tiny 1.0.0\n" {
		t.Errorf("exec -- tiny = %q, want %q", out, "tiny 1.0.0\n")
	}
	if out := h.mustRun("exec", "tiny@2", "--", "tiny"); out != "tiny 2.0.0\n" {
		t.Errorf("exec tiny@2 -- tiny = %q, want %q", out, "tiny 2.0.0\n")
	}

	out := h.mustRun("exec", "-c", `echo "$TINY_HOME $RTVM_MISSING_RUNTIME_BEHAVIOR"`)
	if want := h.installDir("1.0.0") + " warn\n"; out != want {
		t.Errorf("exec -c = %q, want %q", out, want)
	}
}

func TestExec_PropagatesExitCode(t *testing.T) {
	h := newCLIHarness(t)

	err := h.run("exec", "-c", "exit 4")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("exec -c 'exit 4' returned %v, want *ExitError", err)
	}
	if exitErr.Code != 4 || exitErr.Err != nil {
		t.Errorf("ExitError = {%d, %v}, want {4, <nil>}", exitErr.Code, exitErr.Err)
	}
}

func TestInstall(t *testing.T) {
	h := newCLIHarness(t)
	h.cfg.MissingRuntimeBehavior = config.Ignore

	h.mustRun("install", "tiny@1.0.0", "tiny@2")
	for _, v := range []string{"1.0.0", "2.0.0"} {
		if _, err := os.Stat(filepath.Join(h.installDir(v), "bin", "tiny")); err != nil {
			t.Errorf("tiny %s not installed: %v", v, err)
		}
		if !strings.Contains(h.stderr.String(), "tiny@"+v) {
			t.Errorf("stderr = %q, want a line for tiny@%s", h.stderr.String(), v)
		}
	}
}

func TestInstall_FromToolset(t *testing.T) {
	h := newCLIHarness(t)
	h.cfg.MissingRuntimeBehavior = config.Ignore
	h.pin("tiny 1.2\n")

	h.mustRun("install")
	if _, err := os.Stat(h.installDir("1.2.0")); err != nil {
		t.Errorf("install ignored the pinned version: %v", err)
	}
}

func TestInstall_Failure(t *testing.T) {
	h := newCLIHarness(t)
	testutil.WriteScriptPlugin(t, h.pluginsDir, testutil.ScriptPlugin{
		Name:         "broken",
		Versions:     []string{"0.1.0"},
		FailVersions: []string{"0.1.0"},
	})

	err := h.run("install", "broken@0.1.0")
	if !errors.Is(err, toolset.ErrInstallFailed) {
		t.Fatalf("install returned %v, want ErrInstallFailed", err)
	}
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.IssueID != issue.InstallFailedId {
		t.Errorf("install error = %v, want a ServiceError with InstallFailedId", err)
	}
}

func TestCurrentAndLs(t *testing.T) {
	h := newCLIHarness(t)
	h.cfg.MissingRuntimeBehavior = config.Ignore
	h.pin("tiny 1\n")

	out := h.mustRun("ls")
	for _, want := range []string{"PLUGIN", "tiny", ".tool-versions:1", "missing"} {
		if !strings.Contains(out, want) {
			t.Errorf("ls output missing %q:\n%s", want, out)
		}
	}

	err := h.run("current", "tiny")
	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Errorf("current tiny before install returned %v, want exit 1", err)
	}

	h.mustRun("install")
	if out := h.mustRun("current", "tiny"); out != "1.2.0\n" {
		t.Errorf("current tiny = %q, want %q", out, "1.2.0\n")
	}
	if out := h.mustRun("current"); out != "tiny 1.2.0\n" {
		t.Errorf("current = %q, want %q", out, "tiny 1.2.0\n")
	}
	if out := h.mustRun("ls"); !strings.Contains(out, "installed") {
		t.Errorf("ls after install missing status:\n%s", out)
	}
}

func TestCurrent_CustomToolVersionsName(t *testing.T) {
	h := newCLIHarness(t)
	testutil.MustWriteFile(t, filepath.Join(h.cwd, ".versions"), "tiny 2.0.0\n", 0o644)
	h.environ = append(h.environ, "RTVM_DEFAULT_TOOL_VERSIONS_FILENAME=.versions")

	h.mustRun("install")
	if got, want := h.mustRun("current", "tiny"), "2.0.0\n"; got != want {
		t.Errorf("current tiny = %q, want %q", got, want)
	}
}

func TestLsRemote(t *testing.T) {
	h := newCLIHarness(t)

	if out := h.mustRun("ls-remote", "tiny"); out != "1.0.0\n1.2.0\n2.0.0\n" {
		t.Errorf("ls-remote tiny = %q", out)
	}
	if out := h.mustRun("ls-remote", "tiny", "1"); out != "1.0.0\n1.2.0\n" {
		t.Errorf("ls-remote tiny 1 = %q", out)
	}

	err := h.run("ls-remote", "nope")
	var svcErr *ServiceError
	if !errors.As(err, &svcErr) || svcErr.IssueID != issue.PluginNotFoundId {
		t.Errorf("ls-remote nope returned %v, want PluginNotFoundId", err)
	}
}

func TestAliasLs(t *testing.T) {
	h := newCLIHarness(t)
	h.cfg.Aliases = map[string]map[string]string{"tiny": {"stable": "1.0.0"}}
	testutil.MustWriteFile(t, filepath.Join(h.cwd, ".rtvm.toml"), "[alias.tiny]\nnext = \"2.0.0\"\n", 0o644)

	out := h.mustRun("alias", "ls", "tiny")
	for _, want := range []string{"stable", "1.0.0", "next", "2.0.0"} {
		if !strings.Contains(out, want) {
			t.Errorf("alias ls output missing %q:\n%s", want, out)
		}
	}
}

func TestPluginsLs(t *testing.T) {
	h := newCLIHarness(t)
	h.mustRun("install", "tiny@1.0.0")

	out := h.mustRun("plugins", "ls")
	if !strings.Contains(out, "tiny") || !strings.Contains(out, "1.0.0") {
		t.Errorf("plugins ls output:\n%s", out)
	}
}

func TestEnvStatements(t *testing.T) {
	t.Parallel()

	sh, err := shell.Get("bash")
	if err != nil {
		t.Fatal(err)
	}

	patch := toolset.NewEnvPatch()
	patch.Vars.Set("GOROOT", "/opt/go")
	patch.PathPrepend = []string{"/opt/go/bin", "/opt/node/bin"}

	got := envStatements(sh, patch, "/usr/bin")
	want := sh.SetEnv("GOROOT", "/opt/go") + sh.SetEnv("PATH", "/opt/go/bin:/opt/node/bin:/usr/bin")
	if got != want {
		t.Errorf("envStatements() = %q, want %q", got, want)
	}

	if got := envStatements(sh, nil, "/usr/bin"); got != "" {
		t.Errorf("envStatements(nil) = %q, want empty", got)
	}
}

func TestLookupEnv(t *testing.T) {
	t.Parallel()

	environ := []string{"A=1", "B=2", "A=3", "EMPTY="}
	tests := []struct {
		name string
		want string
	}{
		{"A", "3"},
		{"B", "2"},
		{"EMPTY", ""},
		{"MISSING", ""},
	}
	for _, tt := range tests {
		if got := lookupEnv(environ, tt.name); got != tt.want {
			t.Errorf("lookupEnv(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestDefaultShell(t *testing.T) {
	t.Parallel()

	if got := defaultShell([]string{"SHELL=/bin/zsh"}); got != "/bin/zsh" {
		t.Errorf("defaultShell() = %q, want %q", got, "/bin/zsh")
	}
	if got := defaultShell(nil); got != "sh" {
		t.Errorf("defaultShell(nil) = %q, want %q", got, "sh")
	}
}
