// SPDX-License-Identifier: MPL-2.0

package execenv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/rtvm/rtvm/internal/config"
	"github.com/rtvm/rtvm/internal/toolset"
)

// PolicyEnvVar is the setting a child process inherits.
const PolicyEnvVar = "RTVM_MISSING_RUNTIME_BEHAVIOR"

// ErrNoCommand is returned when a request names neither argv nor a script.
var ErrNoCommand = errors.New("no command given")

// Request describes one command to run inside a toolset's environment.
type Request struct {
	// Argv runs a program directly. Ignored when Script is set.
	Argv []string
	// Script is shell source run by the built-in interpreter; Argv, when
	// also given, becomes its positional parameters.
	Script string
	Dir    string
	// Environ is the complete child environment, usually from BuildEnviron.
	Environ []string
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer
}

// BuildEnviron layers patch over base. PATH gains the patch prefix in front
// of its current value. The child's install policy is pinned to warn, or
// kept at ignore, so a nested rtvm never installs on its own.
func BuildEnviron(base []string, patch *toolset.EnvPatch, policy config.MissingRuntimeBehavior) []string {
	childPolicy := config.Warn
	if policy == config.Ignore {
		childPolicy = config.Ignore
	}

	overrides := map[string]string{PolicyEnvVar: string(childPolicy)}
	var order []string
	for _, name := range patch.Keys() {
		v, _ := patch.Get(name)
		overrides[name] = v
		order = append(order, name)
	}
	order = append(order, PolicyEnvVar)

	sep := string(os.PathListSeparator)
	out := make([]string, 0, len(base)+len(order)+1)
	pathSeen := false
	for _, kv := range base {
		name, value, _ := strings.Cut(kv, "=")
		if name == "PATH" {
			pathSeen = true
			out = append(out, "PATH="+joinPath(patchPath(patch), value, sep))
			continue
		}
		if _, ok := overrides[name]; ok {
			continue
		}
		out = append(out, kv)
	}
	if !pathSeen && len(patchPath(patch)) > 0 {
		out = append(out, "PATH="+strings.Join(patchPath(patch), sep))
	}
	for _, name := range order {
		out = append(out, name+"="+overrides[name])
	}
	return out
}

// Run executes req and waits for it.
func Run(ctx context.Context, req Request) *Result {
	switch {
	case req.Script != "":
		return runScript(ctx, req)
	case len(req.Argv) > 0:
		return runArgv(ctx, req)
	default:
		return &Result{ExitCode: 1, Error: ErrNoCommand}
	}
}

func runArgv(ctx context.Context, req Request) *Result {
	path, err := lookPath(req.Argv[0], lookupEnv(req.Environ, "PATH"))
	if err != nil {
		return &Result{ExitCode: 127, Error: err}
	}

	cmd := exec.CommandContext(ctx, path, req.Argv[1:]...)
	cmd.Args[0] = req.Argv[0]
	cmd.Dir = req.Dir
	cmd.Env = req.Environ
	cmd.Stdin = req.Stdin
	cmd.Stdout = req.Stdout
	cmd.Stderr = req.Stderr

	return resultFromError(cmd.Run())
}

func runScript(ctx context.Context, req Request) *Result {
	prog, err := syntax.NewParser().Parse(strings.NewReader(req.Script), "-c")
	if err != nil {
		return &Result{ExitCode: 2, Error: fmt.Errorf("failed to parse script: %w", err)}
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(req.Environ...)),
		interp.StdIO(req.Stdin, req.Stdout, req.Stderr),
	}
	if req.Dir != "" {
		opts = append(opts, interp.Dir(req.Dir))
	}
	// "--" keeps arguments such as "-v" from being read as shell options.
	if len(req.Argv) > 0 {
		opts = append(opts, interp.Params(append([]string{"--"}, req.Argv...)...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return &Result{ExitCode: 1, Error: fmt.Errorf("failed to create interpreter: %w", err)}
	}
	return resultFromError(runner.Run(ctx, prog))
}

// lookPath resolves file against pathEnv rather than this process's PATH,
// so the toolset's binaries are found first.
func lookPath(file, pathEnv string) (string, error) {
	if strings.ContainsRune(file, filepath.Separator) || strings.ContainsRune(file, '/') {
		return exec.LookPath(file)
	}
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if !strings.ContainsRune(candidate, filepath.Separator) {
			candidate = "." + string(filepath.Separator) + candidate
		}
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", exec.ErrNotFound, file)
}

func lookupEnv(environ []string, name string) string {
	for i := len(environ) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(environ[i], "="); ok && k == name {
			return v
		}
	}
	return ""
}

func patchPath(patch *toolset.EnvPatch) []string {
	if patch == nil {
		return nil
	}
	return patch.PathPrepend
}

func joinPath(prefix []string, current, sep string) string {
	if len(prefix) == 0 {
		return current
	}
	if current == "" {
		return strings.Join(prefix, sep)
	}
	return strings.Join(prefix, sep) + sep + current
}
