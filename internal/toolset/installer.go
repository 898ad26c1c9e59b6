// SPDX-License-Identifier: MPL-2.0

package toolset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rtvm/rtvm/internal/config"
	"github.com/rtvm/rtvm/internal/plugin"
	"github.com/rtvm/rtvm/pkg/toolspec"
)

type (
	// Prompter asks the user a yes/no question. Implementations without a
	// terminal return ErrPromptUnavailable.
	Prompter interface {
		Confirm(ctx context.Context, question string) (bool, error)
	}

	// Installer concretizes toolset entries and installs missing versions.
	Installer struct {
		Registry plugin.Registry
		// Policy is consulted once per EnsureInstalled call.
		Policy config.MissingRuntimeBehavior
		// Jobs bounds concurrent installs; values below one mean one.
		Jobs     int
		Prompter Prompter
	}

	installJob struct {
		plugin  plugin.Plugin
		name    string
		version string
	}

	// versionLists memoizes version listings for the duration of one call,
	// so every plugin is queried at most once per pass.
	versionLists struct {
		installed map[string][]string
		remote    map[string][]string
	}
)

func (j installJob) key() string { return j.name + "@" + j.version }

func newVersionLists() *versionLists {
	return &versionLists{installed: map[string][]string{}, remote: map[string][]string{}}
}

func (l *versionLists) listInstalled(ctx context.Context, p plugin.Plugin) ([]string, error) {
	if v, ok := l.installed[p.Name()]; ok {
		return v, nil
	}
	v, err := p.ListInstalledVersions(ctx)
	if err != nil {
		return nil, err
	}
	l.installed[p.Name()] = v
	return v, nil
}

func (l *versionLists) listRemote(ctx context.Context, p plugin.Plugin) ([]string, error) {
	if v, ok := l.remote[p.Name()]; ok {
		return v, nil
	}
	v, err := p.ListRemoteVersions(ctx)
	if err != nil {
		return nil, err
	}
	l.remote[p.Name()] = v
	return v, nil
}

// EnsureInstalled returns a copy of ts in which every entry that could be
// made usable has Installed set. Entries left absent by policy stay in the
// toolset with Installed false. Install and concretization failures are
// collected into one *InstallError; the returned toolset is valid either way.
func (in *Installer) EnsureInstalled(ctx context.Context, ts *Toolset) (*Toolset, error) {
	out := ts.Clone()
	lists := newVersionLists()
	allowRemote := in.Policy == config.AutoInstall || in.Policy == config.Prompt

	var failures []InstallFailure
	var jobs []installJob
	for _, tool := range out.Tools() {
		prepared, job, err := in.prepare(ctx, tool, lists, allowRemote)
		out.Set(prepared)
		if err != nil {
			if f := in.unavailable(prepared, err); f != nil {
				failures = append(failures, *f)
			}
			continue
		}
		if job == nil {
			continue
		}
		if in.Policy == config.Prompt && !in.confirm(ctx, prepared) {
			continue
		}
		jobs = append(jobs, *job)
	}

	results := in.run(ctx, jobs)
	for _, job := range jobs {
		tool, _ := out.Get(job.name)
		if err := results[job.key()]; err != nil {
			failures = append(failures, InstallFailure{Plugin: job.name, Version: job.version, Err: err})
			continue
		}
		tool.Installed = true
		out.Set(tool)
	}

	return out, newInstallError(failures)
}

// InstallSpecs installs each spec regardless of policy. Unlike a Toolset,
// specs may name one plugin several times; identical concrete versions are
// installed once. The returned tools are in spec order.
func (in *Installer) InstallSpecs(ctx context.Context, specs []toolspec.VersionSpec, aliases toolspec.AliasMap) ([]ResolvedTool, error) {
	lists := newVersionLists()

	var failures []InstallFailure
	var jobs []installJob
	tools := make([]ResolvedTool, 0, len(specs))
	for _, spec := range specs {
		tool, job, err := in.prepare(ctx, resolveSpec(spec, aliases), lists, true)
		if err != nil {
			failures = append(failures, InstallFailure{Plugin: tool.Plugin, Version: tool.Version, Err: err})
		}
		if job != nil {
			jobs = append(jobs, *job)
		}
		tools = append(tools, tool)
	}

	results := in.run(ctx, jobs)
	for i, tool := range tools {
		if tool.Installed || tool.IsSystem() {
			continue
		}
		err, scheduled := results[tool.String()]
		if !scheduled {
			continue
		}
		if err != nil {
			// Duplicate specs share one failure entry.
			if !slices.ContainsFunc(failures, func(f InstallFailure) bool { return f.Plugin == tool.Plugin && f.Version == tool.Version }) {
				failures = append(failures, InstallFailure{Plugin: tool.Plugin, Version: tool.Version, Err: err})
			}
			continue
		}
		tools[i].Installed = true
	}

	return tools, newInstallError(failures)
}

// prepare concretizes tool against installed versions, then remote versions
// when allowRemote is set. It returns an install job when the chosen version
// is not on disk, or an error describing why the tool is unavailable.
func (in *Installer) prepare(ctx context.Context, tool ResolvedTool, lists *versionLists, allowRemote bool) (ResolvedTool, *installJob, error) {
	if tool.IsSystem() {
		tool.Installed = true
		return tool, nil, nil
	}

	p, err := in.Registry.Get(tool.Plugin)
	if err != nil {
		return tool, nil, err
	}

	installed, err := lists.listInstalled(ctx, p)
	if err != nil {
		return tool, nil, err
	}
	if v, ok := concretize(tool, installed); ok {
		tool.Version = v
		tool.Installed = true
		return tool, nil, nil
	}
	if !allowRemote {
		return tool, nil, missingCause(tool, "is not installed")
	}

	remote, err := lists.listRemote(ctx, p)
	if err != nil {
		return tool, nil, fmt.Errorf("list remote versions: %w", err)
	}
	v, ok := concretize(tool, remote)
	if !ok {
		return tool, nil, missingCause(tool, "matches no installable version")
	}
	tool.Version = v
	return tool, &installJob{plugin: p, name: tool.Plugin, version: v}, nil
}

// unavailable applies the policy to a tool that cannot be used. It returns a
// failure to report, or nil when the policy tolerates the absence.
func (in *Installer) unavailable(tool ResolvedTool, cause error) *InstallFailure {
	switch in.Policy {
	case config.Ignore:
		slog.Debug("tool unavailable", "tool", tool.String(), "error", cause)
		return nil
	case config.Warn:
		slog.Warn("tool unavailable", "tool", tool.String(), "error", cause)
		return nil
	default:
		return &InstallFailure{Plugin: tool.Plugin, Version: tool.Version, Err: cause}
	}
}

// confirm asks whether to install tool. Without a terminal the tool is
// treated as absent with a warning, never installed silently.
func (in *Installer) confirm(ctx context.Context, tool ResolvedTool) bool {
	prompter := in.Prompter
	if prompter == nil {
		prompter = noPrompter{}
	}
	ok, err := prompter.Confirm(ctx, fmt.Sprintf("Install %s?", tool))
	switch {
	case errors.Is(err, ErrPromptUnavailable):
		slog.Warn("cannot prompt to install missing tool; set missing_runtime_behavior=autoinstall to install without asking",
			"tool", tool.String())
		return false
	case err != nil:
		slog.Warn("install prompt failed", "tool", tool.String(), "error", err)
		return false
	case !ok:
		slog.Debug("install declined", "tool", tool.String())
	}
	return ok
}

// run installs jobs with bounded parallelism. Jobs with the same
// plugin@version key run once. A failure never cancels siblings; every job
// finishes before run returns.
func (in *Installer) run(ctx context.Context, jobs []installJob) map[string]error {
	results := make(map[string]error, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	g.SetLimit(max(in.Jobs, 1))

	seen := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		if seen[job.key()] {
			continue
		}
		seen[job.key()] = true

		g.Go(func() error {
			slog.Debug("install started", "tool", job.key())
			err := job.plugin.Install(ctx, job.version)
			mu.Lock()
			results[job.key()] = err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func concretize(tool ResolvedTool, versions []string) (string, bool) {
	req := tool.Requirement
	if tool.AliasUnresolved {
		req = toolspec.Exact(req.Value)
	}
	return toolspec.Newest(req, versions)
}

func missingCause(tool ResolvedTool, what string) error {
	if tool.AliasUnresolved {
		return &AliasResolutionError{Plugin: tool.Plugin, Alias: tool.Requirement.Value}
	}
	if strings.HasPrefix(what, "matches no") {
		return fmt.Errorf("%w: %s %s", plugin.ErrVersionNotFound, tool, what)
	}
	return fmt.Errorf("%s %s", tool, what)
}

func newInstallError(failures []InstallFailure) error {
	if len(failures) == 0 {
		return nil
	}
	slices.SortFunc(failures, func(a, b InstallFailure) int {
		return strings.Compare(a.Plugin+"@"+a.Version, b.Plugin+"@"+b.Version)
	})
	return &InstallError{Failures: failures}
}

type noPrompter struct{}

func (noPrompter) Confirm(context.Context, string) (bool, error) { return false, ErrPromptUnavailable }
