// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtvm/rtvm/internal/hookenv"
	"github.com/rtvm/rtvm/internal/issue"
	"github.com/rtvm/rtvm/internal/shell"
	"github.com/rtvm/rtvm/internal/toolset"
)

func newHookEnvCommand(app *App) *cobra.Command {
	var (
		shellName string
		status    bool
	)

	cmd := &cobra.Command{
		Use:   "hook-env",
		Short: "Print the statements that sync the shell with the current directory",
		Long: `Print the statements that move the calling shell from the environment rtvm
last gave it to the one the current directory needs.

The snippet printed by 'rtvm activate' runs this before every prompt. It never
fails the shell: when the toolset cannot be resolved, nothing is printed.`,
		Hidden:      true,
		Args:        cobra.NoArgs,
		Annotations: failOpen,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh, err := shell.Get(shellName)
			if err != nil {
				return classifyError(err, app.verbose)
			}
			app.hookEnv(cmd.Context(), sh, status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&shellName, "shell", "s", "", "shell dialect ("+strings.Join(shell.Names(), ", ")+")")
	cmd.Flags().BoolVar(&status, "status", false, "report activated and deactivated tools on stderr")
	_ = cmd.MarkFlagRequired("shell")

	return cmd
}

// hookEnv reconciles the shell against the current directory's toolset.
// Failures are logged. A toolset that cannot be resolved counts as empty, so
// tools from the previous directory are deactivated.
func (a *App) hookEnv(ctx context.Context, sh shell.Shell, status bool) {
	environ := a.environ()

	cwd, err := a.getwd()
	if err != nil {
		slog.Warn("cannot determine working directory", "error", err)
		return
	}

	engine, err := a.engine(ctx)
	if err != nil {
		slog.Warn("cannot load plugins", "error", err)
		return
	}

	var tools []string
	ts, patch, err := engine.Env(ctx, cwd, nil)
	if ts == nil {
		slog.Error("failed to resolve toolset", "error", formatErrorForDisplay(err, a.verbose))
		if a.verbose {
			renderServiceError(a.stderr, newServiceError(err, issue.HookEnvFailedId, ""))
		}
	} else {
		if err != nil {
			slog.Warn("some tools are unavailable", "error", err)
		}
		tools = activeTools(ts)
	}

	plan := hookenv.Reconcile(environ, patch, tools)
	if status {
		a.printStatus(plan)
	}
	fmt.Fprint(a.stdout, shell.Render(sh, plan))
}

// printStatus writes one line naming the tools the plan activates and
// deactivates. Nothing is written when the toolset did not change.
func (a *App) printStatus(plan hookenv.Plan) {
	added, removed := plan.Changes()
	if len(added) == 0 && len(removed) == 0 {
		return
	}

	parts := make([]string, 0, len(added)+len(removed))
	for _, tool := range removed {
		parts = append(parts, ErrorStyle.Render("-"+tool))
	}
	for _, tool := range added {
		parts = append(parts, SuccessStyle.Render("+"+tool))
	}
	fmt.Fprintf(a.stderr, "%s %s\n", SubtitleStyle.Render("rtvm:"), strings.Join(parts, " "))
}

// activeTools lists plugin@version for every tool that contributes to the
// environment.
func activeTools(ts *toolset.Toolset) []string {
	var out []string
	for _, tool := range ts.Tools() {
		if tool.Installed && !tool.IsSystem() {
			out = append(out, tool.String())
		}
	}
	return out
}
