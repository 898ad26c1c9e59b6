// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rtvm/rtvm/internal/execenv"
	"github.com/rtvm/rtvm/pkg/toolspec"
)

func newExecCommand(app *App) *cobra.Command {
	var script string

	cmd := &cobra.Command{
		Use:     "exec [TOOL@VERSION...] [-- COMMAND [ARGS...]]",
		Aliases: []string{"x"},
		Short:   "Run a command inside the toolset's environment",
		Long: `Run a command with the directory's toolset on PATH. Versions given as
arguments take precedence over every version file. Missing versions are
handled by the missing_runtime_behavior setting; the command itself sees
RTVM_MISSING_RUNTIME_BEHAVIOR=warn (or ignore) so nested rtvm calls never
install on their own.

Without a command, $SHELL is started.

` + SubtitleStyle.Render("Examples:") + `
  rtvm exec -- node --version
  rtvm exec node@18 python@3.11 -- npm test
  rtvm exec node@20 -c 'node -v && npm -v'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			specArgs, command := args, []string(nil)
			if dash := cmd.ArgsLenAtDash(); dash >= 0 {
				specArgs, command = args[:dash], args[dash:]
			}
			return app.exec(cmd, specArgs, command, script)
		},
	}

	cmd.Flags().StringVarP(&script, "command", "c", "", "run a shell command string instead of a program")

	return cmd
}

func (a *App) exec(cmd *cobra.Command, specArgs, command []string, script string) error {
	ctx := cmd.Context()

	specs, err := toolspec.ParseArgs(specArgs)
	if err != nil {
		return classifyError(err, a.verbose)
	}
	if script == "" && len(command) == 0 {
		command = []string{defaultShell(a.environ())}
	}

	cwd, err := a.getwd()
	if err != nil {
		return err
	}
	engine, err := a.engine(ctx)
	if err != nil {
		return err
	}

	ts, patch, err := engine.Env(ctx, cwd, specs)
	if ts == nil {
		return classifyError(err, a.verbose)
	}
	if err != nil {
		slog.Warn("running without unavailable tools", "error", err)
	}
	slog.Debug("exec", "toolset", ts.String(), "command", command, "script", script != "")

	res := execenv.Run(ctx, execenv.Request{
		Argv:    command,
		Script:  script,
		Dir:     cwd,
		Environ: execenv.BuildEnviron(a.environ(), patch, engine.Installer.Policy),
		Stdin:   a.stdin,
		Stdout:  a.stdout,
		Stderr:  a.stderr,
	})
	if res.Error != nil {
		return &ExitError{Code: int(res.ExitCode), Err: res.Error}
	}
	if !res.ExitCode.IsSuccess() {
		cmd.SilenceErrors = true
		return &ExitError{Code: int(res.ExitCode)}
	}
	return nil
}

func defaultShell(environ []string) string {
	if sh := lookupEnv(environ, "SHELL"); sh != "" {
		return sh
	}
	return "sh"
}
