// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtvm/rtvm/internal/shell"
	"github.com/rtvm/rtvm/internal/toolset"
	"github.com/rtvm/rtvm/pkg/toolspec"
)

func newEnvCommand(app *App) *cobra.Command {
	var shellName string

	cmd := &cobra.Command{
		Use:   "env [TOOL@VERSION...]",
		Short: "Print the toolset's environment as shell statements",
		Long: `Print every variable the toolset sets, plus PATH with the toolset's
directories in front, as statements for the given shell. Unlike the shell hook
the output is not a diff: it is the complete environment for this directory.

  eval "$(rtvm env -s bash)"
  eval "$(rtvm env -s bash node@18)"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := shell.Get(shellName)
			if err != nil {
				return classifyError(err, app.verbose)
			}
			specs, err := toolspec.ParseArgs(args)
			if err != nil {
				return classifyError(err, app.verbose)
			}

			cwd, err := app.getwd()
			if err != nil {
				return err
			}
			engine, err := app.engine(cmd.Context())
			if err != nil {
				return err
			}

			ts, patch, err := engine.Env(cmd.Context(), cwd, specs)
			if ts == nil {
				return classifyError(err, app.verbose)
			}
			if err != nil {
				slog.Warn("some tools are unavailable", "error", err)
			}

			fmt.Fprint(app.stdout, envStatements(sh, patch, lookupEnv(app.environ(), "PATH")))
			return nil
		},
	}

	cmd.Flags().StringVarP(&shellName, "shell", "s", "", "shell dialect ("+strings.Join(shell.Names(), ", ")+")")
	_ = cmd.MarkFlagRequired("shell")

	return cmd
}

// envStatements renders patch in full: its variables in order, then PATH
// with the patch's directories in front of currentPath.
func envStatements(sh shell.Shell, patch *toolset.EnvPatch, currentPath string) string {
	var sb strings.Builder
	for _, name := range patch.Keys() {
		value, _ := patch.Get(name)
		sb.WriteString(sh.SetEnv(name, value))
	}
	if patch != nil && len(patch.PathPrepend) > 0 {
		parts := append([]string{}, patch.PathPrepend...)
		if currentPath != "" {
			parts = append(parts, currentPath)
		}
		sb.WriteString(sh.SetEnv("PATH", strings.Join(parts, string(os.PathListSeparator))))
	}
	return sb.String()
}

func lookupEnv(environ []string, name string) string {
	for i := len(environ) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(environ[i], "="); ok && k == name {
			return v
		}
	}
	return ""
}
