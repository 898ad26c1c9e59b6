// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rtvm/rtvm/internal/hookenv"
	"github.com/rtvm/rtvm/internal/shell"
)

func newActivateCommand(app *App) *cobra.Command {
	var status bool

	cmd := &cobra.Command{
		Use:   "activate <shell>",
		Short: "Print the snippet that hooks rtvm into a shell",
		Long: `Print the snippet that hooks rtvm into a shell. Evaluate it from your shell's
startup file:

` + SubtitleStyle.Render("Bash:") + `
  # Add to ~/.bashrc:
  eval "$(rtvm activate bash)"

` + SubtitleStyle.Render("Zsh:") + `
  # Add to ~/.zshrc:
  eval "$(rtvm activate zsh)"

` + SubtitleStyle.Render("Fish:") + `
  # Add to ~/.config/fish/config.fish:
  rtvm activate fish | source

` + SubtitleStyle.Render("Elvish:") + `
  # Add to ~/.config/elvish/rc.elv:
  eval (rtvm activate elvish | slurp)

Supported shells: ` + strings.Join(shell.Names(), ", "),
		DisableFlagsInUseLine: true,
		ValidArgs:             shell.Names(),
		Args:                  cobra.ExactArgs(1),
		Annotations:           failOpen,
		RunE: func(cmd *cobra.Command, args []string) error {
			sh, err := shell.Get(args[0])
			if err != nil {
				return classifyError(err, app.verbose)
			}

			exe, err := app.executable()
			if err != nil {
				slog.Warn("cannot locate the rtvm binary, relying on PATH", "error", err)
				exe = "rtvm"
			}

			fmt.Fprint(app.stdout, sh.Activate(shell.ActivateOptions{Exe: exe, Status: status}))
			return nil
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "report tool changes on every prompt")

	return cmd
}

func newDeactivateCommand(app *App) *cobra.Command {
	var shellName string

	cmd := &cobra.Command{
		Use:   "deactivate",
		Short: "Undo everything rtvm did to the shell and remove its hook",
		Long: `Print the statements that restore every variable rtvm changed, drop rtvm's
entries from PATH and remove the prompt hook.

  eval "$(rtvm deactivate -s bash)"`,
		Args:        cobra.NoArgs,
		Annotations: failOpen,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sh, err := shell.Get(shellName)
			if err != nil {
				return classifyError(err, app.verbose)
			}

			fmt.Fprint(app.stdout, sh.Deactivate())
			fmt.Fprint(app.stdout, shell.Render(sh, hookenv.Deactivate(app.environ())))
			return nil
		},
	}

	cmd.Flags().StringVarP(&shellName, "shell", "s", "", "shell dialect ("+strings.Join(shell.Names(), ", ")+")")
	_ = cmd.MarkFlagRequired("shell")

	return cmd
}
