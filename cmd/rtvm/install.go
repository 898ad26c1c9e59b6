// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtvm/rtvm/internal/config"
	"github.com/rtvm/rtvm/internal/toolset"
	"github.com/rtvm/rtvm/pkg/toolspec"
)

func newInstallCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "install [TOOL@VERSION...]",
		Aliases: []string{"i"},
		Short:   "Install tool versions",
		Long: `Install the given tool versions, or with no arguments every version the
current directory's toolset pins. Versions are installed without asking,
whatever missing_runtime_behavior says. Installs run in parallel, bounded by
the jobs setting.

` + SubtitleStyle.Render("Examples:") + `
  rtvm install
  rtvm install node@20 python@latest`,
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := toolspec.ParseArgs(args)
			if err != nil {
				return classifyError(err, app.verbose)
			}
			return classifyError(app.install(cmd.Context(), specs), app.verbose)
		},
	}
}

func (a *App) install(ctx context.Context, specs []toolspec.VersionSpec) error {
	cwd, err := a.getwd()
	if err != nil {
		return err
	}
	engine, err := a.engine(ctx)
	if err != nil {
		return err
	}

	var (
		tools      []toolset.ResolvedTool
		installErr error
	)
	if len(specs) > 0 {
		// Project aliases apply to explicit specs too.
		_, aliases, err := engine.Sources.Collect(ctx, cwd, nil)
		if err != nil {
			return err
		}
		tools, installErr = engine.Installer.InstallSpecs(ctx, specs, aliases)
	} else {
		engine.Installer.Policy = config.AutoInstall
		ts, err := engine.Toolset(ctx, cwd, nil)
		if ts == nil {
			return err
		}
		tools, installErr = ts.Tools(), err
	}

	for _, tool := range tools {
		if tool.Installed && !tool.IsSystem() {
			fmt.Fprintf(a.stderr, "%s %s\n", SuccessStyle.Render("✓"), tool)
		}
	}
	return installErr
}
