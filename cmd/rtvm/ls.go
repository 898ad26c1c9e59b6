// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/rtvm/rtvm/internal/toolset"
	"github.com/rtvm/rtvm/pkg/toolspec"
)

func newLsCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "ls [TOOL@VERSION...]",
		Aliases: []string{"list"},
		Short:   "Show the toolset for the current directory",
		Long: `Show every tool the current directory pins, which version it resolves to,
where the pin came from and whether that version is installed. Nothing is
installed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := app.inspect(cmd.Context(), args)
			if err != nil {
				return err
			}

			cwd, _ := app.getwd()
			rows := make([]table.Row, 0, ts.Len())
			for _, tool := range ts.Tools() {
				rows = append(rows, table.Row{
					tool.Plugin,
					tool.Version,
					tool.Requirement.String(),
					displaySource(tool.Source, cwd),
					toolStatus(tool),
				})
			}
			renderTable(app.stdout, table.Row{"Plugin", "Version", "Requested", "Source", "Status"}, rows)
			return nil
		},
	}
}

func newCurrentCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "current [PLUGIN]",
		Short: "Print the versions in use for the current directory",
		Long: `Print the installed version of every tool in use, one "plugin version" pair
per line. With a plugin name, print only that plugin's version; the command
fails when the plugin is not pinned or its version is not installed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := app.inspect(cmd.Context(), nil)
			if err != nil {
				return err
			}

			if len(args) == 1 {
				tool, ok := ts.Get(args[0])
				if !ok || (!tool.Installed && !tool.IsSystem()) {
					cmd.SilenceErrors = true
					return &ExitError{Code: 1}
				}
				fmt.Fprintln(app.stdout, tool.Version)
				return nil
			}

			for _, tool := range ts.Tools() {
				if tool.Installed || tool.IsSystem() {
					fmt.Fprintf(app.stdout, "%s %s\n", tool.Plugin, tool.Version)
				}
			}
			return nil
		},
	}
}

func newLsRemoteCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ls-remote <PLUGIN> [PREFIX]",
		Short: "List versions a plugin can install",
		Long: `List the versions a plugin can install, oldest first, one per line. A prefix
such as 20 or 3.11 keeps only versions in that release line.

The list is cached and refreshed once it is older than
plugin_autoupdate_last_check_duration.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := app.pluginRegistry(settingsFromContext(cmd.Context()).cfg)
			if err != nil {
				return err
			}
			p, err := reg.Get(args[0])
			if err != nil {
				return classifyError(err, app.verbose)
			}
			versions, err := p.ListRemoteVersions(cmd.Context())
			if err != nil {
				return err
			}

			for _, v := range versions {
				if len(args) == 2 && !toolspec.MatchesPrefix(v, args[1]) {
					continue
				}
				fmt.Fprintln(app.stdout, v)
			}
			return nil
		},
	}
}

// inspect resolves the toolset for the working directory without installing.
func (a *App) inspect(ctx context.Context, args []string) (*toolset.Toolset, error) {
	specs, err := toolspec.ParseArgs(args)
	if err != nil {
		return nil, classifyError(err, a.verbose)
	}
	cwd, err := a.getwd()
	if err != nil {
		return nil, err
	}
	engine, err := a.engine(ctx)
	if err != nil {
		return nil, err
	}

	ts, err := engine.Inspect(ctx, cwd, specs)
	if ts == nil {
		return nil, classifyError(err, a.verbose)
	}
	return ts, nil
}

func toolStatus(tool toolset.ResolvedTool) string {
	switch {
	case tool.IsSystem():
		return SubtitleStyle.Render("system")
	case tool.Installed:
		return SuccessStyle.Render("installed")
	default:
		return WarningStyle.Render("missing")
	}
}

// displaySource shortens files under cwd to a relative path.
func displaySource(src toolspec.Source, cwd string) string {
	if src.Path == "" || cwd == "" {
		return src.String()
	}
	rel, err := filepath.Rel(cwd, src.Path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return src.String()
	}
	src.Path = rel
	return src.String()
}
