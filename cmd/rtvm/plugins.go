// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newPluginsCommand(app *App) *cobra.Command {
	pluginsCmd := &cobra.Command{
		Use:     "plugins",
		Aliases: []string{"p"},
		Short:   "Manage plugins",
		Long: `Manage plugins. A plugin is a directory of asdf-compatible scripts under
$RTVM_DATA_DIR/plugins/<name>/bin.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	pluginsCmd.AddCommand(&cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List plugins and their installed versions",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := app.pluginRegistry(settingsFromContext(cmd.Context()).cfg)
			if err != nil {
				return err
			}
			names, err := reg.List()
			if err != nil {
				return err
			}

			rows := make([]table.Row, 0, len(names))
			for _, name := range names {
				p, err := reg.Get(name)
				if err != nil {
					return err
				}
				installed, err := p.ListInstalledVersions(cmd.Context())
				if err != nil {
					return err
				}
				rows = append(rows, table.Row{name, strings.Join(installed, " ")})
			}
			renderTable(app.stdout, table.Row{"Plugin", "Installed"}, rows)
			return nil
		},
	})

	return pluginsCmd
}

func newAliasCommand(app *App) *cobra.Command {
	aliasCmd := &cobra.Command{
		Use:   "alias",
		Short: "Manage version aliases",
		Long: `Manage version aliases. Aliases come from the aliases table of the global
config and the [alias.<plugin>] tables of .rtvm.toml files; inner
directories win.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	aliasCmd.AddCommand(&cobra.Command{
		Use:     "ls [PLUGIN]",
		Aliases: []string{"list"},
		Short:   "List the aliases in effect for the current directory",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cwd, err := app.getwd()
			if err != nil {
				return err
			}
			engine, err := app.engine(cmd.Context())
			if err != nil {
				return err
			}
			_, aliases, err := engine.Sources.Collect(cmd.Context(), cwd, nil)
			if err != nil {
				return classifyError(err, app.verbose)
			}

			var rows []table.Row
			for _, plugin := range sortedKeys(aliases) {
				if len(args) == 1 && plugin != args[0] {
					continue
				}
				for _, alias := range sortedKeys(aliases[plugin]) {
					rows = append(rows, table.Row{plugin, alias, aliases[plugin][alias]})
				}
			}
			renderTable(app.stdout, table.Row{"Plugin", "Alias", "Version"}, rows)
			return nil
		},
	})

	return aliasCmd
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
