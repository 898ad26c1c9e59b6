// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rtvm/rtvm/internal/config"
)

// newConfigCommand creates the `rtvm config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage rtvm configuration",
		Long: `Manage rtvm configuration.

Configuration is stored in:
  - $RTVM_CONFIG_DIR/config.cue, when set
  - Linux: ~/.config/rtvm/config.cue
  - macOS: ~/Library/Application Support/rtvm/config.cue
  - Windows: %APPDATA%\rtvm\config.cue

Every setting can be overridden with an RTVM_* environment variable, for
example RTVM_MISSING_RUNTIME_BEHAVIOR=autoinstall.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := settingsFromContext(cmd.Context())
			showConfig(app.stdout, s.cfg, s.path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Create default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.CreateDefaultConfig()
			if err != nil {
				return fmt.Errorf("failed to create config: %w", err)
			}
			fmt.Fprintf(app.stdout, "%s Configuration at %s\n", SuccessStyle.Render("✓"), path)
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:         "path",
		Short:       "Show configuration file and directory paths",
		Args:        cobra.NoArgs,
		Annotations: failOpen,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showPaths(app.stdout)
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "dump",
		Short: "Output the effective configuration as CUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(app.stdout, config.GenerateCUE(settingsFromContext(cmd.Context()).cfg))
			return nil
		},
	})

	return cfgCmd
}

func showConfig(w io.Writer, cfg *config.Config, path string) {
	keyStyle := CmdStyle
	valueStyle := SuccessStyle

	fmt.Fprintln(w, TitleStyle.Render("Current Configuration"))
	fmt.Fprintln(w)

	if path != "" {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), path)
	} else {
		fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("Config file"), SubtitleStyle.Render("(using defaults)"))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("jobs"), valueStyle.Render(fmt.Sprint(cfg.Jobs)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("missing_runtime_behavior"), valueStyle.Render(cfg.MissingRuntimeBehavior.String()))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("legacy_version_file"), valueStyle.Render(fmt.Sprint(cfg.LegacyVersionFile)))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("plugin_autoupdate_last_check_duration"), valueStyle.Render(cfg.PluginAutoupdateLastCheckDuration.String()))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("log_level"), valueStyle.Render(cfg.LogLevel.String()))
	fmt.Fprintf(w, "%s: %s\n", keyStyle.Render("verbose"), valueStyle.Render(fmt.Sprint(cfg.Verbose)))

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("tools"))
	if len(cfg.Tools) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, plugin := range sortedKeys(cfg.Tools) {
		fmt.Fprintf(w, "  %s %s\n", plugin, valueStyle.Render(cfg.Tools[plugin]))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "%s:\n", keyStyle.Render("aliases"))
	if len(cfg.Aliases) == 0 {
		fmt.Fprintf(w, "  %s\n", SubtitleStyle.Render("(none configured)"))
	}
	for _, plugin := range sortedKeys(cfg.Aliases) {
		for _, alias := range sortedKeys(cfg.Aliases[plugin]) {
			fmt.Fprintf(w, "  %s %s -> %s\n", plugin, alias, valueStyle.Render(cfg.Aliases[plugin][alias]))
		}
	}
}

func showPaths(w io.Writer) error {
	cfgDir, err := config.ConfigDir()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Config directory: %s\n", cfgDir)
	fmt.Fprintf(w, "Config file: %s/%s.%s\n", cfgDir, config.ConfigFileName, config.ConfigFileExt)

	for _, dir := range []struct {
		label string
		get   func() (string, error)
	}{
		{"Plugins directory", config.PluginsDir},
		{"Installs directory", config.InstallsDir},
		{"Cache directory", config.CacheDir},
	} {
		path, err := dir.get()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", dir.label, path)
	}
	return nil
}
