// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rtvm/rtvm/internal/config"
	"github.com/rtvm/rtvm/internal/issue"
)

// failOpenAnnotation marks commands that keep going on defaults when the
// config cannot be loaded. A shell hook must never break the shell.
const failOpenAnnotation = "rtvm/fail-open"

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"

	failOpen = map[string]string{failOpenAnnotation: "true"}
)

type rootFlags struct {
	verbose    bool
	configPath string
}

// NewRootCommand builds the rtvm command tree around app.
func NewRootCommand(app *App) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "rtvm",
		Short: "Per-directory runtime version manager",
		Long: TitleStyle.Render("rtvm") + SubtitleStyle.Render(" - per-directory runtime version manager") + `

rtvm reads the versions pinned in .tool-versions, .rtvm.toml and per-language
files such as .nvmrc, installs them through asdf-compatible plugins, and keeps
your shell's PATH and environment in sync as you change directories.

` + SubtitleStyle.Render("Quick Start:") + `
  1. Add the hook to your shell:   eval "$(rtvm activate bash)"
  2. Pin a version:                echo "node 20" > .tool-versions
  3. Open a new prompt in that directory and node 20 is on PATH

` + SubtitleStyle.Render("Examples:") + `
  rtvm ls                          Show the toolset for this directory
  rtvm install                     Install everything pinned here
  rtvm exec node@18 -- node -v     Run a command with a one-off toolset
  rtvm ls-remote node 20           List installable node 20.x versions`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.loadSettings(cmd, flags)
		},
	}

	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging and full error chains")
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file (default is $RTVM_CONFIG_DIR/config.cue)")

	root.AddCommand(
		newActivateCommand(app),
		newDeactivateCommand(app),
		newHookEnvCommand(app),
		newEnvCommand(app),
		newExecCommand(app),
		newInstallCommand(app),
		newLsCommand(app),
		newCurrentCommand(app),
		newLsRemoteCommand(app),
		newPluginsCommand(app),
		newAliasCommand(app),
		newConfigCommand(app),
		newCompletionCommand(app),
	)

	return root
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits the process with the command's status.
// This is called by main.main().
func Execute() {
	app := NewApp(Dependencies{})
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
		fang.WithErrorHandler(app.handleError),
	); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

// handleError renders a failed command. Bare exit codes print nothing;
// service errors print their styled message and catalog entry.
func (a *App) handleError(w io.Writer, styles fang.Styles, err error) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Err == nil {
		return
	}

	var svcErr *ServiceError
	if errors.As(classifyError(err, a.verbose), &svcErr) {
		renderServiceError(w, svcErr)
		if svcErr.StyledMessage == "" {
			fmt.Fprintf(w, "\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(svcErr.Err, a.verbose))
		}
		return
	}

	fang.DefaultErrorHandler(w, styles, err)
}

// loadSettings loads the config and installs the process-wide logger. Commands
// annotated fail-open fall back to defaults when the config is broken.
func (a *App) loadSettings(cmd *cobra.Command, flags *rootFlags) error {
	ctx := cmd.Context()
	opts := config.LoadOptions{ConfigFilePath: flags.configPath}

	cfg, err := a.Config.Load(ctx, opts)
	if err != nil {
		a.setupLogging(config.DefaultConfig(), flags.verbose)
		if cmd.Annotations[failOpenAnnotation] == "" {
			return newServiceError(err, issue.ConfigLoadFailedId,
				fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, flags.verbose)))
		}
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = config.DefaultConfig()
	} else {
		a.setupLogging(cfg, flags.verbose)
	}

	path, pathErr := a.Config.Path(opts)
	if pathErr != nil {
		slog.Debug("cannot determine config path", "error", pathErr)
	}

	cmd.SetContext(contextWithSettings(ctx, &settings{cfg: cfg, path: path}))
	return nil
}

// setupLogging routes slog through a charmbracelet/log handler on stderr.
func (a *App) setupLogging(cfg *config.Config, verboseFlag bool) {
	a.verbose = verboseFlag || cfg.Verbose
	slog.SetDefault(slog.New(newLogHandler(a.stderr, cfg.LogLevel, a.verbose)))
}

func newLogHandler(w io.Writer, level config.LogLevel, verbose bool) *log.Logger {
	lvl, err := log.ParseLevel(string(level))
	if err != nil {
		lvl = log.WarnLevel
	}
	if verbose {
		lvl = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{
		Prefix: "rtvm",
		Level:  lvl,
	})
}
