// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/rtvm/rtvm/internal/config"
	"github.com/rtvm/rtvm/internal/configfile"
	"github.com/rtvm/rtvm/internal/plugin"
	"github.com/rtvm/rtvm/internal/toolset"
	"github.com/rtvm/rtvm/internal/tui"
)

type (
	settingsContextKey struct{}

	// App wires CLI services and shared dependencies. It is the composition
	// root for the CLI layer: every Cobra command handler receives an App and
	// builds its engine through it.
	App struct {
		Config   config.Provider
		Prompter toolset.Prompter

		registry   plugin.Registry
		stdin      io.Reader
		stdout     io.Writer
		stderr     io.Writer
		environ    func() []string
		getwd      func() (string, error)
		executable func() (string, error)

		// verbose is set once settings are loaded and read by the error handler.
		verbose bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		// Registry replaces the plugin directory under the data dir.
		Registry   plugin.Registry
		Prompter   toolset.Prompter
		Stdin      io.Reader
		Stdout     io.Writer
		Stderr     io.Writer
		Environ    func() []string
		Getwd      func() (string, error)
		Executable func() (string, error)
	}

	// settings are the per-invocation values the root command loads before
	// any subcommand runs.
	settings struct {
		cfg  *config.Config
		path string
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Prompter == nil {
		deps.Prompter = tui.NewConfirmer()
	}
	if deps.Environ == nil {
		deps.Environ = os.Environ
	}
	if deps.Getwd == nil {
		deps.Getwd = os.Getwd
	}
	if deps.Executable == nil {
		deps.Executable = os.Executable
	}

	return &App{
		Config:     deps.Config,
		Prompter:   deps.Prompter,
		registry:   deps.Registry,
		stdin:      deps.Stdin,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
		environ:    deps.Environ,
		getwd:      deps.Getwd,
		executable: deps.Executable,
	}
}

func contextWithSettings(ctx context.Context, s *settings) context.Context {
	return context.WithValue(ctx, settingsContextKey{}, s)
}

// settingsFromContext returns the loaded settings, or defaults when the
// root command's pre-run hook did not run.
func settingsFromContext(ctx context.Context) *settings {
	if s, ok := ctx.Value(settingsContextKey{}).(*settings); ok {
		return s
	}
	return &settings{cfg: config.DefaultConfig()}
}

// pluginRegistry returns the injected registry or the plugin directory under
// the data dir, with remote version lists cached under the cache dir.
func (a *App) pluginRegistry(cfg *config.Config) (plugin.Registry, error) {
	if a.registry != nil {
		return a.registry, nil
	}

	pluginsDir, err := config.PluginsDir()
	if err != nil {
		return nil, err
	}
	installsDir, err := config.InstallsDir()
	if err != nil {
		return nil, err
	}
	cacheDir, err := config.CacheDir()
	if err != nil {
		return nil, err
	}

	cache := plugin.NewRemoteCache(filepath.Join(cacheDir, "plugins"), cfg.PluginAutoupdateLastCheckDuration)
	a.registry = plugin.NewDirRegistry(pluginsDir, installsDir, cache, a.stderr)
	return a.registry, nil
}

// engine assembles the resolution pipeline for one invocation.
func (a *App) engine(ctx context.Context) (*toolset.Engine, error) {
	s := settingsFromContext(ctx)
	reg, err := a.pluginRegistry(s.cfg)
	if err != nil {
		return nil, err
	}

	environ := a.environ()
	getenv := func(name string) string { return lookupEnv(environ, name) }

	return &toolset.Engine{
		Sources: &toolset.Sources{
			GlobalTools: s.cfg.Tools,
			GlobalPath:  s.path,
			Aliases:     s.cfg.AliasMap(),
			Legacy:      s.cfg.LegacyVersionFile,
			Finder:      configfile.FinderFromEnv(getenv),
			Registry:    reg,
			Environ:     environ,
		},
		Installer: &toolset.Installer{
			Registry: reg,
			Policy:   s.cfg.MissingRuntimeBehavior,
			Jobs:     s.cfg.Jobs,
			Prompter: a.Prompter,
		},
	}, nil
}
