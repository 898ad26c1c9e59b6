// SPDX-License-Identifier: MPL-2.0

package config

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/rtvm/rtvm/internal/issue"
	"github.com/rtvm/rtvm/pkg/platform"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name.
	AppName = "rtvm"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "RTVM"
	// ConfigFileName is the name of the config file (without extension).
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "cue"

	// maxConfigFileSize bounds how much of a config file is read.
	maxConfigFileSize = 1 << 20
)

//go:embed config_schema.cue
var configSchema string

// ConfigDir returns the rtvm configuration directory. $RTVM_CONFIG_DIR wins;
// otherwise Windows uses %APPDATA%, macOS uses ~/Library/Application Support,
// and Linux/others use $XDG_CONFIG_HOME (defaulting to ~/.config).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}
	if dir := os.Getenv(EnvPrefix + "_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	var configDir string

	switch runtime.GOOS {
	case platform.Windows:
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case platform.Darwin:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, AppName), nil
}

// DataDir returns the directory holding plugins/ and installs/.
// $RTVM_DATA_DIR wins, then $XDG_DATA_HOME/rtvm, then ~/.local/share/rtvm.
func DataDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "_DATA_DIR"); dir != "" {
		return dir, nil
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".local", "share", AppName), nil
}

// CacheDir returns the directory for remote version list caches.
// $RTVM_CACHE_DIR wins, then the platform user cache directory.
func CacheDir() (string, error) {
	if dir := os.Getenv(EnvPrefix + "_CACHE_DIR"); dir != "" {
		return dir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get cache directory: %w", err)
	}
	return filepath.Join(base, AppName), nil
}

// PluginsDir returns the directory scanned for installed plugins.
func PluginsDir() (string, error) {
	data, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(data, "plugins"), nil
}

// InstallsDir returns the directory holding <plugin>/<version> installs.
func InstallsDir() (string, error) {
	data, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(data, "installs"), nil
}

// newViper returns a viper instance carrying the defaults and, when withEnv
// is set, the RTVM_* env bindings.
func newViper(withEnv bool) *viper.Viper {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("jobs", defaults.Jobs)
	v.SetDefault("missing_runtime_behavior", string(defaults.MissingRuntimeBehavior))
	v.SetDefault("legacy_version_file", defaults.LegacyVersionFile)
	v.SetDefault("plugin_autoupdate_last_check_duration", defaults.PluginAutoupdateLastCheckDuration)
	v.SetDefault("aliases", defaults.Aliases)
	v.SetDefault("tools", defaults.Tools)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("log_level", string(defaults.LogLevel))

	if withEnv {
		v.SetEnvPrefix(EnvPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		v.AutomaticEnv()
	}

	return v
}

// loadWithOptions performs option-driven config loading without mutating
// package-level state. It returns the config and the file it came from, if any.
func loadWithOptions(ctx context.Context, opts LoadOptions) (*Config, string, error) {
	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load config canceled: %w", ctx.Err())
	default:
	}

	v := newViper(true)

	resolvedPath, err := resolveConfigPath(opts)
	if err != nil {
		return nil, "", err
	}

	if resolvedPath != "" {
		if err := loadCUEIntoViper(v, resolvedPath); err != nil {
			return nil, "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(resolvedPath).
				WithSuggestion("Check that the file contains valid CUE syntax").
				WithSuggestion("Verify the configuration values match the expected schema").
				WithSuggestion("Run 'rtvm config dump' to see the effective configuration").
				Wrap(err).
				BuildError()
		}
	}

	if err := ignoreInvalidBehaviorEnv(v, resolvedPath); err != nil {
		return nil, "", err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.MissingRuntimeBehavior = MissingRuntimeBehavior(strings.ToLower(string(cfg.MissingRuntimeBehavior)))
	cfg.LogLevel = LogLevel(strings.ToLower(string(cfg.LogLevel)))

	if valid, errs := cfg.IsValid(); !valid {
		return nil, "", issue.NewErrorContext().
			WithOperation("validate configuration").
			WithResource(resolvedPath).
			WithSuggestion("Check RTVM_* environment variables as well as the config file").
			Wrap(errs[0]).
			BuildError()
	}

	return &cfg, resolvedPath, nil
}

// ignoreInvalidBehaviorEnv drops an unrecognised RTVM_MISSING_RUNTIME_BEHAVIOR
// so the configured policy applies.
func ignoreInvalidBehaviorEnv(v *viper.Viper, path string) error {
	const key = "missing_runtime_behavior"
	envVar := EnvPrefix + "_" + strings.ToUpper(key)

	raw, ok := os.LookupEnv(envVar)
	if !ok {
		return nil
	}
	if valid, _ := MissingRuntimeBehavior(strings.ToLower(raw)).IsValid(); valid {
		return nil
	}

	fallback := newViper(false)
	if path != "" {
		if err := loadCUEIntoViper(fallback, path); err != nil {
			return err
		}
	}
	slog.Debug("ignoring invalid environment override", "var", envVar, "value", raw, "using", fallback.GetString(key))
	v.Set(key, fallback.GetString(key))
	return nil
}

// resolveConfigPath returns the config file to load, or "" when only defaults apply.
// An explicitly requested file must exist.
func resolveConfigPath(opts LoadOptions) (string, error) {
	if opts.ConfigFilePath != "" {
		if !fileExists(opts.ConfigFilePath) {
			return "", issue.NewErrorContext().
				WithOperation("load configuration").
				WithResource(opts.ConfigFilePath).
				WithSuggestion("Verify the file path is correct").
				WithSuggestion("Run 'rtvm config init' to create a default configuration").
				Wrap(fmt.Errorf("config file not found: %s", opts.ConfigFilePath)).
				BuildError()
		}
		return opts.ConfigFilePath, nil
	}

	cfgDir, err := configDirWithOverride(opts.ConfigDirPath)
	if err != nil {
		return "", err
	}
	cuePath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if fileExists(cuePath) {
		return cuePath, nil
	}
	return "", nil
}

// configDirWithOverride resolves the configuration directory, honoring
// explicit provider options before platform defaults.
func configDirWithOverride(configDirPath string) (string, error) {
	if configDirPath != "" {
		return configDirPath, nil
	}
	return ConfigDir()
}

// loadCUEIntoViper parses a CUE file, validates it against the #Config schema,
// and merges its contents into Viper. Fields are optional, so validation uses
// Concrete(false) and decodes to a map for Viper to layer over the defaults.
func loadCUEIntoViper(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if len(data) > maxConfigFileSize {
		return fmt.Errorf("%s: file size %d bytes exceeds maximum %d bytes", path, len(data), maxConfigFileSize)
	}

	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(configSchema)
	if schemaValue.Err() != nil {
		return fmt.Errorf("internal error: failed to compile config schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename(path))
	if userValue.Err() != nil {
		return formatCUEError(userValue.Err(), path)
	}

	schema := schemaValue.LookupPath(cue.ParsePath("#Config"))
	unified := schema.Unify(userValue)
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return formatCUEError(err, path)
	}

	var configMap map[string]any
	if err := unified.Decode(&configMap); err != nil {
		return formatCUEError(err, path)
	}

	if err := v.MergeConfigMap(configMap); err != nil {
		return fmt.Errorf("failed to merge config: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// CreateDefaultConfig writes a default config file unless one already exists.
// It returns the path of the config file.
func CreateDefaultConfig() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	cfgPath := filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt)
	if _, err := os.Stat(cfgPath); err == nil {
		return cfgPath, nil
	}

	if err := os.WriteFile(cfgPath, []byte(GenerateCUE(DefaultConfig())), 0o644); err != nil {
		return "", fmt.Errorf("failed to write config file: %w", err)
	}

	return cfgPath, nil
}

// GenerateCUE generates a CUE representation of the configuration.
// Map entries are written in sorted key order.
func GenerateCUE(cfg *Config) string {
	var sb strings.Builder

	sb.WriteString("// rtvm configuration file\n")
	sb.WriteString("// Values here can be overridden with RTVM_* environment variables.\n\n")

	fmt.Fprintf(&sb, "jobs: %d\n", cfg.Jobs)
	fmt.Fprintf(&sb, "missing_runtime_behavior: %q\n", cfg.MissingRuntimeBehavior)
	fmt.Fprintf(&sb, "legacy_version_file: %v\n", cfg.LegacyVersionFile)
	fmt.Fprintf(&sb, "plugin_autoupdate_last_check_duration: %q\n", cfg.PluginAutoupdateLastCheckDuration.String())
	fmt.Fprintf(&sb, "verbose: %v\n", cfg.Verbose)
	if cfg.LogLevel != "" {
		fmt.Fprintf(&sb, "log_level: %q\n", cfg.LogLevel)
	}

	if len(cfg.Tools) > 0 {
		sb.WriteString("\ntools: {\n")
		for _, plugin := range sortedKeys(cfg.Tools) {
			fmt.Fprintf(&sb, "\t%q: %q\n", plugin, cfg.Tools[plugin])
		}
		sb.WriteString("}\n")
	}

	if len(cfg.Aliases) > 0 {
		sb.WriteString("\naliases: {\n")
		for _, plugin := range sortedKeys(cfg.Aliases) {
			fmt.Fprintf(&sb, "\t%q: {\n", plugin)
			for _, alias := range sortedKeys(cfg.Aliases[plugin]) {
				fmt.Fprintf(&sb, "\t\t%q: %q\n", alias, cfg.Aliases[plugin][alias])
			}
			sb.WriteString("\t}\n")
		}
		sb.WriteString("}\n")
	}

	return sb.String()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
