// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/rtvm/rtvm/pkg/toolspec"
)

const (
	// AutoInstall installs missing versions without asking.
	AutoInstall MissingRuntimeBehavior = "autoinstall"
	// Prompt asks on the controlling terminal before installing.
	Prompt MissingRuntimeBehavior = "prompt"
	// Warn reports the missing version and carries on without it.
	Warn MissingRuntimeBehavior = "warn"
	// Ignore carries on without the missing version, silently.
	Ignore MissingRuntimeBehavior = "ignore"

	// LogLevelDebug enables debug logging.
	LogLevelDebug LogLevel = "debug"
	// LogLevelInfo enables informational logging.
	LogLevelInfo LogLevel = "info"
	// LogLevelWarn logs warnings and errors only.
	LogLevelWarn LogLevel = "warn"
	// LogLevelError logs errors only.
	LogLevelError LogLevel = "error"

	// DefaultAutoupdateDuration is the default staleness for cached remote version lists.
	DefaultAutoupdateDuration = 7 * 24 * time.Hour
)

var (
	// ErrInvalidMissingRuntimeBehavior is returned for unknown policy names.
	ErrInvalidMissingRuntimeBehavior = errors.New("invalid missing runtime behavior")
	// ErrInvalidLogLevel is returned for unknown log level names.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrInvalidJobs is returned when jobs is below one.
	ErrInvalidJobs = errors.New("invalid jobs")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// MissingRuntimeBehavior controls what the installer does with pinned but
	// absent versions. It is consulted once per resolution pass.
	MissingRuntimeBehavior string

	// InvalidMissingRuntimeBehaviorError is returned when a MissingRuntimeBehavior
	// value is not recognized. It wraps ErrInvalidMissingRuntimeBehavior.
	InvalidMissingRuntimeBehaviorError struct {
		Value MissingRuntimeBehavior
	}

	// LogLevel names the minimum level written to stderr.
	LogLevel string

	// InvalidLogLevelError is returned when a LogLevel value is not recognized.
	InvalidLogLevelError struct {
		Value LogLevel
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors.
	InvalidConfigError struct {
		FieldErrors []error
	}

	// Config holds rtvm settings.
	Config struct {
		// Jobs bounds the number of concurrent plugin installs.
		Jobs int `json:"jobs" mapstructure:"jobs"`
		// MissingRuntimeBehavior selects the installer policy.
		MissingRuntimeBehavior MissingRuntimeBehavior `json:"missing_runtime_behavior" mapstructure:"missing_runtime_behavior"`
		// LegacyVersionFile enables per-language version files.
		LegacyVersionFile bool `json:"legacy_version_file" mapstructure:"legacy_version_file"`
		// PluginAutoupdateLastCheckDuration is the remote version cache staleness.
		PluginAutoupdateLastCheckDuration time.Duration `json:"plugin_autoupdate_last_check_duration" mapstructure:"plugin_autoupdate_last_check_duration"`
		// Aliases maps plugin -> alias -> version.
		Aliases map[string]map[string]string `json:"aliases" mapstructure:"aliases"`
		// Tools are the global default requirements, lowest precedence.
		Tools map[string]string `json:"tools" mapstructure:"tools"`
		// Verbose enables verbose output
		Verbose bool `json:"verbose" mapstructure:"verbose"`
		// LogLevel is the stderr log threshold.
		LogLevel LogLevel `json:"log_level" mapstructure:"log_level"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Jobs:                              runtime.NumCPU(),
		MissingRuntimeBehavior:            Prompt,
		LegacyVersionFile:                 true,
		PluginAutoupdateLastCheckDuration: DefaultAutoupdateDuration,
		Aliases:                           map[string]map[string]string{},
		Tools:                             map[string]string{},
		LogLevel:                          LogLevelWarn,
	}
}

// String returns the string representation of the MissingRuntimeBehavior.
func (b MissingRuntimeBehavior) String() string { return string(b) }

// IsValid returns whether the MissingRuntimeBehavior is one of the defined values.
func (b MissingRuntimeBehavior) IsValid() (bool, []error) {
	switch b {
	case AutoInstall, Prompt, Warn, Ignore:
		return true, nil
	default:
		return false, []error{&InvalidMissingRuntimeBehaviorError{Value: b}}
	}
}

// ParseMissingRuntimeBehavior parses a policy name, case-insensitively.
func ParseMissingRuntimeBehavior(s string) (MissingRuntimeBehavior, error) {
	b := MissingRuntimeBehavior(strings.ToLower(strings.TrimSpace(s)))
	if ok, errs := b.IsValid(); !ok {
		return "", errs[0]
	}
	return b, nil
}

// Error implements the error interface for InvalidMissingRuntimeBehaviorError.
func (e *InvalidMissingRuntimeBehaviorError) Error() string {
	return fmt.Sprintf("invalid missing_runtime_behavior %q (valid: autoinstall, prompt, warn, ignore)", e.Value)
}

// Unwrap returns ErrInvalidMissingRuntimeBehavior for errors.Is() compatibility.
func (e *InvalidMissingRuntimeBehaviorError) Unwrap() error { return ErrInvalidMissingRuntimeBehavior }

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string { return string(l) }

// IsValid returns whether the LogLevel is one of the defined values.
// The zero value is valid and means the default level.
func (l LogLevel) IsValid() (bool, []error) {
	switch l {
	case "", LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
		return true, nil
	default:
		return false, []error{&InvalidLogLevelError{Value: l}}
	}
}

// Error implements the error interface for InvalidLogLevelError.
func (e *InvalidLogLevelError) Error() string {
	return fmt.Sprintf("invalid log_level %q (valid: debug, info, warn, error)", e.Value)
}

// Unwrap returns ErrInvalidLogLevel for errors.Is() compatibility.
func (e *InvalidLogLevelError) Unwrap() error { return ErrInvalidLogLevel }

// IsValid returns whether the Config has valid fields.
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if c.Jobs < 1 {
		errs = append(errs, fmt.Errorf("%w: %d (must be >= 1)", ErrInvalidJobs, c.Jobs))
	}
	if valid, fieldErrs := c.MissingRuntimeBehavior.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.LogLevel.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	for plugin := range c.Tools {
		if err := toolspec.ValidatePluginName(plugin); err != nil {
			errs = append(errs, fmt.Errorf("tools: %w", err))
		}
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.FieldErrors))
	for _, fe := range e.FieldErrors {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid config: %s", strings.Join(msgs, "; "))
}

// Unwrap returns ErrInvalidConfig and the field errors.
func (e *InvalidConfigError) Unwrap() []error {
	return append([]error{ErrInvalidConfig}, e.FieldErrors...)
}

// AliasMap returns the configured aliases as a toolspec.AliasMap.
func (c *Config) AliasMap() toolspec.AliasMap {
	return toolspec.AliasMap(c.Aliases)
}
