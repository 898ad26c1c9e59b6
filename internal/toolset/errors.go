// SPDX-License-Identifier: MPL-2.0

package toolset

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrAliasUnresolved is the sentinel wrapped by AliasResolutionError.
	ErrAliasUnresolved = errors.New("alias not defined")
	// ErrInstallFailed is the sentinel wrapped by InstallError.
	ErrInstallFailed = errors.New("install failed")
	// ErrPromptUnavailable is returned by a Prompter that has no terminal to ask on.
	ErrPromptUnavailable = errors.New("no terminal available to prompt")
)

type (
	// AliasResolutionError reports an alias that has no target and no
	// installed or remote version of the same name.
	AliasResolutionError struct {
		Plugin string
		Alias  string
	}

	// InstallFailure is one failed (plugin, version) pair.
	InstallFailure struct {
		Plugin  string
		Version string
		Err     error
	}

	// InstallError aggregates every failure of one install pass. Tools that
	// installed successfully are unaffected.
	InstallError struct {
		Failures []InstallFailure
	}
)

// Error implements the error interface.
func (e *AliasResolutionError) Error() string {
	return fmt.Sprintf("alias %q is not defined for plugin %s", e.Alias, e.Plugin)
}

// Unwrap returns ErrAliasUnresolved for errors.Is() compatibility.
func (e *AliasResolutionError) Unwrap() error { return ErrAliasUnresolved }

// Error implements the error interface.
func (f InstallFailure) Error() string {
	return fmt.Sprintf("%s@%s: %v", f.Plugin, f.Version, f.Err)
}

// Error lists every failure, one per line after the summary.
func (e *InstallError) Error() string {
	var sb strings.Builder
	if len(e.Failures) == 1 {
		sb.WriteString("failed to install 1 tool")
	} else {
		fmt.Fprintf(&sb, "failed to install %d tools", len(e.Failures))
	}
	for _, f := range e.Failures {
		sb.WriteString("\n  ")
		sb.WriteString(f.Error())
	}
	return sb.String()
}

// Unwrap returns ErrInstallFailed followed by each failure's cause.
func (e *InstallError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures)+1)
	errs = append(errs, ErrInstallFailed)
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
