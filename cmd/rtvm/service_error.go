// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/rtvm/rtvm/internal/issue"
	"github.com/rtvm/rtvm/internal/plugin"
	"github.com/rtvm/rtvm/internal/shell"
	"github.com/rtvm/rtvm/internal/toolset"
	"github.com/rtvm/rtvm/pkg/toolspec"
)

// ServiceError is an error that carries optional rendering information for
// the CLI layer. When the CLI layer receives a ServiceError, it renders the
// styled error message (if present) before formatting the underlying error.
// Always create via newServiceError to enforce the Err-must-be-non-nil invariant.
type ServiceError struct {
	// Err is the underlying error (must not be nil).
	Err error
	// IssueID is the optional issue catalog ID for rendering help text.
	IssueID issue.Id
	// StyledMessage is the optional pre-rendered styled error text.
	StyledMessage string
}

// newServiceError creates a ServiceError with a nil-Err panic guard.
func newServiceError(err error, issueID issue.Id, styledMessage string) *ServiceError {
	if err == nil {
		panic("ServiceError: Err must not be nil")
	}
	return &ServiceError{
		Err:           err,
		IssueID:       issueID,
		StyledMessage: styledMessage,
	}
}

// Error implements the error interface.
func (e *ServiceError) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *ServiceError) Unwrap() error { return e.Err }

// renderServiceError prints any styled message first, then the optional
// issue help section.
func renderServiceError(stderr io.Writer, svcErr *ServiceError) {
	if svcErr == nil {
		return
	}

	if svcErr.StyledMessage != "" {
		fmt.Fprint(stderr, svcErr.StyledMessage)
	}

	if svcErr.IssueID == 0 {
		return
	}

	if catalogEntry := issue.Get(svcErr.IssueID); catalogEntry != nil {
		rendered, renderErr := catalogEntry.Render("dark")
		if renderErr != nil {
			slog.Warn("failed to render issue catalog entry", "issueID", svcErr.IssueID, "error", renderErr)
		} else {
			fmt.Fprint(stderr, rendered)
		}
	}
}

// classifyError maps a domain failure to its issue catalog entry. Errors
// that are already a ServiceError or ExitError pass through.
func classifyError(err error, verbose bool) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	var exitErr *ExitError
	if errors.As(err, &svcErr) || errors.As(err, &exitErr) {
		return err
	}

	var issueID issue.Id
	switch {
	case errors.Is(err, toolspec.ErrInvalidSpec):
		issueID = issue.VersionSpecInvalidId
	case errors.Is(err, toolset.ErrInstallFailed):
		issueID = issue.InstallFailedId
	case errors.Is(err, plugin.ErrPluginNotFound):
		issueID = issue.PluginNotFoundId
	case errors.Is(err, plugin.ErrVersionNotFound):
		issueID = issue.VersionNotFoundId
	case errors.Is(err, toolset.ErrAliasUnresolved):
		issueID = issue.AliasUnresolvedId
	case errors.Is(err, shell.ErrUnsupportedShell):
		issueID = issue.ShellNotSupportedId
	default:
		return err
	}
	return newServiceError(err, issueID, fmt.Sprintf("\n%s %s\n", ErrorStyle.Render("Error:"), formatErrorForDisplay(err, verbose)))
}

// formatErrorForDisplay formats an error for user display.
// If the error is an ActionableError, it uses the Format method.
// In verbose mode, shows the full error chain.
func formatErrorForDisplay(err error, verboseMode bool) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verboseMode)
	}
	return err.Error()
}
