// SPDX-License-Identifier: MPL-2.0

package shell

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rtvm/rtvm/internal/hookenv"
)

// ErrUnsupportedShell is the sentinel wrapped by UnsupportedShellError.
var ErrUnsupportedShell = errors.New("unsupported shell")

type (
	// Shell renders rtvm's effects in one shell dialect.
	Shell interface {
		Name() string
		// Activate returns the snippet that installs the prompt hook.
		Activate(opts ActivateOptions) string
		// Deactivate returns the snippet that removes the prompt hook.
		Deactivate() string
		SetEnv(name, value string) string
		UnsetEnv(name string) string
	}

	// ActivateOptions configure the activation snippet.
	ActivateOptions struct {
		// Exe is the absolute path of the rtvm binary.
		Exe string
		// Status makes the hook report tool changes on stderr.
		Status bool
	}

	// UnsupportedShellError names a shell rtvm has no dialect for.
	UnsupportedShellError struct {
		Name string
	}
)

var shells = map[string]Shell{
	"bash":   posix{name: "bash"},
	"zsh":    posix{name: "zsh"},
	"fish":   fish{},
	"elvish": elvish{},
}

// Error implements the error interface.
func (e *UnsupportedShellError) Error() string {
	return fmt.Sprintf("unsupported shell %q (supported: %s)", e.Name, strings.Join(Names(), ", "))
}

// Unwrap returns ErrUnsupportedShell for errors.Is() compatibility.
func (e *UnsupportedShellError) Unwrap() error { return ErrUnsupportedShell }

// Get returns the dialect for name. A path such as /bin/zsh is accepted.
func Get(name string) (Shell, error) {
	base := strings.TrimPrefix(filepath.Base(name), "-")
	if sh, ok := shells[base]; ok {
		return sh, nil
	}
	return nil, &UnsupportedShellError{Name: name}
}

// Names returns the supported shell names, sorted.
func Names() []string {
	names := make([]string, 0, len(shells))
	for name := range shells {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Render emits a reconciliation plan: unsets first, then assignments in order.
func Render(sh Shell, plan hookenv.Plan) string {
	var sb strings.Builder
	for _, name := range plan.Unset {
		sb.WriteString(sh.UnsetEnv(name))
	}
	for _, v := range plan.Set {
		sb.WriteString(sh.SetEnv(v.Name, v.Value))
	}
	return sb.String()
}

func hookCommand(opts ActivateOptions, quote func(string) string, dialect string) string {
	cmd := quote(opts.Exe) + " hook-env"
	if opts.Status {
		cmd += " --status"
	}
	return cmd + " -s " + dialect
}
