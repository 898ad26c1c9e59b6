// SPDX-License-Identifier: MPL-2.0

package toolspec

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// SourceGlobalConfig is the `tools` table of the user's global config file.
	SourceGlobalConfig SourceKind = iota
	// SourceLegacyFile is a per-language file such as .nvmrc or .python-version.
	SourceLegacyFile
	// SourceProjectConfig is a .tool-versions or .rtvm.toml file.
	SourceProjectConfig
	// SourceEnvironment is an RTVM_<PLUGIN>_VERSION variable.
	SourceEnvironment
	// SourceArgument is a spec given on the command line.
	SourceArgument
)

// ErrInvalidSpec is the sentinel wrapped by ParseError.
var ErrInvalidSpec = errors.New("invalid version spec")

type (
	// SourceKind orders spec sources by precedence, lowest first.
	SourceKind int

	// Source records where a spec came from.
	Source struct {
		Kind SourceKind
		// Path is the file that contributed the spec; empty for arguments.
		Path string
		// Line is the 1-based line within Path, when known.
		Line int
	}

	// VersionSpec is a plugin name paired with a version requirement.
	VersionSpec struct {
		Plugin      string
		Requirement Requirement
		Source      Source
	}

	// ParseError reports a malformed spec together with the source it came from.
	// It wraps ErrInvalidSpec for errors.Is() compatibility.
	ParseError struct {
		Source Source
		Input  string
		Cause  error
	}
)

// String returns a human-readable source kind.
func (k SourceKind) String() string {
	switch k {
	case SourceGlobalConfig:
		return "global config"
	case SourceLegacyFile:
		return "legacy version file"
	case SourceProjectConfig:
		return "project config"
	case SourceEnvironment:
		return "environment"
	case SourceArgument:
		return "argument"
	default:
		return "unknown"
	}
}

// String describes the source for diagnostics.
func (s Source) String() string {
	switch {
	case s.Path != "" && s.Line > 0:
		return fmt.Sprintf("%s:%d", s.Path, s.Line)
	case s.Path != "":
		return s.Path
	default:
		return s.Kind.String()
	}
}

// String renders the spec as plugin@requirement.
func (v VersionSpec) String() string {
	return v.Plugin + "@" + v.Requirement.String()
}

// Error implements the error interface for ParseError.
func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid version spec %q (%s): %v", e.Input, e.Source, e.Cause)
}

// Unwrap returns the sentinel and the underlying cause.
func (e *ParseError) Unwrap() []error {
	return []error{ErrInvalidSpec, e.Cause}
}

// New parses a requirement for an already-known plugin name.
func New(plugin, requirement string, source Source) (VersionSpec, error) {
	input := plugin + " " + requirement
	if err := ValidatePluginName(plugin); err != nil {
		return VersionSpec{}, &ParseError{Source: source, Input: input, Cause: err}
	}
	req, err := ParseRequirement(requirement)
	if err != nil {
		return VersionSpec{}, &ParseError{Source: source, Input: input, Cause: err}
	}
	return VersionSpec{Plugin: plugin, Requirement: req, Source: source}, nil
}

// Parse parses "plugin@requirement". A bare plugin name means latest.
func Parse(arg string, source Source) (VersionSpec, error) {
	plugin, requirement, found := strings.Cut(strings.TrimSpace(arg), "@")
	if !found {
		if err := ValidatePluginName(plugin); err != nil {
			return VersionSpec{}, &ParseError{Source: source, Input: arg, Cause: err}
		}
		return VersionSpec{Plugin: plugin, Requirement: Latest(), Source: source}, nil
	}
	spec, err := New(plugin, requirement, source)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			pe.Input = arg
		}
		return VersionSpec{}, err
	}
	return spec, nil
}

// ParseArgs parses command-line specs, failing on the first malformed one.
func ParseArgs(args []string) ([]VersionSpec, error) {
	specs := make([]VersionSpec, 0, len(args))
	for _, arg := range args {
		spec, err := Parse(arg, Source{Kind: SourceArgument})
		if err != nil {
			return nil, err
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
