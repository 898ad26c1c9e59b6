// SPDX-License-Identifier: MPL-2.0

package toolspec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/rtvm/rtvm/pkg/platform"
)

const (
	// KindExact pins a fully qualified version such as "20.10.0".
	KindExact RequirementKind = iota
	// KindPrefix matches the newest version starting with the given segments ("20", "3.11").
	KindPrefix
	// KindLatest selects the newest stable version available.
	KindLatest
	// KindAlias refers to a plugin-scoped alias (e.g. "lts") resolved through an AliasMap.
	KindAlias
	// KindSystem defers to whatever the shell already provides on PATH.
	KindSystem
)

const (
	latestKeyword = "latest"
	systemKeyword = "system"
	prefixKeyword = "prefix:"
)

var (
	// ErrInvalidRequirement is the sentinel wrapped by requirement parse failures.
	ErrInvalidRequirement = errors.New("invalid version requirement")
	// ErrInvalidPluginName is returned when a plugin name contains illegal characters.
	ErrInvalidPluginName = errors.New("invalid plugin name")
)

type (
	// RequirementKind tags the variant held by a Requirement.
	RequirementKind int

	// Requirement is the version half of a spec. Value holds the literal text for
	// Exact, Prefix and Alias requirements and is empty for Latest and System.
	Requirement struct {
		Kind  RequirementKind
		Value string
	}
)

// String returns the kind name.
func (k RequirementKind) String() string {
	switch k {
	case KindExact:
		return "exact"
	case KindPrefix:
		return "prefix"
	case KindLatest:
		return latestKeyword
	case KindAlias:
		return "alias"
	case KindSystem:
		return systemKeyword
	default:
		return "unknown"
	}
}

// Exact returns an exact requirement.
func Exact(v string) Requirement { return Requirement{Kind: KindExact, Value: v} }

// Prefix returns a prefix requirement.
func Prefix(v string) Requirement { return Requirement{Kind: KindPrefix, Value: v} }

// Alias returns an alias requirement.
func Alias(name string) Requirement { return Requirement{Kind: KindAlias, Value: name} }

// Latest returns the "latest" requirement.
func Latest() Requirement { return Requirement{Kind: KindLatest} }

// System returns the "system" requirement.
func System() Requirement { return Requirement{Kind: KindSystem} }

// String renders the requirement the way a user would write it.
func (r Requirement) String() string {
	switch r.Kind {
	case KindLatest:
		return latestKeyword
	case KindSystem:
		return systemKeyword
	default:
		return r.Value
	}
}

// ParseRequirement classifies a version string.
//
//   - "latest" and "system" are keywords
//   - "prefix:X" forces a prefix match on X
//   - strings made only of digits and dots with fewer than three segments are prefixes
//   - anything else starting with a digit (or "v" and a digit) is an exact version
//   - everything else is an alias name
func ParseRequirement(s string) (Requirement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Requirement{}, fmt.Errorf("%w: empty version", ErrInvalidRequirement)
	}

	switch s {
	case latestKeyword:
		return Latest(), nil
	case systemKeyword:
		return System(), nil
	}

	if rest, ok := strings.CutPrefix(s, prefixKeyword); ok {
		if err := checkVersionChars(rest); err != nil {
			return Requirement{}, err
		}
		return Prefix(rest), nil
	}

	if err := checkVersionChars(s); err != nil {
		return Requirement{}, err
	}

	if !startsNumeric(s) {
		return Alias(s), nil
	}
	if isPartialVersion(s) {
		return Prefix(s), nil
	}
	return Exact(s), nil
}

func checkVersionChars(s string) error {
	if s == "" {
		return fmt.Errorf("%w: empty version", ErrInvalidRequirement)
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '.', r == '-', r == '_', r == '+':
		default:
			return fmt.Errorf("%w: illegal character %q in %q", ErrInvalidRequirement, r, s)
		}
	}
	return nil
}

func startsNumeric(s string) bool {
	s = strings.TrimPrefix(s, "v")
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// isPartialVersion reports whether s is one or two purely numeric segments.
func isPartialVersion(s string) bool {
	s = strings.TrimPrefix(s, "v")
	segments := strings.Split(s, ".")
	if len(segments) >= 3 {
		return false
	}
	for _, seg := range segments {
		if seg == "" {
			return false
		}
		for _, r := range seg {
			if r < '0' || r > '9' {
				return false
			}
		}
	}
	return true
}

// ValidatePluginName checks that name is usable as a plugin directory name.
func ValidatePluginName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPluginName)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("%w: illegal character %q in %q", ErrInvalidPluginName, r, name)
		}
	}
	if name == "." || name == ".." || platform.IsWindowsReservedName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidPluginName, name)
	}
	return nil
}
