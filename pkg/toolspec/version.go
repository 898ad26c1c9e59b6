// SPDX-License-Identifier: MPL-2.0

package toolspec

import (
	"slices"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// unstableMarkers identify pre-release builds that "latest" and prefix
// matching skip whenever a stable candidate exists.
var unstableMarkers = []string{"alpha", "beta", "rc", "dev", "pre", "preview", "snapshot", "nightly", "ea"}

// CompareVersions orders two version strings. Strings that parse as semantic
// versions compare numerically; anything else sorts before them, lexically.
func CompareVersions(a, b string) int {
	va, errA := semver.NewVersion(a)
	vb, errB := semver.NewVersion(b)
	switch {
	case errA == nil && errB == nil:
		if c := va.Compare(vb); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	case errA != nil && errB == nil:
		return -1
	case errA == nil && errB != nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortVersions returns a sorted, de-duplicated copy of versions, oldest first.
func SortVersions(versions []string) []string {
	out := slices.Clone(versions)
	slices.SortFunc(out, CompareVersions)
	return slices.Compact(out)
}

// IsStable reports whether v carries no pre-release marker.
func IsStable(v string) bool {
	lower := strings.ToLower(v)
	for _, marker := range unstableMarkers {
		idx := strings.Index(lower, marker)
		if idx < 0 {
			continue
		}
		// "ea" only counts as its own token, e.g. "17-ea" but not "release".
		if marker == "ea" && !isTokenAt(lower, idx, len(marker)) {
			continue
		}
		return false
	}
	return true
}

func isTokenAt(s string, idx, n int) bool {
	before := idx == 0 || !isLetter(s[idx-1])
	after := idx+n == len(s) || !isLetter(s[idx+n])
	return before && after
}

func isLetter(b byte) bool { return b >= 'a' && b <= 'z' }

// MatchesPrefix reports whether version v falls under prefix p on a segment
// boundary: "20" matches "20" and "20.10.0" but not "200.1".
func MatchesPrefix(v, p string) bool {
	v = strings.TrimPrefix(v, "v")
	p = strings.TrimPrefix(p, "v")
	return v == p || strings.HasPrefix(v, p+".") || strings.HasPrefix(v, p+"-")
}

// Newest returns the newest version in candidates that satisfies req.
// Exact requirements match only themselves. Latest and Prefix prefer stable
// versions, falling back to the newest pre-release when no stable one matches.
// System and Alias requirements never match a concrete version here.
func Newest(req Requirement, candidates []string) (string, bool) {
	var matched []string
	switch req.Kind {
	case KindExact:
		if slices.Contains(candidates, req.Value) {
			return req.Value, true
		}
		return "", false
	case KindPrefix:
		for _, c := range candidates {
			if MatchesPrefix(c, req.Value) {
				matched = append(matched, c)
			}
		}
	case KindLatest:
		matched = slices.Clone(candidates)
	default:
		return "", false
	}

	if len(matched) == 0 {
		return "", false
	}
	sorted := SortVersions(matched)
	for i := len(sorted) - 1; i >= 0; i-- {
		if IsStable(sorted[i]) {
			return sorted[i], true
		}
	}
	return sorted[len(sorted)-1], true
}
