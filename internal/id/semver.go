package id

import (
	"fmt"
	"strconv"
	"strings"
)

// SemVer is a minimal parsed representation of a semantic version, sized to
// exactly the comparisons the registry needs: exact equality, caret-range
// compatibility, and ordering for search-index pagination.
type SemVer struct {
	Major, Minor, Patch int
	Pre                 string
	raw                 string
}

func (v SemVer) String() string {
	return v.raw
}

// ParseSemVer parses a string of the form "MAJOR.MINOR.PATCH[-prerelease]".
func ParseSemVer(s string) (SemVer, error) {
	if s == "" {
		return SemVer{}, fmt.Errorf("empty version")
	}
	raw := s
	pre := ""
	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		pre = s[idx+1:]
		s = s[:idx]
	}
	if idx := strings.IndexByte(s, '+'); idx >= 0 {
		s = s[:idx]
	}
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return SemVer{}, fmt.Errorf("version %q is not a valid semver", raw)
	}
	nums := make([]int, 3)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return SemVer{}, fmt.Errorf("version %q is not a valid semver", raw)
		}
		nums[i] = n
	}
	return SemVer{Major: nums[0], Minor: nums[1], Patch: nums[2], Pre: pre, raw: raw}, nil
}

// Compare returns -1, 0, or 1 if v is less than, equal to, or greater than o.
// Pre-release versions sort before their corresponding release.
func (v SemVer) Compare(o SemVer) int {
	if v.Major != o.Major {
		return cmpInt(v.Major, o.Major)
	}
	if v.Minor != o.Minor {
		return cmpInt(v.Minor, o.Minor)
	}
	if v.Patch != o.Patch {
		return cmpInt(v.Patch, o.Patch)
	}
	if v.Pre == o.Pre {
		return 0
	}
	if v.Pre == "" {
		return 1
	}
	if o.Pre == "" {
		return -1
	}
	return strings.Compare(v.Pre, o.Pre)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Range is a parsed version requirement: either empty (matches everything),
// an exact version, or a caret ("^") compatible-range lower bound.
type Range struct {
	empty bool
	caret bool
	ver   SemVer
}

// ParseRange parses an NPM-style version requirement. A bare version string
// means exact match; a "^"-prefixed version means caret-compatible range; an
// empty string matches anything.
func ParseRange(s string) (Range, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Range{empty: true}, nil
	}
	caret := false
	if strings.HasPrefix(s, "^") {
		caret = true
		s = s[1:]
	}
	v, err := ParseSemVer(s)
	if err != nil {
		return Range{}, err
	}
	return Range{caret: caret, ver: v}, nil
}

// Matches reports whether v satisfies the range.
func (r Range) Matches(v SemVer) bool {
	if r.empty {
		return true
	}
	if !r.caret {
		return v.Compare(r.ver) == 0
	}
	if v.Major != r.ver.Major {
		return false
	}
	return v.Compare(r.ver) >= 0
}
