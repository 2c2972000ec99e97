package version

import (
	"slices"
	"strconv"
	"strings"
)

// Version is a dotted release version made of non-negative integer segments.
// The number of segments is not fixed; "5", "1.2" and "7.7.7.1" are all valid.
type Version struct {
	segments []uint64
}

// Parse parses s into a Version. The input is trimmed first.
// It returns false when s is not a dotted list of non-negative integers.
func Parse(s string) (Version, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, false
	}

	parts := strings.Split(s, ".")
	segments := make([]uint64, 0, len(parts))
	for _, p := range parts {
		if p == "" || !isDigits(p) {
			return Version{}, false
		}
		n, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return Version{}, false
		}
		segments = append(segments, n)
	}
	return Version{segments: segments}, true
}

// MustParse is like Parse but panics on invalid input. Intended for tests and constants.
func MustParse(s string) Version {
	v, ok := Parse(s)
	if !ok {
		panic("version: cannot parse " + strconv.Quote(s))
	}
	return v
}

// isDigits reports whether s only contains ASCII digits.
func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Segments returns a copy of the numeric segments.
func (v Version) Segments() []uint64 {
	return slices.Clone(v.segments)
}

// IsZero reports whether v holds no segments, i.e. was never parsed.
func (v Version) IsZero() bool {
	return len(v.segments) == 0
}

// String renders the segments exactly as parsed ("1.2.0" stays "1.2.0").
func (v Version) String() string {
	parts := make([]string, len(v.segments))
	for i, s := range v.segments {
		parts[i] = strconv.FormatUint(s, 10)
	}
	return strings.Join(parts, ".")
}

// Compare returns -1, 0 or +1. Missing trailing segments count as 0.
func (v Version) Compare(o Version) int {
	n := max(len(v.segments), len(o.segments))
	for i := range n {
		a, b := v.segment(i), o.segment(i)
		switch {
		case a < b:
			return -1
		case a > b:
			return 1
		}
	}
	return 0
}

// segment returns the i-th segment or 0 past the end.
func (v Version) segment(i int) uint64 {
	if i < len(v.segments) {
		return v.segments[i]
	}
	return 0
}

// Equal reports whether v and o compare equal ("1.2" equals "1.2.0").
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// Less reports whether v sorts before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// Prefix returns the release line of v: every segment except the last.
// A single-segment version has an empty prefix.
func (v Version) Prefix() Version {
	if len(v.segments) <= 1 {
		return Version{}
	}
	return Version{segments: slices.Clone(v.segments[:len(v.segments)-1])}
}

// SameLine reports whether o belongs to the release line of v, i.e. shares every
// segment of v except the last. Every version is on the line of a single-segment version.
func (v Version) SameLine(o Version) bool {
	prefix := v.Prefix().segments
	for i, s := range prefix {
		if o.segment(i) != s {
			return false
		}
	}
	return true
}

// Sort sorts versions ascending in place. The sort is stable so equal versions keep
// their input order.
func Sort(versions []Version) {
	slices.SortStableFunc(versions, Version.Compare)
}

// Dedup removes consecutive equal versions. Call Sort first for a full dedup.
func Dedup(versions []Version) []Version {
	return slices.CompactFunc(versions, Version.Equal)
}

// Contains reports whether set holds a version equal to v.
func Contains(set []Version, v Version) bool {
	return slices.ContainsFunc(set, v.Equal)
}

// Strings renders versions with String.
func Strings(versions []Version) []string {
	out := make([]string, len(versions))
	for i, v := range versions {
		out[i] = v.String()
	}
	return out
}
