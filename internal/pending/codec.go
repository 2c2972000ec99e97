// Package pending encodes the pending-versions custom field.
//
// The field is plain text holding comma separated versions, e.g. "1.2, 3.4, 5".
// Humans edit it in the Jira UI, so decoding is tolerant: whitespace around commas
// is ignored and anything that does not parse as a version is dropped.
package pending

import (
	"regexp"
	"slices"
	"strings"

	"github.com/gi8lino/relbot/internal/version"
)

// Separator joins encoded versions.
const Separator = ", "

var splitRe = regexp.MustCompile(`\s*,\s*`)

// Encode sorts and deduplicates versions and joins them with Separator.
// The input slice is not modified.
func Encode(versions []version.Version) string {
	vs := slices.Clone(versions)
	version.Sort(vs)
	vs = version.Dedup(vs)
	return strings.Join(version.Strings(vs), Separator)
}

// Decode parses the field text into versions in the order they appear.
// Unparseable parts are dropped; Decode never fails.
func Decode(text string) []version.Version {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var out []version.Version
	for _, part := range splitRe.Split(text, -1) {
		if v, ok := version.Parse(part); ok {
			out = append(out, v)
		}
	}
	return out
}
