package coach

import (
	"strings"
	"unicode/utf8"
)

// MaxFixes caps the number of fixes kept from a weakest-point reply.
const MaxFixes = 8

// UnknownWeakestPoint is used when the reply carries no "Weakest:" line.
const UnknownWeakestPoint = "Unknown"

// WeakestPoint is the structured form of a weakest-point reply.
type WeakestPoint struct {
	// Phrase names the single issue most in need of practice.
	Phrase string `json:"weakest_point"`

	// Explanation is the "Why:" section, or the whole trimmed reply when the
	// model did not provide one.
	Explanation string `json:"explanation"`

	// Fixes holds up to [MaxFixes] hyphen-bulleted lines in reply order.
	Fixes []string `json:"fixes"`
}

// ParseWeakestPoint extracts the three optional sections of a weakest-point
// reply. It never fails: missing sections fall back to defaults and unknown
// lines are ignored.
//
// A line whose trimmed, lower-cased form starts with "weakest:" or "why:" sets
// the phrase or explanation to the text after its first colon. Any other line
// starting with "-" after trimming contributes a fix. Later section lines
// overwrite earlier ones.
func ParseWeakestPoint(reply string) WeakestPoint {
	wp := WeakestPoint{Phrase: UnknownWeakestPoint, Fixes: []string{}}

	for _, line := range splitLines(reply) {
		trimmed := strings.TrimSpace(line)
		low := strings.ToLower(trimmed)
		switch {
		case strings.HasPrefix(low, "weakest:"):
			wp.Phrase = afterColon(line)
		case strings.HasPrefix(low, "why:"):
			wp.Explanation = afterColon(line)
		case strings.HasPrefix(trimmed, "-"):
			if len(wp.Fixes) < MaxFixes {
				wp.Fixes = append(wp.Fixes, strings.TrimSpace(trimmed[1:]))
			}
		}
	}

	if wp.Explanation == "" {
		wp.Explanation = strings.TrimSpace(reply)
	}
	return wp
}

// afterColon returns the trimmed text following the first ':' in line.
func afterColon(line string) string {
	_, after, _ := strings.Cut(line, ":")
	return strings.TrimSpace(after)
}

// splitLines splits s at every line boundary: \n, \r\n, \r, vertical tab,
// form feed, the file/group/record separators, NEL, and the Unicode line and
// paragraph separators. Terminators are not included and a trailing
// terminator does not produce an empty final line.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		switch r {
		case '\r':
			lines = append(lines, s[start:i])
			if i+1 < len(s) && s[i+1] == '\n' {
				size = 2
			}
			start = i + size
		case '\n', '\v', '\f', '\x1c', '\x1d', '\x1e', '\u0085', '\u2028', '\u2029':
			lines = append(lines, s[start:i])
			start = i + size
		}
		i += size
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
