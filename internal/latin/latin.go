// Package latin projects a transcript onto plain ASCII letters and derives a
// rough, English-reader-friendly pronunciation hint from it. The output is
// illustrative only.
package latin

import (
	"regexp"
	"strings"
)

// space lists every whitespace rune: ASCII whitespace including \v, the
// information separators U+001C to U+001F, NEL and the Unicode separators.
const space = `\s\v\x{1c}-\x{1f}\x{85}\p{Z}`

var (
	// disallowed matches anything that is not an ASCII letter, whitespace or
	// one of . , ; : - ? ! '
	disallowed = regexp.MustCompile(`[^A-Za-z` + space + `.,;:\-?!']`)
	whitespace = regexp.MustCompile(`[` + space + `]+`)
)

// hintReplacements are applied in order, one after another.
var hintReplacements = [...][2]string{
	{"j", "y"},
	{"v", "w"},
	{"qu", "kw"},
	{"ae", "eye"},
	{"oe", "oy"},
}

// Latinize removes every character that is not an ASCII letter, whitespace or
// basic punctuation, collapses whitespace runs to a single space and trims
// the result.
func Latinize(text string) string {
	cleaned := disallowed.ReplaceAllString(text, "")
	cleaned = whitespace.ReplaceAllString(cleaned, " ")
	return strings.TrimSpace(cleaned)
}

// PronunciationHint lower-cases latin and applies the fixed substitutions
// j→y, v→w, qu→kw, ae→eye, oe→oy in that order.
func PronunciationHint(latin string) string {
	t := strings.ToLower(latin)
	for _, r := range hintReplacements {
		t = strings.ReplaceAll(t, r[0], r[1])
	}
	return t
}
