// Package phonetic groups words that sound alike, using Double Metaphone
// phonetic encoding combined with Jaro-Winkler string similarity.
//
// Two words are considered sound-alikes when:
//
//  1. Phonetic filter: they differ in spelling but share at least one Double
//     Metaphone code (primary or alternate).
//
//  2. Jaro-Winkler gate: their case-insensitive Jaro-Winkler similarity is at
//     or above the configured threshold (default 0.70).
//
// Groups of sound-alikes make good minimal-pair drills for a learner: "their"
// and "there", "write" and "right".
package phonetic

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultThreshold = 0.70
	defaultMaxGroups = 5
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithThreshold sets the minimum Jaro-Winkler score required for two
// phonetically-equal words to be grouped. Default: 0.70.
func WithThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.threshold = threshold
	}
}

// WithMaxGroups caps the number of groups returned by [Matcher.Groups].
// Default: 5.
func WithMaxGroups(n int) Option {
	return func(m *Matcher) {
		m.maxGroups = n
	}
}

// Matcher finds sound-alike words. All methods are safe for concurrent use;
// the Matcher is read-only after construction.
type Matcher struct {
	threshold float64
	maxGroups int
}

// New returns a new [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		threshold: defaultThreshold,
		maxGroups: defaultMaxGroups,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Similar reports whether a and b sound alike and returns their Jaro-Winkler
// score. Identical spellings (case-insensitive) are not sound-alikes.
func (m *Matcher) Similar(a, b string) (score float64, ok bool) {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" || a == b {
		return 0, false
	}
	if !codesOverlap(codes(a), codes(b)) {
		return 0, false
	}
	score = matchr.JaroWinkler(a, b, false)
	return score, score >= m.threshold
}

// Groups clusters the distinct words of words into sound-alike groups. Each
// group is seeded by the earliest unassigned word and contains only words
// similar to that seed. Words are lower-cased and kept in order of first
// appearance; groups with a single member are omitted.
func (m *Matcher) Groups(words []string) [][]string {
	distinct := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		lw := strings.ToLower(strings.TrimSpace(w))
		if lw == "" {
			continue
		}
		if _, ok := seen[lw]; ok {
			continue
		}
		seen[lw] = struct{}{}
		distinct = append(distinct, lw)
	}

	var groups [][]string
	assigned := make([]bool, len(distinct))
	for i, seed := range distinct {
		if assigned[i] {
			continue
		}
		group := []string{seed}
		for j := i + 1; j < len(distinct); j++ {
			if assigned[j] {
				continue
			}
			if _, ok := m.Similar(seed, distinct[j]); ok {
				group = append(group, distinct[j])
				assigned[j] = true
			}
		}
		if len(group) < 2 {
			continue
		}
		assigned[i] = true
		groups = append(groups, group)
		if m.maxGroups > 0 && len(groups) >= m.maxGroups {
			break
		}
	}
	return groups
}

// codes returns the non-empty Double Metaphone codes of word.
func codes(word string) map[string]struct{} {
	out := make(map[string]struct{}, 2)
	p, s := matchr.DoubleMetaphone(word)
	if p != "" {
		out[p] = struct{}{}
	}
	if s != "" {
		out[s] = struct{}{}
	}
	return out
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
