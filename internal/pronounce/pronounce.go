// Package pronounce estimates pronunciation difficulty from orthography alone.
//
// Nothing here listens to audio. Words are scored by a vowel-group syllable
// estimate and by letter clusters that are uncommon in the learner's native
// language, and the results are ranked into practice targets. Every function
// is pure and deterministic: identical input yields identical output.
package pronounce

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/MrWong99/lingocoach/internal/pronounce/phonetic"
)

const (
	// DefaultBiggestWords is the number of entries returned by [BiggestWords]
	// when topN is not positive.
	DefaultBiggestWords = 10

	// DefaultMismatchWords is the number of entries returned by
	// [MismatchWords] when topN is not positive.
	DefaultMismatchWords = 12

	// DefaultSoundAlikeGroups caps the number of groups in [Targets.SoundAlikes].
	DefaultSoundAlikeGroups = 5

	// ConsonantRunReason is the synthetic reason attached to words containing
	// four or more consecutive consonants.
	ConsonantRunReason = "consonant-run(4+)"
)

var (
	wordRe         = regexp.MustCompile(`[A-Za-zÀ-ÖØ-öø-ÿ]+(?:'[A-Za-zÀ-ÖØ-öø-ÿ]+)?`)
	consonantRunRe = regexp.MustCompile(`(?i)[bcdfghjklmnpqrstvwxz]{4,}`)
)

// vowels holds a, e, i, o, u, y and their common accented Latin variants.
var vowels = func() map[rune]struct{} {
	m := make(map[rune]struct{})
	for _, r := range "aeiouyàáâäãåæèéêëìíîïòóôöõøœùúûüÿ" {
		m[r] = struct{}{}
	}
	return m
}()

// uncommonForL1 maps a native-language code to letter clusters that speakers
// of that language rarely produce. Order matters only for scanning.
var uncommonForL1 = map[string][]string{
	"en": {"tsch", "sch", "zsch", "ch", "ç", "eau", "oin", "ille", "gn", "rr", "ll", "ñ"},
	"es": {"th", "sh", "zh", "st", "str", "spl", "spr", "sk", "ts", "ck", "ght", "wr"},
	"de": {"th", "sh", "zh", "ñ", "ll", "rr", "tion", "sion", "eau", "ille"},
	"fr": {"th", "sh", "zh", "ñ", "ll", "rr", "sch", "tsch", "cht", "sp", "st", "str"},
}

// BigWord is a word ranked by estimated syllable count.
type BigWord struct {
	Word      string `json:"word"`
	Syllables int    `json:"syllables"`
	Length    int    `json:"length"`
}

// MismatchWord is a word flagged as likely tricky for a native language.
// Reasons is sorted and free of duplicates.
type MismatchWord struct {
	Word      string   `json:"word"`
	Syllables int      `json:"syllables"`
	Reasons   []string `json:"reasons"`
}

// Targets bundles every pronunciation signal for a transcript.
type Targets struct {
	BiggestWords  []BigWord      `json:"biggest_words"`
	MismatchWords []MismatchWord `json:"mismatch_words"`

	// SoundAlikes groups transcript words that are easily confused by ear.
	SoundAlikes [][]string `json:"sound_alikes,omitempty"`
}

// Options tunes [Analyze]. Zero values select the defaults.
type Options struct {
	BiggestWords  int
	MismatchWords int
	SoundAlikes   int
}

// Tokenize returns the words of text in order of appearance. A word is a run
// of Latin-script letters with at most one apostrophe-joined suffix; anything
// else separates words and is discarded.
func Tokenize(text string) []string {
	return wordRe.FindAllString(text, -1)
}

// RoughSyllableCount estimates the syllables in word by counting vowel runs.
// A trailing silent "e" is discounted unless the word ends in "le" or "ee" or
// has only one vowel run. The result is never below 1.
func RoughSyllableCount(word string) int {
	w := strings.ToLower(word)
	groups := 0
	inVowel := false
	for _, r := range w {
		_, isVowel := vowels[r]
		if isVowel && !inVowel {
			groups++
		}
		inVowel = isVowel
	}

	if strings.HasSuffix(w, "e") && groups > 1 &&
		!strings.HasSuffix(w, "le") && !strings.HasSuffix(w, "ee") {
		groups--
	}
	return max(groups, 1)
}

// UncommonPatterns returns the letter clusters considered uncommon for
// speakers of lang. Unknown codes yield nil.
func UncommonPatterns(lang string) []string {
	p := uncommonForL1[lang]
	if p == nil {
		return nil
	}
	out := make([]string, len(p))
	copy(out, p)
	return out
}

// BiggestWords ranks the words of text by syllable count, then by length,
// deduplicates them case-insensitively and returns at most topN entries.
func BiggestWords(text string, topN int) []BigWord {
	if topN <= 0 {
		topN = DefaultBiggestWords
	}

	words := Tokenize(text)
	scored := make([]BigWord, 0, len(words))
	for _, w := range words {
		scored = append(scored, BigWord{
			Word:      w,
			Syllables: RoughSyllableCount(w),
			Length:    utf8.RuneCountInString(w),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i], scored[j]
		if a.Syllables != b.Syllables {
			return a.Syllables > b.Syllables
		}
		if a.Length != b.Length {
			return a.Length > b.Length
		}
		return a.Word > b.Word
	})

	out := make([]BigWord, 0, min(topN, len(scored)))
	seen := make(map[string]struct{}, len(scored))
	for _, s := range scored {
		key := strings.ToLower(s.Word)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
		if len(out) >= topN {
			break
		}
	}
	return out
}

type flagged struct {
	hits      int
	syllables int
	length    int
	word      string
	reasons   []string
}

// MismatchWords flags words of text containing clusters that are uncommon for
// nativeLang, or four or more consecutive consonants. Flagged words are
// ranked by number of reasons, then syllables, then length, deduplicated
// case-insensitively, and capped at topN.
func MismatchWords(text, nativeLang string, topN int) []MismatchWord {
	if topN <= 0 {
		topN = DefaultMismatchWords
	}

	patterns := uncommonForL1[nativeLang]
	var all []flagged
	for _, w := range Tokenize(text) {
		wl := strings.ToLower(w)
		var hits []string
		for _, p := range patterns {
			if strings.Contains(wl, p) {
				hits = append(hits, p)
			}
		}
		if consonantRunRe.MatchString(wl) {
			hits = append(hits, ConsonantRunReason)
		}
		if len(hits) == 0 {
			continue
		}
		all = append(all, flagged{
			hits:      len(hits),
			syllables: RoughSyllableCount(w),
			length:    utf8.RuneCountInString(w),
			word:      w,
			reasons:   sortedSet(hits),
		})
	}

	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		if a.hits != b.hits {
			return a.hits > b.hits
		}
		if a.syllables != b.syllables {
			return a.syllables > b.syllables
		}
		if a.length != b.length {
			return a.length > b.length
		}
		return a.word > b.word
	})

	out := make([]MismatchWord, 0, min(topN, len(all)))
	seen := make(map[string]struct{}, len(all))
	for _, f := range all {
		key := strings.ToLower(f.word)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, MismatchWord{Word: f.word, Syllables: f.syllables, Reasons: f.reasons})
		if len(out) >= topN {
			break
		}
	}
	return out
}

// Analyze computes all pronunciation targets for text.
func Analyze(text, nativeLang string, opts Options) Targets {
	groups := opts.SoundAlikes
	if groups <= 0 {
		groups = DefaultSoundAlikeGroups
	}
	return Targets{
		BiggestWords:  BiggestWords(text, opts.BiggestWords),
		MismatchWords: MismatchWords(text, nativeLang, opts.MismatchWords),
		SoundAlikes:   phonetic.New(phonetic.WithMaxGroups(groups)).Groups(Tokenize(text)),
	}
}

func sortedSet(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
