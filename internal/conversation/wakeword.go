package conversation

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// phoneticThreshold is the minimum Jaro-Winkler score a phonetically
// overlapping token must reach to count as a wake-word match.
const phoneticThreshold = 0.70

// WakeDetector decides whether a transcript contains the wake word.
//
// The primary check is a case-insensitive substring match. With phonetic
// matching enabled, a secondary pass compares each transcript token group
// against the wake phrase by Double Metaphone code overlap ranked with
// Jaro-Winkler similarity, so "ekko form" still wakes an assistant named
// "echoform". Read-only after construction, safe for concurrent use.
type WakeDetector struct {
	phrase   string // lowercased wake phrase
	tokens   []string
	codes    map[string]struct{}
	phonetic bool
}

// NewWakeDetector builds a detector for the given wake word or phrase.
// phonetic enables the Double Metaphone fallback pass.
func NewWakeDetector(word string, phonetic bool) *WakeDetector {
	phrase := strings.ToLower(strings.TrimSpace(word))
	d := &WakeDetector{
		phrase:   phrase,
		tokens:   strings.Fields(phrase),
		phonetic: phonetic,
	}
	if phonetic {
		d.codes = metaphoneCodes(d.tokens)
	}
	return d
}

// Match reports whether text contains the wake word.
func (d *WakeDetector) Match(text string) bool {
	if d.phrase == "" {
		return false
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, d.phrase) {
		return true
	}
	if !d.phonetic {
		return false
	}
	return d.matchPhonetic(strings.Fields(lower))
}

// matchPhonetic slides a window of the wake phrase's token count over the
// transcript tokens. A window matches when its Double Metaphone codes overlap
// the wake phrase's codes and the Jaro-Winkler similarity of the joined
// strings clears the threshold.
func (d *WakeDetector) matchPhonetic(words []string) bool {
	n := len(d.tokens)
	if n == 0 || len(words) < n {
		return false
	}
	for i := 0; i+n <= len(words); i++ {
		window := words[i : i+n]
		if !codesOverlap(metaphoneCodes(window), d.codes) {
			continue
		}
		joined := strings.Join(window, " ")
		if matchr.JaroWinkler(joined, d.phrase, false) >= phoneticThreshold {
			return true
		}
		// Spoken phrases often fuse or split words; compare without spaces
		// as well.
		if matchr.JaroWinkler(strings.Join(window, ""), strings.Join(d.tokens, ""), false) >= phoneticThreshold {
			return true
		}
	}
	return false
}

// metaphoneCodes returns the union of Double Metaphone codes for the tokens.
// Empty codes are excluded.
func metaphoneCodes(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
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
