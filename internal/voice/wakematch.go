package voice

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// DefaultWakeVariants are the normalized spellings the wake matcher
// accepts for the kiosk's wake phrase. STT models frequently render the
// name as a common given name or split it into two words.
var DefaultWakeVariants = []string{
	"hey bearnard",
	"hey bernard",
	"hey bear nard",
}

// defaultSimilarity is the Jaro-Winkler score at or above which a word
// n-gram counts as a fuzzy match for a wake variant.
const defaultSimilarity = 0.88

// Matcher decides whether a normalized transcript contains the wake
// phrase. Matching happens in two stages: an exact substring check over
// the configured variants, then a fuzzy pass comparing same-length word
// n-grams against each variant by Jaro-Winkler similarity and Double
// Metaphone phonetic equality.
type Matcher struct {
	variants   []string
	similarity float64
}

// MatcherOption is a functional option for Matcher.
type MatcherOption func(*Matcher)

// WithSimilarity overrides the Jaro-Winkler acceptance threshold.
func WithSimilarity(s float64) MatcherOption {
	return func(m *Matcher) {
		if s > 0 && s <= 1 {
			m.similarity = s
		}
	}
}

// NewMatcher constructs a Matcher over the given wake-phrase variants.
// Variants are normalized on the way in; an empty list falls back to
// DefaultWakeVariants.
func NewMatcher(variants []string, opts ...MatcherOption) *Matcher {
	m := &Matcher{similarity: defaultSimilarity}
	m.setVariants(variants)
	for _, o := range opts {
		o(m)
	}
	return m
}

// Configure replaces the variant list and similarity threshold, with the
// same normalization and fallback rules as NewMatcher. A similarity outside
// (0, 1] keeps the current threshold. Configure is not safe for concurrent
// use with Match; callers must serialize it with the detector's loop.
func (m *Matcher) Configure(variants []string, similarity float64) {
	m.setVariants(variants)
	if similarity > 0 && similarity <= 1 {
		m.similarity = similarity
	}
}

func (m *Matcher) setVariants(variants []string) {
	m.variants = m.variants[:0]
	for _, v := range variants {
		if n := Normalize(v); n != "" {
			m.variants = append(m.variants, n)
		}
	}
	if len(m.variants) == 0 {
		m.variants = append(m.variants, DefaultWakeVariants...)
	}
}

// Variants returns the normalized wake-phrase variants in use.
func (m *Matcher) Variants() []string {
	out := make([]string, len(m.variants))
	copy(out, m.variants)
	return out
}

// Match reports whether normalized contains the wake phrase.
func (m *Matcher) Match(normalized string) bool {
	if normalized == "" {
		return false
	}

	for _, v := range m.variants {
		if strings.Contains(normalized, v) {
			return true
		}
	}

	words := strings.Fields(normalized)
	for _, v := range m.variants {
		vWords := len(strings.Fields(v))
		if vWords == 0 || vWords > len(words) {
			continue
		}
		for i := 0; i+vWords <= len(words); i++ {
			gram := strings.Join(words[i:i+vWords], " ")
			if matchr.JaroWinkler(gram, v, false) >= m.similarity {
				return true
			}
			if phoneticEqual(gram, v) {
				return true
			}
		}
	}
	return false
}

// phoneticEqual reports whether two phrases share a primary Double
// Metaphone encoding word for word.
func phoneticEqual(a, b string) bool {
	aw := strings.Fields(a)
	bw := strings.Fields(b)
	if len(aw) != len(bw) {
		return false
	}
	for i := range aw {
		ap, _ := matchr.DoubleMetaphone(aw[i])
		bp, _ := matchr.DoubleMetaphone(bw[i])
		if ap == "" || ap != bp {
			return false
		}
	}
	return true
}
