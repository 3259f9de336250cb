// Package voice implements the always-listening audio pipeline: energy
// gating, the wake-phrase sliding window, utterance recording bounded by
// silence, and utterance transcription with an accept/reject policy.
//
// The pipeline consumes [audio.Frame] values from a [capture.Source] and
// shares one [stt.Engine] between two profiles: a fast low-beam scan of
// the wake window and an accurate pass over full utterances. A single
// [Gate] instance carries the calibrated energy threshold for both the
// wake detector and the recorder.
package voice

import (
	"strings"
	"unicode"
)

// Normalize lowercases text, strips punctuation and collapses runs of
// whitespace, producing the canonical form used for wake matching and the
// transcript accept/reject policy.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// defaultStoplist holds normalized transcripts that batch STT models
// commonly hallucinate from silence or noise. A scan or utterance whose
// entire normalized text equals a stoplist entry is discarded.
var defaultStoplist = map[string]struct{}{
	"thank you":              {},
	"thank you for watching": {},
	"thanks for watching":    {},
	"you":                    {},
	"bye":                    {},
	"uh":                     {},
	"um":                     {},
	"hmm":                    {},
	"subtitles by":           {},
}

// isStoplisted reports whether normalized text is a known hallucination.
func isStoplisted(normalized string) bool {
	_, ok := defaultStoplist[normalized]
	return ok
}
