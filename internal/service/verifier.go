package service

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize reduces learner input and expected text to a canonical
// form: trimmed, NFC-normalized, stripped of everything but letters and
// digits, lowercased. Punctuation-only differences are ignored by
// design so natural dictation answers ("arrival!") still match.
// Idempotent.
func Normalize(text string) string {
	text = norm.NFC.String(strings.TrimSpace(text))

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}

// CheckWord reports whether the learner's input matches the expected
// word. Exact normalized match only: no partial credit, no edit
// distance.
func CheckWord(expected, input string) bool {
	return Normalize(expected) == Normalize(input)
}

// SentenceResult carries the per-token outcome of a sentence check.
type SentenceResult struct {
	PerToken   []bool
	AllCorrect bool
}

// CheckSentence compares input tokens to expected tokens independently
// over the full expected length. A missing trailing input token is
// simply incorrect, not a length-mismatch error.
func CheckSentence(expected, input []string) SentenceResult {
	result := SentenceResult{
		PerToken:   make([]bool, len(expected)),
		AllCorrect: len(expected) > 0,
	}

	for i, want := range expected {
		ok := false
		if i < len(input) {
			ok = CheckWord(want, input[i])
		}
		result.PerToken[i] = ok
		if !ok {
			result.AllCorrect = false
		}
	}
	return result
}
