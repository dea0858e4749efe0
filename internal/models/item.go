package models

import "strings"

// ItemKind tags a PracticeItem as a single word or a full sentence.
// The verifier and the session engine dispatch on this tag rather than
// inferring the mode from field presence.
type ItemKind string

const (
	KindWord     ItemKind = "word"
	KindSentence ItemKind = "sentence"
)

// Page sizes per practice mode. A "set" is one contiguous page of the
// group's ordered item collection.
const (
	WordPageSize     = 20
	SentencePageSize = 10
)

// PracticeItem is the unit being drilled. Items are constructed when a
// set is windowed from the source collection and are immutable for the
// duration of a session.
type PracticeItem struct {
	ID       int64    `json:"id"`
	Kind     ItemKind `json:"kind"`
	Prompt   string   `json:"prompt"`    // the word or full sentence to be typed
	Tokens   []string `json:"tokens,omitempty"` // whitespace-delimited words, sentence kind only
	AudioURL string   `json:"audio_url,omitempty"` // optional remote clip, empty means synthesis-only
	Meaning  string   `json:"meaning,omitempty"`
	Phonetic string   `json:"phonetic,omitempty"`
	Context  string   `json:"context,omitempty"`
	GroupKey string   `json:"group"` // topic name (words) or part identifier (sentences)
	Position int      `json:"position"`
}

// NewWordItem builds a word-kind item.
func NewWordItem(id int64, prompt, groupKey string) PracticeItem {
	return PracticeItem{
		ID:       id,
		Kind:     KindWord,
		Prompt:   prompt,
		GroupKey: groupKey,
	}
}

// NewSentenceItem builds a sentence-kind item and splits the prompt into
// tokens. Token count is fixed for the lifetime of the item.
func NewSentenceItem(id int64, prompt, groupKey string) PracticeItem {
	return PracticeItem{
		ID:       id,
		Kind:     KindSentence,
		Prompt:   prompt,
		Tokens:   strings.Fields(prompt),
		GroupKey: groupKey,
	}
}

// Key returns the case-insensitive identity of the item, used for
// deduplication and as the example-store key.
func (i PracticeItem) Key() string {
	return strings.ToLower(strings.TrimSpace(i.Prompt))
}

// InputSlots returns how many input fields the item needs: one for a
// word, one per token for a sentence.
func (i PracticeItem) InputSlots() int {
	if i.Kind == KindSentence {
		return len(i.Tokens)
	}
	return 1
}

// PageSize returns the set size for the item's kind.
func (k ItemKind) PageSize() int {
	if k == KindSentence {
		return SentencePageSize
	}
	return WordPageSize
}

// Group describes one partition of the source collection, for the
// set-selection view.
type Group struct {
	Key       string   `json:"key"`
	Kind      ItemKind `json:"kind"`
	ItemCount int      `json:"item_count"`
}
