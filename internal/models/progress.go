package models

// Mode identifies a practice mode. Progress is counted per mode.
type Mode string

const (
	ModeVocabulary Mode = "vocabulary"
	ModeSentence   Mode = "sentence"
)

// Kind returns the item kind drilled in this mode.
func (m Mode) Kind() ItemKind {
	if m == ModeSentence {
		return KindSentence
	}
	return KindWord
}
