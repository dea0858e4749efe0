package models

import (
	"strings"
	"time"
)

// ExampleEntry is one AI-generated usage example for a vocabulary item.
type ExampleEntry struct {
	ID         int64     `json:"id"`
	ItemKey    string    `json:"item_key"`
	English    string    `json:"english"`
	Vietnamese string    `json:"vietnamese"`
	Context    string    `json:"context,omitempty"` // optional usage note
	GroupKey   string    `json:"group,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NormalizedEnglish returns the case- and whitespace-insensitive form of
// the English sentence, used to detect duplicate examples for an item.
func (e ExampleEntry) NormalizedEnglish() string {
	return strings.ToLower(strings.Join(strings.Fields(e.English), " "))
}
