package service

import (
	"context"

	"echotype/internal/models"
)

// ItemSource lists the ordered item collection for a group. The engine
// only ever reads from it.
type ItemSource interface {
	ListItems(ctx context.Context, groupKey string) ([]models.PracticeItem, error)
}

// ExampleStore durably persists generated examples per item key.
type ExampleStore interface {
	Save(ctx context.Context, itemKey string, entry models.ExampleEntry, groupKey string) (int64, error)
	LoadExisting(ctx context.Context, itemKey string) ([]models.ExampleEntry, error)
}

// ProgressStore persists one completion counter per practice mode.
type ProgressStore interface {
	Load(ctx context.Context, mode models.Mode) (int, error)
	Save(ctx context.Context, mode models.Mode, completed int) error
}

// Player is the slice of the audio coordinator the session engine
// needs. Satisfied by *audio.Coordinator.
type Player interface {
	Play(ctx context.Context, audioURL, fallbackText string)
	PlaySuccessCue()
	PlayErrorCue()
}
