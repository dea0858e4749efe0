package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"echotype/internal/models"
)

// CatalogStore is the item repository surface the catalog needs.
type CatalogStore interface {
	ItemSource
	ListGroups(ctx context.Context) ([]models.Group, error)
	CountItems(ctx context.Context, groupKey string) (int, error)
	SeedItems(ctx context.Context, groupKey string, kind models.ItemKind, prompts []string) error
}

// Warmer pre-generates speech audio for a batch of texts.
type Warmer interface {
	Warm(ctx context.Context, texts []string) map[string]error
}

// GroupSeed is one default group shipped with the app.
type GroupSeed struct {
	GroupKey string
	Kind     models.ItemKind
	Prompts  []string
}

// CatalogService manages the group catalog: listing, seeding defaults
// on first run, and pre-warming the speech cache so the first drill of
// a group does not wait on synthesis.
type CatalogService struct {
	store  CatalogStore
	warmer Warmer
	log    *zap.SugaredLogger
}

func NewCatalogService(store CatalogStore, warmer Warmer, log *zap.SugaredLogger) *CatalogService {
	return &CatalogService{store: store, warmer: warmer, log: log}
}

// Groups lists every group with its item count.
func (s *CatalogService) Groups(ctx context.Context) ([]models.Group, error) {
	return s.store.ListGroups(ctx)
}

// Seed inserts the default groups that are still empty. Existing
// groups are left alone so user edits survive restarts.
func (s *CatalogService) Seed(ctx context.Context, seeds []GroupSeed) error {
	for _, seed := range seeds {
		count, err := s.store.CountItems(ctx, seed.GroupKey)
		if err != nil {
			return fmt.Errorf("count items in %q: %w", seed.GroupKey, err)
		}
		if count > 0 {
			continue
		}
		if err := s.store.SeedItems(ctx, seed.GroupKey, seed.Kind, seed.Prompts); err != nil {
			return fmt.Errorf("seed %q: %w", seed.GroupKey, err)
		}
		s.log.Infow("seeded group", "group", seed.GroupKey, "items", len(seed.Prompts))
	}
	return nil
}

// WarmAudio synthesizes speech for every item in the group that has no
// recorded audio file. Failures are logged per item; playback falls
// back at drill time anyway.
func (s *CatalogService) WarmAudio(ctx context.Context, groupKey string) {
	items, err := s.store.ListItems(ctx, groupKey)
	if err != nil {
		s.log.Warnw("audio warm-up skipped", "group", groupKey, "error", err)
		return
	}

	var texts []string
	for _, item := range items {
		if item.AudioURL == "" {
			texts = append(texts, item.Prompt)
		}
	}
	if len(texts) == 0 {
		return
	}

	for text, err := range s.warmer.Warm(ctx, texts) {
		s.log.Warnw("speech warm-up failed", "group", groupKey, "text", text, "error", err)
	}
	s.log.Infow("audio warm-up done", "group", groupKey, "requested", len(texts))
}
