package service

import (
	"context"

	"go.uber.org/zap"

	"echotype/internal/generator"
	"echotype/internal/models"
)

// ExampleCache is the navigable, ordered list of generated examples for
// one item within a session. The pointer saturates at both ends.
type ExampleCache struct {
	entries []models.ExampleEntry
	pos     int
}

// NewExampleCache wraps previously stored entries; the pointer starts
// on the most recent one.
func NewExampleCache(entries []models.ExampleEntry) *ExampleCache {
	c := &ExampleCache{entries: entries}
	if len(entries) > 0 {
		c.pos = len(entries) - 1
	}
	return c
}

// Len returns the number of cached entries.
func (c *ExampleCache) Len() int { return len(c.entries) }

// Pos returns the zero-based pointer, -1 when empty.
func (c *ExampleCache) Pos() int {
	if len(c.entries) == 0 {
		return -1
	}
	return c.pos
}

// Current returns the entry under the pointer.
func (c *ExampleCache) Current() (models.ExampleEntry, bool) {
	if len(c.entries) == 0 {
		return models.ExampleEntry{}, false
	}
	return c.entries[c.pos], true
}

// Next moves the pointer forward; at the last entry it stays put.
func (c *ExampleCache) Next() {
	if c.pos < len(c.entries)-1 {
		c.pos++
	}
}

// Prev moves the pointer backward; at the first entry it stays put.
func (c *ExampleCache) Prev() {
	if c.pos > 0 {
		c.pos--
	}
}

// Sentences returns every cached English sentence in order, the list
// sent to the generator as "do not repeat these".
func (c *ExampleCache) Sentences() []string {
	out := make([]string, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.English
	}
	return out
}

// append adds a fresh entry and moves the pointer onto it.
func (c *ExampleCache) append(entry models.ExampleEntry) {
	c.entries = append(c.entries, entry)
	c.pos = len(c.entries) - 1
}

// ExampleService generates usage examples through the external
// generator and keeps them durable through the store.
type ExampleService struct {
	gen   generator.Generator
	store ExampleStore
	log   *zap.SugaredLogger
}

// NewExampleService creates an example service.
func NewExampleService(gen generator.Generator, store ExampleStore, log *zap.SugaredLogger) *ExampleService {
	return &ExampleService{gen: gen, store: store, log: log}
}

// LoadExisting builds the session cache for an item from durable
// storage, ordered by creation time ascending. Entries that repeat an
// earlier English sentence (case/whitespace-insensitively) are dropped
// so the cache invariant holds even against legacy rows.
func (s *ExampleService) LoadExisting(ctx context.Context, itemKey string) (*ExampleCache, error) {
	stored, err := s.store.LoadExisting(ctx, itemKey)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(stored))
	entries := make([]models.ExampleEntry, 0, len(stored))
	for _, e := range stored {
		key := e.NormalizedEnglish()
		if seen[key] {
			continue
		}
		seen[key] = true
		entries = append(entries, e)
	}
	return NewExampleCache(entries), nil
}

// Generate asks for one new example for the item, telling the
// generator to avoid every sentence already in the cache. On success
// the entry is appended, becomes current, and is persisted best-effort.
// A duplicate the upstream returns anyway is still appended: the
// avoidance contract is advisory toward the generator, and the durable
// store deduplicates on save.
func (s *ExampleService) Generate(ctx context.Context, item models.PracticeItem, cache *ExampleCache) (models.ExampleEntry, error) {
	entry, err := s.GenerateEntry(ctx, item, cache.Sentences())
	if err != nil {
		return models.ExampleEntry{}, err
	}
	s.Commit(ctx, item, cache, entry)
	return entry, nil
}

// GenerateEntry performs only the upstream call, leaving the cache
// untouched. Callers that must discard late responses use this with
// Commit so nothing lands in a cache the learner already left.
func (s *ExampleService) GenerateEntry(ctx context.Context, item models.PracticeItem, existing []string) (models.ExampleEntry, error) {
	return s.gen.GenerateExample(ctx, generator.Request{
		Word:     item.Prompt,
		Meaning:  item.Meaning,
		Kind:     item.Kind,
		Existing: existing,
		Topic:    item.GroupKey,
	})
}

// Commit appends a generated entry to the cache, making it current,
// and persists it best-effort.
func (s *ExampleService) Commit(ctx context.Context, item models.PracticeItem, cache *ExampleCache, entry models.ExampleEntry) {
	cache.append(entry)
	s.Persist(ctx, item, entry)
}

// Persist writes an entry to the durable store best-effort; failures
// are logged, never surfaced.
func (s *ExampleService) Persist(ctx context.Context, item models.PracticeItem, entry models.ExampleEntry) {
	if _, err := s.store.Save(ctx, item.Key(), entry, item.GroupKey); err != nil {
		s.log.Warnw("example write failed", "item", item.Key(), "error", err)
	}
}
