package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"echotype/internal/generator"
	"echotype/internal/models"
)

func testLogger() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}

// fakeItemSource serves a fixed collection, optionally failing.
type fakeItemSource struct {
	items []models.PracticeItem
	err   error
	calls int
}

func (f *fakeItemSource) ListItems(_ context.Context, _ string) ([]models.PracticeItem, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

// fakePlayer records playback and cue calls.
type fakePlayer struct {
	mu        sync.Mutex
	played    []string
	success   int
	errorCue  int
	onSuccess func() // runs inside PlaySuccessCue, for re-entrancy tests
}

func (f *fakePlayer) Play(_ context.Context, audioURL, fallbackText string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	label := audioURL
	if label == "" {
		label = fallbackText
	}
	f.played = append(f.played, label)
}

func (f *fakePlayer) PlaySuccessCue() {
	f.mu.Lock()
	f.success++
	hook := f.onSuccess
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
}

func (f *fakePlayer) PlayErrorCue() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errorCue++
}

func (f *fakePlayer) playedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.played)
}

// memExampleStore is an in-memory ExampleStore with the same
// normalized-English dedup the durable repository enforces.
type memExampleStore struct {
	mu      sync.Mutex
	nextID  int64
	entries map[string][]models.ExampleEntry
	saveErr error
	loadErr error
}

func newMemExampleStore() *memExampleStore {
	return &memExampleStore{nextID: 1, entries: make(map[string][]models.ExampleEntry)}
}

func (m *memExampleStore) Save(_ context.Context, itemKey string, entry models.ExampleEntry, groupKey string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return 0, m.saveErr
	}
	for _, e := range m.entries[itemKey] {
		if e.NormalizedEnglish() == entry.NormalizedEnglish() {
			return e.ID, nil
		}
	}
	entry.ID = m.nextID
	entry.ItemKey = itemKey
	entry.GroupKey = groupKey
	m.nextID++
	m.entries[itemKey] = append(m.entries[itemKey], entry)
	return entry.ID, nil
}

func (m *memExampleStore) LoadExisting(_ context.Context, itemKey string) ([]models.ExampleEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return append([]models.ExampleEntry(nil), m.entries[itemKey]...), nil
}

// memProgressStore is an in-memory ProgressStore.
type memProgressStore struct {
	mu      sync.Mutex
	counts  map[models.Mode]int
	saveErr error
	loadErr error
	saves   int
}

func newMemProgressStore() *memProgressStore {
	return &memProgressStore{counts: make(map[models.Mode]int)}
}

func (m *memProgressStore) Load(_ context.Context, mode models.Mode) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return 0, m.loadErr
	}
	return m.counts[mode], nil
}

func (m *memProgressStore) Save(_ context.Context, mode models.Mode, completed int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.counts[mode] = completed
	return nil
}

func (m *memProgressStore) saved(mode models.Mode) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[mode]
}

// scriptedGenerator returns canned entries in order, then an error.
type scriptedGenerator struct {
	mu       sync.Mutex
	entries  []models.ExampleEntry
	err      error
	requests []generator.Request
}

func (g *scriptedGenerator) GenerateExample(_ context.Context, req generator.Request) (models.ExampleEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if len(g.entries) == 0 {
		if g.err != nil {
			return models.ExampleEntry{}, g.err
		}
		return models.ExampleEntry{}, errors.New("script exhausted")
	}
	entry := g.entries[0]
	g.entries = g.entries[1:]
	return entry, nil
}

// movingGenerator runs a callback mid-generation, simulating the
// learner acting while the upstream call is still in flight.
type movingGenerator struct {
	entry  models.ExampleEntry
	during func()
}

func (g *movingGenerator) GenerateExample(_ context.Context, _ generator.Request) (models.ExampleEntry, error) {
	if g.during != nil {
		g.during()
	}
	return g.entry, nil
}

func wordItems(group string, n int) []models.PracticeItem {
	items := make([]models.PracticeItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, models.NewWordItem(int64(i+1), fmt.Sprintf("word%02d", i), group))
	}
	return items
}
