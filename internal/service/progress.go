package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"echotype/internal/models"
)

// ProgressService maintains the per-mode completion counters. Counts
// are cached in memory and written through to the store; a failed write
// is logged and never blocks the learning flow.
type ProgressService struct {
	store ProgressStore
	log   *zap.SugaredLogger

	mu     sync.Mutex
	counts map[models.Mode]int
	loaded map[models.Mode]bool
}

// NewProgressService creates a progress service over the given store.
func NewProgressService(store ProgressStore, log *zap.SugaredLogger) *ProgressService {
	return &ProgressService{
		store:  store,
		log:    log,
		counts: make(map[models.Mode]int),
		loaded: make(map[models.Mode]bool),
	}
}

// Load returns the durable counter for a mode.
func (s *ProgressService) Load(ctx context.Context, mode models.Mode) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked(ctx, mode)
}

func (s *ProgressService) loadLocked(ctx context.Context, mode models.Mode) (int, error) {
	if s.loaded[mode] {
		return s.counts[mode], nil
	}

	count, err := s.store.Load(ctx, mode)
	if err != nil {
		return 0, err
	}
	s.counts[mode] = count
	s.loaded[mode] = true
	return count, nil
}

// RecordCompletion increments the mode's counter and persists it,
// returning the new count. Persistence failures are logged, not
// surfaced: the in-memory count still advances so the session keeps
// flowing.
func (s *ProgressService) RecordCompletion(ctx context.Context, mode models.Mode) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.loadLocked(ctx, mode); err != nil {
		s.log.Warnw("could not load progress before increment", "mode", mode, "error", err)
		s.loaded[mode] = true
	}

	s.counts[mode]++
	count := s.counts[mode]

	if err := s.store.Save(ctx, mode, count); err != nil {
		s.log.Warnw("progress write failed", "mode", mode, "count", count, "error", err)
	}
	return count
}

// Reset lowers a mode's counter to zero, the only operation allowed to
// decrease it.
func (s *ProgressService) Reset(ctx context.Context, mode models.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Save(ctx, mode, 0); err != nil {
		return err
	}
	s.counts[mode] = 0
	s.loaded[mode] = true
	return nil
}
