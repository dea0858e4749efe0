package service

import (
	"errors"
	"fmt"

	"echotype/internal/models"
)

// ErrSetRange is returned when the requested set index lies beyond the
// group's available pages. Surfaced as "no more data", never retried.
var ErrSetRange = errors.New("set index out of range")

// DedupeItems removes items whose prompt repeats an earlier item's
// prompt case-insensitively, keeping first occurrences in order. Run
// before windowing so page boundaries stay stable even if the source
// collection contains near-duplicates.
func DedupeItems(items []models.PracticeItem) []models.PracticeItem {
	seen := make(map[string]bool, len(items))
	deduped := make([]models.PracticeItem, 0, len(items))
	for _, item := range items {
		key := item.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, item)
	}
	return deduped
}

// Window returns the setIndex-th contiguous page of the (already
// deduplicated) group collection. The final page may be shorter than
// pageSize. Purely deterministic: resuming a set index always
// reproduces the same page.
func Window(items []models.PracticeItem, pageSize, setIndex int) ([]models.PracticeItem, error) {
	if pageSize <= 0 {
		return nil, fmt.Errorf("page size must be positive, got %d", pageSize)
	}
	if setIndex < 0 {
		return nil, fmt.Errorf("%w: negative index %d", ErrSetRange, setIndex)
	}

	start := setIndex * pageSize
	if start >= len(items) {
		return nil, fmt.Errorf("%w: set %d of %d", ErrSetRange, setIndex, TotalSets(items, pageSize))
	}

	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], nil
}

// TotalSets returns how many pages the collection yields.
func TotalSets(items []models.PracticeItem, pageSize int) int {
	if pageSize <= 0 || len(items) == 0 {
		return 0
	}
	return (len(items) + pageSize - 1) / pageSize
}
