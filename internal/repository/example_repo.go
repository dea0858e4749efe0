package repository

import (
	"context"
	"strings"
	"time"

	"echotype/internal/database"
	"echotype/internal/models"
)

// ExampleRepository persists generated usage examples, keyed
// case-insensitively by the item's prompt text.
type ExampleRepository struct {
	db *database.DB
}

// NewExampleRepository creates a new example repository.
func NewExampleRepository(db *database.DB) *ExampleRepository {
	return &ExampleRepository{db: db}
}

// Save stores a generated example. A row whose English sentence already
// exists for the item (case- and whitespace-insensitively) is not
// duplicated; the existing row's id is returned instead.
func (r *ExampleRepository) Save(ctx context.Context, itemKey string, entry models.ExampleEntry, groupKey string) (int64, error) {
	itemKey = normalizeKey(itemKey)

	existing, err := r.LoadExisting(ctx, itemKey)
	if err != nil {
		return 0, err
	}
	wanted := entry.NormalizedEnglish()
	for _, e := range existing {
		if e.NormalizedEnglish() == wanted {
			return e.ID, nil
		}
	}

	query := `
		INSERT INTO examples (item_key, english, vietnamese, context, group_key)
		VALUES (?, ?, ?, ?, ?)
	`
	return r.db.ExecReturningID(ctx, query, itemKey, entry.English, entry.Vietnamese, entry.Context, groupKey)
}

// LoadExisting retrieves all stored examples for an item, ordered by
// creation time ascending, so example history persists across sessions.
func (r *ExampleRepository) LoadExisting(ctx context.Context, itemKey string) ([]models.ExampleEntry, error) {
	query := `
		SELECT id, item_key, english, vietnamese, context, group_key, created_at
		FROM examples
		WHERE item_key = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, normalizeKey(itemKey))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.ExampleEntry
	for rows.Next() {
		var e models.ExampleEntry
		var createdAt time.Time
		err := rows.Scan(&e.ID, &e.ItemKey, &e.English, &e.Vietnamese, &e.Context, &e.GroupKey, &createdAt)
		if err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
