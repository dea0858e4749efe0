package repository

import (
	"context"
	"strings"

	"echotype/internal/database"
	"echotype/internal/models"
)

// ItemRepository reads practice items from the database. The engine
// never writes to this store; item CRUD happens elsewhere.
type ItemRepository struct {
	db *database.DB
}

// NewItemRepository creates a new item repository.
func NewItemRepository(db *database.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// ListItems retrieves the full ordered collection for a group (a topic
// name for words, a part identifier for sentences).
func (r *ItemRepository) ListItems(ctx context.Context, groupKey string) ([]models.PracticeItem, error) {
	query := `
		SELECT id, kind, prompt, audio_url, meaning, phonetic, context, group_key, position
		FROM items
		WHERE group_key = ?
		ORDER BY position ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, groupKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []models.PracticeItem
	for rows.Next() {
		var item models.PracticeItem
		var kind string
		err := rows.Scan(
			&item.ID,
			&kind,
			&item.Prompt,
			&item.AudioURL,
			&item.Meaning,
			&item.Phonetic,
			&item.Context,
			&item.GroupKey,
			&item.Position,
		)
		if err != nil {
			return nil, err
		}

		item.Kind = models.ItemKind(kind)
		if item.Kind == models.KindSentence {
			item.Tokens = strings.Fields(item.Prompt)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// ListGroups returns every group with its item count, for the
// set-selection view.
func (r *ItemRepository) ListGroups(ctx context.Context) ([]models.Group, error) {
	query := `
		SELECT group_key, kind, COUNT(*)
		FROM items
		GROUP BY group_key, kind
		ORDER BY group_key ASC
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		var kind string
		if err := rows.Scan(&g.Key, &kind, &g.ItemCount); err != nil {
			return nil, err
		}
		g.Kind = models.ItemKind(kind)
		groups = append(groups, g)
	}

	return groups, rows.Err()
}

// CountItems returns the total number of items in a group.
func (r *ItemRepository) CountItems(ctx context.Context, groupKey string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items WHERE group_key = ?", groupKey).Scan(&count)
	return count, err
}

// SeedItems inserts items for a group if the group is empty. Used to
// bootstrap a fresh database with starter content.
func (r *ItemRepository) SeedItems(ctx context.Context, groupKey string, kind models.ItemKind, prompts []string) error {
	existing, err := r.CountItems(ctx, groupKey)
	if err != nil {
		return err
	}
	if existing > 0 {
		return nil
	}

	query := `
		INSERT INTO items (kind, prompt, meaning, group_key, position)
		VALUES (?, ?, ?, ?, ?)
	`
	for i, prompt := range prompts {
		if _, err := r.db.ExecContext(ctx, query, string(kind), prompt, "", groupKey, i); err != nil {
			return err
		}
	}
	return nil
}
