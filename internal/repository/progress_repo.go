package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"echotype/internal/database"
	"echotype/internal/models"
)

// ProgressRepository persists the per-mode completion counters.
type ProgressRepository struct {
	db *database.DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *database.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Load returns the stored counter for a mode, zero if none exists yet.
func (r *ProgressRepository) Load(ctx context.Context, mode models.Mode) (int, error) {
	var completed int
	query := "SELECT completed FROM progress WHERE mode = ?"
	err := r.db.QueryRowContext(ctx, query, string(mode)).Scan(&completed)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return completed, nil
}

// Save writes the counter for a mode. Update-then-insert keeps the
// statement portable across all three dialects.
func (r *ProgressRepository) Save(ctx context.Context, mode models.Mode, completed int) error {
	update := "UPDATE progress SET completed = ?, updated_at = ? WHERE mode = ?"
	result, err := r.db.ExecContext(ctx, update, completed, time.Now(), string(mode))
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	insert := "INSERT INTO progress (mode, completed, updated_at) VALUES (?, ?, ?)"
	_, err = r.db.ExecContext(ctx, insert, string(mode), completed, time.Now())
	return err
}

// Reset lowers the counter back to zero. The only operation allowed to
// decrease it.
func (r *ProgressRepository) Reset(ctx context.Context, mode models.Mode) error {
	return r.Save(ctx, mode, 0)
}
