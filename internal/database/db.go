package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"echotype/internal/config"
)

// DB wraps the database connection with dialect-aware helpers.
type DB struct {
	*sql.DB
	Dialect Dialect
}

// Open creates and configures the connection described by the config
// (sqlite, postgres or mysql).
func Open(cfg *config.Config) (*DB, error) {
	var dialect Dialect
	var settings ConnSettings

	switch strings.ToLower(cfg.Database.Type) {
	case "postgres", "postgresql":
		dialect = NewPostgresDialect()
		settings = ConnSettings{URL: cfg.Database.URL}
	case "mysql":
		dialect = NewMySQLDialect()
		settings = ConnSettings{URL: cfg.Database.URL}
	case "sqlite", "sqlite3", "":
		dialect = NewSQLiteDialect()
		settings = ConnSettings{Path: cfg.Database.Path}
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}

	db, err := sql.Open(dialect.DriverName(), dialect.DSN(settings))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := dialect.ConfigureConnection(db); err != nil {
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// OpenSQLite opens a plain SQLite database at the given path. Used by
// tests and one-off tooling.
func OpenSQLite(path string) (*DB, error) {
	dialect := NewSQLiteDialect()

	db, err := sql.Open(dialect.DriverName(), dialect.DSN(ConnSettings{Path: path}))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := dialect.ConfigureConnection(db); err != nil {
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	return &DB{DB: db, Dialect: dialect}, nil
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	return db.DB.Close()
}

// QueryContext executes a query with automatic placeholder rewriting.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.DB.QueryContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// QueryRowContext executes a single-row query with placeholder rewriting.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.DB.QueryRowContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// ExecContext executes a statement with placeholder rewriting.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.DB.ExecContext(ctx, db.Dialect.RewriteQuery(query), args...)
}

// ExecReturningID executes an INSERT and returns the new row's id,
// bridging LastInsertId drivers and PostgreSQL's RETURNING clause.
func (db *DB) ExecReturningID(ctx context.Context, query string, args ...any) (int64, error) {
	rewritten := db.Dialect.RewriteQuery(query)

	if db.Dialect.SupportsLastInsertID() {
		result, err := db.DB.ExecContext(ctx, rewritten, args...)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	rewritten = strings.TrimSuffix(strings.TrimSpace(rewritten), ";")
	rewritten += " RETURNING id"

	var id int64
	if err := db.DB.QueryRowContext(ctx, rewritten, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
