package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"decentrakyc/internal/demo/models"
	"decentrakyc/pkg/platform/sentinel"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS demo_users (
    profile_id TEXT PRIMARY KEY,
    record TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// SQLiteStore persists records in a local SQLite database, the server-side
// stand-in for per-browser local storage.
type SQLiteStore struct {
	db    *sql.DB
	clock func() time.Time
}

// NewSQLiteStore ensures the schema exists and returns the store.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlite db is required")
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("ensure demo_users table: %w", err)
	}
	return &SQLiteStore{db: db, clock: time.Now}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, profile string) (*models.DemoUser, error) {
	var record string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM demo_users WHERE profile_id = ?`, profile).Scan(&record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load demo user: %w", err)
	}
	return Decode([]byte(record))
}

func (s *SQLiteStore) Save(ctx context.Context, profile string, user *models.DemoUser) error {
	if err := requireProfile(profile); err != nil {
		return err
	}
	data, err := Encode(user)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO demo_users (profile_id, record, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (profile_id) DO UPDATE SET
			record = excluded.record,
			updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, profile, string(data), s.clock().UnixMilli()); err != nil {
		return fmt.Errorf("save demo user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context, profile string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM demo_users WHERE profile_id = ?`, profile); err != nil {
		return fmt.Errorf("clear demo user: %w", err)
	}
	return nil
}
