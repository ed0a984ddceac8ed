package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"decentrakyc/internal/demo/models"
	"decentrakyc/pkg/platform/sentinel"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS demo_users (
    profile_id TEXT PRIMARY KEY,
    record JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// PostgresStore persists records as JSONB rows keyed by profile.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore ensures the schema exists and returns the store.
func NewPostgresStore(ctx context.Context, db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("postgres db is required")
	}
	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("ensure demo_users table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Load(ctx context.Context, profile string) (*models.DemoUser, error) {
	var record []byte
	err := s.db.QueryRowContext(ctx, `SELECT record FROM demo_users WHERE profile_id = $1`, profile).Scan(&record)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("load demo user: %w", err)
	}
	return Decode(record)
}

func (s *PostgresStore) Save(ctx context.Context, profile string, user *models.DemoUser) error {
	if err := requireProfile(profile); err != nil {
		return err
	}
	data, err := Encode(user)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO demo_users (profile_id, record, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (profile_id) DO UPDATE SET
			record = EXCLUDED.record,
			updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, profile, data); err != nil {
		return fmt.Errorf("save demo user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Clear(ctx context.Context, profile string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM demo_users WHERE profile_id = $1`, profile); err != nil {
		return fmt.Errorf("clear demo user: %w", err)
	}
	return nil
}
