package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	_ "modernc.org/sqlite"

	"decentrakyc/internal/demo/store"
)

type SQLiteStoreSuite struct {
	StoreContractSuite
	db *sql.DB
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func (s *SQLiteStoreSuite) SetupTest() {
	db, err := sql.Open("sqlite", filepath.Join(s.T().TempDir(), "demo.db"))
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	s.db = db

	sqliteStore, err := store.NewSQLiteStore(context.Background(), db)
	s.Require().NoError(err)
	s.store = sqliteStore
	s.writeRaw = func(profile string, data []byte) {
		_, err := s.db.Exec(`INSERT INTO demo_users (profile_id, record, updated_at) VALUES (?, ?, 0)`, profile, string(data))
		s.Require().NoError(err)
	}
}

func (s *SQLiteStoreSuite) TearDownTest() {
	s.Require().NoError(s.db.Close())
}

func (s *SQLiteStoreSuite) TestSchemaCreationIsIdempotent() {
	_, err := store.NewSQLiteStore(context.Background(), s.db)
	s.Require().NoError(err)
}

func (s *SQLiteStoreSuite) TestNilDB() {
	_, err := store.NewSQLiteStore(context.Background(), nil)
	s.Error(err)
}
