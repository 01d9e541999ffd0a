package cache

import (
	"context"
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	baseStore
}

func NewSQLite(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "file:f1telemetry.db?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	return &sqliteStore{baseStore{db: db}}, nil
}

func (s *sqliteStore) Init(ctx context.Context) error {
	return s.init(ctx, []string{
		`CREATE TABLE IF NOT EXISTS responses (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			size INTEGER NOT NULL,
			stored_at TEXT NOT NULL
		)`,
	})
}

func (s *sqliteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.get(ctx, `SELECT value FROM responses WHERE key = ?`, key)
}

func (s *sqliteStore) Put(ctx context.Context, key string, value []byte) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (key, value, size, stored_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, size = excluded.size, stored_at = excluded.stored_at`,
		key, value, len(value), nowUTC().Format("2006-01-02T15:04:05.000Z07:00"),
	)
	return err
}
