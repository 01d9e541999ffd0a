package cache

import (
	"context"
	"database/sql"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
)

type postgresStore struct {
	baseStore
}

func NewPostgres(dsn string) (Store, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = "postgres://localhost:5432/f1telemetry?sslmode=disable"
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	return &postgresStore{baseStore{db: db}}, nil
}

func (s *postgresStore) Init(ctx context.Context) error {
	return s.init(ctx, []string{
		`CREATE TABLE IF NOT EXISTS responses (
			key TEXT PRIMARY KEY,
			value BYTEA NOT NULL,
			size INTEGER NOT NULL,
			stored_at TIMESTAMPTZ NOT NULL
		)`,
	})
}

func (s *postgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return s.get(ctx, `SELECT value FROM responses WHERE key = $1`, key)
}

func (s *postgresStore) Put(ctx context.Context, key string, value []byte) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (key, value, size, stored_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, size = EXCLUDED.size, stored_at = EXCLUDED.stored_at`,
		key, value, len(value), nowUTC(),
	)
	return err
}
