package cache

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"f1telemetry/internal/config"
)

// Store persists provider responses by key.
type Store interface {
	Init(ctx context.Context) error
	Close() error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
}

// NewStore opens the persistent tier described by cfg. It returns a nil
// Store when caching is disabled.
func NewStore(cfg config.CacheConfig) (Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		dsn := cfg.DSN
		if strings.TrimSpace(dsn) == "" {
			if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
				return nil, err
			}
			dsn = "file:" + filepath.Join(cfg.Dir, "f1telemetry.db") + "?_pragma=busy_timeout(5000)"
		}
		return NewSQLite(dsn)
	case "postgres", "postgresql":
		return NewPostgres(cfg.DSN)
	default:
		return nil, errors.New("unsupported cache driver")
	}
}

type baseStore struct {
	db *sql.DB
}

func (b *baseStore) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}

func (b *baseStore) get(ctx context.Context, query, key string) ([]byte, bool, error) {
	if b.db == nil {
		return nil, false, nil
	}
	var value []byte
	err := b.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

func (b *baseStore) init(ctx context.Context, stmts []string) error {
	if b.db == nil {
		return nil
	}
	for _, stmt := range stmts {
		if _, err := b.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func nowUTC() time.Time {
	return time.Now().UTC()
}
