package cache

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"f1telemetry/internal/config"
	"f1telemetry/internal/provider"
)

type countingSource struct {
	mu    sync.Mutex
	calls map[string]int
	files map[string]string
}

func (s *countingSource) Fetch(ctx context.Context, name string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[name]++
	v, ok := s.files[name]
	if !ok {
		return nil, provider.ErrNotFound
	}
	return []byte(v), nil
}

type failingStore struct{}

func (failingStore) Init(context.Context) error { return nil }
func (failingStore) Close() error               { return nil }
func (failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("disk full")
}
func (failingStore) Put(context.Context, string, []byte) error { return errors.New("disk full") }

func sqliteConfig(t *testing.T) config.CacheConfig {
	return config.CacheConfig{Enabled: true, Driver: "sqlite", Dir: filepath.Join(t.TempDir(), "cache"), MemoryEntries: 8}
}

func TestReadThroughServesFromMemory(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{files: map[string]string{"2024/schedule.json": "[]"}}
	c, err := Open(ctx, sqliteConfig(t), src, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer c.Close()
	for i := 0; i < 3; i++ {
		data, err := c.Fetch(ctx, "2024/schedule.json")
		if err != nil || string(data) != "[]" {
			t.Fatalf("fetch %d: %q %v", i, data, err)
		}
	}
	if src.calls["2024/schedule.json"] != 1 {
		t.Fatalf("origin calls: %d", src.calls["2024/schedule.json"])
	}
	if st := c.Stats(); st.MemoryHits != 2 || st.Misses != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestReadThroughPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	src := &countingSource{files: map[string]string{"laps.csv": "Driver,LapNumber\n"}}
	first, err := Open(ctx, cfg, src, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := first.Fetch(ctx, "laps.csv"); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	_ = first.Close()

	second, err := Open(ctx, cfg, src, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	data, err := second.Fetch(ctx, "laps.csv")
	if err != nil || string(data) != "Driver,LapNumber\n" {
		t.Fatalf("fetch: %q %v", data, err)
	}
	if src.calls["laps.csv"] != 1 {
		t.Fatalf("origin calls: %d", src.calls["laps.csv"])
	}
	if st := second.Stats(); st.StoreHits != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestReadThroughDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{}
	c := NewReadThrough(src, nil, nil, nil)
	for i := 0; i < 2; i++ {
		if _, err := c.Fetch(ctx, "missing"); !errors.Is(err, provider.ErrNotFound) {
			t.Fatalf("fetch: %v", err)
		}
	}
	if src.calls["missing"] != 2 {
		t.Fatalf("origin calls: %d", src.calls["missing"])
	}
}

func TestReadThroughFallsBackWhenStoreFails(t *testing.T) {
	ctx := context.Background()
	src := &countingSource{files: map[string]string{"a": "1"}}
	c := NewReadThrough(src, nil, failingStore{}, nil)
	data, err := c.Fetch(ctx, "a")
	if err != nil || string(data) != "1" {
		t.Fatalf("fetch: %q %v", data, err)
	}
}

func TestMemoryEvicts(t *testing.T) {
	m, err := NewMemory(2)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	m.Put("a", []byte("1"))
	m.Put("b", []byte("2"))
	m.Put("c", []byte("3"))
	if _, ok := m.Get("a"); ok {
		t.Fatalf("oldest entry should be evicted")
	}
	if m.Len() != 2 {
		t.Fatalf("len: %d", m.Len())
	}
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("clear: %d", m.Len())
	}
}

func TestNewStoreDisabled(t *testing.T) {
	store, err := NewStore(config.CacheConfig{Enabled: false})
	if err != nil || store != nil {
		t.Fatalf("disabled store: %v %v", store, err)
	}
	if _, err := NewStore(config.CacheConfig{Enabled: true, Driver: "redis"}); err == nil {
		t.Fatalf("expected unsupported driver error")
	}
}
