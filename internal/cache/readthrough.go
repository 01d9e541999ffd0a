package cache

import (
	"context"
	"log/slog"
	"sync/atomic"

	"f1telemetry/internal/config"
	"f1telemetry/internal/provider"
)

// ReadThrough serves provider files from memory, then the persistent store,
// then the origin. Cache failures are logged and never fail a fetch.
type ReadThrough struct {
	origin provider.Source
	mem    *Memory
	store  Store
	logger *slog.Logger

	memoryHits atomic.Int64
	storeHits  atomic.Int64
	misses     atomic.Int64
}

type Stats struct {
	MemoryHits    int64 `json:"memory_hits"`
	StoreHits     int64 `json:"store_hits"`
	Misses        int64 `json:"misses"`
	MemoryEntries int   `json:"memory_entries"`
}

func NewReadThrough(origin provider.Source, mem *Memory, store Store, logger *slog.Logger) *ReadThrough {
	return &ReadThrough{origin: origin, mem: mem, store: store, logger: logger}
}

// Open builds the cache tiers described by cfg in front of origin. It must
// run once before the first provider call.
func Open(ctx context.Context, cfg config.CacheConfig, origin provider.Source, logger *slog.Logger) (*ReadThrough, error) {
	if !cfg.Enabled {
		if logger != nil {
			logger.Info("cache disabled")
		}
		return NewReadThrough(origin, nil, nil, logger), nil
	}
	mem, err := NewMemory(cfg.MemoryEntries)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("cache enabled", "driver", cfg.Driver, "dir", cfg.Dir, "memory_entries", cfg.MemoryEntries)
	}
	return NewReadThrough(origin, mem, store, logger), nil
}

func (c *ReadThrough) Fetch(ctx context.Context, name string) ([]byte, error) {
	if c.mem != nil {
		if data, ok := c.mem.Get(name); ok {
			c.memoryHits.Add(1)
			return data, nil
		}
	}
	if c.store != nil {
		data, ok, err := c.store.Get(ctx, name)
		switch {
		case err != nil:
			if c.logger != nil {
				c.logger.Warn("cache read failed", "key", name, "err", err)
			}
		case ok:
			c.storeHits.Add(1)
			if c.mem != nil {
				c.mem.Put(name, data)
			}
			return data, nil
		}
	}
	c.misses.Add(1)
	data, err := c.origin.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	if c.mem != nil {
		c.mem.Put(name, data)
	}
	if c.store != nil {
		if err := c.store.Put(ctx, name, data); err != nil && c.logger != nil {
			c.logger.Warn("cache write failed", "key", name, "err", err)
		}
	}
	return data, nil
}

func (c *ReadThrough) Stats() Stats {
	s := Stats{
		MemoryHits: c.memoryHits.Load(),
		StoreHits:  c.storeHits.Load(),
		Misses:     c.misses.Load(),
	}
	if c.mem != nil {
		s.MemoryEntries = c.mem.Len()
	}
	return s
}

// ClearMemory drops the in-process tier. The persistent store is kept.
func (c *ReadThrough) ClearMemory() {
	if c.mem != nil {
		c.mem.Clear()
	}
}

func (c *ReadThrough) Close() error {
	if c.store != nil {
		return c.store.Close()
	}
	return nil
}
