package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// Memory is an in-process LRU tier in front of the persistent store.
type Memory struct {
	entries *lru.Cache[string, []byte]
}

func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Memory{entries: c}, nil
}

func (m *Memory) Get(key string) ([]byte, bool) {
	return m.entries.Get(key)
}

func (m *Memory) Put(key string, value []byte) {
	m.entries.Add(key, value)
}

func (m *Memory) Len() int {
	return m.entries.Len()
}

func (m *Memory) Clear() {
	m.entries.Purge()
}
