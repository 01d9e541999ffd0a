package diagnostics

import (
	"sync"
	"time"
)

// Store keeps the most recent diagnostics in a bounded buffer.
type Store struct {
	mu    sync.RWMutex
	buf   []Diagnostic
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(d Diagnostic) {
	if d.Timestamp.IsZero() {
		d.Timestamp = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, d)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = d
}

// List returns up to limit of the newest diagnostics, oldest first.
func (s *Store) List(limit int) []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]Diagnostic, limit)
	copy(out, s.buf[len(s.buf)-limit:])
	return out
}

func (s *Store) Since(ts time.Time) []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Diagnostic, 0)
	for _, d := range s.buf {
		if !d.Timestamp.Before(ts) {
			out = append(out, d)
		}
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
