// internal/session/memory.go
package session

import (
	"context"
	"sync"
	"time"

	"forgevision/internal/models"
)

type memoryEntry struct {
	result    models.RenderResult
	expiresAt time.Time
}

// MemoryStore keeps results in process. Expired entries are dropped on read
// and by Sweep.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, sessionID string) (*models.RenderResult, error) {
	s.mu.RLock()
	entry, ok := s.entries[sessionID]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if s.expired(entry) {
		s.mu.Lock()
		if cur, ok := s.entries[sessionID]; ok && s.expired(cur) {
			delete(s.entries, sessionID)
		}
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	return copyResult(&entry.result), nil
}

func (s *MemoryStore) Put(_ context.Context, sessionID string, result *models.RenderResult) error {
	entry := memoryEntry{result: *copyResult(result)}
	if s.ttl > 0 {
		entry.expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[sessionID] = entry
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	delete(s.entries, sessionID)
	s.mu.Unlock()
	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, entry := range s.entries {
		if s.expired(entry) {
			delete(s.entries, id)
			n++
		}
	}
	return n
}

// Len reports the number of stored sessions, expired or not.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *MemoryStore) expired(e memoryEntry) bool {
	return !e.expiresAt.IsZero() && !s.now().Before(e.expiresAt)
}

func copyResult(r *models.RenderResult) *models.RenderResult {
	out := *r
	out.Image = append([]byte(nil), r.Image...)
	out.Brief.Innovations = append([]string(nil), r.Brief.Innovations...)
	if r.Brief.Specs != nil {
		out.Brief.Specs = make(models.Specs, len(r.Brief.Specs))
		for k, v := range r.Brief.Specs {
			out.Brief.Specs[k] = v
		}
	}
	return &out
}
