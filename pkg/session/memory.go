package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store for tests and single-node
// deployments. Expired entries are dropped lazily on access.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	sess      *Session
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]memoryEntry),
	}
}

// Get retrieves a session by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Session, error) {
	s.mu.RLock()
	entry, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		return nil, ErrNotFound
	}

	// Copy so callers cannot mutate stored state in place.
	copied := *entry.sess
	if entry.sess.Flow != nil {
		flow := *entry.sess.Flow
		copied.Flow = &flow
	}
	return &copied, nil
}

// Save stores a session with the given TTL.
func (s *MemoryStore) Save(ctx context.Context, sess *Session, ttl time.Duration) error {
	copied := *sess
	if sess.Flow != nil {
		flow := *sess.Flow
		copied.Flow = &flow
	}

	s.mu.Lock()
	s.sessions[sess.ID] = memoryEntry{
		sess:      &copied,
		expiresAt: time.Now().Add(ttl),
	}
	s.mu.Unlock()
	return nil
}

// Delete removes a session. Deleting a missing session is not an error.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
