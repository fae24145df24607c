package flow

import (
	"context"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// SessionStore holds one session per user.
type SessionStore interface {
	// Get returns the stored session and whether one existed.
	Get(ctx context.Context, userID string) (Session, bool, error)
	Put(ctx context.Context, session Session) error
	Clear(ctx context.Context, userID string) error
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

// Get implements SessionStore.
func (m *MemoryStore) Get(_ context.Context, userID string) (Session, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false, nil
	}
	return s.Clone(), true, nil
}

// Put implements SessionStore.
func (m *MemoryStore) Put(_ context.Context, session Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.UserID] = session.Clone()
	return nil
}

// Clear implements SessionStore.
func (m *MemoryStore) Clear(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CachedStore fronts a durable store with a bounded LRU of recent sessions.
// Writes go to the backend first; the cache only ever holds what the backend
// accepted.
type CachedStore struct {
	backend SessionStore
	cache   *lru.Cache[string, Session]
}

// NewCachedStore wraps backend with an LRU of size entries.
func NewCachedStore(backend SessionStore, size int) (*CachedStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("flow: cached store needs a backend")
	}
	cache, err := lru.New[string, Session](size)
	if err != nil {
		return nil, fmt.Errorf("flow: session cache: %w", err)
	}
	return &CachedStore{backend: backend, cache: cache}, nil
}

// Get implements SessionStore.
func (c *CachedStore) Get(ctx context.Context, userID string) (Session, bool, error) {
	if s, ok := c.cache.Get(userID); ok {
		return s.Clone(), true, nil
	}
	s, found, err := c.backend.Get(ctx, userID)
	if err != nil || !found {
		return Session{}, found, err
	}
	c.cache.Add(userID, s.Clone())
	return s, true, nil
}

// Put implements SessionStore.
func (c *CachedStore) Put(ctx context.Context, session Session) error {
	if err := c.backend.Put(ctx, session); err != nil {
		c.cache.Remove(session.UserID)
		return err
	}
	c.cache.Add(session.UserID, session.Clone())
	return nil
}

// Clear implements SessionStore.
func (c *CachedStore) Clear(ctx context.Context, userID string) error {
	c.cache.Remove(userID)
	return c.backend.Clear(ctx, userID)
}
