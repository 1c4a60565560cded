// Package tokenstore remembers which transaction type issued a token so the
// return-flow endpoints know how to resolve the token Transbank posts back.
package tokenstore

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned for unknown or expired tokens.
var ErrNotFound = errors.New("token not found")

// Entry is what is remembered for a token.
type Entry struct {
	Service string `json:"service"`
	Type    string `json:"type"`
	// ExternalUniqueNumber is kept for Onepay, whose return flow needs it next to the occ.
	ExternalUniqueNumber string `json:"externalUniqueNumber,omitempty"`
}

// Store maps tokens to entries.
type Store interface {
	// Put remembers e under token for ttl. A zero ttl never expires.
	Put(ctx context.Context, token string, e Entry, ttl time.Duration) error
	// Get returns the entry of token.
	Get(ctx context.Context, token string) (Entry, error)
	// Take returns the entry of token and forgets it.
	Take(ctx context.Context, token string) (Entry, error)
}

type memoryItem struct {
	entry   Entry
	expires time.Time
}

// Memory is an in-process Store.
type Memory struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]memoryItem), now: time.Now}
}

func (m *Memory) Put(_ context.Context, token string, e Entry, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item := memoryItem{entry: e}
	if ttl > 0 {
		item.expires = m.now().Add(ttl)
	}
	m.items[token] = item
	return nil
}

func (m *Memory) Get(_ context.Context, token string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookup(token)
}

func (m *Memory) Take(_ context.Context, token string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookup(token)
	delete(m.items, token)
	return e, err
}

// lookup must be called with mu held. Expired items are dropped.
func (m *Memory) lookup(token string) (Entry, error) {
	item, ok := m.items[token]
	if !ok {
		return Entry{}, ErrNotFound
	}
	if !item.expires.IsZero() && !m.now().Before(item.expires) {
		delete(m.items, token)
		return Entry{}, ErrNotFound
	}
	return item.entry, nil
}

// Len returns the number of stored tokens, expired ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}
