package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	storedName string
	expiresAt  time.Time
}

// MemoryIndex is a process-local identifier index. It is lost on restart,
// which is fine: the store can always resolve from the directory listing.
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryIndex) Remember(_ context.Context, id, storedName string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	// drop stale entries while we hold the lock; the map stays bounded by TTL
	for k, e := range m.entries {
		if now.After(e.expiresAt) {
			delete(m.entries, k)
		}
	}
	m.entries[id] = memoryEntry{storedName: storedName, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryIndex) Lookup(_ context.Context, id string) (string, bool) {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expiresAt) {
		return "", false
	}
	return e.storedName, true
}

func (m *MemoryIndex) Forget(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.entries, id)
	m.mu.Unlock()
	return nil
}

// Len is the number of entries, stale ones included.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
