package poolcache

import (
	"context"
	"sync"
	"time"

	"furusatoReco/domain"
)

const defaultMaxEntries = 10000

type memoryEntry struct {
	pool      domain.CandidatePool
	expiresAt time.Time
}

// MemoryTier is the in-process tier. Entries expire lazily when read; there
// is no background sweep. When full, expired entries are dropped first and
// then the entry closest to expiry.
type MemoryTier struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	maxEntries int
	now        func() time.Time
}

var _ Tier = (*MemoryTier)(nil)

func NewMemoryTier(maxEntries int) *MemoryTier {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &MemoryTier{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryTier) Name() string {
	return "ephemeral"
}

func (m *MemoryTier) Get(_ context.Context, key string) (domain.CandidatePool, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return domain.CandidatePool{}, false, nil
	}

	now := m.now()
	if !now.Before(e.expiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && !now.Before(cur.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return domain.CandidatePool{}, false, nil
	}

	return e.pool, true, nil
}

func (m *MemoryTier) Put(_ context.Context, key string, pool domain.CandidatePool, ttl time.Duration) error {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && len(m.entries) >= m.maxEntries {
		m.evictLocked(now)
	}
	m.entries[key] = memoryEntry{pool: pool, expiresAt: now.Add(ttl)}
	return nil
}

func (m *MemoryTier) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryTier) evictLocked(now time.Time) {
	var (
		oldestKey string
		oldestExp time.Time
	)
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
			continue
		}
		if oldestKey == "" || e.expiresAt.Before(oldestExp) {
			oldestKey, oldestExp = k, e.expiresAt
		}
	}
	if len(m.entries) >= m.maxEntries && oldestKey != "" {
		delete(m.entries, oldestKey)
	}
}
