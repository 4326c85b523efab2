package repository

import (
	"context"
	"sync"
	"time"
)

type quotaEntry struct {
	count     int
	expiresAt time.Time
}

// MemoryQuotaRepository keeps quota counters in process memory.
type MemoryQuotaRepository struct {
	mu      sync.Mutex
	entries map[int64]*quotaEntry
	now     func() time.Time
}

func NewMemoryQuotaRepository() *MemoryQuotaRepository {
	return &MemoryQuotaRepository{
		entries: make(map[int64]*quotaEntry),
		now:     time.Now,
	}
}

func (r *MemoryQuotaRepository) CheckRateLimit(_ context.Context, userID int64, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	entry, ok := r.entries[userID]
	if !ok || !now.Before(entry.expiresAt) {
		entry = &quotaEntry{expiresAt: now.Add(window)}
		r.entries[userID] = entry
	}
	entry.count++

	return entry.count <= limit, nil
}

// Prune drops expired counters.
func (r *MemoryQuotaRepository) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for id, entry := range r.entries {
		if !now.Before(entry.expiresAt) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}
