package application

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// eventCache stores recently built consolidated calendars so repeated reads
// of the same class and bimester skip the repository while no calendar
// changes. Any successful write invalidates the whole cache.
//
// Invalidate bumps a generation counter. A fill computed before an
// invalidation carries the old generation and is dropped by Store.
type eventCache struct {
	mu         sync.RWMutex
	now        func() time.Time
	ttl        time.Duration
	maxEntries int
	generation uint64
	entries    map[string]eventCacheEntry
}

type eventCacheEntry struct {
	events    []Evento
	expiresAt time.Time
}

func newEventCache(ttl time.Duration, maxEntries int, now func() time.Time) *eventCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if maxEntries <= 0 {
		maxEntries = 128
	}
	if now == nil {
		now = time.Now
	}
	return &eventCache{
		now:        now,
		ttl:        ttl,
		maxEntries: maxEntries,
		entries:    make(map[string]eventCacheEntry),
	}
}

// Get returns the cached events for key and the generation a miss should
// pass to Store.
func (c *eventCache) Get(key string) ([]Evento, uint64, bool) {
	if c == nil {
		return nil, 0, false
	}
	c.mu.RLock()
	entry, ok := c.entries[key]
	generation := c.generation
	c.mu.RUnlock()
	if !ok {
		return nil, generation, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		if current, ok := c.entries[key]; ok && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, generation, false
	}
	return cloneEvents(entry.events), generation, true
}

// Store caches events built while the cache was at generation. The entry is
// discarded when an invalidation happened in the meantime.
func (c *eventCache) Store(key string, generation uint64, events []Evento) {
	if c == nil {
		return
	}
	cloned := cloneEvents(events)
	expiry := c.now().Add(c.ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		return
	}
	c.cleanupLocked()
	if len(c.entries) >= c.maxEntries {
		c.evictOneLocked()
	}
	c.entries[key] = eventCacheEntry{events: cloned, expiresAt: expiry}
}

func (c *eventCache) Invalidate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.generation++
	c.entries = make(map[string]eventCacheEntry)
	c.mu.Unlock()
}

func (c *eventCache) cleanupLocked() {
	now := c.now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

func (c *eventCache) evictOneLocked() {
	for key := range c.entries {
		delete(c.entries, key)
		return
	}
}

func cloneEvents(events []Evento) []Evento {
	out := make([]Evento, len(events))
	copy(out, events)
	return out
}

// eventCacheKey only covers the filter; the consolidated calendar is the
// same for every principal allowed to read it. turma is kept verbatim because
// the store matches it case-sensitively.
func eventCacheKey(turma string, bimestre, ano int) string {
	var b strings.Builder
	b.WriteString(turma)
	b.WriteString("|")
	b.WriteString(strconv.Itoa(bimestre))
	b.WriteString("|")
	b.WriteString(strconv.Itoa(ano))
	return b.String()
}
