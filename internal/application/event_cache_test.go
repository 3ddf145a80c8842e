package application

import (
	"testing"
	"time"
)

func TestEventCacheStoresAndReturnsCopies(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	current := fixed
	cache := newEventCache(time.Minute, 4, func() time.Time { return current })

	original := []Evento{{CalendarioID: "cal-1", Tipo: EventoAV1}}
	cache.Store("key", 0, original)

	// Mutating the original slice should not affect the cached copy.
	original[0].CalendarioID = "mutated"

	cached, _, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if cached[0].CalendarioID != "cal-1" {
		t.Fatalf("expected cached calendario id to remain unchanged, got %s", cached[0].CalendarioID)
	}

	cached[0].CalendarioID = "changed"
	cachedAgain, _, ok := cache.Get("key")
	if !ok {
		t.Fatalf("expected cache hit on second read")
	}
	if cachedAgain[0].CalendarioID != "cal-1" {
		t.Fatalf("expected cache to return independent copy, got %s", cachedAgain[0].CalendarioID)
	}
}

func TestEventCacheKeepsEmptyResults(t *testing.T) {
	cache := newEventCache(time.Minute, 4, time.Now)
	cache.Store("empty", 0, nil)

	cached, _, ok := cache.Get("empty")
	if !ok {
		t.Fatalf("expected cache hit for empty result")
	}
	if cached == nil || len(cached) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", cached)
	}
}

func TestEventCacheExpiresEntries(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	current := fixed
	cache := newEventCache(time.Second, 4, func() time.Time { return current })

	cache.Store("key", 0, []Evento{{CalendarioID: "cal-1"}})
	if _, _, ok := cache.Get("key"); !ok {
		t.Fatalf("expected cache hit before expiry")
	}

	current = current.Add(2 * time.Second)
	if _, _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache entry to expire")
	}
}

func TestEventCacheEvictsWhenFull(t *testing.T) {
	cache := newEventCache(time.Minute, 2, time.Now)
	cache.Store("a", 0, nil)
	cache.Store("b", 0, nil)
	cache.Store("c", 0, nil)

	if got := len(cache.entries); got != 2 {
		t.Fatalf("expected cache to hold 2 entries, got %d", got)
	}
	if _, _, ok := cache.Get("c"); !ok {
		t.Fatalf("expected newest entry to be kept")
	}
}

func TestEventCacheInvalidate(t *testing.T) {
	cache := newEventCache(time.Minute, 4, time.Now)
	cache.Store("key", 0, []Evento{{CalendarioID: "cal-1"}})
	cache.Invalidate()
	if _, _, ok := cache.Get("key"); ok {
		t.Fatalf("expected cache to be empty after invalidation")
	}
}

func TestEventCacheDropsFillsFromBeforeInvalidate(t *testing.T) {
	cache := newEventCache(time.Minute, 4, time.Now)

	_, generation, ok := cache.Get("key")
	if ok {
		t.Fatalf("expected a miss on an empty cache")
	}
	cache.Invalidate()
	cache.Store("key", generation, []Evento{{CalendarioID: "stale"}})
	if _, _, ok := cache.Get("key"); ok {
		t.Fatalf("expected fill from an older generation to be dropped")
	}

	_, current, _ := cache.Get("key")
	if current == generation {
		t.Fatalf("expected Invalidate to advance the generation")
	}
	cache.Store("key", current, []Evento{{CalendarioID: "fresh"}})
	cached, _, ok := cache.Get("key")
	if !ok || cached[0].CalendarioID != "fresh" {
		t.Fatalf("expected fill from the current generation to be kept, got %#v", cached)
	}
}

func TestEventCacheKeyKeepsTurmaVerbatim(t *testing.T) {
	tests := []struct {
		name  string
		a, b  string
		equal bool
	}{
		{"same turma", "6ºA", "6ºA", true},
		{"different case", "6ºA", "6ºa", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := eventCacheKey(tt.a, 1, 2025) == eventCacheKey(tt.b, 1, 2025); got != tt.equal {
				t.Fatalf("key equality for %q and %q = %v, want %v", tt.a, tt.b, got, tt.equal)
			}
		})
	}
	if eventCacheKey("1A", 1, 2025) == eventCacheKey("1A", 2, 2025) {
		t.Fatalf("expected bimestre to be part of the key")
	}
}
