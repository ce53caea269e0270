package routing

import (
	"fmt"
	"sync"
	"time"

	"github.com/example/ecoride/internal/models"
)

// Cache is a small in-memory cache of provider answers keyed by endpoint pair.
type Cache struct {
	mu    sync.RWMutex
	store map[string]cacheEntry
	ttl   time.Duration
	now   func() time.Time
}

type cacheEntry struct {
	v  []models.RouteCandidate
	ts time.Time
}

// NewCache creates a cache with the provided TTL. A non-positive TTL disables it.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{store: make(map[string]cacheEntry), ttl: ttl, now: time.Now}
}

func keyFor(a, b models.Coord) string {
	return fmtCoord(a) + "->" + fmtCoord(b)
}

func fmtCoord(c models.Coord) string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

// Get returns a copy of the cached candidates if present and not expired.
func (c *Cache) Get(a, b models.Coord) ([]models.RouteCandidate, bool) {
	if c == nil || c.ttl <= 0 {
		return nil, false
	}
	k := keyFor(a, b)
	c.mu.RLock()
	e, ok := c.store[k]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.ts) > c.ttl {
		c.mu.Lock()
		delete(c.store, k)
		c.mu.Unlock()
		return nil, false
	}
	return cloneCandidates(e.v), true
}

func (c *Cache) Set(a, b models.Coord, v []models.RouteCandidate) {
	if c == nil || c.ttl <= 0 {
		return
	}
	k := keyFor(a, b)
	c.mu.Lock()
	c.store[k] = cacheEntry{v: cloneCandidates(v), ts: c.now()}
	c.mu.Unlock()
}

func cloneCandidates(in []models.RouteCandidate) []models.RouteCandidate {
	out := make([]models.RouteCandidate, len(in))
	for i, rc := range in {
		rc.Path = append([]models.Coord(nil), rc.Path...)
		out[i] = rc
	}
	return out
}
