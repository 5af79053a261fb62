// Package cache stores the most recent Decision per URL for a fixed TTL.
//
// Expiry is checked on read only; there is no sweeper. Keys are the exact URL
// strings handed over by the navigation layer, without further normalization.
package cache

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/PhishGuard/internal/domain/decision"
	"github.com/GriffinCanCode/PhishGuard/internal/shared/clock"
)

// DefaultTTL is how long a decision stays fresh.
const DefaultTTL = 10 * time.Minute

// Cache is a TTL map from URL to Decision. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]decision.Decision // Protected by mu
	ttl     time.Duration
	clock   clock.Clock
}

// New creates a cache. A zero ttl means DefaultTTL, a nil clock the system clock.
func New(ttl time.Duration, clk clock.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.System()
	}
	return &Cache{
		entries: make(map[string]decision.Decision),
		ttl:     ttl,
		clock:   clk,
	}
}

// Get returns the cached decision for url. Entries older than the TTL,
// measured from ObservedAt, are dropped and reported as absent.
func (c *Cache) Get(url string) (decision.Decision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.entries[url]
	if !ok {
		return decision.Decision{}, false
	}
	if d.Age(c.clock.Now()) >= c.ttl {
		delete(c.entries, url)
		return decision.Decision{}, false
	}
	return d, true
}

// Put stores d under url, replacing whatever was there.
func (c *Cache) Put(url string, d decision.Decision) {
	c.mu.Lock()
	c.entries[url] = d
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}
