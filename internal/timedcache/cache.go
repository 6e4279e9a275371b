package timedcache

import (
	"sync"
	"time"
)

// sweepEvery controls how many insertions happen between two eager sweeps
// of expired keys.
const sweepEvery = 64

// Cache remembers keys for a fixed duration.
// It is safe for concurrent use.
type Cache struct {
	// timeout is how long a key stays present after Add.
	timeout time.Duration

	// now returns the current time. Tests replace it to control expiry.
	now func() time.Time

	mu      sync.Mutex
	entries map[string]time.Time // key -> expiry
	adds    int
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the function used to read the current time.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Cache whose keys expire timeout after insertion.
func New(timeout time.Duration, opts ...Option) *Cache {
	c := &Cache{
		timeout: timeout,
		now:     time.Now,
		entries: make(map[string]time.Time),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Timeout returns the configured retention duration.
func (c *Cache) Timeout() time.Duration {
	return c.timeout
}

// Add records key with an expiry of now + timeout.
// Adding a key that is already present refreshes its expiry.
func (c *Cache) Add(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = now.Add(c.timeout)

	c.adds++
	if c.adds%sweepEvery == 0 {
		c.purgeLocked(now)
	}
}

// Contains reports whether key was added within the last timeout.
func (c *Cache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiry, ok := c.entries[key]
	if !ok {
		return false
	}
	if !c.now().Before(expiry) {
		delete(c.entries, key)
		return false
	}
	return true
}

// AddIfAbsent records key and returns true when key was not present.
// It returns false, leaving the expiry untouched, when key is still fresh.
// The check and the insertion happen under a single lock.
func (c *Cache) AddIfAbsent(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if expiry, ok := c.entries[key]; ok && now.Before(expiry) {
		return false
	}

	c.entries[key] = now.Add(c.timeout)
	c.adds++
	if c.adds%sweepEvery == 0 {
		c.purgeLocked(now)
	}
	return true
}

// Len returns the number of unexpired keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked(c.now())
	return len(c.entries)
}

// Purge removes every expired key.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.purgeLocked(c.now())
}

func (c *Cache) purgeLocked(now time.Time) {
	for key, expiry := range c.entries {
		if !now.Before(expiry) {
			delete(c.entries, key)
		}
	}
}
