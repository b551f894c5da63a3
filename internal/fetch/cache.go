package fetch

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	payload   json.RawMessage
	createdAt time.Time
}

// Cache is an in-memory TTL cache for fetch payloads. Expiry is checked
// lazily on Get; callers never observe the difference between an expired
// entry and a missing one. When an insertion would exceed maxEntries the
// least-recently-inserted entry is evicted.
type Cache struct {
	ttl        time.Duration
	maxEntries int
	clock      Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string // insertion order, oldest first
}

// NewCache creates a TTL cache bounded by maxEntries.
func NewCache(ttl time.Duration, maxEntries int) *Cache {
	return newCache(ttl, maxEntries, NewClock())
}

func newCache(ttl time.Duration, maxEntries int, clock Clock) *Cache {
	return &Cache{
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      clock,
		entries:    make(map[string]cacheEntry),
	}
}

// Get returns the cached payload for key, or false if the key is absent
// or its entry has outlived the TTL. Expired entries are removed on read.
func (c *Cache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.clock.Now().Sub(entry.createdAt) >= c.ttl {
		c.remove(key)
		return nil, false
	}

	return entry.payload, true
}

// Put stores payload under key with creation time now. Re-inserting an
// existing key refreshes both its payload and its position in the
// eviction order.
func (c *Cache) Put(key string, payload json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.remove(key)
	}

	if c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		c.remove(c.order[0])
	}

	c.entries[key] = cacheEntry{payload: payload, createdAt: c.clock.Now()}
	c.order = append(c.order, key)
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// remove deletes key from the map and the insertion order.
// Caller must hold c.mu.
func (c *Cache) remove(key string) {
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// cacheKey builds a canonical key from an endpoint and its query
// parameters so identical requests share one cache entry.
func cacheKey(endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(endpoint)
	for _, k := range keys {
		b.WriteByte('?')
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
