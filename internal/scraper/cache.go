// internal/scraper/cache.go
package scraper

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/yuu1111/LoL-PatchNote-Notifier-sub000/internal/utils"
)

// CacheEntry is an immutable cached result. A new Set replaces the entry.
type CacheEntry struct {
	Value     any
	CreatedAt time.Time
	Metadata  map[string]string
}

// Cache is a TTL key/value store owned by one Engine. Expired entries are
// evicted only when a lookup finds them.
type Cache struct {
	ttl     time.Duration
	clock   utils.Clock
	entries map[string]CacheEntry
	mu      sync.Mutex
}

// NewCache creates a cache whose entries expire after ttl
func NewCache(ttl time.Duration, clock utils.Clock) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Cache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]CacheEntry),
	}
}

// Get returns the entry for key if present and younger than the TTL
func (c *Cache) Get(key string) (CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return CacheEntry{}, false
	}
	if c.clock.Now().Sub(entry.CreatedAt) >= c.ttl {
		delete(c.entries, key)
		return CacheEntry{}, false
	}
	return entry, true
}

// Set stores value under key, replacing any previous entry
func (c *Cache) Set(key string, value any, metadata map[string]string) {
	var md map[string]string
	if len(metadata) > 0 {
		md = make(map[string]string, len(metadata))
		for k, v := range metadata {
			md[k] = v
		}
	}

	c.mu.Lock()
	c.entries[key] = CacheEntry{Value: value, CreatedAt: c.clock.Now(), Metadata: md}
	c.mu.Unlock()
}

// Len returns the number of stored entries, expired ones included
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]CacheEntry)
	c.mu.Unlock()
}

// TTL returns the configured time-to-live
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Fingerprint hashes the first prefixLen bytes of content together with the
// full length
func Fingerprint(content string, prefixLen int) string {
	n := len(content)
	prefix := content
	if prefixLen > 0 && n > prefixLen {
		prefix = content[:prefixLen]
	}
	return strconv.FormatUint(xxhash.Sum64String(prefix), 16) + ":" + strconv.Itoa(n)
}

// CacheKey builds the key for (operation, content fingerprint, selector chain)
func CacheKey(operation, fingerprint string, chain []string) string {
	var b strings.Builder
	b.Grow(len(operation) + len(fingerprint) + 16*len(chain))
	b.WriteString(operation)
	b.WriteByte('|')
	b.WriteString(fingerprint)
	b.WriteByte('|')
	b.WriteString(strings.Join(chain, "\x1f"))
	return b.String()
}
