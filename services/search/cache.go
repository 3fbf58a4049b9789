package search

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// cacheTTL is how long a search result list stays valid. A hit within the
// window short-circuits the directory walk even if the files changed.
const cacheTTL = 300 * time.Second

type cacheEntry struct {
	results   []FileRecord
	timestamp time.Time
}

// resultCache is the only shared mutable state between concurrent workers.
// Entries are replaced wholesale, never partially mutated; a racing
// recomputation on the same key is benign (last writer wins).
type resultCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	now     func() time.Time
}

func newResultCache(now func() time.Time) *resultCache {
	if now == nil {
		now = time.Now
	}
	return &resultCache{
		entries: make(map[string]cacheEntry),
		ttl:     cacheTTL,
		now:     now,
	}
}

func (c *resultCache) get(key string) ([]FileRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(entry.timestamp) >= c.ttl {
		// Expired entries are treated as absent.
		delete(c.entries, key)
		return nil, false
	}
	return entry.results, true
}

func (c *resultCache) put(key string, results []FileRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = cacheEntry{results: results, timestamp: c.now()}
}

func cacheKey(keywords, fileTypes []string, maxResults int) string {
	return strings.Join(keywords, "\x1f") + "|" + strings.Join(fileTypes, "\x1f") + "|" + strconv.Itoa(maxResults)
}
