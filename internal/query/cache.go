package query

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

const (
	// cacheTTL is how long a cached result stays valid.
	cacheTTL = 5 * time.Minute

	// cacheCapacity bounds the number of cached results.
	cacheCapacity = 100
)

// resultCache is a bounded TTL cache for structured query results, shared
// across one engine instance.
//
// The cache never backs correctness, only latency: entries expire after the
// TTL, and when capacity is exceeded the entries with the lowest recorded
// execution time are evicted first, keeping the most expensive results.
type resultCache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	capacity int
	ttl      time.Duration
}

type cacheEntry struct {
	result   *Result
	storedAt time.Time
}

func newResultCache(capacity int, ttl time.Duration) *resultCache {
	return &resultCache{
		entries:  make(map[string]*cacheEntry),
		capacity: capacity,
		ttl:      ttl,
	}
}

// cacheKey hashes the graph ID and the canonical JSON form of the query.
func cacheKey(graphID string, q Query) (string, error) {
	data, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(append([]byte(graphID+"\x00"), data...))
	return hex.EncodeToString(sum[:]), nil
}

// get returns a live cached result, dropping expired entries on the way.
func (c *resultCache) get(key string) (*Result, bool) {
	if key == "" {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.result, true
}

// put stores a result and evicts opportunistically once capacity is
// exceeded, removing the lowest-execution-time entries first.
func (c *resultCache) put(key string, result *Result) {
	if key == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cacheEntry{result: result, storedAt: time.Now()}

	for len(c.entries) > c.capacity {
		cheapestKey := ""
		cheapest := time.Duration(-1)
		for k, e := range c.entries {
			if cheapest < 0 || e.result.ExecutionTime < cheapest {
				cheapest = e.result.ExecutionTime
				cheapestKey = k
			}
		}
		delete(c.entries, cheapestKey)
	}
}

// len reports the current entry count (for tests).
func (c *resultCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
