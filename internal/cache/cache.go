// Package cache memoizes search responses per (user, index version,
// normalized query, k). Entries for an old version are never served: a
// mutation bumps the version, which changes every key, and stale entries
// simply age out of the LRU. Nothing is persisted.
package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultSize is the default maximum number of cached responses.
const DefaultSize = 1000

// Entry is one cached response. V is owned by the cache after Put; callers
// must not mutate it.
type Entry[V any] struct {
	Value     V
	CreatedAt time.Time
}

// Stats reports cache effectiveness.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Entries int     `json:"entries"`
	HitRate float64 `json:"hit_rate"`
}

// Cache is a bounded LRU of responses. It is safe for concurrent use; a nil
// or zero-size Cache never stores anything.
type Cache[V any] struct {
	lru    *lru.Cache[string, Entry[V]]
	hits   atomic.Uint64
	misses atomic.Uint64
	now    func() time.Time
}

// New creates a cache holding up to size entries. A size <= 0 disables
// caching: Get always misses and Put is a no-op.
func New[V any](size int) *Cache[V] {
	c := &Cache[V]{now: time.Now}
	if size > 0 {
		c.lru, _ = lru.New[string, Entry[V]](size)
	}
	return c
}

// Key derives the cache key. The query must already be normalized.
func Key(user string, version uint64, normalizedQuery string, topK int) string {
	h := sha256.New()
	var buf [8]byte

	h.Write([]byte(user))
	h.Write([]byte{0})
	binary.BigEndian.PutUint64(buf[:], version)
	h.Write(buf[:])
	h.Write([]byte(normalizedQuery))
	h.Write([]byte{0})
	binary.BigEndian.PutUint64(buf[:], uint64(topK))
	h.Write(buf[:])

	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the entry cached for the key components.
func (c *Cache[V]) Get(user string, version uint64, normalizedQuery string, topK int) (Entry[V], bool) {
	if c == nil || c.lru == nil {
		return Entry[V]{}, false
	}
	e, ok := c.lru.Get(Key(user, version, normalizedQuery, topK))
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return e, ok
}

// Put stores value for the key components.
func (c *Cache[V]) Put(user string, version uint64, normalizedQuery string, topK int, value V) {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Add(Key(user, version, normalizedQuery, topK), Entry[V]{Value: value, CreatedAt: c.now()})
}

// Len returns the number of cached entries.
func (c *Cache[V]) Len() int {
	if c == nil || c.lru == nil {
		return 0
	}
	return c.lru.Len()
}

// Purge drops every entry. Counters are kept.
func (c *Cache[V]) Purge() {
	if c == nil || c.lru == nil {
		return
	}
	c.lru.Purge()
}

// Stats returns hit and miss counters and the current size.
func (c *Cache[V]) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	s := Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: c.Len(),
	}
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
