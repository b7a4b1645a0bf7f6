package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/station-climate-etl/internal/domain"
)

// FactorLookup resolves the scale of an element code.
type FactorLookup interface {
	UnitFactor(ctx context.Context, providerID int, code string) (domain.UnitFactor, bool, error)
}

// CacheRecorder counts cache hits and misses.
type CacheRecorder interface {
	ElementCacheResult(hit bool)
}

// CachedFactors wraps a FactorLookup with an in-memory LRU cache. Every
// series file of an element repeats the same lookup, so a run of thousands
// of files resolves only a handful of codes.
type CachedFactors struct {
	inner   FactorLookup
	cache   *lruCache
	metrics CacheRecorder
}

// NewCachedFactors creates a cache decorator around a factor lookup.
func NewCachedFactors(inner FactorLookup, maxEntries int, metrics CacheRecorder) *CachedFactors {
	return &CachedFactors{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedFactors) UnitFactor(ctx context.Context, providerID int, code string) (domain.UnitFactor, bool, error) {
	key := fmt.Sprintf("%d|%s", providerID, code)
	if uf, ok := c.cache.get(key); ok {
		c.record(true)
		return uf, true, nil
	}
	c.record(false)
	uf, ok, err := c.inner.UnitFactor(ctx, providerID, code)
	if err != nil {
		return uf, false, err
	}
	// Misses are not cached: the catalog may be loaded later in the run.
	if ok {
		c.cache.put(key, uf)
	}
	return uf, ok, nil
}

// Purge drops every cached entry.
func (c *CachedFactors) Purge() {
	c.cache.purge()
}

func (c *CachedFactors) record(hit bool) {
	if c.metrics != nil {
		c.metrics.ElementCacheResult(hit)
	}
}

// lruCache is a small thread-safe LRU of unit factors.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.UnitFactor
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.UnitFactor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.UnitFactor{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.UnitFactor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*entry)
	c.head, c.tail = nil, nil
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.unlink(c.tail)
}
