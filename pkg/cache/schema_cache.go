// Package cache keeps discovered table schemas.
package cache

import (
	"container/list"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
)

// entry holds bookkeeping for one schema.
type entry struct {
	name      string
	schema    *arrow.Schema
	createdAt time.Time
	hits      atomic.Int64
}

// SchemaCache is a thread-safe LRU of schemas keyed by qualified table name.
type SchemaCache struct {
	cap   int
	mu    sync.Mutex
	lru   *list.List // front = most recent
	items map[string]*list.Element

	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewSchemaCache returns a cache holding at most max schemas. Non-positive
// sizes default to 100.
func NewSchemaCache(max int) *SchemaCache {
	if max <= 0 {
		max = 100
	}
	return &SchemaCache{
		cap:   max,
		lru:   list.New(),
		items: make(map[string]*list.Element, max),
	}
}

// Get returns the schema cached for name.
func (c *SchemaCache) Get(name string) (*arrow.Schema, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ele, ok := c.items[name]
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.lru.MoveToFront(ele)
	e := ele.Value.(*entry)
	e.hits.Add(1)
	c.hits.Add(1)
	return e.schema, true
}

// Put stores schema under name, replacing any previous schema.
func (c *SchemaCache) Put(name string, schema *arrow.Schema) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, ok := c.items[name]; ok {
		c.lru.MoveToFront(ele)
		ele.Value.(*entry).schema = schema
		return
	}

	ele := c.lru.PushFront(&entry{name: name, schema: schema, createdAt: time.Now()})
	c.items[name] = ele

	if len(c.items) > c.cap {
		c.evictOldest()
	}
}

// Invalidate drops the schema cached for name. It reports whether one was
// present.
func (c *SchemaCache) Invalidate(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	ele, ok := c.items[name]
	if !ok {
		return false
	}
	c.lru.Remove(ele)
	delete(c.items, name)
	return true
}

// evictOldest removes the LRU element (caller holds the lock).
func (c *SchemaCache) evictOldest() {
	ele := c.lru.Back()
	if ele == nil {
		return
	}
	c.lru.Remove(ele)
	delete(c.items, ele.Value.(*entry).name)
	c.evictions.Add(1)
}

// Clear empties the cache.
func (c *SchemaCache) Clear() {
	c.mu.Lock()
	c.lru.Init()
	c.items = make(map[string]*list.Element, c.cap)
	c.mu.Unlock()
}

// Size returns the current number of cached schemas.
func (c *SchemaCache) Size() int {
	c.mu.Lock()
	n := len(c.items)
	c.mu.Unlock()
	return n
}

// Stats contains live statistics.
type Stats struct {
	Size      int
	Cap       int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	OldestAge time.Duration
}

// HitRate returns hits over lookups, or 0 before the first lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats gathers statistics.
func (c *SchemaCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	var oldest time.Time
	for e := c.lru.Back(); e != nil; e = e.Prev() {
		created := e.Value.(*entry).createdAt
		if oldest.IsZero() || created.Before(oldest) {
			oldest = created
		}
	}

	var age time.Duration
	if !oldest.IsZero() {
		age = time.Since(oldest)
	}
	return Stats{
		Size:      len(c.items),
		Cap:       c.cap,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		OldestAge: age,
	}
}
