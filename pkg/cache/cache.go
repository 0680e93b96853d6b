package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/kasuganosora/lakebase/pkg/catalog"
	"github.com/kasuganosora/lakebase/pkg/utils"
)

// TableMeta is the cached view of a table's commit state. A stale entry only
// delays read visibility by at most the TTL; writes always bypass this cache.
type TableMeta struct {
	Table            catalog.Table
	MetadataLocation string
	SnapshotID       int64
	Schema           *catalog.Schema
}

// MetadataCache caches table handles and metadata pointers per table
// identifier. Entries expire after a fixed TTL.
type MetadataCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   utils.TimeProvider
	entries map[string]*metaEntry
}

type metaEntry struct {
	meta      *TableMeta
	expiresAt time.Time
}

// NewMetadataCache creates a metadata cache with the given TTL.
func NewMetadataCache(ttl time.Duration, clock utils.TimeProvider) *MetadataCache {
	if clock == nil {
		clock = utils.NewSystemTimeProvider()
	}
	return &MetadataCache{
		ttl:     ttl,
		clock:   clock,
		entries: make(map[string]*metaEntry),
	}
}

// Get returns the cached metadata for the key, or nil if absent or expired.
func (c *MetadataCache) Get(key string) *TableMeta {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.clock.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil
	}
	return entry.meta
}

// Put stores the metadata for the key.
func (c *MetadataCache) Put(key string, meta *TableMeta) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &metaEntry{
		meta:      meta,
		expiresAt: c.clock.Now().Add(c.ttl),
	}
}

// Invalidate drops the entry for the key. Called after every write so the
// next read reloads the fresh metadata pointer.
func (c *MetadataCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear drops all entries.
func (c *MetadataCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*metaEntry)
}

// Len returns the number of entries, expired ones included.
func (c *MetadataCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ResultCache is a TTL + LRU cache for query results, keyed by the request
// digest. A single mutex guards both the map and the recency list.
type ResultCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	maxSize int
	clock   utils.TimeProvider
	entries map[string]*list.Element
	order   *list.List // front = most recently used
}

type resultEntry struct {
	key       string
	rows      []map[string]interface{}
	expiresAt time.Time
}

// NewResultCache creates a result cache with the given TTL and capacity.
func NewResultCache(ttl time.Duration, maxSize int, clock utils.TimeProvider) *ResultCache {
	if clock == nil {
		clock = utils.NewSystemTimeProvider()
	}
	if maxSize < 1 {
		maxSize = 1
	}
	return &ResultCache{
		ttl:     ttl,
		maxSize: maxSize,
		clock:   clock,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

// Get returns a deep copy of the cached rows, or nil on miss. The copy keeps
// callers from mutating each other's results.
func (c *ResultCache) Get(key string) ([]map[string]interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*resultEntry)
	if c.clock.Now().After(entry.expiresAt) {
		c.order.Remove(elem)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return copyRows(entry.rows), true
}

// Put stores rows under the key, evicting the least recently used entry when
// the cache is full.
func (c *ResultCache) Put(key string, rows []map[string]interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*resultEntry)
		entry.rows = copyRows(rows)
		entry.expiresAt = c.clock.Now().Add(c.ttl)
		c.order.MoveToFront(elem)
		return
	}

	for len(c.entries) >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*resultEntry).key)
	}

	entry := &resultEntry{
		key:       key,
		rows:      copyRows(rows),
		expiresAt: c.clock.Now().Add(c.ttl),
	}
	c.entries[key] = c.order.PushFront(entry)
}

// InvalidateTable drops every entry belonging to the table prefix. Result
// keys embed the table identifier before the digest, see RequestDigest.
func (c *ResultCache) InvalidateTable(tablePrefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, elem := range c.entries {
		if hasPrefix(key, tablePrefix) {
			c.order.Remove(elem)
			delete(c.entries, key)
		}
	}
}

// Clear drops all entries.
func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

// Len returns the number of entries, expired ones included.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

func copyRows(rows []map[string]interface{}) []map[string]interface{} {
	out := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		copied := make(map[string]interface{}, len(row))
		for k, v := range row {
			copied[k] = v
		}
		out[i] = copied
	}
	return out
}
