/*
Package cache keeps query results by cache key. Results are stored as msgpack
snapshots, so every Get decodes a fresh copy and callers can change what they
read without touching the cached entry.
*/
package cache

import (
	"bytes"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/skuid/graphmap/query"
)

// DefaultMaxSize is the number of entries a cache keeps unless told otherwise
const DefaultMaxSize = 10000

type entry struct {
	group    string
	snapshot []byte
}

/*
QueryCache maps query cache keys to result snapshots. Entries may belong to a
cache group, which is dropped as a whole when its data changes. Once the cache
is full the oldest entry makes room for the new one.

A QueryCache is safe for concurrent use.
*/
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	groups  map[string]map[string]struct{}
	order   []string
	maxSize int
	logger  *zap.Logger
}

// Option configures a QueryCache
type Option func(*QueryCache)

// WithMaxSize caps the number of entries
func WithMaxSize(size int) Option {
	return func(c *QueryCache) {
		if size > 0 {
			c.maxSize = size
		}
	}
}

// WithLogger logs evictions and group removals at debug level
func WithLogger(logger *zap.Logger) Option {
	return func(c *QueryCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New returns an empty cache
func New(opts ...Option) *QueryCache {
	c := &QueryCache{
		entries: make(map[string]entry),
		groups:  make(map[string]map[string]struct{}),
		maxSize: DefaultMaxSize,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

/*
Get decodes the entry of md into out and reports whether there was one.
Queries without a cache key and refresh strategies never hit.
*/
func (c *QueryCache) Get(md *query.Metadata, out interface{}) (bool, error) {
	if md.CacheKey == "" || md.CacheStrategy.IsRefresh() {
		return false, nil
	}

	c.mu.RLock()
	e, ok := c.entries[md.CacheKey]
	c.mu.RUnlock()
	if !ok {
		return false, nil
	}

	dec := msgpack.NewDecoder(bytes.NewReader(e.snapshot))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(out); err != nil {
		return false, err
	}
	return true, nil
}

// Put stores a snapshot of value under the key and group of md. Queries
// without a cache key are ignored.
func (c *QueryCache) Put(md *query.Metadata, value interface{}) error {
	if md.CacheKey == "" {
		return nil
	}
	snapshot, err := msgpack.Marshal(value)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[md.CacheKey]; ok {
		c.unlinkGroup(md.CacheKey, old.group)
	} else {
		c.order = append(c.order, md.CacheKey)
	}
	c.entries[md.CacheKey] = entry{group: md.CacheGroup, snapshot: snapshot}
	if md.CacheGroup != "" {
		keys, ok := c.groups[md.CacheGroup]
		if !ok {
			keys = make(map[string]struct{})
			c.groups[md.CacheGroup] = keys
		}
		keys[md.CacheKey] = struct{}{}
	}

	for len(c.entries) > c.maxSize {
		c.evictOldest()
	}
	return nil
}

// RemoveGroup drops every entry of group
func (c *QueryCache) RemoveGroup(group string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := c.groups[group]
	for key := range keys {
		delete(c.entries, key)
	}
	delete(c.groups, group)
	if len(keys) > 0 {
		c.compact()
	}
	c.logger.Debug("removed cache group", zap.String("group", group), zap.Int("entries", len(keys)))
}

// Clear drops every entry
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
	c.groups = make(map[string]map[string]struct{})
	c.order = nil
}

// Size is the number of cached entries
func (c *QueryCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	for len(c.order) > 0 {
		key := c.order[0]
		c.order = c.order[1:]
		e, ok := c.entries[key]
		if !ok {
			continue
		}
		delete(c.entries, key)
		c.unlinkGroup(key, e.group)
		c.logger.Debug("evicted cache entry", zap.String("key", key))
		return
	}
}

func (c *QueryCache) unlinkGroup(key, group string) {
	if group == "" {
		return
	}
	keys := c.groups[group]
	delete(keys, key)
	if len(keys) == 0 {
		delete(c.groups, group)
	}
}

// compact drops keys of removed entries from the eviction order
func (c *QueryCache) compact() {
	kept := c.order[:0]
	for _, key := range c.order {
		if _, ok := c.entries[key]; ok {
			kept = append(kept, key)
		}
	}
	c.order = kept
}
