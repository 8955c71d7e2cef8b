// Package urlcache implements a small LRU cache of parsed request
// targets, avoiding a repeated net/url.Parse for URLs a Client dials
// repeatedly (connection pooling clients, by nature, re-dial the same
// handful of hosts constantly).
//
// Grounded on the teacher's client/url_cache.go (URLCache/URLCacheEntry):
// same map-plus-intrusive-doubly-linked-list LRU structure and the same
// sync.Pool reuse of evicted entries, generalized only in naming (this
// repo calls it Cache/Entry, not URLCache/URLCacheEntry) and in dropping
// the teacher's package-level global singleton — this core never holds
// shared mutable state outside what the caller explicitly constructs and
// owns (spec §5).
package urlcache

import (
	"net/url"
	"sync"
)

// Entry is one cached, already-decomposed request target.
type Entry struct {
	Scheme string
	Host   string
	Port   string
	Path   string
	Query  string

	prev, next *Entry
	key        string
}

// DefaultSize is the cache's default capacity.
const DefaultSize = 1024

// Cache is a thread-safe LRU cache of parsed URLs.
type Cache struct {
	mu sync.Mutex

	entries map[string]*Entry
	pool    sync.Pool

	head, tail *Entry
	maxSize    int
	size       int

	hits, misses uint64
}

// New constructs a Cache holding up to maxSize entries (DefaultSize if
// maxSize <= 0).
func New(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultSize
	}
	c := &Cache{
		entries: make(map[string]*Entry, maxSize),
		maxSize: maxSize,
	}
	c.pool.New = func() any { return &Entry{} }
	return c
}

// ParseURL decomposes urlStr into scheme/host/port/path/query, serving
// from cache on a hit and falling back to net/url.Parse (then caching the
// result) on a miss. Default ports (80/443) are filled in when urlStr
// omits one.
func (c *Cache) ParseURL(urlStr string) (scheme, host, port, path, query string, err error) {
	if e := c.get(urlStr); e != nil {
		return e.Scheme, e.Host, e.Port, e.Path, e.Query, nil
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return "", "", "", "", "", err
	}

	scheme = u.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host = u.Hostname()
	port = u.Port()
	if port == "" {
		if scheme == "https" {
			port = "443"
		} else {
			port = "80"
		}
	}
	path = u.Path
	if path == "" {
		path = "/"
	}
	query = u.RawQuery

	c.put(urlStr, scheme, host, port, path, query)
	return scheme, host, port, path, query, nil
}

func (c *Cache) get(key string) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil
	}
	c.hits++
	c.moveToFront(e)
	return e
}

func (c *Cache) put(key, scheme, host, port, path, query string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.moveToFront(e)
		return
	}
	if c.size >= c.maxSize {
		c.evictOldest()
	}

	e := c.pool.Get().(*Entry)
	e.key, e.Scheme, e.Host, e.Port, e.Path, e.Query = key, scheme, host, port, path, query
	c.entries[key] = e
	c.size++
	c.addToFront(e)
}

func (c *Cache) moveToFront(e *Entry) {
	if e == c.head {
		return
	}
	c.unlink(e)
	c.addToFront(e)
}

func (c *Cache) addToFront(e *Entry) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) unlink(e *Entry) {
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
	e.prev, e.next = nil, nil
}

func (c *Cache) evictOldest() {
	if c.tail == nil {
		return
	}
	oldest := c.tail
	c.unlink(oldest)
	delete(c.entries, oldest.key)
	c.size--
	oldest.key = ""
	c.pool.Put(oldest)
}

// Stats reports cache hit/miss counters and current size, mainly for
// diagnostics.
func (c *Cache) Stats() (hits, misses uint64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.size
}
