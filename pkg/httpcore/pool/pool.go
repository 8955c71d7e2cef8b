// Package pool implements ConnectionPool (spec §4.7): a keyed store of
// reusable transport.Adapter-backed connections, with free/used
// bookkeeping, a bounded free list evicted oldest-first, and mutex-guarded
// operations.
//
// Grounded on the teacher's client/pool.go (ConnectionPool/hostPool/
// PooledConn): that design keys on bare host string and recycles idle
// connections through a channel-backed per-host queue. This package
// generalizes the key to (host, port, tls) per spec §4.4's PoolKey, and
// replaces the channel-as-ring-buffer idiom with an explicit doubly
// linked free list so FIFO-oldest-first eviction and the pointer-equality
// probe of spec testable property 8 are both exact, not just
// probabilistic consequences of channel scheduling.
package pool

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/yourusername/httpcore/pkg/httpcore/transport"
)

// DefaultFreeMax is the spec's default bound on a pool's free list (spec
// §4.4: "|free_list| ≤ free_max (default 32)").
const DefaultFreeMax = 32

// Key identifies a pooled connection target: host compared
// case-insensitively, exact port, and whether the connection is TLS.
type Key struct {
	Host string
	Port int
	TLS  bool
}

func (k Key) normalized() Key {
	k.Host = asciiLower(k.Host)
	return k
}

func asciiLower(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}

// Connection is a pooled transport together with the bookkeeping state
// ConnectionPool needs to place it on the correct list. The transaction
// borrowing a Connection talks to its Transport field directly; it never
// touches the node machinery below.
type Connection struct {
	Transport *transport.Buffered
	Key       Key

	// KeepAlive is set by the transaction (from MessageLifecycle's
	// Connection: close / HTTP version rules) before Release; it decides
	// whether the connection is parked on the free list or destroyed.
	KeepAlive bool

	pool *Pool
	prev *Connection // free-list links; nil off-list or in used_list
	next *Connection
}

// Pool is ConnectionPool (spec §4.7): every operation below acquires the
// pool's mutex for its entire duration, per spec §5's shared-mutable-state
// rule.
type Pool struct {
	mu sync.Mutex

	freeMax int
	used    map[*Connection]struct{}
	freeHead, freeTail *Connection // oldest at head, newest at tail
	freeByKey          map[Key][]*Connection
	freeLen            int

	dialBufSize int
	tlsConfig   *tls.Config

	log zerolog.Logger
}

// New constructs an empty Pool. freeMax <= 0 uses DefaultFreeMax.
// dialBufSize is forwarded to transport.NewBuffered for every connection
// the pool dials; 0 uses transport.DefaultBufferSize. log receives
// debug-level entries on eviction and not-keep-alive disposal, matching
// this repo's ambient zerolog convention.
func New(freeMax int, dialBufSize int, tlsConfig *tls.Config, log zerolog.Logger) *Pool {
	if freeMax <= 0 {
		freeMax = DefaultFreeMax
	}
	return &Pool{
		freeMax:     freeMax,
		used:        make(map[*Connection]struct{}),
		freeByKey:   make(map[Key][]*Connection),
		dialBufSize: dialBufSize,
		tlsConfig:   tlsConfig,
		log:         log,
	}
}

// Connect implements spec §4.7 connect(): returns a free-list match for
// key if one exists, splicing it onto the used side; otherwise dials a
// fresh transport and places it directly on the used side.
func (p *Pool) Connect(ctx context.Context, key Key) (*Connection, error) {
	key = key.normalized()

	p.mu.Lock()
	if c := p.popFreeMatch(key); c != nil {
		p.used[c] = struct{}{}
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	tr, err := p.dial(ctx, key)
	if err != nil {
		return nil, err
	}

	c := &Connection{Transport: tr, Key: key, KeepAlive: true, pool: p}
	p.mu.Lock()
	p.used[c] = struct{}{}
	p.mu.Unlock()
	return c, nil
}

func (p *Pool) dial(ctx context.Context, key Key) (*transport.Buffered, error) {
	addr := fmt.Sprintf("%s:%d", key.Host, key.Port)
	if key.TLS {
		return transport.DialTLS(ctx, addr, p.tlsConfig, p.dialBufSize)
	}
	return transport.Dial(ctx, addr, p.dialBufSize)
}

// popFreeMatch removes and returns the most-recently-released free node
// for key, if any. Caller must hold p.mu.
func (p *Pool) popFreeMatch(key Key) *Connection {
	bucket := p.freeByKey[key]
	if len(bucket) == 0 {
		return nil
	}
	c := bucket[len(bucket)-1]
	p.freeByKey[key] = bucket[:len(bucket)-1]
	p.unlinkFree(c)
	return c
}

// Release implements spec §4.7 release(): if the connection is not
// keep-alive (or free_max is 0), it is closed and discarded; otherwise it
// is appended to the free list, evicting the oldest free node first if
// that would exceed free_max.
func (p *Pool) Release(c *Connection) {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.used, c)

	if !c.KeepAlive || p.freeMax == 0 {
		p.log.Debug().Str("host", c.Key.Host).Int("port", c.Key.Port).Msg("pool: discarding non-keep-alive connection")
		c.Transport.Close()
		return
	}

	for p.freeLen >= p.freeMax {
		p.evictOldestLocked()
	}
	p.pushFreeTail(c)
}

// evictOldestLocked closes and discards the free list's head (spec §4.7:
// "evict oldest (pop-front)"). Caller must hold p.mu.
func (p *Pool) evictOldestLocked() {
	oldest := p.freeHead
	if oldest == nil {
		return
	}
	p.unlinkFree(oldest)
	bucket := p.freeByKey[oldest.Key]
	for i, c := range bucket {
		if c == oldest {
			p.freeByKey[oldest.Key] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	p.log.Debug().Str("host", oldest.Key.Host).Int("port", oldest.Key.Port).Msg("pool: evicting oldest free connection")
	oldest.Transport.Close()
}

// pushFreeTail appends c as the newest free node. Caller must hold p.mu.
func (p *Pool) pushFreeTail(c *Connection) {
	c.prev = p.freeTail
	c.next = nil
	if p.freeTail != nil {
		p.freeTail.next = c
	} else {
		p.freeHead = c
	}
	p.freeTail = c
	p.freeLen++
	p.freeByKey[c.Key] = append(p.freeByKey[c.Key], c)
}

// unlinkFree splices c out of the free list. Caller must hold p.mu; c
// must currently be on the free list.
func (p *Pool) unlinkFree(c *Connection) {
	if c.prev != nil {
		c.prev.next = c.next
	} else {
		p.freeHead = c.next
	}
	if c.next != nil {
		c.next.prev = c.prev
	} else {
		p.freeTail = c.prev
	}
	c.prev, c.next = nil, nil
	p.freeLen--
}

// Resize implements spec §4.7 resize(): updates free_max, evicting oldest
// free nodes until the list fits the new bound.
func (p *Pool) Resize(newMax int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.freeMax = newMax
	for p.freeLen > p.freeMax {
		p.evictOldestLocked()
	}
}

// Deinit implements spec §4.7 deinit(): closes and discards every node in
// both the free and used lists. The pool must not be used afterward.
func (p *Pool) Deinit() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for c := p.freeHead; c != nil; {
		next := c.next
		c.Transport.Close()
		c = next
	}
	p.freeHead, p.freeTail = nil, nil
	p.freeLen = 0
	p.freeByKey = make(map[Key][]*Connection)

	for c := range p.used {
		c.Transport.Close()
	}
	p.used = make(map[*Connection]struct{})
}

// FreeLen reports the current free-list length, mainly for tests.
func (p *Pool) FreeLen() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freeLen
}
