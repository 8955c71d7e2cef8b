package pool

import (
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/httpcore/pkg/httpcore/transport"
)

// newTestConnection builds a Connection backed by a real (if otherwise
// unused) transport.Buffered over a net.Pipe, so Release/evict code paths
// that call Transport.Close() have something live to close.
func newTestConnection(t *testing.T, p *Pool, key Key) *Connection {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { server.Close() })
	return &Connection{
		Key:       key.normalized(),
		KeepAlive: true,
		pool:      p,
		Transport: transport.NewBuffered(client, 0),
	}
}

// Property 9: FIFO eviction. With free_max = 2, releasing three
// keep-alive connections with distinct keys evicts the first one
// released.
func TestPoolEvictionIsFIFO(t *testing.T) {
	p := New(2, 0, nil, zerolog.Nop())

	k1 := Key{Host: "a.example", Port: 80}
	k2 := Key{Host: "b.example", Port: 80}
	k3 := Key{Host: "c.example", Port: 80}

	c1 := newTestConnection(t, p, k1)
	c2 := newTestConnection(t, p, k2)
	c3 := newTestConnection(t, p, k3)

	p.used[c1] = struct{}{}
	p.used[c2] = struct{}{}
	p.used[c3] = struct{}{}

	p.Release(c1)
	p.Release(c2)
	p.Release(c3)

	require.Equal(t, 2, p.FreeLen())
	require.Nil(t, p.popFreeMatchForTest(k1), "expected c1 to have been evicted")
	require.Equal(t, c2, p.popFreeMatchForTest(k2), "expected c2 to still be free")
	require.Equal(t, c3, p.popFreeMatchForTest(k3), "expected c3 to still be free")
}

// popFreeMatchForTest exposes popFreeMatch under the pool's lock, for
// white-box FIFO assertions.
func (p *Pool) popFreeMatchForTest(key Key) *Connection {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.popFreeMatch(key.normalized())
}

// Property 8: pool idempotence. connect(k); release(c); connect(k)
// returns the same Connection object when keep-alive and free_max >= 1.
func TestPoolIdempotenceAcrossReleaseAndReconnect(t *testing.T) {
	p := New(1, 0, nil, zerolog.Nop())
	key := Key{Host: "example.com", Port: 443, TLS: true}

	c := newTestConnection(t, p, key)
	p.used[c] = struct{}{}

	p.Release(c)
	got := p.popFreeMatchForTest(key)
	require.Same(t, c, got, "expected same *Connection after release+reconnect")
}

// A connection released with KeepAlive=false is discarded, never parked.
func TestPoolReleaseNonKeepAliveDiscardsConnection(t *testing.T) {
	p := New(4, 0, nil, zerolog.Nop())
	key := Key{Host: "example.com", Port: 80}

	c := newTestConnection(t, p, key)
	c.KeepAlive = false
	p.used[c] = struct{}{}

	p.Release(c)

	require.Zero(t, p.FreeLen(), "non-keep-alive release should not park a connection")
}

// Resize evicts oldest-first down to the new bound.
func TestPoolResizeEvictsDownToNewBound(t *testing.T) {
	p := New(4, 0, nil, zerolog.Nop())

	keys := []Key{
		{Host: "a.example", Port: 80},
		{Host: "b.example", Port: 80},
		{Host: "c.example", Port: 80},
		{Host: "d.example", Port: 80},
	}
	conns := make([]*Connection, len(keys))
	for i, k := range keys {
		c := newTestConnection(t, p, k)
		conns[i] = c
		p.used[c] = struct{}{}
		p.Release(c)
	}
	require.Equal(t, 4, p.FreeLen())

	p.Resize(1)
	require.Equal(t, 1, p.FreeLen())
	require.Equal(t, conns[3], p.popFreeMatchForTest(keys[3]), "expected the newest connection (d) to survive the resize")
}

// Key matching is case-insensitive on host, exact on port and tls.
func TestKeyNormalization(t *testing.T) {
	k := Key{Host: "EXAMPLE.com", Port: 80}.normalized()
	require.Equal(t, "example.com", k.Host)
}
