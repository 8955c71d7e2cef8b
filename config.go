// Package httpcore is a reusable HTTP/1.1 client-side protocol core: a
// byte-oriented, allocation-light state machine that parses server
// responses and encodes client requests over a caller-supplied transport,
// with an optional batteries-included Client tying together the default
// TransportAdapter, CompressionAdapter, and ConnectionPool implementations.
//
// Grounded on the teacher's client/pool.go PoolConfig/DefaultPoolConfig
// idiom, extended to the tunables this core exposes: header buffer cap,
// transport buffer size, pool free-list bound, and a logging hook.
package httpcore

import (
	"crypto/tls"

	"github.com/rs/zerolog"

	"github.com/yourusername/httpcore/pkg/httpcore/message"
	"github.com/yourusername/httpcore/pkg/httpcore/pool"
	"github.com/yourusername/httpcore/pkg/httpcore/transport"
)

// Config carries every caller-configurable tunable named across spec §4.5
// (wait()'s header bound), §4.7 (pool free_max), and §4.8 (transport
// buffer size).
type Config struct {
	// HeaderBufCap bounds the response header block (and any chunked
	// trailer block) a MessageLifecycle will buffer before giving up with
	// HeadersExceededLimit. Default 8 KiB.
	HeaderBufCap int

	// TransportBufSize is the read/write buffer size used by the default
	// transport.Buffered adapter. Default 16 KiB.
	TransportBufSize int

	// PoolFreeMax bounds the connection pool's free list. Default 32.
	PoolFreeMax int

	// TLSConfig, if non-nil, is used for every TLS dial the pool performs.
	TLSConfig *tls.Config

	// Logger receives debug-level diagnostics from the connection pool
	// (eviction, not-keep-alive disposal). The zero value (zerolog.Logger{})
	// discards everything, matching zerolog.Nop().
	Logger zerolog.Logger
}

// DefaultConfig returns the spec's stated defaults: an 8 KiB header bound,
// a 16 KiB transport buffer, and a 32-connection pool free list.
func DefaultConfig() Config {
	return Config{
		HeaderBufCap:     message.DefaultHeaderBufCap,
		TransportBufSize: transport.DefaultBufferSize,
		PoolFreeMax:      pool.DefaultFreeMax,
		Logger:           zerolog.Nop(),
	}
}
