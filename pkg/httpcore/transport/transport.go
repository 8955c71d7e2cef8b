// Package transport supplies the default TransportAdapter implementation:
// a buffered, bidirectional byte channel over a net.Conn.
//
// Grounded on the teacher's client/bufio.go (OptimizedReader: fill/Peek/
// Discard/ReadLine, reused here as the read-side buffering strategy) and
// client/pools.go's pooled bufio.Writer (reused here as the write-side
// buffering strategy), unified into one duplex type per spec §6's
// TransportAdapter contract, plus client/pool.go's createConnection for
// the dial constructors.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"time"

	"github.com/yourusername/httpcore/pkg/httpcore/httperr"
)

// DefaultBufferSize is the read/write buffer size used when a caller does
// not override it via Config (spec §3 Connection: "fixed-size read
// buffer (e.g., 16 KiB)").
const DefaultBufferSize = 16 * 1024

// Adapter is the TransportAdapter contract of spec §6: a bidirectional
// buffered byte channel used by MessageLifecycle and BodyCodec.
type Adapter interface {
	// Fill ensures the read window is non-empty, blocking on the
	// underlying stream if necessary. It returns io.EOF if zero bytes are
	// readable after blocking; the caller (package message) decides
	// whether that is a legitimate end of body or an UnexpectedEof.
	Fill() error
	// Peek returns the current readable window. It may be empty before
	// the first Fill.
	Peek() []byte
	// Drop advances the read window's start by n bytes.
	Drop(n int)
	// Read is a buffered read returning at least one byte or an error.
	Read(dest []byte) (int, error)
	// Write buffers bytes for output.
	Write(p []byte) (int, error)
	// Flush drains the write buffer to the underlying stream.
	Flush() error
	// Close irreversibly releases the transport.
	Close() error
}

// Buffered is the default Adapter implementation over a net.Conn.
type Buffered struct {
	conn net.Conn

	rbuf []byte
	r, w int // read window [r, w) into rbuf
	rerr error

	bw *bufio.Writer
}

// NewBuffered wraps conn with read/write buffers of size bufSize (or
// DefaultBufferSize if bufSize <= 0).
func NewBuffered(conn net.Conn, bufSize int) *Buffered {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Buffered{
		conn: conn,
		rbuf: make([]byte, bufSize),
		bw:   bufio.NewWriterSize(conn, bufSize),
	}
}

// Dial opens a plain TCP connection to addr ("host:port") and wraps it in
// a Buffered transport.
func Dial(ctx context.Context, addr string, bufSize int) (*Buffered, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, httperr.Wrap(err)
	}
	return NewBuffered(conn, bufSize), nil
}

// DialTLS opens a TCP connection to addr and performs a TLS handshake
// using cfg (a nil cfg uses crypto/tls defaults), wrapping the result in
// a Buffered transport.
func DialTLS(ctx context.Context, addr string, cfg *tls.Config, bufSize int) (*Buffered, error) {
	var d net.Dialer
	tlsDialer := tls.Dialer{NetDialer: &d, Config: cfg}
	conn, err := tlsDialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, httperr.Wrap(err)
	}
	return NewBuffered(conn, bufSize), nil
}

// SetDeadline forwards to the underlying net.Conn; the core itself has no
// timeout concept (spec §5), but collaborators may want one.
func (b *Buffered) SetDeadline(t time.Time) error {
	return b.conn.SetDeadline(t)
}

func (b *Buffered) fillOnce() error {
	if b.r > 0 {
		copy(b.rbuf, b.rbuf[b.r:b.w])
		b.w -= b.r
		b.r = 0
	}
	if b.w == len(b.rbuf) {
		return nil // window already full; caller asked for more than we can buffer
	}
	n, err := b.conn.Read(b.rbuf[b.w:])
	b.w += n
	if err != nil {
		b.rerr = err
	}
	return err
}

// Fill implements Adapter.
func (b *Buffered) Fill() error {
	if b.w > b.r {
		return nil
	}
	if b.rerr != nil {
		return translateReadErr(b.rerr)
	}
	err := b.fillOnce()
	if err != nil && b.w == b.r {
		return translateReadErr(err)
	}
	return nil
}

// translateReadErr passes io.EOF through unchanged — spec §6 calls this
// outcome EndOfStream, a distinct result from a transport failure, and
// leaves its interpretation (legitimate end of body vs. UnexpectedEof) to
// the framing layer in package message, which knows whether the active
// Framing expected more bytes.
func translateReadErr(err error) error {
	if errors.Is(err, io.EOF) {
		return io.EOF
	}
	return httperr.Wrap(err)
}

// Peek implements Adapter.
func (b *Buffered) Peek() []byte {
	return b.rbuf[b.r:b.w]
}

// Drop implements Adapter.
func (b *Buffered) Drop(n int) {
	b.r += n
	if b.r > b.w {
		b.r = b.w
	}
}

// Read implements Adapter.
func (b *Buffered) Read(dest []byte) (int, error) {
	if b.r == b.w {
		if err := b.Fill(); err != nil {
			return 0, err
		}
	}
	n := copy(dest, b.rbuf[b.r:b.w])
	b.r += n
	return n, nil
}

// Write implements Adapter.
func (b *Buffered) Write(p []byte) (int, error) {
	n, err := b.bw.Write(p)
	if err != nil {
		return n, httperr.Wrap(err)
	}
	return n, nil
}

// Flush implements Adapter.
func (b *Buffered) Flush() error {
	if err := b.bw.Flush(); err != nil {
		return httperr.Wrap(err)
	}
	return nil
}

// Close implements Adapter.
func (b *Buffered) Close() error {
	return b.conn.Close()
}

// Conn exposes the underlying net.Conn, mainly so a caller can inspect
// TLS connection state or hand the raw socket off for CONNECT tunneling.
func (b *Buffered) Conn() net.Conn { return b.conn }
