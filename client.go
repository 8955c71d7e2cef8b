package httpcore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yourusername/httpcore/internal/urlcache"
	"github.com/yourusername/httpcore/pkg/httpcore/compressadapter"
	"github.com/yourusername/httpcore/pkg/httpcore/headers"
	"github.com/yourusername/httpcore/pkg/httpcore/message"
	"github.com/yourusername/httpcore/pkg/httpcore/pool"
	"github.com/yourusername/httpcore/pkg/httpcore/transport"
)

// Client is a convenience wrapper gluing the default TransportAdapter,
// ConnectionPool, and MessageLifecycle together into a request/response
// call, the way the teacher's client.Client.Do glues PooledConn
// acquisition to request building. Unlike the teacher, the three layers
// it wires remain independently usable: Client exists for callers who
// want the batteries-included path, not as the only entry point.
type Client struct {
	cfg  Config
	pool *pool.Pool
	urls *urlcache.Cache
}

// NewClient constructs a Client from cfg (zero value is a usable
// DefaultConfig()).
func NewClient(cfg Config) *Client {
	if cfg.HeaderBufCap <= 0 {
		cfg.HeaderBufCap = message.DefaultHeaderBufCap
	}
	if cfg.TransportBufSize <= 0 {
		cfg.TransportBufSize = transport.DefaultBufferSize
	}
	return &Client{
		cfg:  cfg,
		pool: pool.New(cfg.PoolFreeMax, cfg.TransportBufSize, cfg.TLSConfig, cfg.Logger),
		urls: urlcache.New(urlcache.DefaultSize),
	}
}

// Response is the result of a completed request/response transaction:
// status line, headers, trailers (populated for chunked bodies with a
// trailer section), and the fully drained body.
type Response struct {
	Status   int
	Reason   string
	Headers  *headers.Table
	Trailers *headers.Table
	Body     []byte
}

// Get performs a GET request with no body.
func (c *Client) Get(ctx context.Context, urlStr string) (*Response, error) {
	return c.Do(ctx, "GET", urlStr, nil, nil)
}

// Post performs a POST request with the given content type and body.
func (c *Client) Post(ctx context.Context, urlStr, contentType string, body io.Reader) (*Response, error) {
	hdrs := headers.New()
	hdrs.Append("Content-Type", contentType)
	return c.Do(ctx, "POST", urlStr, hdrs, body)
}

// Do performs a single request/response transaction: acquire a pooled
// connection for the target, drive a MessageLifecycle through
// send/write/finish/wait/read, then release (or discard) the connection
// per its resulting keep-alive disposition.
func (c *Client) Do(ctx context.Context, method, urlStr string, extraHeaders *headers.Table, body io.Reader) (*Response, error) {
	scheme, host, portStr, path, query, err := c.urls.ParseURL(urlStr)
	if err != nil {
		return nil, fmt.Errorf("httpcore: parsing url %q: %w", urlStr, err)
	}

	port := 80
	if scheme == "https" {
		port = 443
	}
	if n, convErr := parsePort(portStr); convErr == nil && n > 0 {
		port = n
	}

	key := pool.Key{Host: host, Port: port, TLS: scheme == "https"}
	conn, err := c.pool.Connect(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("httpcore: connecting to %s: %w", host, err)
	}

	target := path
	if query != "" {
		target += "?" + query
	}

	hdrs := headers.New()
	hostHeader := host
	if (scheme == "http" && port != 80) || (scheme == "https" && port != 443) {
		hostHeader = fmt.Sprintf("%s:%d", host, port)
	}
	hdrs.Append("Host", hostHeader)
	if extraHeaders != nil {
		extraHeaders.ForEach(func(name, value string) { hdrs.Append(name, value) })
	}

	l := message.New(conn.Transport, c.cfg.HeaderBufCap)

	framing, bodyBytes, err := resolveRequestFraming(body)
	if err != nil {
		conn.KeepAlive = false
		c.pool.Release(conn)
		return nil, err
	}

	if err := l.Send(message.SendOptions{
		Method:  strings.ToUpper(method),
		Target:  target,
		Headers: hdrs,
		Framing: framing,
		Coding:  compressadapter.Identity,
	}); err != nil {
		conn.KeepAlive = false
		c.pool.Release(conn)
		return nil, err
	}

	if len(bodyBytes) > 0 {
		if _, err := l.Write(bodyBytes); err != nil {
			conn.KeepAlive = false
			c.pool.Release(conn)
			return nil, err
		}
	}
	if err := l.Finish(); err != nil {
		conn.KeepAlive = false
		c.pool.Release(conn)
		return nil, err
	}

	if err := l.Wait(); err != nil {
		conn.KeepAlive = false
		c.pool.Release(conn)
		return nil, err
	}

	respBody, err := drainBody(l)
	if err != nil {
		conn.KeepAlive = false
		c.pool.Release(conn)
		return nil, err
	}

	conn.KeepAlive = l.KeepAlive()
	l.Close()
	c.pool.Release(conn)

	return &Response{
		Status:   l.ResponseStatus(),
		Reason:   l.ResponseReason(),
		Headers:  l.ResponseHeaders(),
		Trailers: l.TrailerHeaders(),
		Body:     respBody,
	}, nil
}

// resolveRequestFraming decides the request body's Framing. A nil body
// gets None framing. A body backed by *bytes.Buffer, *bytes.Reader, or
// *strings.Reader has a known length and is sent Fixed; anything else is
// read fully into memory and sent Chunked, as a single chunk.
func resolveRequestFraming(body io.Reader) (message.Framing, []byte, error) {
	if body == nil {
		return message.NoneFraming(), nil, nil
	}

	switch b := body.(type) {
	case *bytes.Buffer:
		data := b.Bytes()
		return message.FixedFraming(uint64(len(data))), data, nil
	case *bytes.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return message.Framing{}, nil, err
		}
		return message.FixedFraming(uint64(len(data))), data, nil
	case *strings.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return message.Framing{}, nil, err
		}
		return message.FixedFraming(uint64(len(data))), data, nil
	default:
		data, err := io.ReadAll(b)
		if err != nil {
			return message.Framing{}, nil, err
		}
		return message.ChunkedFraming(), data, nil
	}
}

// drainBody reads the response body to completion.
func drainBody(l *message.Lifecycle) ([]byte, error) {
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := l.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return out, nil
		}
	}
}

func parsePort(s string) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("httpcore: empty port")
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("httpcore: invalid port %q", s)
		}
		n = n*10 + int(c-'0')
	}
	return n, nil
}

// Close shuts the client's connection pool down, closing every pooled
// connection (spec §4.7 deinit()).
func (c *Client) Close() {
	c.pool.Deinit()
}
