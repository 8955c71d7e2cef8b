package httpcore

import (
	"context"
	"io"
	"net"
	"strings"
	"testing"
)

// startEchoServer starts a one-shot HTTP/1.1 server on localhost that
// replies with the given raw response bytes to its first request, then
// closes. It returns the listener's address.
func startEchoServer(t *testing.T, response string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write([]byte(response))
	}()

	return ln.Addr().String()
}

func TestClientGetFixedContentLength(t *testing.T) {
	addr := startEchoServer(t, "HTTP/1.1 200 OK\r\nContent-Length: 11\r\n\r\nhello world")

	c := NewClient(DefaultConfig())
	defer c.Close()

	resp, err := c.Get(context.Background(), "http://"+addr+"/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.Status != 200 {
		t.Fatalf("Status = %d, want 200", resp.Status)
	}
	if string(resp.Body) != "hello world" {
		t.Fatalf("Body = %q, want %q", resp.Body, "hello world")
	}
}

func TestClientPostChunkedBody(t *testing.T) {
	addr := startEchoServer(t, "HTTP/1.1 200 OK\r\nTransfer-Encoding: chunked\r\n\r\n2\r\nok\r\n0\r\n\r\n")

	c := NewClient(DefaultConfig())
	defer c.Close()

	resp, err := c.Post(context.Background(), "http://"+addr+"/submit", "text/plain", strings.NewReader("payload"))
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("Body = %q, want %q", resp.Body, "ok")
	}
}

func TestClientReusesPooledConnectionOnKeepAlive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer ln.Close()

	var firstAddr, secondAddr string
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn1, err := ln.Accept()
		if err != nil {
			return
		}
		firstAddr = conn1.RemoteAddr().String()
		buf := make([]byte, 4096)
		conn1.Read(buf)
		conn1.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))

		conn1.Read(buf)
		conn1.Write([]byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nok"))
		secondAddr = conn1.RemoteAddr().String()
		conn1.Close()
	}()

	c := NewClient(DefaultConfig())
	defer c.Close()

	addr := ln.Addr().String()
	if _, err := c.Get(context.Background(), "http://"+addr+"/first"); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	if _, err := c.Get(context.Background(), "http://"+addr+"/second"); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	<-done

	if firstAddr != secondAddr {
		t.Fatalf("expected the same pooled connection to serve both requests")
	}
}

func readAllBody(t *testing.T, r io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return b
}
