package message

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yourusername/httpcore/internal/bufpool"
	"github.com/yourusername/httpcore/pkg/httpcore/compressadapter"
	"github.com/yourusername/httpcore/pkg/httpcore/headers"
	"github.com/yourusername/httpcore/pkg/httpcore/headerscan"
	"github.com/yourusername/httpcore/pkg/httpcore/httperr"
	"github.com/yourusername/httpcore/pkg/httpcore/transport"
)

// State is the lifecycle's MessageState (spec §3).
type State uint8

const (
	Idle State = iota
	RequestHead
	RequestBody
	RequestDone
	ResponseHead
	ResponseBody
	Closed
)

const implementationIdentifier = "httpcore/1.0"

// SendOptions describes the request a caller wants emitted (spec §4.5
// send()).
type SendOptions struct {
	Method  string
	Target  string // request-target, already formed per method/proxy rules
	Headers *headers.Table
	Framing Framing // the body framing the caller has chosen for the request
	Coding  compressadapter.Coding
}

// Lifecycle is the duplex MessageLifecycle state machine of spec §4.5.
// One instance serves exactly one request/response transaction; it is
// not safe for concurrent use (spec §5).
type Lifecycle struct {
	tr    transport.Adapter
	state State

	headerBufCap int // bound on the response header block, spec default 8 KiB

	reqMethod string
	reqFraming Framing

	respStatus  int
	respReason  string
	respHeaders *headers.Table
	respFraming Framing

	trailers *headers.Table

	keepAlive bool
	tunnel    bool

	bw *bodyWriter
	br *bodyReader
}

// DefaultHeaderBufCap is the spec's default bound on the response header
// block (spec §4.5 wait(): "bounded ... default 8 KiB").
const DefaultHeaderBufCap = 8 * 1024

// New constructs a Lifecycle bound to tr, starting in Idle, with
// keep-alive true until some signal revokes it.
func New(tr transport.Adapter, headerBufCap int) *Lifecycle {
	if headerBufCap <= 0 {
		headerBufCap = DefaultHeaderBufCap
	}
	return &Lifecycle{
		tr:           tr,
		state:        Idle,
		headerBufCap: headerBufCap,
		keepAlive:    true,
	}
}

// State returns the current MessageState.
func (l *Lifecycle) State() State { return l.state }

// KeepAlive reports whether the connection should be returned to the
// pool rather than closed once this transaction ends.
func (l *Lifecycle) KeepAlive() bool { return l.keepAlive }

// Tunnel reports whether a CONNECT request was answered with a 2xx
// status, putting the connection in tunnel mode (spec §4.5 wait()).
func (l *Lifecycle) Tunnel() bool { return l.tunnel }

// ResponseStatus returns the parsed status code; valid once wait has
// returned successfully.
func (l *Lifecycle) ResponseStatus() int { return l.respStatus }

// ResponseReason returns the parsed reason phrase.
func (l *Lifecycle) ResponseReason() string { return l.respReason }

// ResponseHeaders returns the parsed response header table.
func (l *Lifecycle) ResponseHeaders() *headers.Table { return l.respHeaders }

// ResponseFraming returns the framing decided for the response body.
func (l *Lifecycle) ResponseFraming() Framing { return l.respFraming }

// TrailerHeaders returns trailer fields observed after a chunked body's
// terminal chunk (spec S3); empty until read() reaches end of body.
func (l *Lifecycle) TrailerHeaders() *headers.Table { return l.trailers }

var bodyAllowedMethods = map[string]bool{
	"POST": true, "PUT": true, "PATCH": true, "DELETE": true, "OPTIONS": true,
}

// Send emits the request line, standard headers, and framing header, per
// spec §4.5 send(). Precondition: state is Idle.
func (l *Lifecycle) Send(opts SendOptions) error {
	if l.state != Idle {
		return fmt.Errorf("httpcore: Send called in state %v, want Idle", l.state)
	}

	if opts.Headers != nil {
		if opts.Headers.Contains("Transfer-Encoding") || opts.Headers.Contains("Content-Length") {
			return httperr.ErrUnsupportedTE
		}
	}
	if opts.Framing.Kind != None && !bodyAllowedMethods[strings.ToUpper(opts.Method)] && opts.Method != "" {
		// HEAD/GET/TRACE/CONNECT carrying a declared body is not a
		// protocol violation per RFC, but this core's contract is that
		// framing is derived from what the caller intends to write, and
		// a body-less method requesting Fixed/Chunked framing signals a
		// caller bug rather than a deliberate body-bearing GET.
		if opts.Method == "HEAD" || opts.Method == "TRACE" || opts.Method == "CONNECT" {
			return httperr.ErrUnsupportedTE
		}
	}

	var buf bytes.Buffer
	buf.WriteString(opts.Method)
	buf.WriteByte(' ')
	buf.WriteString(opts.Target)
	buf.WriteString(" HTTP/1.1\r\n")

	hasHeader := func(name string) bool {
		return opts.Headers != nil && opts.Headers.Contains(name)
	}
	if hasHeader("Host") {
		// Host is the second line, immediately after the request line and
		// ahead of User-Agent/Connection/Accept/the framing header — not
		// wherever it lands among the caller's other headers.
		host, _ := opts.Headers.FirstValue("Host")
		buf.WriteString("Host: " + host + "\r\n")
		opts.Headers.Delete("Host")
	}
	if !hasHeader("User-Agent") {
		buf.WriteString("User-Agent: " + implementationIdentifier + "\r\n")
	}
	if !hasHeader("Connection") {
		buf.WriteString("Connection: keep-alive\r\n")
	}
	if !hasHeader("Accept") {
		buf.WriteString("Accept: */*\r\n")
	}
	if !hasHeader("Accept-Encoding") {
		buf.WriteString("Accept-Encoding: gzip, deflate, zstd\r\n")
	}
	if !hasHeader("TE") {
		buf.WriteString("TE: gzip, deflate\r\n")
	}

	switch opts.Framing.Kind {
	case Chunked:
		if opts.Coding != compressadapter.Identity {
			buf.WriteString("Transfer-Encoding: " + opts.Coding.String() + ", chunked\r\n")
		} else {
			buf.WriteString("Transfer-Encoding: chunked\r\n")
		}
	case Fixed:
		buf.WriteString("Content-Length: " + strconv.FormatUint(opts.Framing.N, 10) + "\r\n")
	}

	if opts.Headers != nil {
		if err := opts.Headers.Format(&buf); err != nil {
			return err
		}
	}
	buf.WriteString("\r\n")

	if _, err := l.tr.Write(buf.Bytes()); err != nil {
		return err
	}
	if err := l.tr.Flush(); err != nil {
		return err
	}

	l.reqMethod = strings.ToUpper(opts.Method)
	l.reqFraming = opts.Framing
	l.bw = newBodyWriter(l.tr, opts.Framing, nil)

	if opts.Framing.Kind == Chunked && opts.Coding != compressadapter.Identity {
		enc, err := compressadapter.NewEncoder(opts.Coding, chunkWriter{l.bw})
		if err != nil {
			return err
		}
		l.bw.encoder = enc
	}

	l.state = RequestBody
	return nil
}

// chunkWriter adapts a bodyWriter's chunked-framing write to a plain
// io.Writer so a compressadapter.Encoder can write its compressed output
// straight into the chunked framer, per spec §4.5 write()'s "the
// compressor writes into the chunked framer" rule.
type chunkWriter struct{ bw *bodyWriter }

func (c chunkWriter) Write(p []byte) (int, error) { return c.bw.writeFramed(p) }

// Write implements spec §4.5 write(). Precondition: RequestBody.
func (l *Lifecycle) Write(p []byte) (int, error) {
	if l.state != RequestBody {
		return 0, fmt.Errorf("httpcore: Write called in state %v, want RequestBody", l.state)
	}
	return l.bw.Write(p)
}

// Finish implements spec §4.5 finish(). Transitions to RequestDone.
func (l *Lifecycle) Finish() error {
	if l.state != RequestBody {
		return fmt.Errorf("httpcore: Finish called in state %v, want RequestBody", l.state)
	}
	if err := l.bw.finish(); err != nil {
		return err
	}
	if err := l.tr.Flush(); err != nil {
		return err
	}
	l.state = RequestDone
	return nil
}

// Wait implements spec §4.5 wait(): ingests the response status line and
// headers, decides response framing, and transitions to ResponseBody.
func (l *Lifecycle) Wait() error {
	if l.state != RequestDone {
		return fmt.Errorf("httpcore: Wait called in state %v, want RequestDone", l.state)
	}

	block, err := l.readHeaderBlock()
	if err != nil {
		l.keepAlive = false
		return err
	}

	lines := splitLines(block)
	if len(lines) == 0 {
		l.keepAlive = false
		return httperr.ErrHeadersInvalid
	}

	if err := l.parseStatusLine(lines[0]); err != nil {
		l.keepAlive = false
		return err
	}

	respHeaders := headers.New()
	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		name, value, ok := splitHeaderLine(line)
		if !ok {
			l.keepAlive = false
			return httperr.ErrHeadersInvalid
		}
		respHeaders.AppendBytes(name, value)
	}
	l.respHeaders = respHeaders

	if err := l.decideFraming(); err != nil {
		l.keepAlive = false
		return err
	}

	if v, ok := respHeaders.FirstValue("Connection"); ok && strings.EqualFold(strings.TrimSpace(v), "close") {
		l.keepAlive = false
	}

	if l.reqMethod == "CONNECT" && l.respStatus/100 == 2 {
		l.tunnel = true
		l.state = ResponseBody
		return nil
	}

	l.state = ResponseBody
	return nil
}

// readHeaderBlock drives headerscan.Scanner over the transport into a
// bounded buffer, returning the header block including the terminator.
func (l *Lifecycle) readHeaderBlock() ([]byte, error) {
	var scanner headerscan.Scanner
	block := bufpool.Get()
	defer block.Release()

	for !scanner.IsFinished() {
		if err := l.tr.Fill(); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, httperr.ErrUnexpectedEOF
			}
			return nil, err
		}
		window := l.tr.Peek()
		consumed := scanner.Feed(window)
		if block.Len()+consumed > l.headerBufCap {
			l.tr.Drop(consumed)
			return nil, httperr.ErrHeadersExceededLimit
		}
		block.Append(window[:consumed])
		l.tr.Drop(consumed)
	}

	out := make([]byte, block.Len())
	copy(out, block.Bytes())
	return out, nil
}

func (l *Lifecycle) parseStatusLine(line []byte) error {
	line = trimCRLF(line)
	parts := bytes.SplitN(line, []byte(" "), 3)
	if len(parts) < 2 {
		return httperr.ErrHeadersInvalid
	}
	if string(parts[0]) != "HTTP/1.1" {
		return httperr.ErrHeadersInvalid
	}
	code, err := strconv.Atoi(string(parts[1]))
	if err != nil || code < 100 || code > 999 {
		return httperr.ErrHeadersInvalid
	}
	l.respStatus = code
	if len(parts) == 3 {
		l.respReason = string(parts[2])
	} else {
		l.respReason = ""
	}
	return nil
}

// decideFraming implements spec §4.5 wait()'s framing-decision rules,
// including the HEAD/1xx/204/304 empty-body override (spec property 7)
// and the Transfer-Encoding/Content-Length priority rule (property 6). It
// constructs l.br exactly once: the forced-empty override flips a flag on
// the already-built reader rather than discarding and rebuilding it, so a
// decoder that reads its own header eagerly (gzip's magic bytes, for
// instance) never loses the raw reader's framing progress.
func (l *Lifecycle) decideFraming() error {
	te, hasTE := l.respHeaders.FirstValue("Transfer-Encoding")
	cl, hasCL := l.respHeaders.FirstValue("Content-Length")

	var teCoding compressadapter.Coding
	hasTECoding := false

	switch {
	case hasTE:
		codings := strings.Split(te, ",")
		for i, c := range codings {
			codings[i] = strings.ToLower(strings.TrimSpace(c))
		}
		if len(codings) == 0 || codings[len(codings)-1] != "chunked" {
			return httperr.ErrUnsupportedTE
		}
		for _, c := range codings[:len(codings)-1] {
			coding, ok := compressadapter.ParseCoding(c)
			if !ok {
				return httperr.ErrUnsupportedTE
			}
			if coding != compressadapter.Identity {
				if hasTECoding {
					// at most one content coding may precede chunked; a
					// second one has no decompressor slot to install into.
					return httperr.ErrUnsupportedTE
				}
				teCoding = coding
				hasTECoding = true
			}
		}
		l.respFraming = ChunkedFraming()
	case hasCL:
		n, err := strconv.ParseUint(strings.TrimSpace(cl), 10, 64)
		if err != nil {
			return httperr.ErrHeadersInvalid
		}
		l.respFraming = FixedFraming(n)
	default:
		l.respFraming = NoneFraming()
	}

	forcedEmpty := l.reqMethod == "HEAD" || l.respStatus/100 == 1 || l.respStatus == 204 || l.respStatus == 304
	if forcedEmpty {
		l.respFraming = NoneFraming()
	}

	l.br = newBodyReader(l.tr, l.respFraming, forcedEmpty, l.trailersTable(), l.headerBufCap)

	if forcedEmpty {
		return nil
	}

	_, hasCE := l.respHeaders.FirstValue("Content-Encoding")
	if hasTECoding && hasCE {
		// spec: at most one of Content-Encoding or a non-chunked
		// Transfer-Encoding coding may be active at once.
		return httperr.ErrUnsupportedTE
	}

	if hasTECoding {
		dec, err := compressadapter.NewDecoder(teCoding, l.br.rawReader())
		if err != nil {
			return err
		}
		l.br.installDecoder(dec)
		return nil
	}

	if ce, ok := l.respHeaders.FirstValue("Content-Encoding"); ok {
		coding, ok := compressadapter.ParseCoding(strings.ToLower(strings.TrimSpace(ce)))
		if !ok {
			return httperr.ErrUnsupportedTE
		}
		if coding != compressadapter.Identity {
			dec, err := compressadapter.NewDecoder(coding, l.br.rawReader())
			if err != nil {
				return err
			}
			l.br.installDecoder(dec)
		}
	}

	return nil
}

func (l *Lifecycle) trailersTable() *headers.Table {
	if l.trailers == nil {
		l.trailers = headers.New()
	}
	return l.trailers
}

// Read implements spec §4.5 read(). Precondition: ResponseBody.
func (l *Lifecycle) Read(dest []byte) (int, error) {
	if l.state != ResponseBody {
		return 0, fmt.Errorf("httpcore: Read called in state %v, want ResponseBody", l.state)
	}
	return l.br.Read(dest)
}

// Close implements spec §4.5 close(): transitions to Closed and releases
// the borrowed transport without closing it — the pool decides.
func (l *Lifecycle) Close() {
	l.state = Closed
}

func trimCRLF(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// splitLines splits a header block (terminator included) into its
// individual field lines, tolerating both CRLF and bare LF line endings
// per spec §4.5's CRLF-tolerance rule. The final blank-line terminator
// yields a trailing empty element, which callers skip.
func splitLines(block []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i := 0; i < len(block); i++ {
		if block[i] == '\n' {
			lines = append(lines, trimCRLF(block[start:i+1]))
			start = i + 1
		}
	}
	if start < len(block) {
		lines = append(lines, trimCRLF(block[start:]))
	}
	return lines
}

// splitHeaderLine parses one "name: value" field line, trimming
// surrounding whitespace from the value per spec §4.5's edge-case
// policy.
func splitHeaderLine(line []byte) (name, value []byte, ok bool) {
	idx := bytes.IndexByte(line, ':')
	if idx < 0 {
		return nil, nil, false
	}
	name = line[:idx]
	value = bytes.TrimSpace(line[idx+1:])
	return name, value, true
}
