package message

import (
	"errors"
	"io"

	"github.com/yourusername/httpcore/internal/bufpool"
	"github.com/yourusername/httpcore/pkg/httpcore/chunked"
	"github.com/yourusername/httpcore/pkg/httpcore/compressadapter"
	"github.com/yourusername/httpcore/pkg/httpcore/headers"
	"github.com/yourusername/httpcore/pkg/httpcore/headerscan"
	"github.com/yourusername/httpcore/pkg/httpcore/httperr"
	"github.com/yourusername/httpcore/pkg/httpcore/transport"
)

// bodyReader is the read-side BodyCodec adapter (spec §4.6): it wraps one
// of the three framing strategies over a transport.Adapter, optionally
// routing through a compressadapter.Decoder.
type bodyReader struct {
	tr      transport.Adapter
	framing Framing

	// forcedEmpty marks a response whose body length is forced to zero
	// by the HEAD/1xx/204/304 rule (spec property 7, scenario S5): reads
	// return 0 immediately without ever touching the transport, which
	// differs from a genuine None framing (body delimited by connection
	// close, read until EOF) — both share the None Kind tag, but only
	// the un-forced case is close-delimited.
	forcedEmpty bool

	fixedRemaining uint64

	chunkParser    *chunked.Parser
	chunkRemaining uint64
	chunkDone      bool
	trailerScanner headerscan.Scanner
	trailerHeaders *headers.Table
	headerBufCap   int

	decoder compressadapter.Decoder
}

// newBodyReader constructs the read-side adapter for the given framing.
// trailerHeaders, if non-nil, receives trailer fields parsed after the
// terminal chunk (spec S3); headerBufCap bounds the trailer block the
// same way the response header buffer is bounded.
func newBodyReader(tr transport.Adapter, framing Framing, forcedEmpty bool, trailerHeaders *headers.Table, headerBufCap int) *bodyReader {
	br := &bodyReader{
		tr:             tr,
		framing:        framing,
		forcedEmpty:    forcedEmpty,
		trailerHeaders: trailerHeaders,
		headerBufCap:   headerBufCap,
	}
	if framing.Kind == Fixed {
		br.fixedRemaining = framing.N
	}
	if framing.Kind == Chunked {
		br.chunkParser = chunked.New()
	}
	return br
}

// Read implements the read side of spec §4.6: routes through the
// decompressor (if any), which reads from the framing reader.
func (b *bodyReader) Read(dest []byte) (int, error) {
	if b.decoder != nil {
		n, err := b.decoder.Read(dest)
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		return n, err
	}
	return b.readFramed(dest)
}

func (b *bodyReader) readFramed(dest []byte) (int, error) {
	if b.forcedEmpty {
		return 0, nil
	}
	switch b.framing.Kind {
	case None:
		return b.readNone(dest)
	case Fixed:
		return b.readFixed(dest)
	case Chunked:
		return b.readChunked(dest)
	default:
		return 0, httperr.ErrNotWritable
	}
}

// installDecoder wires dec as this reader's decompressor, reading from
// this same bodyReader's raw framing logic — never a second bodyReader
// instance, so chunk/fixed-length progress made while the decoder reads
// its own header (e.g. gzip's magic bytes) is never lost.
func (b *bodyReader) installDecoder(dec compressadapter.Decoder) {
	b.decoder = dec
}

// rawReader exposes this bodyReader's framing-only Read (bypassing any
// installed decoder), for handing to a compressadapter.Decoder
// constructor as its underlying reader.
func (b *bodyReader) rawReader() io.Reader {
	return rawFramedReader{b}
}

type rawFramedReader struct{ b *bodyReader }

// Read reports io.EOF once the framing reaches end of body, which is how
// an io.Reader-based decoder learns that its input is exhausted.
func (r rawFramedReader) Read(p []byte) (int, error) {
	n, err := r.b.readFramed(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, io.EOF
	}
	return n, err
}

// readNone reads directly from the transport until EOF, which is the
// legitimate end of body for connection-close-delimited responses.
func (b *bodyReader) readNone(dest []byte) (int, error) {
	n, err := b.tr.Read(dest)
	if errors.Is(err, io.EOF) {
		return n, nil
	}
	return n, err
}

func (b *bodyReader) readFixed(dest []byte) (int, error) {
	if b.fixedRemaining == 0 {
		return 0, nil
	}
	if uint64(len(dest)) > b.fixedRemaining {
		dest = dest[:b.fixedRemaining]
	}
	n, err := b.tr.Read(dest)
	b.fixedRemaining -= uint64(n)
	if errors.Is(err, io.EOF) {
		return n, httperr.ErrUnexpectedEOF
	}
	return n, err
}

func (b *bodyReader) readChunked(dest []byte) (int, error) {
	if b.chunkDone {
		return 0, nil
	}

	if b.chunkRemaining == 0 {
		if err := b.advanceChunkHeader(); err != nil {
			return 0, err
		}
		if b.chunkDone {
			return 0, nil
		}
	}

	if uint64(len(dest)) > b.chunkRemaining {
		dest = dest[:b.chunkRemaining]
	}
	n, err := b.tr.Read(dest)
	b.chunkRemaining -= uint64(n)
	if errors.Is(err, io.EOF) {
		return n, httperr.ErrUnexpectedEOF
	}
	return n, err
}

// advanceChunkHeader drives the ChunkHeaderParser (and, for the terminal
// chunk, the trailer scanner) off the transport until the next chunk's
// length is known or the body is fully consumed.
func (b *bodyReader) advanceChunkHeader() error {
	for !b.chunkParser.IsFinished() {
		if err := b.tr.Fill(); err != nil {
			if errors.Is(err, io.EOF) {
				return httperr.ErrUnexpectedEOF
			}
			return err
		}
		window := b.tr.Peek()
		consumed := b.chunkParser.Feed(window)
		b.tr.Drop(consumed)
		if b.chunkParser.IsInvalid() {
			return b.chunkParser.Err()
		}
	}

	length := b.chunkParser.TakeLength()
	if length == 0 {
		if err := b.consumeTrailers(); err != nil {
			return err
		}
		b.chunkDone = true
		return nil
	}

	b.chunkRemaining = length
	b.chunkParser.ResetForNextChunk()
	return nil
}

// consumeTrailers re-enters the header-terminator scanner after the
// zero-length chunk to ingest optional trailer headers (spec S3).
// Trailer bytes are accumulated into one buffer (a line can straddle two
// Fill/Feed calls) and parsed once the terminator is found, the same way
// readHeaderBlock treats the response header block.
func (b *bodyReader) consumeTrailers() error {
	b.trailerScanner.Reset()
	// The zero-size chunk line has just ended, so the trailer block starts
	// at the beginning of a line: an immediate CRLF terminates an empty one.
	b.trailerScanner.Feed(crlf)
	block := bufpool.Get()
	defer block.Release()

	for !b.trailerScanner.IsFinished() {
		if err := b.tr.Fill(); err != nil {
			if errors.Is(err, io.EOF) {
				return httperr.ErrUnexpectedEOF
			}
			return err
		}
		window := b.tr.Peek()
		consumed := b.trailerScanner.Feed(window)
		if block.Len()+consumed > b.headerBufCap && b.headerBufCap > 0 {
			b.tr.Drop(consumed)
			return httperr.ErrHeadersExceededLimit
		}
		block.Append(window[:consumed])
		b.tr.Drop(consumed)
	}

	if b.trailerHeaders != nil {
		parseTrailerLines(block.Bytes(), b.trailerHeaders)
	}
	return nil
}

// parseTrailerLines parses "name: value" lines (terminated by the usual
// CRLF/LF tolerance) out of a trailer block fragment, skipping the final
// blank-line terminator.
func parseTrailerLines(block []byte, into *headers.Table) {
	lines := splitLines(block)
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		name, value, ok := splitHeaderLine(line)
		if ok {
			into.AppendBytes(name, value)
		}
	}
}

// bodyWriter is the write-side BodyCodec adapter (spec §4.6).
type bodyWriter struct {
	tr      transport.Adapter
	framing Framing

	fixedRemaining uint64
	encoder        compressadapter.Encoder
}

func newBodyWriter(tr transport.Adapter, framing Framing, encoder compressadapter.Encoder) *bodyWriter {
	bw := &bodyWriter{tr: tr, framing: framing, encoder: encoder}
	if framing.Kind == Fixed {
		bw.fixedRemaining = framing.N
	}
	return bw
}

// Write implements spec §4.5's write() operation framing rules. If a
// compressor is installed, bytes route through it first; the compressor
// writes into the chunked framer.
func (w *bodyWriter) Write(p []byte) (int, error) {
	if w.framing.Kind == None {
		return 0, httperr.ErrNotWritable
	}

	if w.encoder != nil {
		n, err := w.encoder.Write(p)
		return n, err
	}
	return w.writeFramed(p)
}

func (w *bodyWriter) writeFramed(p []byte) (int, error) {
	switch w.framing.Kind {
	case Fixed:
		if uint64(len(p)) > w.fixedRemaining {
			return 0, httperr.ErrMessageTooLong
		}
		n, err := w.tr.Write(p)
		w.fixedRemaining -= uint64(n)
		return n, err
	case Chunked:
		return w.writeChunk(p)
	default:
		return 0, httperr.ErrNotWritable
	}
}

func (w *bodyWriter) writeChunk(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	header := []byte(formatHex(len(p)))
	header = append(header, '\r', '\n')
	if _, err := w.tr.Write(header); err != nil {
		return 0, err
	}
	n, err := w.tr.Write(p)
	if err != nil {
		return n, err
	}
	if _, err := w.tr.Write(crlf); err != nil {
		return n, err
	}
	return n, nil
}

// finish emits the terminal framing marker (spec §4.5 finish()): flushing
// a compressor first if one is installed.
func (w *bodyWriter) finish() error {
	if w.encoder != nil {
		if err := w.encoder.Flush(); err != nil {
			return err
		}
	}

	switch w.framing.Kind {
	case Chunked:
		_, err := w.tr.Write(finalChunk)
		return err
	case Fixed:
		if w.fixedRemaining > 0 {
			return httperr.ErrMessageNotComplete
		}
		return nil
	default:
		return nil
	}
}

var (
	crlf       = []byte{'\r', '\n'}
	finalChunk = []byte("0\r\n\r\n")
)

func formatHex(n int) string {
	if n == 0 {
		return "0"
	}
	const digits = "0123456789abcdef"
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = digits[n&0xf]
		n >>= 4
	}
	return string(buf[i:])
}
