// Package message implements MessageLifecycle, the duplex state machine
// that drives request emission and response ingestion over a
// transport.Adapter, and BodyCodec, the framing-aware read/write
// adapters it installs once the framing for a direction is known.
//
// Grounded on the teacher's client/request.go (BuildRequestLine/
// BuildHeaders buffer-building style) and client/response.go
// (ParseStatusLine/ParseHeader/processHeaders field-by-field parsing
// style), generalized from their fixed-size-inline-field design into one
// that drives headerscan.Scanner and chunked.Parser incrementally off a
// transport.Adapter instead of requiring the whole status line/header
// block to already be buffered by a bufio.Reader.
package message

// Kind tags a Framing value (spec §3).
type Kind uint8

const (
	// None: no declared length. Requests with no body and HEAD/1xx/204/304
	// responses have no body; any other response body runs until the
	// connection closes.
	None Kind = iota
	// Fixed: exactly N content-length bytes.
	Fixed
	// Chunked: transfer-encoding chunked.
	Chunked
)

// Framing is the tagged value from spec §3: one of None, Fixed(n), or
// Chunked.
type Framing struct {
	Kind Kind
	N    uint64 // valid only when Kind == Fixed
}

// NoneFraming is the None framing value.
func NoneFraming() Framing { return Framing{Kind: None} }

// FixedFraming returns a Fixed(n) framing value.
func FixedFraming(n uint64) Framing { return Framing{Kind: Fixed, N: n} }

// ChunkedFraming is the Chunked framing value.
func ChunkedFraming() Framing { return Framing{Kind: Chunked} }
