// Package compressadapter supplies the default CompressionAdapter
// implementations for every ContentCoding tag in spec §3: identity,
// deflate, gzip, zstd on the read side (plus an additional brotli
// read-side tag), and identity/deflate on the write side.
//
// The teacher's client package never installs a compressor of its own
// (HTTP handling there is framing-only); http11/errors.go's "dropped
// dependency" trail shows the monorepo already carries
// github.com/klauspost/compress and github.com/andybalholm/brotli as
// sibling-project requires, so those are what back the concrete codecs
// here rather than compress/gzip and compress/flate's slower stdlib
// implementations.
package compressadapter

import (
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/yourusername/httpcore/pkg/httpcore/httperr"
)

// Coding tags a ContentCoding per spec §3, extended with the added
// brotli read-side-only option.
type Coding uint8

const (
	Identity Coding = iota
	Deflate
	Gzip
	Zstd
	Brotli // (added) read-side only; never selected for requests
)

func (c Coding) String() string {
	switch c {
	case Deflate:
		return "deflate"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case Brotli:
		return "br"
	default:
		return "identity"
	}
}

// Encoder is the write-side CompressionAdapter contract of spec §6: it
// writes compressed bytes to an underlying writer that is the BodyCodec
// chunked framer.
type Encoder interface {
	Write(p []byte) (int, error)
	Flush() error
}

// Decoder is the read-side CompressionAdapter contract of spec §6: it
// reads decompressed bytes from an underlying reader that is the
// BodyCodec framing reader.
type Decoder interface {
	Read(dest []byte) (int, error)
}

// NewEncoder returns the write-side adapter for coding writing into w, or
// nil (meaning "no compression installed") for Identity. Only Identity
// and Deflate are valid on the write side, matching spec §3's
// write-side ContentCoding set.
func NewEncoder(coding Coding, w io.Writer) (Encoder, error) {
	switch coding {
	case Identity:
		return nil, nil
	case Deflate:
		fw, err := flate.NewWriter(w, flate.DefaultCompression)
		if err != nil {
			return nil, httperr.ErrDecompressionInit
		}
		return &flateEncoder{fw: fw}, nil
	default:
		return nil, httperr.ErrDecompressionInit
	}
}

// NewDecoder returns the read-side adapter for coding reading from r, or
// nil (meaning "no decompression installed") for Identity.
func NewDecoder(coding Coding, r io.Reader) (Decoder, error) {
	switch coding {
	case Identity:
		return nil, nil
	case Deflate:
		return &flateDecoder{fr: flate.NewReader(r)}, nil
	case Gzip:
		gr, err := gzip.NewReader(r)
		if err != nil {
			return nil, httperr.ErrDecompressionInit
		}
		return &gzipDecoder{gr: gr}, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, httperr.ErrDecompressionInit
		}
		return &zstdDecoder{zr: zr}, nil
	case Brotli:
		return &brotliDecoder{br: brotli.NewReader(r)}, nil
	default:
		return nil, httperr.ErrDecompressionInit
	}
}

type flateEncoder struct{ fw *flate.Writer }

func (e *flateEncoder) Write(p []byte) (int, error) { return e.fw.Write(p) }

// Flush ends the deflate stream by writing its final block; the encoder
// accepts no further writes afterward.
func (e *flateEncoder) Flush() error { return e.fw.Close() }

type flateDecoder struct{ fr io.ReadCloser }

func (d *flateDecoder) Read(dest []byte) (int, error) { return d.fr.Read(dest) }

type gzipDecoder struct{ gr *gzip.Reader }

func (d *gzipDecoder) Read(dest []byte) (int, error) { return d.gr.Read(dest) }

type zstdDecoder struct{ zr *zstd.Decoder }

func (d *zstdDecoder) Read(dest []byte) (int, error) { return d.zr.Read(dest) }

type brotliDecoder struct{ br *brotli.Reader }

func (d *brotliDecoder) Read(dest []byte) (int, error) { return d.br.Read(dest) }

// ParseCoding maps an Accept-Encoding/Content-Encoding/Transfer-Encoding
// token (already lowercased and trimmed) to its Coding, or reports ok=false
// for an unrecognized token — the caller turns that into
// UnsupportedTransferEncoding per spec §7.
func ParseCoding(token string) (Coding, bool) {
	switch token {
	case "identity":
		return Identity, true
	case "deflate":
		return Deflate, true
	case "gzip":
		return Gzip, true
	case "zstd":
		return Zstd, true
	case "br":
		return Brotli, true
	default:
		return 0, false
	}
}
