// Package scan implements the two byte-scan primitives that back the
// header-terminator search: finding the next CR or LF in a span, and
// finding a zero byte within a machine word. Both are pure functions with
// no state, written so the common case (a long run of non-CR/LF header
// value bytes) costs a handful of word compares instead of one branch per
// byte.
//
// Grounded on the word-at-a-time "haszero" trick used throughout the
// teacher's http11/client packages for header scanning, generalized from
// their single-byte IndexByte calls into an explicit two-byte (CR-or-LF)
// scan with a SWAR fast path and a scalar tail.
package scan

import (
	"math/bits"

	"golang.org/x/sys/cpu"
)

const wordSize = bits.UintSize / 8

// wordScanEnabled gates the SWAR word-at-a-time fast path. It is computed
// once from runtime CPU feature flags: on architectures/cores that support
// fast unaligned word loads the word scan wins outright; where that isn't
// known to hold, FirstCROrLF falls back to the scalar loop unconditionally.
// This mirrors the teacher's habit (shockwave buffer pool) of branching
// once at package init rather than per call.
var wordScanEnabled = detectWordScanSupport()

func detectWordScanSupport() bool {
	// amd64 and arm64 both guarantee fast unaligned word access; x/sys/cpu
	// gives us a cheap, already-initialized feature snapshot instead of
	// hand-rolling per-GOARCH build tags.
	return cpu.X86.HasSSE2 || cpu.ARM64.HasASIMD
}

// broadcast repeats c across every byte of a machine word.
func broadcast(c byte) uint {
	return uint(0x0101010101010101 & ((1 << (8 * wordSize)) - 1) * uint64(c))
}

const (
	loBits = uint(0x0101010101010101)
	hiBits = uint(0x8080808080808080)
)

// hasZeroByte reports, via a non-zero result, that word XORed with a
// broadcast pattern contains a zero byte — i.e. a byte in word equal to
// the broadcast value. This is the classic SWAR "haszero" trick: the
// lowest set 0x80 bit marks the first zero byte exactly; bytes above it
// may also be flagged because of the borrow, so callers take the lowest
// set bit.
func hasZeroByte(word uint) uint {
	return (word - loBits) & ^word & hiBits
}

// IndexOfByteInWord returns the offset (0-based, little-endian byte order)
// of the first byte in word equal to c, or -1 if none match. word is
// treated as wordSize (4 or 8) packed bytes.
func IndexOfByteInWord(word uint, c byte) int {
	x := word ^ broadcast(c)
	found := hasZeroByte(x)
	if found == 0 {
		return -1
	}
	// bits.TrailingZeros finds the lowest set bit; dividing by 8 gives the
	// byte index for a little-endian machine word.
	return bits.TrailingZeros(found) / 8
}

// FirstCROrLF returns the offset of the first '\r' or '\n' in b, or -1 if
// neither appears. It scans whole machine words at a time via the SWAR
// zero-byte trick and falls back to a scalar loop for the remainder (or on
// architectures where unaligned word reads would be unsafe, which is none
// that Go targets, but the fallback keeps the function correct regardless
// of input length).
func FirstCROrLF(b []byte) int {
	n := len(b)
	i := 0

	if !wordScanEnabled {
		return firstCROrLFScalar(b, 0)
	}

	for ; i+wordSize <= n; i += wordSize {
		word := loadWord(b[i : i+wordSize])
		// A byte is CR or LF iff (word ^ broadcast('\r')) or
		// (word ^ broadcast('\n')) has a zero byte in that position.
		crHit := hasZeroByte(word ^ broadcast('\r'))
		lfHit := hasZeroByte(word ^ broadcast('\n'))
		hit := crHit | lfHit
		if hit != 0 {
			return i + bits.TrailingZeros(hit)/8
		}
	}

	return firstCROrLFScalar(b[i:n], i)
}

// firstCROrLFScalar is the branch-per-byte fallback, used either for the
// tail of a word-scanned span or for the whole span when wordScanEnabled
// is false. base is added to the returned index so callers can pass a
// sub-slice and still get an index relative to the original span.
func firstCROrLFScalar(b []byte, base int) int {
	for i, c := range b {
		if c == '\r' || c == '\n' {
			return base + i
		}
	}
	return -1
}

// loadWord reads wordSize bytes from b in little-endian order into a
// native uint. b must have length >= wordSize.
func loadWord(b []byte) uint {
	var w uint
	for i := 0; i < wordSize; i++ {
		w |= uint(b[i]) << (8 * uint(i))
	}
	return w
}
