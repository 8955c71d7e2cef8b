// Package headerscan implements the header-terminator scanner: an
// incremental state machine that finds the CRLFCRLF (or tolerated LFLF)
// boundary marking the end of an HTTP header block, across any number of
// caller-supplied chunks.
//
// Grounded on the teacher's OptimizedReader.ReadLine (client/bufio.go),
// generalized from "find next \n" into "find the blank line that ends a
// header block", and on http11/parser.go's header-loop structure for the
// chunk-at-a-time driving convention.
package headerscan

import "github.com/yourusername/httpcore/pkg/httpcore/scan"

// State is the scanner's cursor. The five live states plus the FINISHED
// sink form a 6-state deterministic automaton (spec §3 ParseCursor,
// scanner namespace).
type State uint8

const (
	Ground State = iota
	SeenR        // just saw a lone CR, awaiting LF
	SeenRN       // completed one CRLF line ending; at the start of a new line
	SeenRNR      // saw CR at the start of a new line (tentative second CRLF)
	SeenN        // completed one bare-LF line ending; at the start of a new line
	Finished
)

// Scanner is the incremental header-terminator automaton. Zero value is
// ready to use. Not safe for concurrent use; owned for the lifetime of one
// transaction's header ingestion.
type Scanner struct {
	state State
}

// Reset returns the scanner to its initial state, for reuse across
// transactions on the same pooled object.
func (s *Scanner) Reset() {
	s.state = Ground
}

// State returns the current cursor, mainly for tests and diagnostics.
func (s *Scanner) State() State {
	return s.state
}

// IsFinished reports whether the terminator has been found.
func (s *Scanner) IsFinished() bool {
	return s.state == Finished
}

// Feed drives the automaton with the next chunk of input. It returns the
// number of leading bytes of chunk that belong to the header block,
// inclusive of the terminator sentinel if the terminator completes within
// this call. If the terminator was already found before this call, Feed
// panics — per spec, feeding a finished scanner is a caller bug, not a
// recoverable error.
//
// Feed never allocates and never backtracks: in the common case (long runs
// of ordinary header bytes) it advances via the word-scan primitive rather
// than a branch per byte; the transitional states around a line ending
// examine one byte at a time, which is cheap since those states are rare
// relative to header content.
func (s *Scanner) Feed(chunk []byte) (consumed int) {
	if s.state == Finished {
		panic("headerscan: Feed called after scanner finished")
	}

	pos := 0
	n := len(chunk)

	for pos < n {
		switch s.state {
		case Ground:
			hit := scan.FirstCROrLF(chunk[pos:])
			if hit == -1 {
				return n
			}
			pos += hit
			b := chunk[pos]
			pos++
			if b == '\r' {
				s.state = SeenR
			} else {
				s.state = SeenN
			}

		case SeenR:
			b := chunk[pos]
			pos++
			switch b {
			case '\n':
				s.state = SeenRN
			case '\r':
				s.state = SeenR
			default:
				s.state = Ground
			}

		case SeenN:
			b := chunk[pos]
			pos++
			switch b {
			case '\n':
				s.state = Finished
				return pos
			case '\r':
				s.state = SeenRNR
			default:
				s.state = Ground
			}

		case SeenRN:
			b := chunk[pos]
			pos++
			switch b {
			case '\r':
				s.state = SeenRNR
			case '\n':
				s.state = Finished
				return pos
			default:
				s.state = Ground
			}

		case SeenRNR:
			b := chunk[pos]
			pos++
			switch b {
			case '\n':
				s.state = Finished
				return pos
			case '\r':
				s.state = SeenRNR
			default:
				s.state = Ground
			}
		}
	}

	return pos
}
