package chunked

import "testing"

func TestParserSimpleSize(t *testing.T) {
	p := New()
	n := p.Feed([]byte("1a\r\ndata"))
	if !p.IsFinished() {
		t.Fatalf("expected finished")
	}
	if want := len("1a\r\n"); n != want {
		t.Fatalf("consumed = %d, want %d", n, want)
	}
	if p.TakeLength() != 0x1a {
		t.Fatalf("length = %#x, want 0x1a", p.TakeLength())
	}
}

func TestParserBareLF(t *testing.T) {
	p := New()
	n := p.Feed([]byte("ff\ndata"))
	if !p.IsFinished() {
		t.Fatalf("expected finished")
	}
	if want := len("ff\n"); n != want {
		t.Fatalf("consumed = %d, want %d", n, want)
	}
	if p.TakeLength() != 0xff {
		t.Fatalf("length = %#x, want 0xff", p.TakeLength())
	}
}

func TestParserChunkExtension(t *testing.T) {
	p := New()
	n := p.Feed([]byte("4;foo=bar;baz\r\ndata"))
	if !p.IsFinished() {
		t.Fatalf("expected finished")
	}
	if want := len("4;foo=bar;baz\r\n"); n != want {
		t.Fatalf("consumed = %d, want %d", n, want)
	}
	if p.TakeLength() != 4 {
		t.Fatalf("length = %d, want 4", p.TakeLength())
	}
}

func TestParserZeroSizeTerminal(t *testing.T) {
	p := New()
	p.Feed([]byte("0\r\n"))
	if !p.IsFinished() || p.TakeLength() != 0 {
		t.Fatalf("expected finished with length 0")
	}
}

func TestParserInterChunkSuffix(t *testing.T) {
	p := New()
	p.Feed([]byte("3\r\n"))
	if !p.IsFinished() {
		t.Fatalf("expected finished on first chunk")
	}
	p.ResetForNextChunk()
	n := p.Feed([]byte("\r\n5\r\nmore"))
	if !p.IsFinished() {
		t.Fatalf("expected finished on second chunk header")
	}
	if want := len("\r\n5\r\n"); n != want {
		t.Fatalf("consumed = %d, want %d", n, want)
	}
	if p.TakeLength() != 5 {
		t.Fatalf("length = %d, want 5", p.TakeLength())
	}
}

func TestParserInterChunkSuffixBareLF(t *testing.T) {
	p := New()
	p.Feed([]byte("3\r\n"))
	p.ResetForNextChunk()
	n := p.Feed([]byte("\n5\r\n"))
	if !p.IsFinished() {
		t.Fatalf("expected finished")
	}
	if want := len("\n5\r\n"); n != want {
		t.Fatalf("consumed = %d, want %d", n, want)
	}
}

func TestParserInvalidLeadingSemicolon(t *testing.T) {
	p := New()
	p.Feed([]byte(";ext\r\n"))
	if !p.IsInvalid() {
		t.Fatalf("expected invalid: no digit before extension")
	}
	if p.Err() == nil {
		t.Fatalf("expected non-nil Err for invalid parser")
	}
}

func TestParserInvalidBadCharacter(t *testing.T) {
	p := New()
	p.Feed([]byte("12g\r\n"))
	if !p.IsInvalid() {
		t.Fatalf("expected invalid: 'g' is not hex and not a delimiter")
	}
}

func TestParserInvalidBareCR(t *testing.T) {
	p := New()
	p.Feed([]byte("5\rx"))
	if !p.IsInvalid() {
		t.Fatalf("expected invalid: CR must be followed by LF")
	}
}

func TestParserOverflowDetected(t *testing.T) {
	p := New()
	// 17 hex 'f' digits overflow uint64 (max is 16 hex digits of f).
	n := p.Feed([]byte("fffffffffffffffff\r\n"))
	if !p.IsInvalid() {
		t.Fatalf("expected invalid due to uint64 overflow, consumed=%d", n)
	}
}

func TestParserFeedAcrossChunkBoundaries(t *testing.T) {
	full := "1a4;ext=1\r\n"
	wholeLen := len(full)

	for splitEvery := 1; splitEvery <= 5; splitEvery++ {
		p := New()
		total := 0
		for i := 0; i < len(full); i += splitEvery {
			end := i + splitEvery
			if end > len(full) {
				end = len(full)
			}
			total += p.Feed([]byte(full[i:end]))
			if p.IsFinished() || p.IsInvalid() {
				break
			}
		}
		if !p.IsFinished() {
			t.Fatalf("splitEvery=%d: expected finished", splitEvery)
		}
		if total != wholeLen {
			t.Fatalf("splitEvery=%d: consumed=%d, want %d", splitEvery, total, wholeLen)
		}
		if p.TakeLength() != 0x1a4 {
			t.Fatalf("splitEvery=%d: length = %#x, want 0x1a4", splitEvery, p.TakeLength())
		}
	}
}

func TestParserFeedPanicsAfterFinished(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	p := New()
	p.Feed([]byte("1\r\n"))
	p.Feed([]byte("x"))
}
