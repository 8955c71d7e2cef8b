package headerscan

import "testing"

func feedAll(t *testing.T, s *Scanner, chunks ...string) int {
	t.Helper()
	total := 0
	for _, c := range chunks {
		n := s.Feed([]byte(c))
		total += n
		if s.IsFinished() {
			break
		}
	}
	return total
}

func TestScannerCRLFTerminator(t *testing.T) {
	var s Scanner
	msg := "Host: example.com\r\nAccept: */*\r\n\r\nbody-starts-here"
	n := feedAll(t, &s, msg)
	if !s.IsFinished() {
		t.Fatalf("expected scanner to finish")
	}
	want := len("Host: example.com\r\nAccept: */*\r\n\r\n")
	if n != want {
		t.Fatalf("consumed = %d, want %d", n, want)
	}
}

func TestScannerBareLFTerminator(t *testing.T) {
	var s Scanner
	msg := "Host: example.com\nAccept: */*\n\nbody"
	n := feedAll(t, &s, msg)
	if !s.IsFinished() {
		t.Fatalf("expected scanner to finish")
	}
	want := len("Host: example.com\nAccept: */*\n\n")
	if n != want {
		t.Fatalf("consumed = %d, want %d", n, want)
	}
}

func TestScannerMixedLineEndings(t *testing.T) {
	cases := []struct {
		name string
		msg  string
		want string
	}{
		{
			"crlf-line-then-bare-lf-blank",
			"A: 1\r\nB: 2\r\n\nrest",
			"A: 1\r\nB: 2\r\n\n",
		},
		{
			"bare-lf-line-then-crlf-blank",
			"A: 1\nB: 2\n\r\nrest",
			"A: 1\nB: 2\n\r\n",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var s Scanner
			n := feedAll(t, &s, c.msg)
			if !s.IsFinished() {
				t.Fatalf("expected scanner to finish for %q", c.msg)
			}
			if n != len(c.want) {
				t.Fatalf("consumed = %d, want %d", n, len(c.want))
			}
		})
	}
}

func TestScannerStrayCRDoesNotTerminate(t *testing.T) {
	var s Scanner
	// A lone CR not followed by LF must not be mistaken for a terminator;
	// only CRLFCRLF / LFLF (or the mixed variants) end the header block.
	msg := "A: 1\r\r\r\nB: 2\r\n\r\ndone"
	n := feedAll(t, &s, msg)
	if !s.IsFinished() {
		t.Fatalf("expected scanner to eventually finish")
	}
	want := len("A: 1\r\r\r\nB: 2\r\n\r\n")
	if n != want {
		t.Fatalf("consumed = %d, want %d", n, want)
	}
}

func TestScannerChunkInvariance(t *testing.T) {
	msg := "Host: example.com\r\nAccept: */*\r\nX-Long: " +
		"0123456789012345678901234567890123456789\r\n\r\nbody"
	wantConsumed := len(msg) - len("body")

	whole := func() int {
		var s Scanner
		return feedAll(t, &s, msg)
	}()

	for splitEvery := 1; splitEvery <= 7; splitEvery++ {
		var s Scanner
		total := 0
		for i := 0; i < len(msg); i += splitEvery {
			end := i + splitEvery
			if end > len(msg) {
				end = len(msg)
			}
			n := s.Feed([]byte(msg[i:end]))
			total += n
			if s.IsFinished() {
				break
			}
		}
		if total != whole {
			t.Fatalf("splitEvery=%d: consumed=%d, want %d (whole-buffer result)", splitEvery, total, whole)
		}
		if total != wantConsumed {
			t.Fatalf("splitEvery=%d: consumed=%d, want %d", splitEvery, total, wantConsumed)
		}
	}
}

func TestScannerPanicsAfterFinished(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic from feeding a finished scanner")
		}
	}()
	var s Scanner
	feedAll(t, &s, "\r\n\r\n")
	s.Feed([]byte("more"))
}
