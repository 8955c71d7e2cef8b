// Package headers implements HeadersTable: a case-insensitive multimap of
// header field names to values that preserves insertion order and
// supports duplicate names.
//
// Grounded on the teacher's client/headers.go (ClientHeaders) and
// http11/header.go (Header) for the append/contains/has/set/del surface,
// generalized from their fixed-size inline-array design (which cannot
// preserve arbitrary insertion order across duplicate names without an
// O(n) scan per lookup) to an ordered-slice-plus-index design that keeps
// §3's ordering and delete-totality invariants exact, while reusing the
// teacher's case-insensitive compare and unsafe zero-copy string/byte
// conversion helpers for the borrowed-mode fast path.
package headers

import (
	"io"
	"sort"
	"unsafe"
)

// entry is one (name, value) pair in insertion order.
type entry struct {
	name  string
	value string
}

// Table is the HeadersTable described in spec §3/§4.4. Use New for an
// owned table. The zero value is usable and behaves like NewBorrowed:
// its Append calls skip copying (caller guarantees backing buffers
// outlive the table).
type Table struct {
	entries []entry
	index   map[string][]int // lowercased name -> positions in entries, in order
	owned   bool
}

// New returns an owned table: Append duplicates name and value into the
// table's own storage, so the table may outlive the caller's buffers.
func New() *Table {
	return &Table{owned: true}
}

// NewBorrowed returns a table whose Append does not copy: entries point
// into caller-owned buffers. The table must not outlive them.
func NewBorrowed() *Table {
	return &Table{owned: false}
}

func lowerASCII(s string) string {
	b := []byte(s)
	changed := false
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(b)
}

// bytesToStringUnsafe views b as a string without copying. Only safe when
// the table is borrowed and b's backing array outlives the table.
func bytesToStringUnsafe(b []byte) string {
	return *(*string)(unsafe.Pointer(&b))
}

// Append adds (name, value) to the table, preserving insertion order.
// Duplicate names are allowed; the first occurrence is promoted to a
// multi-position index slot on the second Append with the same
// lowercased name.
func (t *Table) Append(name, value string) {
	if t.owned {
		name = string([]byte(name))
		value = string([]byte(value))
	}
	t.appendEntry(name, value)
}

// AppendBytes is Append for byte-slice inputs, taking the owned/borrowed
// copy decision from the table's mode: owned tables copy into new
// strings, borrowed tables alias the given slices via an unsafe
// zero-copy conversion.
func (t *Table) AppendBytes(name, value []byte) {
	var n, v string
	if t.owned {
		n, v = string(name), string(value)
	} else {
		n, v = bytesToStringUnsafe(name), bytesToStringUnsafe(value)
	}
	t.appendEntry(n, v)
}

func (t *Table) appendEntry(name, value string) {
	if t.index == nil {
		t.index = make(map[string][]int, 8)
	}
	key := lowerASCII(name)
	pos := len(t.entries)
	t.entries = append(t.entries, entry{name: name, value: value})
	t.index[key] = append(t.index[key], pos)
}

// Contains reports whether any entry has the given name, case-insensitive.
func (t *Table) Contains(name string) bool {
	_, ok := t.index[lowerASCII(name)]
	return ok
}

// FirstValue returns the value of the earliest appended entry whose name
// matches, case-insensitive.
func (t *Table) FirstValue(name string) (string, bool) {
	positions, ok := t.index[lowerASCII(name)]
	if !ok || len(positions) == 0 {
		return "", false
	}
	return t.entries[positions[0]].value, true
}

// AllValues returns the values of every entry whose name matches,
// case-insensitive, in insertion order.
func (t *Table) AllValues(name string) ([]string, bool) {
	positions, ok := t.index[lowerASCII(name)]
	if !ok || len(positions) == 0 {
		return nil, false
	}
	values := make([]string, len(positions))
	for i, pos := range positions {
		values[i] = t.entries[pos].value
	}
	return values, true
}

// Delete removes every entry with the given name, case-insensitive,
// preserving the relative order of the remaining entries. It returns true
// if any entry was removed.
func (t *Table) Delete(name string) bool {
	key := lowerASCII(name)
	positions, ok := t.index[key]
	if !ok || len(positions) == 0 {
		return false
	}

	remove := make(map[int]struct{}, len(positions))
	for _, p := range positions {
		remove[p] = struct{}{}
	}

	kept := t.entries[:0]
	if len(t.entries) > 0 {
		kept = make([]entry, 0, len(t.entries)-len(positions))
	}
	for i, e := range t.entries {
		if _, gone := remove[i]; !gone {
			kept = append(kept, e)
		}
	}
	t.entries = kept
	delete(t.index, key)
	t.rebuildIndex()
	return true
}

// rebuildIndex recomputes the name->positions map from scratch. Called
// after any mutation that renumbers entry positions.
func (t *Table) rebuildIndex() {
	idx := make(map[string][]int, len(t.index))
	for pos, e := range t.entries {
		key := lowerASCII(e.name)
		idx[key] = append(idx[key], pos)
	}
	t.index = idx
}

// Sort reorders entries lexicographically by lowercased name (stable:
// entries with equal keys keep their relative insertion order), then
// rebuilds the index.
func (t *Table) Sort() {
	sort.SliceStable(t.entries, func(i, j int) bool {
		return lowerASCII(t.entries[i].name) < lowerASCII(t.entries[j].name)
	})
	t.rebuildIndex()
}

// Len returns the total number of entries, including duplicates.
func (t *Table) Len() int {
	return len(t.entries)
}

// Reset empties the table for reuse, keeping backing storage allocated.
func (t *Table) Reset() {
	t.entries = t.entries[:0]
	for k := range t.index {
		delete(t.index, k)
	}
}

// ForEach calls fn for every entry in insertion order. fn must not mutate
// the table.
func (t *Table) ForEach(fn func(name, value string)) {
	for _, e := range t.entries {
		fn(e.name, e.value)
	}
}

// Format writes "name: value\r\n" for each entry in insertion order,
// skipping entries whose value is empty. It does not emit a final blank-line CRLF; that separator is the caller's
// responsibility (MessageLifecycle, in this repo).
func (t *Table) Format(w io.Writer) error {
	for _, e := range t.entries {
		if e.value == "" {
			continue
		}
		if _, err := io.WriteString(w, e.name); err != nil {
			return err
		}
		if _, err := io.WriteString(w, ": "); err != nil {
			return err
		}
		if _, err := io.WriteString(w, e.value); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "\r\n"); err != nil {
			return err
		}
	}
	return nil
}

// FormatCommaSeparated writes a single "name: v1, v2, ...\r\n" line
// joining every value for name, in insertion order, for headers the RFC
// permits as comma-joined lists. It writes nothing if name has no
// entries.
func (t *Table) FormatCommaSeparated(w io.Writer, name string) error {
	values, ok := t.AllValues(name)
	if !ok {
		return nil
	}
	if _, err := io.WriteString(w, name); err != nil {
		return err
	}
	if _, err := io.WriteString(w, ": "); err != nil {
		return err
	}
	for i, v := range values {
		if i > 0 {
			if _, err := io.WriteString(w, ", "); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, v); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\r\n")
	return err
}
