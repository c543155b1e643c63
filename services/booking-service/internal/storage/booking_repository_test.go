package storage

import (
	"errors"
	"testing"
)

// fakeRows iterates a fixed number of rows and can fail after the last one,
// the way a broken connection surfaces through rows.Err().
type fakeRows struct {
	remaining int
	err       error
	closed    bool
}

func (f *fakeRows) Next() bool {
	if f.remaining == 0 {
		return false
	}
	f.remaining--
	return true
}

func (f *fakeRows) Err() error { return f.err }
func (f *fakeRows) Close()     { f.closed = true }

func TestCountRows(t *testing.T) {
	rows := &fakeRows{remaining: 3}
	n, err := countRows(rows)
	if err != nil {
		t.Fatalf("countRows: %v", err)
	}
	if n != 3 {
		t.Fatalf("counted %d rows, want 3", n)
	}
	if !rows.closed {
		t.Fatal("rows not closed")
	}
}

func TestCountRows_SurfacesIterationError(t *testing.T) {
	broken := errors.New("connection reset")
	rows := &fakeRows{remaining: 1, err: broken}
	if _, err := countRows(rows); !errors.Is(err, broken) {
		t.Fatalf("got %v, want iteration error", err)
	}
}

func TestNullIfEmpty(t *testing.T) {
	if v := nullIfEmpty(""); v != nil {
		t.Fatalf("empty string bound as %v, want NULL", v)
	}
	if v := nullIfEmpty("b7a0"); v != "b7a0" {
		t.Fatalf("got %v, want the original value", v)
	}
}
