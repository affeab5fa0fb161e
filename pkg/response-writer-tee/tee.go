package tee

import (
	"bytes"
	"io"
	"time"
)

// Tee is an io.Writer that relays everything to the client writer and keeps a
// copy of the bytes for the cache, up to a limit.
// Once a write would push the copy past the limit, the copy is abandoned for
// good and Overflowed reports true; relaying continues regardless.
type Tee struct {
	w          io.Writer
	b          *bytes.Buffer
	limit      int
	overflowed bool
	written    int64
	CreatedAt  time.Time
}

// Write relays p to the client first. The copy is only extended once the
// client write succeeded.
func (t *Tee) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	t.written += int64(n)
	if err != nil {
		return n, err
	}
	if !t.overflowed {
		if t.b.Len()+len(p) > t.limit {
			t.overflowed = true
			t.b = nil
		} else {
			t.b.Write(p)
		}
	}
	return n, nil
}

// Response returns the saved copy, or nil if it overflowed.
func (t *Tee) Response() []byte {
	if t.overflowed {
		return nil
	}
	return t.b.Bytes()
}

// Overflowed reports whether the relayed response outgrew the limit.
func (t *Tee) Overflowed() bool {
	return t.overflowed
}

// Written returns the number of bytes relayed to the client.
func (t *Tee) Written() int64 {
	return t.written
}

// NewTee returns a Tee relaying to w and saving at most limit bytes.
func NewTee(w io.Writer, limit int) *Tee {
	return &Tee{
		CreatedAt: time.Now(),
		w:         w,
		b:         &bytes.Buffer{},
		limit:     limit,
	}
}
