package vm

import (
	"bytes"
	"fmt"
	"testing"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestTapeZeroExtension(t *testing.T) {
	tp := NewTape()
	data := tp.Read(16)
	assert(t, bytes.Equal(data, make([]byte, 16)), "unwritten tape should read zero")
}

func TestTapeSequentialWriteAcrossPages(t *testing.T) {
	tp := NewTape()
	pattern := make([]byte, 8192)
	for i := range pattern {
		pattern[i] = byte(i % 256)
	}
	tp.Seek(0)
	tp.Write(pattern)
	tp.Seek(0)
	got := tp.Read(8192)
	assert(t, bytes.Equal(got, pattern), "round-tripped bytes across a page boundary should match")
}

func TestTapeWriteThenRewindRestoresZero(t *testing.T) {
	tp := NewTape()
	tp.Checkpoint("start")
	tp.Write([]byte{0x41})
	tp.Advance(3)
	tp.Write([]byte{0x42})

	err := tp.Rewind("start")
	assert(t, err == nil, "rewind to existing checkpoint should not error")
	assert(t, tp.Position() == 0, "head should return to 0, got %d", tp.Position())
	assert(t, bytes.Equal(tp.Read(6), make([]byte, 6)), "rewound tape should read back to zero")
}

func TestTapeUnknownCheckpoint(t *testing.T) {
	tp := NewTape()
	err := tp.Rewind("nope")
	assert(t, err == ErrUnknownCheckpoint, "expected ErrUnknownCheckpoint, got %v", err)
}

func TestTapeMarkAndSeekMark(t *testing.T) {
	tp := NewTape()
	tp.Seek(42)
	tp.Mark("here")
	tp.Seek(0)
	err := tp.SeekMark("here")
	assert(t, err == nil, "seek mark failed: %v", err)
	assert(t, tp.Position() == 42, "expected head 42, got %d", tp.Position())

	err = tp.SeekMark("missing")
	assert(t, err == ErrUnknownMark, "expected ErrUnknownMark, got %v", err)
}

func TestTapeRewindNClampsNegative(t *testing.T) {
	tp := NewTape()
	tp.Write([]byte{1, 2, 3})
	before := tp.TrailLen()
	tp.RewindN(-5)
	assert(t, tp.TrailLen() == before, "negative RewindN should be a no-op, trail len changed from %d to %d", before, tp.TrailLen())
}

func TestPageCOWIsolation(t *testing.T) {
	ps := newPageStore()
	p1 := ps.getOrCreate(0)
	p1.data[0] = 0xAA
	p1.cowRefs = 1
	p2 := p1.clone()
	p2.data[0] = 0xBB

	assert(t, p1.data[0] == 0xAA, "writing through clone must not mutate original")
	assert(t, p2.data[0] == 0xBB, "clone should hold its own write")
}
