package vm

import "testing"

func TestSegmentNonOverlap(t *testing.T) {
	st := NewSegmentedTape()
	_, err := st.CreateSegment("a", 100, SegmentData)
	assert(t, err == nil, "create a failed: %v", err)
	_, err = st.CreateSegment("b", 200, SegmentData)
	assert(t, err == nil, "create b failed: %v", err)

	a := st.GetSegment("a")
	b := st.GetSegment("b")
	nonOverlap := a.Start+int64(a.Size) <= b.Start || b.Start+int64(b.Size) <= a.Start
	assert(t, nonOverlap, "segments a=%+v b=%+v overlap", a, b)
}

func TestSegmentDuplicateName(t *testing.T) {
	st := NewSegmentedTape()
	_, err := st.CreateSegment("x", 10, SegmentData)
	assert(t, err == nil, "first create failed: %v", err)
	_, err = st.CreateSegment("x", 10, SegmentData)
	assert(t, err == ErrDuplicateSegment, "expected ErrDuplicateSegment, got %v", err)
}

func TestSegmentReadWriteRoundTrip(t *testing.T) {
	st := NewSegmentedTape()
	_, err := st.CreateSegment("buf", 64, SegmentData)
	assert(t, err == nil, "create failed: %v", err)

	err = st.WriteSegment("buf", 10, []byte{1, 2, 3, 4})
	assert(t, err == nil, "write failed: %v", err)

	data, err := st.ReadSegment("buf", 10, 4)
	assert(t, err == nil, "read failed: %v", err)
	assert(t, data[0] == 1 && data[3] == 4, "unexpected round-tripped bytes: %v", data)
}

func TestSegmentBoundsViolation(t *testing.T) {
	st := NewSegmentedTape()
	_, err := st.CreateSegment("small", 8, SegmentData)
	assert(t, err == nil, "create failed: %v", err)

	_, err = st.ReadSegment("small", 4, 8)
	assert(t, err == ErrSegmentBounds, "expected ErrSegmentBounds, got %v", err)
}

func TestSegmentUnknownName(t *testing.T) {
	st := NewSegmentedTape()
	_, err := st.ReadSegment("missing", 0, 1)
	assert(t, err == ErrUnknownSegment, "expected ErrUnknownSegment, got %v", err)
}

// TestWriteSegmentRewindInverts exercises the deliberate double
// journaling from spec.md §9: rewinding the raw trail after a
// WriteSegment call must restore the prior bytes without any
// segment-aware logic in RewindN itself.
func TestWriteSegmentRewindInverts(t *testing.T) {
	st := NewSegmentedTape()
	_, err := st.CreateSegment("buf", 64, SegmentData)
	assert(t, err == nil, "create failed: %v", err)

	before := st.Tape.TrailLen()
	err = st.WriteSegment("buf", 0, []byte{9, 9, 9})
	assert(t, err == nil, "write failed: %v", err)
	delta := st.Tape.TrailLen() - before
	assert(t, delta == 2, "expected exactly 2 trail entries (SegmentModify + Write), got %d", delta)

	st.Tape.RewindN(delta)
	data, err := st.ReadSegment("buf", 0, 3)
	assert(t, err == nil, "read failed: %v", err)
	assert(t, data[0] == 0 && data[1] == 0 && data[2] == 0, "expected zeroed bytes after rewind, got %v", data)
}

func TestSegmentCreateUndo(t *testing.T) {
	st := NewSegmentedTape()
	before := st.Tape.TrailLen()
	_, err := st.CreateSegment("temp", 16, SegmentData)
	assert(t, err == nil, "create failed: %v", err)
	delta := st.Tape.TrailLen() - before

	st.Tape.RewindN(delta)
	assert(t, st.GetSegment("temp") == nil, "segment should be gone after rewind")
}
