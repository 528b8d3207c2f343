package vm

// segmentUndoer lets a Tape delegate inversion of segment-scoped trail
// entries to whoever owns the segment map (the SegmentedTape). The
// Tape itself has no notion of segments (§3: "the Tape exclusively
// owns Pages, Marks, and Trail"); SegmentedTape registers itself here
// so raw rewind_n still threads segment creation/undo correctly.
type segmentUndoer interface {
	undoSegmentCreate(name string)
	undoSegmentModify(name string, offset int64, old []byte)
}

// Tape is the unified, two-sided, page-backed byte address space. All
// state-mutating operations are journaled on its trail so execution
// can be undone one operation, or one checkpoint, at a time.
type Tape struct {
	pages  *pageStore
	head   int64
	marks  map[string]int64
	trail  *trail
	segDel segmentUndoer
}

// NewTape constructs an empty tape: head at zero, no marks, no trail
// entries.
func NewTape() *Tape {
	return &Tape{
		pages: newPageStore(),
		marks: make(map[string]int64),
		trail: newTrail(),
	}
}

// setSegmentUndoer installs the delegate used to invert segment-scoped
// trail entries. Called once by NewSegmentedTape.
func (t *Tape) setSegmentUndoer(u segmentUndoer) {
	t.segDel = u
}

// Position returns the current head position.
func (t *Tape) Position() int64 {
	return t.head
}

// TrailLen returns the number of entries currently on the trail.
func (t *Tape) TrailLen() int {
	return t.trail.len()
}

// GetMark returns the position a label was marked at, if any.
func (t *Tape) GetMark(label string) (int64, bool) {
	pos, ok := t.marks[label]
	return pos, ok
}

// Read returns len bytes starting at the head without moving it or
// journaling anything. Positions never written read as zero.
func (t *Tape) Read(length int) []byte {
	return t.readAt(t.head, length)
}

func (t *Tape) readAt(pos int64, length int) []byte {
	out := make([]byte, length)
	filled := 0
	for filled < length {
		idx, offset := pageIndexAndOffset(pos)
		avail := pageSize - offset
		if avail > length-filled {
			avail = length - filled
		}
		if p := t.pages.get(idx); p != nil {
			copy(out[filled:filled+avail], p.data[offset:offset+avail])
		}
		// absent page: out is already zeroed by make()
		filled += avail
		pos += int64(avail)
	}
	return out
}

// Write journals the old bytes at the current range, then streams
// data into the touched pages, cloning any copy-on-write-shared page
// before mutating it.
func (t *Tape) Write(data []byte) {
	old := t.readAt(t.head, len(data))
	t.trail.push(trailOp{
		kind:    trailWrite,
		pos:     t.head,
		oldData: old,
		newData: append([]byte(nil), data...),
	})
	t.writeRaw(t.head, data)
}

// WriteAt journals and writes data at pos without moving or journaling
// the head, unlike Write (which always targets the head and journals
// head motion separately via Seek). Used by SegmentedTape.WriteSegment
// so a segment write produces exactly the two trail entries spec.md
// §4.2/§9 describes (SegmentModify + the raw Write) instead of that
// plus a pair of Seek entries to hop the head there and back.
func (t *Tape) WriteAt(pos int64, data []byte) {
	old := t.readAt(pos, len(data))
	t.trail.push(trailOp{
		kind:    trailWrite,
		pos:     pos,
		oldData: old,
		newData: append([]byte(nil), data...),
	})
	t.writeRaw(pos, data)
}

// writeRaw writes data at pos without touching the trail. Used both
// by Write (after journaling) and by undo (restoring prior bytes).
func (t *Tape) writeRaw(pos int64, data []byte) {
	written := 0
	for written < len(data) {
		idx, offset := pageIndexAndOffset(pos)
		n := pageSize - offset
		if n > len(data)-written {
			n = len(data) - written
		}
		p := t.pages.getOrCreate(idx)
		if p.cowRefs > 0 {
			p = p.clone()
			t.pages.pages[idx] = p
		}
		copy(p.data[offset:offset+n], data[written:written+n])
		written += n
		pos += int64(n)
	}
}

// Seek moves the head to pos, journaling the motion.
func (t *Tape) Seek(pos int64) {
	t.trail.push(trailOp{kind: trailSeek, oldPos: t.head, newPos: pos})
	t.head = pos
}

// Advance moves the head by delta; it is defined as Seek(head+delta).
func (t *Tape) Advance(delta int64) {
	t.Seek(t.head + delta)
}

// Mark records the current head position under label and journals the
// assignment.
func (t *Tape) Mark(label string) {
	t.trail.push(trailOp{kind: trailMark, label: label, pos: t.head})
	t.marks[label] = t.head
}

// SeekMark seeks to a previously-marked position, or returns
// ErrUnknownMark.
func (t *Tape) SeekMark(label string) error {
	pos, ok := t.marks[label]
	if !ok {
		return ErrUnknownMark
	}
	t.Seek(pos)
	return nil
}

// Checkpoint stores the current trail length under name. Overwriting
// an existing name is permitted.
func (t *Tape) Checkpoint(name string) {
	t.trail.checkpoint(name)
}

// Rewind truncates the trail back to the length recorded under name,
// undoing each popped entry in LIFO order. Returns ErrUnknownCheckpoint
// if name was never checkpointed.
func (t *Tape) Rewind(name string) error {
	target, ok := t.trail.checkpoints[name]
	if !ok {
		return ErrUnknownCheckpoint
	}
	for t.trail.len() > target {
		op, _ := t.trail.pop()
		t.undo(op)
	}
	return nil
}

// RewindN pops and inverts exactly n trail entries, stopping early if
// the trail empties first. Negative n is clamped to zero.
func (t *Tape) RewindN(n int) {
	if n < 0 {
		n = 0
	}
	for i := 0; i < n; i++ {
		op, ok := t.trail.pop()
		if !ok {
			return
		}
		t.undo(op)
	}
}

// undo inverts a single trail entry without producing new trail
// entries of its own.
func (t *Tape) undo(op trailOp) {
	switch op.kind {
	case trailWrite:
		t.writeRaw(op.pos, op.oldData)
	case trailSeek:
		t.head = op.oldPos
	case trailMark:
		delete(t.marks, op.label)
	case trailSegmentCreate:
		if t.segDel != nil {
			t.segDel.undoSegmentCreate(op.segName)
		}
	case trailSegmentModify:
		if t.segDel != nil {
			t.segDel.undoSegmentModify(op.segName, op.segOffset, op.oldData)
		}
	}
}

// addTrailOp appends a pre-built entry to the trail. Used by
// SegmentedTape to record SegmentCreate/SegmentModify entries that
// live on the same raw trail as Write/Seek/Mark so that rewind_n over
// the unified trail still inverts everything correctly.
func (t *Tape) addTrailOp(op trailOp) {
	t.trail.push(op)
}
