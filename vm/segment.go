package vm

import "sort"

// SegmentKind tags the purpose of a named tape region. Table/Index
// carry auxiliary schema/index metadata that the interpreter never
// exercises in this build (reserved, per spec.md §3).
type SegmentKind int

const (
	SegmentCode SegmentKind = iota
	SegmentData
	SegmentStack
	SegmentHeap
	SegmentTable
	SegmentIndex
	SegmentLog
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentCode:
		return "code"
	case SegmentData:
		return "data"
	case SegmentStack:
		return "stack"
	case SegmentHeap:
		return "heap"
	case SegmentTable:
		return "table"
	case SegmentIndex:
		return "index"
	case SegmentLog:
		return "log"
	default:
		return "unknown"
	}
}

// IndexType names the auxiliary lookup structure an Index describes.
// Reserved: the interpreter never builds or consults one.
type IndexType int

const (
	IndexBTree IndexType = iota
	IndexHash
	IndexBitmap
	IndexFullText
)

// Index describes an auxiliary lookup structure rooted at a tape
// position. Reserved: nothing in this module builds or reads one.
type Index struct {
	Name         string
	Type         IndexType
	Fields       []string
	RootPosition int64
}

// Field and Schema describe a Table segment's row layout. Reserved.
type Field struct {
	Name     string
	DataType string
	Nullable bool
}

type Schema struct {
	Fields     []Field
	PrimaryKey []string
}

// Segment is a named, bounds-checked sub-range of the Tape.
type Segment struct {
	Name    string
	Start   int64
	Size    int
	Kind    SegmentKind
	Schema  *Schema
	Indices []Index
}

// SegmentedTape overlays named, bounds-checked regions onto a Tape.
// It owns the segment map; the Tape owns pages/marks/trail and
// delegates inversion of segment-scoped trail entries back here.
type SegmentedTape struct {
	Tape     *Tape
	segments map[string]*Segment
}

// NewSegmentedTape constructs an empty overlay over a fresh Tape.
func NewSegmentedTape() *SegmentedTape {
	st := &SegmentedTape{
		Tape:     NewTape(),
		segments: make(map[string]*Segment),
	}
	st.Tape.setSegmentUndoer(st)
	return st
}

// CreateSegment allocates size bytes for a new named segment using a
// first-fit scan over existing segments sorted by start address, and
// journals a SegmentCreate trail entry. Returns ErrDuplicateSegment if
// name already exists.
func (st *SegmentedTape) CreateSegment(name string, size int, kind SegmentKind) (int64, error) {
	if _, exists := st.segments[name]; exists {
		return 0, ErrDuplicateSegment
	}

	start := st.findFreeSpace(size)

	st.segments[name] = &Segment{Name: name, Start: start, Size: size, Kind: kind}
	st.Tape.addTrailOp(trailOp{
		kind:     trailSegmentCreate,
		segName:  name,
		segStart: start,
		segSize:  size,
	})
	return start, nil
}

// findFreeSpace scans segments left to right for the first gap of at
// least size bytes, falling back to appending after the
// highest-addressed segment.
func (st *SegmentedTape) findFreeSpace(size int) int64 {
	type span struct{ start, end int64 }
	spans := make([]span, 0, len(st.segments))
	for _, s := range st.segments {
		spans = append(spans, span{s.Start, s.Start + int64(s.Size)})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var cursor int64
	for _, sp := range spans {
		if sp.start-cursor >= int64(size) {
			return cursor
		}
		cursor = sp.end
	}
	return cursor
}

// GetSegment returns the named segment, or nil if unknown.
func (st *SegmentedTape) GetSegment(name string) *Segment {
	return st.segments[name]
}

// ListSegments returns all segments in no particular order.
func (st *SegmentedTape) ListSegments() []*Segment {
	out := make([]*Segment, 0, len(st.segments))
	for _, s := range st.segments {
		out = append(out, s)
	}
	return out
}

// ReadSegment reads len bytes at offset within the named segment,
// without disturbing the tape's head position.
func (st *SegmentedTape) ReadSegment(name string, offset int64, length int) ([]byte, error) {
	seg, ok := st.segments[name]
	if !ok {
		return nil, ErrUnknownSegment
	}
	if offset < 0 || offset+int64(length) > int64(seg.Size) {
		return nil, ErrSegmentBounds
	}
	return st.Tape.readAt(seg.Start+offset, length), nil
}

// WriteSegment writes data at offset within the named segment, without
// disturbing the tape's head position. Per spec.md §4.2/§9, this
// journals exactly two trail entries: a SegmentModify entry (so
// segment-create/remove bookkeeping stays correct) and the underlying
// raw Write entry — deliberate double journaling so a caller rewinding
// the raw trail via RewindN still inverts bytes correctly without
// being segment-aware. It writes through Tape.WriteAt rather than
// Seek-Write-Seek so no extra Seek entries land on the trail.
func (st *SegmentedTape) WriteSegment(name string, offset int64, data []byte) error {
	seg, ok := st.segments[name]
	if !ok {
		return ErrUnknownSegment
	}
	if offset < 0 || offset+int64(len(data)) > int64(seg.Size) {
		return ErrSegmentBounds
	}

	old := st.Tape.readAt(seg.Start+offset, len(data))

	st.Tape.addTrailOp(trailOp{
		kind:      trailSegmentModify,
		segName:   name,
		segOffset: offset,
		oldData:   old,
		newData:   append([]byte(nil), data...),
	})

	st.Tape.WriteAt(seg.Start+offset, data)
	return nil
}

// undoSegmentCreate implements segmentUndoer: removes the segment the
// creation trail entry introduced.
func (st *SegmentedTape) undoSegmentCreate(name string) {
	delete(st.segments, name)
}

// undoSegmentModify implements segmentUndoer: rewrites old bytes at
// the segment offset without producing new trail entries.
func (st *SegmentedTape) undoSegmentModify(name string, offset int64, old []byte) {
	seg, ok := st.segments[name]
	if !ok {
		return
	}
	st.Tape.writeRaw(seg.Start+offset, old)
}
