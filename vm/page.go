package vm

// pageSize is the size in bytes of a single tape page. Fixed at 4096
// per the tape's addressing model; a read of an absent page yields
// pageSize zero bytes.
const pageSize = 4096

// page is a fixed-size backing buffer for a contiguous slice of tape
// addresses. cowRefs supports copy-on-write: a writer must clone the
// page (and reset cowRefs to zero on the clone) before mutating a page
// whose cowRefs is non-zero. No implementation in this package bumps
// cowRefs above zero yet (that's reserved for Timeline/Fork support,
// see vm.go), but the write path always checks it so a future Fork
// only needs to set the counter.
type page struct {
	data    [pageSize]byte
	cowRefs int
}

func newPage() *page {
	return &page{}
}

// clone returns a fresh, independently-owned copy of the page with a
// zeroed reference count.
func (p *page) clone() *page {
	np := &page{data: p.data}
	return np
}

// pageStore is the sparse mapping from page index to *page backing a
// Tape. Absent entries read as all-zero pages; they're never created
// by reads, only by writes.
type pageStore struct {
	pages map[int64]*page
}

func newPageStore() *pageStore {
	return &pageStore{pages: make(map[int64]*page)}
}

// get returns the page at idx, or nil if absent. It never creates an
// entry — callers that intend to write must use getOrCreate.
func (s *pageStore) get(idx int64) *page {
	return s.pages[idx]
}

// getOrCreate returns the page at idx, creating a fresh zeroed page if
// absent.
func (s *pageStore) getOrCreate(idx int64) *page {
	p, ok := s.pages[idx]
	if !ok {
		p = newPage()
		s.pages[idx] = p
	}
	return p
}

// pageIndexAndOffset splits a tape position into its page index and
// the byte offset within that page. Go's integer division truncates
// toward zero, which differs from the floor division page addressing
// needs for negative positions, so this handles the two-sided tape
// (negative positions) explicitly.
func pageIndexAndOffset(pos int64) (idx int64, offset int) {
	idx = pos / pageSize
	offset = int(pos % pageSize)
	if offset < 0 {
		offset += pageSize
		idx--
	}
	return idx, offset
}
