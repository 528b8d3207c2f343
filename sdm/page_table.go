package sdm

// PageEntry is the page table's metadata record for one virtual page:
// its current storage location, access counters, and a history of
// prior versions for time-indexed reads.
type PageEntry struct {
	Location    StorageLocation
	AccessCount int64
	Dirty       bool
	version     uint64
	history     []HistoricalPage
}

// HistoricalPage is one retained prior version of a page's bytes,
// stamped with the page's own version counter at the moment it was
// superseded (1 for the first overwrite, 2 for the next, and so on),
// standing in for the source's wall-clock timestamp.
type HistoricalPage struct {
	Version uint64
	Data    []byte
}

// PageTable tracks every page the SDM layer has ever placed, plus
// named checkpoints recording which pages were dirtied since each one
// was taken.
type PageTable struct {
	pages       map[int64]*PageEntry
	checkpoints map[string]map[int64]struct{}
	historyCap  int
}

// NewPageTable returns an empty page table retaining up to
// historyCap prior versions per page (0 = unbounded).
func NewPageTable(historyCap int) *PageTable {
	return &PageTable{
		pages:       make(map[int64]*PageEntry),
		checkpoints: make(map[string]map[int64]struct{}),
		historyCap:  historyCap,
	}
}

// GetOrCreate returns the entry for pageNum, creating a zero-value one
// at TierMemory if absent.
func (pt *PageTable) GetOrCreate(pageNum int64) *PageEntry {
	e, ok := pt.pages[pageNum]
	if !ok {
		e = &PageEntry{Location: StorageLocation{Tier: TierMemory, MemoryID: pageNum}}
		pt.pages[pageNum] = e
	}
	return e
}

// RecordAccess increments the access counter for pageNum, creating the
// entry if needed.
func (pt *PageTable) RecordAccess(pageNum int64, write bool) {
	e := pt.GetOrCreate(pageNum)
	e.AccessCount++
	if write {
		e.Dirty = true
	}
}

// UpdateLocation moves pageNum's entry to a new location, e.g. after a
// policy-driven migration between tiers.
func (pt *PageTable) UpdateLocation(pageNum int64, loc StorageLocation) {
	pt.GetOrCreate(pageNum).Location = loc
}

// RecordVersion snapshots oldData as a new HistoricalPage for pageNum
// before it is overwritten, advancing its version counter. Versions
// beyond historyCap are dropped oldest-first.
func (pt *PageTable) RecordVersion(pageNum int64, oldData []byte) {
	e := pt.GetOrCreate(pageNum)
	e.version++
	e.history = append(e.history, HistoricalPage{Version: e.version, Data: append([]byte(nil), oldData...)})
	if pt.historyCap > 0 && len(e.history) > pt.historyCap {
		e.history = e.history[len(e.history)-pt.historyCap:]
	}
}

// ReadAtVersion returns the bytes pageNum held at the given version,
// or (nil, false) if that version was never recorded or has aged out
// of the retained history.
func (pt *PageTable) ReadAtVersion(pageNum int64, version uint64) ([]byte, bool) {
	e, ok := pt.pages[pageNum]
	if !ok {
		return nil, false
	}
	for _, h := range e.history {
		if h.Version == version {
			return h.Data, true
		}
	}
	return nil, false
}

// CreateCheckpoint starts tracking dirtied pages under name.
func (pt *PageTable) CreateCheckpoint(name string) {
	pt.checkpoints[name] = make(map[int64]struct{})
}

// MarkDirtySinceCheckpoints records pageNum against every open
// checkpoint so GetModifiedSince can later report it.
func (pt *PageTable) MarkDirtySinceCheckpoints(pageNum int64) {
	for _, set := range pt.checkpoints {
		set[pageNum] = struct{}{}
	}
}

// GetModifiedSince returns the pages dirtied since name was
// checkpointed, or (nil, false) if name is unknown.
func (pt *PageTable) GetModifiedSince(name string) ([]int64, bool) {
	set, ok := pt.checkpoints[name]
	if !ok {
		return nil, false
	}
	out := make([]int64, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out, true
}
