package sdm

// Config mirrors the source's SdmConfig: page size, retained history
// depth, and prefetch depth. Compression is declared in the source but
// dropped here — nothing in this build ever inspects a page's size to
// decide whether to compress it, so carrying the flag through would be
// dead configuration.
type Config struct {
	PageSize      int64
	PrefetchDepth int
	HistoryCap    int
	FileDir       string
}

// DefaultConfig matches the source's Default impl, aside from
// compression (see Config's doc comment) and a 100MB DRAM budget that
// has no enforcement point in this build (the MemoryBackend never
// evicts) and so is left unrepresented.
func DefaultConfig() Config {
	return Config{PageSize: 4096, PrefetchDepth: 5, HistoryCap: 16}
}

// Tape is the SDM overlay: a virtual address space, a placement
// policy, physical backends, a page table, and an access predictor,
// composed the way SdmTape composes them in the source. Nothing in
// the vm package references this type; it exists as the superset
// data-plane contract spec.md §9 describes, exercised only by this
// package's own tests.
type Tape struct {
	Addresses *VirtualAddressSpace
	Policy    *MemoryPolicy
	Backends  *StorageBackends
	Pages     *PageTable
	Predictor *AccessPredictor

	head int64
}

// New constructs an SDM tape from cfg.
func New(cfg Config) *Tape {
	return &Tape{
		Addresses: NewVirtualAddressSpace(cfg.PageSize),
		Policy:    DefaultPolicy(),
		Backends:  NewStorageBackends(cfg.FileDir),
		Pages:     NewPageTable(cfg.HistoryCap),
		Predictor: NewAccessPredictor(cfg.PrefetchDepth),
	}
}

func (t *Tape) pageSize() int64 { return t.Addresses.PageSize }

func (t *Tape) pageNum(pos int64) int64 {
	return t.Addresses.PageAlign(pos) / t.pageSize()
}

// Seek moves the head, the same semantic as vm.Tape.Seek but without
// journaling — the SDM layer is not wired to an Execution History.
func (t *Tape) Seek(pos int64) { t.head = pos }

// Position returns the current head.
func (t *Tape) Position() int64 { return t.head }

// Read reads length bytes from the head, routing each touched page
// through the policy-assigned backend and recording the access for
// prediction and tiering purposes.
func (t *Tape) Read(length int) ([]byte, error) {
	out := make([]byte, 0, length)
	pos := t.head
	remaining := length
	for remaining > 0 {
		pageNum := t.pageNum(pos)
		pageStart := pageNum * t.pageSize()
		offset := int(pos - pageStart)
		n := int(t.pageSize()) - offset
		if n > remaining {
			n = remaining
		}

		entry := t.Pages.GetOrCreate(pageNum)
		t.Pages.RecordAccess(pageNum, false)
		t.Predictor.RecordAccess(pageNum)

		data, err := t.Backends.Read(entry.Location, int(t.pageSize()))
		if err != nil {
			return nil, err
		}
		out = append(out, data[offset:offset+n]...)

		remaining -= n
		pos += int64(n)
	}
	t.head += int64(length)
	return out, nil
}

// Write writes data at the head, recording a version snapshot of each
// touched page before overwriting it so ReadAtVersion can recover the
// prior bytes, and re-running the placement policy in case the page's
// access count now crosses a tiering threshold.
func (t *Tape) Write(data []byte) error {
	pos := t.head
	remaining := len(data)
	written := 0
	for remaining > 0 {
		pageNum := t.pageNum(pos)
		pageStart := pageNum * t.pageSize()
		offset := int(pos - pageStart)
		n := int(t.pageSize()) - offset
		if n > remaining {
			n = remaining
		}

		entry := t.Pages.GetOrCreate(pageNum)
		old, err := t.Backends.Read(entry.Location, int(t.pageSize()))
		if err != nil {
			return err
		}
		t.Pages.RecordVersion(pageNum, old)
		t.Pages.RecordAccess(pageNum, true)
		t.Predictor.RecordAccess(pageNum)
		t.Predictor.RecordTouch(pageNum)
		t.Pages.MarkDirtySinceCheckpoints(pageNum)

		merged := append([]byte(nil), old...)
		copy(merged[offset:offset+n], data[written:written+n])

		newLoc := t.Policy.DetermineLocation(pageNum, entry.AccessCount)
		if newLoc.Tier == TierFile && t.Backends.file == nil {
			// No file tier configured: the page stays memory-resident.
			newLoc = StorageLocation{Tier: TierMemory, MemoryID: pageNum}
		}
		if err := t.Backends.Write(newLoc, merged); err != nil {
			return err
		}
		t.Pages.UpdateLocation(pageNum, newLoc)

		remaining -= n
		written += n
		pos += int64(n)
	}
	t.head += int64(len(data))
	return nil
}

// Checkpoint starts tracking modified pages under name, in both the
// page table and the predictor's rewind sketch.
func (t *Tape) Checkpoint(name string) {
	t.Pages.CreateCheckpoint(name)
	t.Predictor.RecordCheckpoint(name)
}

// ModifiedSince returns the pages dirtied since name was checkpointed.
func (t *Tape) ModifiedSince(name string) ([]int64, bool) {
	return t.Pages.GetModifiedSince(name)
}

// Close releases any backend resources (mapped files).
func (t *Tape) Close() error {
	return t.Backends.Close()
}
