package sdm

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// AccessPredictor tracks recent page touches and suggests prefetch
// targets for sequential access, and remembers the page set touched
// since each named checkpoint so a later Rewind can hint which pages
// are likely to be touched again (the source's RewindEvent concept,
// simplified to a hashed-set sketch rather than a full history list).
type AccessPredictor struct {
	lastPage     int64
	haveLast     bool
	sequentialRun int

	prefetchDepth int

	// sketch approximates "has this page been accessed since
	// checkpoint c" with a murmur3-hashed bitset per checkpoint,
	// trading exactness for O(1) space per checkpoint regardless of
	// how many distinct pages were touched.
	sketch map[string]*bloomish
}

// NewAccessPredictor returns a predictor that prefetches up to depth
// pages ahead once it has detected sequential access.
func NewAccessPredictor(depth int) *AccessPredictor {
	return &AccessPredictor{prefetchDepth: depth, sketch: make(map[string]*bloomish)}
}

// RecordAccess updates sequential-run detection for a page touch.
func (a *AccessPredictor) RecordAccess(pageNum int64) {
	if a.haveLast && pageNum == a.lastPage+1 {
		a.sequentialRun++
	} else {
		a.sequentialRun = 0
	}
	a.lastPage = pageNum
	a.haveLast = true
}

// IsSequential reports whether the last few accesses formed an
// ascending run of at least 4 pages (three consecutive +1 steps).
func (a *AccessPredictor) IsSequential() bool {
	return a.sequentialRun >= 3
}

// SuggestPrefetch returns the pages to prefetch given the current
// page, or nil if access does not look sequential.
func (a *AccessPredictor) SuggestPrefetch(currentPage int64) []int64 {
	if !a.IsSequential() {
		return nil
	}
	out := make([]int64, 0, a.prefetchDepth)
	for i := 1; i <= a.prefetchDepth; i++ {
		out = append(out, currentPage+int64(i))
	}
	return out
}

// RecordCheckpoint starts a fresh access sketch for name.
func (a *AccessPredictor) RecordCheckpoint(name string) {
	a.sketch[name] = newBloomish(2048)
}

// RecordTouch marks pageNum as touched since every currently open
// checkpoint sketch.
func (a *AccessPredictor) RecordTouch(pageNum int64) {
	for _, b := range a.sketch {
		b.add(pageNum)
	}
}

// PredictRewindTargets returns the pages the sketch believes were
// touched since checkpoint name — a prefetch hint for a Rewind to that
// checkpoint, not a guarantee (false positives are possible by
// construction of the sketch).
func (a *AccessPredictor) PredictRewindTargets(name string, candidates []int64) []int64 {
	b, ok := a.sketch[name]
	if !ok {
		return nil
	}
	var out []int64
	for _, c := range candidates {
		if b.mightContain(c) {
			out = append(out, c)
		}
	}
	return out
}

// bloomish is a minimal two-hash Bloom filter over a fixed bit array,
// sized for the predictor's "did we touch this page" sketch. Two
// independent buckets come from two murmur3 calls over the same bytes
// with different seeds.
type bloomish struct {
	bits []uint64
}

func newBloomish(bits int) *bloomish {
	words := (bits + 63) / 64
	if words == 0 {
		words = 1
	}
	return &bloomish{bits: make([]uint64, words)}
}

func (b *bloomish) hashes(pageNum int64) (uint32, uint32) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(pageNum))
	return murmur3.Sum32WithSeed(buf[:], 0), murmur3.Sum32WithSeed(buf[:], 1)
}

func (b *bloomish) add(pageNum int64) {
	h1, h2 := b.hashes(pageNum)
	b.set(h1)
	b.set(h2)
}

func (b *bloomish) mightContain(pageNum int64) bool {
	h1, h2 := b.hashes(pageNum)
	return b.get(h1) && b.get(h2)
}

func (b *bloomish) set(h uint32) {
	n := uint64(len(b.bits)) * 64
	idx := uint64(h) % n
	b.bits[idx/64] |= 1 << (idx % 64)
}

func (b *bloomish) get(h uint32) bool {
	n := uint64(len(b.bits)) * 64
	idx := uint64(h) % n
	return b.bits[idx/64]&(1<<(idx%64)) != 0
}
