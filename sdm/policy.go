package sdm

import (
	"encoding/binary"

	"github.com/spaolacci/murmur3"
)

// StorageTierPreference is the tier a PlacementRule resolves to.
type StorageTierPreference int

const (
	PreferMemory StorageTierPreference = iota
	PreferFile
)

// PlacementRule maps a minimum access count to a tier preference; the
// highest-threshold rule whose MinAccesses is met wins. This mirrors
// the source's Condition/PlacementAction pairing without carrying over
// the network/S3/compression branches this build never exercises.
type PlacementRule struct {
	MinAccesses int64
	Prefer      StorageTierPreference
}

// MemoryPolicy decides where a page belongs given its access history,
// and shards pages across a fixed number of file buckets using a
// murmur3 hash so the same page number always lands in the same file
// regardless of process restarts (no page table persistence needed to
// reproduce the placement).
type MemoryPolicy struct {
	Rules       []PlacementRule
	FileBuckets int
}

// DefaultPolicy matches the source's "balanced" profile: pages touched
// fewer than 4 times are file-tier (cold), 4 or more keeps them
// memory-resident (hot).
func DefaultPolicy() *MemoryPolicy {
	return &MemoryPolicy{
		Rules: []PlacementRule{
			{MinAccesses: 4, Prefer: PreferMemory},
			{MinAccesses: 0, Prefer: PreferFile},
		},
		FileBuckets: 8,
	}
}

// DetermineLocation picks a StorageLocation for pageNum given its
// recorded access count.
func (p *MemoryPolicy) DetermineLocation(pageNum int64, accessCount int64) StorageLocation {
	tier := PreferFile
	best := int64(-1)
	for _, r := range p.Rules {
		if accessCount >= r.MinAccesses && r.MinAccesses > best {
			best = r.MinAccesses
			tier = r.Prefer
		}
	}

	switch tier {
	case PreferMemory:
		return StorageLocation{Tier: TierMemory, MemoryID: pageNum}
	default:
		bucket := pageBucket(pageNum, p.FileBuckets)
		return StorageLocation{Tier: TierFile, FileID: bucket, Offset: pageOffsetWithinBucket(pageNum)}
	}
}

// pageBucket hashes a page number into [0, buckets) with murmur3,
// giving a stable, well-distributed file assignment.
func pageBucket(pageNum int64, buckets int) int {
	if buckets <= 0 {
		return 0
	}
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(pageNum))
	h := murmur3.Sum32(b[:])
	return int(h % uint32(buckets))
}

// pageOffsetWithinBucket derives a stable byte offset for pageNum
// inside its assigned file, spacing pages by a fixed 4096-byte stride
// of the page number itself, so distinct pages that hash into the same
// bucket never collide.
func pageOffsetWithinBucket(pageNum int64) int64 {
	return pageNum * 4096
}
