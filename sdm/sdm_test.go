package sdm

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

func TestTapeReadWriteRoundTrip(t *testing.T) {
	tp := New(DefaultConfig())
	tp.Seek(0)
	err := tp.Write([]byte{1, 2, 3, 4, 5})
	assert(t, err == nil, "write failed: %v", err)

	tp.Seek(0)
	data, err := tp.Read(5)
	assert(t, err == nil, "read failed: %v", err)
	assert(t, bytes.Equal(data, []byte{1, 2, 3, 4, 5}), "unexpected round trip: %v", data)
}

func TestPageTableVersionHistory(t *testing.T) {
	pt := NewPageTable(4)
	pt.RecordVersion(7, []byte{0, 0, 0})
	pt.RecordVersion(7, []byte{1, 1, 1})

	data, ok := pt.ReadAtVersion(7, 1)
	assert(t, ok, "expected version 1 to be retained")
	assert(t, bytes.Equal(data, []byte{0, 0, 0}), "unexpected historical bytes: %v", data)

	_, ok = pt.ReadAtVersion(7, 99)
	assert(t, !ok, "expected unknown version to miss")
}

func TestPolicyPromotesHotPages(t *testing.T) {
	p := DefaultPolicy()
	cold := p.DetermineLocation(1, 0)
	hot := p.DetermineLocation(1, 10)
	assert(t, cold.Tier == TierFile, "expected cold page on file tier")
	assert(t, hot.Tier == TierMemory, "expected hot page promoted to memory tier")
}

func TestAccessPredictorSequentialDetection(t *testing.T) {
	p := NewAccessPredictor(3)
	assert(t, !p.IsSequential(), "should not be sequential before any access")
	p.RecordAccess(0)
	p.RecordAccess(1)
	p.RecordAccess(2)
	p.RecordAccess(3)
	assert(t, p.IsSequential(), "expected sequential run to be detected")
	suggestions := p.SuggestPrefetch(3)
	assert(t, len(suggestions) == 3, "expected 3 prefetch suggestions, got %d", len(suggestions))
	assert(t, suggestions[0] == 4, "expected first suggestion 4, got %d", suggestions[0])
}

func TestAccessPredictorRewindSketch(t *testing.T) {
	p := NewAccessPredictor(3)
	p.RecordCheckpoint("c1")
	p.RecordTouch(10)
	p.RecordTouch(20)

	hits := p.PredictRewindTargets("c1", []int64{10, 20, 30})
	assert(t, len(hits) >= 2, "expected at least the two touched pages reported, got %v", hits)
}

func TestVirtualAddressSpaceRegionOverlap(t *testing.T) {
	vas := NewVirtualAddressSpace(4096)
	err := vas.DefineRegion(0, 4096, HintHot, "a")
	assert(t, err == nil, "first region failed: %v", err)
	err = vas.DefineRegion(2048, 4096, HintCold, "b")
	assert(t, err != nil, "expected overlap error")
}

func TestVirtualAddressSpaceMarks(t *testing.T) {
	vas := NewVirtualAddressSpace(4096)
	vas.Mark("here", 123)
	pos, ok := vas.GetMark("here")
	assert(t, ok && pos == 123, "expected mark 'here'=123, got %d ok=%v", pos, ok)
}
