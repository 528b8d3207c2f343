package vm

import (
	"github.com/sirupsen/logrus"
)

const (
	segmentSize = 1 << 20 // 1 MiB, per spec.md §3
	codeStart   = 0
	stackStart  = segmentSize
	heapStart   = 2 * segmentSize
)

// Timeline is a named branch of execution state. Declared per
// spec.md §9/§5 for future Fork/Merge support; nothing in this build
// creates one, but the field exists on VM so a later implementation
// has somewhere to put them without changing VM's shape.
type Timeline struct {
	Tape      *SegmentedTape
	Registers RegisterFile
	IP, SP, FP int64
}

// VM is the exclusive owner of the Segmented Tape, Register File,
// Execution History, Symbol Table, and the (reserved) Timelines map.
type VM struct {
	Tape      *SegmentedTape
	Registers RegisterFile
	IP, SP, FP int64
	History   ExecutionHistory
	Symbols   SymbolTable
	Timelines map[string]*Timeline

	Program []Instruction

	// HistoryCap bounds the number of frames retained; 0 means
	// unbounded. Exceeding it drops the oldest frame so ReverseLast
	// beyond the cap fails with ErrHistoryExhausted (spec.md §5).
	HistoryCap int

	Log *logrus.Logger
}

// NewVM constructs a VM with the three standard segments pre-created
// (code, stack, heap; 1 MiB each, contiguous at 0/1MiB/2MiB) and SP/FP
// initialized to the stack segment's own start address (1 MiB), per
// spec.md §3 and the ground-truth executor. The Trail and History
// start empty.
func NewVM() *VM {
	st := NewSegmentedTape()
	// Pre-creation order matters only for address assignment
	// determinism under the first-fit allocator; these three land at
	// exactly 0, 1MiB, 2MiB because the tape starts empty.
	mustCreate(st, "code", segmentSize, SegmentCode)
	mustCreate(st, "stack", segmentSize, SegmentStack)
	mustCreate(st, "heap", segmentSize, SegmentHeap)

	return &VM{
		Tape:      st,
		IP:        0,
		SP:        stackStart,
		FP:        stackStart,
		History:   NewExecutionHistory(),
		Symbols:   make(SymbolTable),
		Timelines: make(map[string]*Timeline),
		Log:       logrus.StandardLogger(),
	}
}

func mustCreate(st *SegmentedTape, name string, size int, kind SegmentKind) {
	if _, err := st.CreateSegment(name, size, kind); err != nil {
		// Only reachable if NewVM is called twice against the same
		// SegmentedTape, which never happens through this
		// constructor.
		panic(err)
	}
}

// LoadProgram installs the instruction stream and its label map, and
// seeds the synthetic "__program_size__" symbol. Per spec.md §9, the
// source only records the program length on the tape; the
// instructions themselves live as a parallel array indexed by IP
// rather than being encoded into the code segment's bytes.
func (vm *VM) LoadProgram(program []Instruction, labels map[string]int64) {
	vm.Program = program
	for name, idx := range labels {
		vm.Symbols[name] = idx
	}
	vm.Symbols[programSizeSymbol] = int64(len(program))
}
