package vm

/*
	Instruction set, register-based, signed 64-bit, wrapping arithmetic.

	Every instruction here is reversible, but not through a structural
	inverse: the interpreter always undoes an instruction by restoring
	the History Frame snapshot and rewinding the Tape's trail by the
	delta it produced (see exec.go, ReverseLast). Inverse() below is
	advisory only — useful for static reversibility proofs or symbolic
	rewrites of instructions that happen to have a context-free inverse
	(IAdd/ISub, Push/Pop, XOR/Swap self-inverses) — Return is the
	standing example of an instruction with no such inverse, since it
	needs the FP/SP/IP it is about to restore, not the state it's
	leaving.

	Arithmetic: IAdd, ISub, IMul, IXor (dst = s1 <op> s2, updates
	zero/negative flags, wraps on overflow).

	Reversible arithmetic (RISA), supplementing the original spec from
	original_source/src/instruction/mod.rs: RAdd/RSub (context-free
	inverses of each other), RXor (self-inverse).

	Memory: Load/Store (8-byte little-endian through a register-held
	address), Push/Pop (stack-relative, SP moves by 8), RLoad/RStore
	(RISA variants that swap an "old" register on reversal), MSwap
	(exchange a register with the 8 bytes at a register-held address,
	self-inverse).

	Tape: TapeRead/TapeWrite (zero-extend/narrow through the head,
	caller must TapeAdvance separately — the read does not move the
	head, per spec.md §9), TapeSeek/TapeSeekReg/TapeAdvance,
	TapeMark/TapeSeekMark.

	Segment (register-addressed, supplementing the Go-level
	SegmentedTape API used internally by Push/Pop/Load/Store):
	SegCreate, SegRead, SegWrite, SegSeek.

	Control flow: Jump, BranchZero, BranchNotZero, Call/Return (two-word
	frame: return address pushed first, then FP — Return reads FP first,
	then the return address).

	Time: Checkpoint, Rewind, RewindN.

	Comparison: Compare (sign of s1-s2 in {-1,0,1}), Equal, LessThan.

	System: Halt, Nop, Debug.

	Reserved, declared but left UnimplementedInstruction per spec.md §9
	(Splice/Compact/Fork/Merge need context the source never specifies -
	Merge's strategy tag in particular is "not further specified"):
	Splice, Compact, Fork, Merge, Branch (generic condition-register
	branch, superseded here by BranchZero/BranchNotZero).
*/

// Op identifies an instruction variant.
type Op int

const (
	OpNop Op = iota
	OpHalt
	OpDebug

	OpIAdd
	OpISub
	OpIMul
	OpIXor

	OpRAdd
	OpRSub
	OpRXor

	OpLoad
	OpStore
	OpPush
	OpPop
	OpLoadImm

	OpRLoad
	OpRStore
	OpSwap
	OpMSwap

	OpTapeRead
	OpTapeWrite
	OpTapeSeek
	OpTapeSeekReg
	OpTapeAdvance
	OpTapeMark
	OpTapeSeekMark

	OpSegCreate
	OpSegRead
	OpSegWrite
	OpSegSeek

	OpJump
	OpBranchZero
	OpBranchNotZero
	OpCall
	OpReturn

	OpCheckpoint
	OpRewind
	OpRewindN

	OpCompare
	OpEqual
	OpLessThan

	OpSplice
	OpCompact
	OpFork
	OpMerge
	OpBranch
)

var opNames = map[Op]string{
	OpNop: "NOP", OpHalt: "HALT", OpDebug: "DEBUG",
	OpIAdd: "IADD", OpISub: "ISUB", OpIMul: "IMUL", OpIXor: "IXOR",
	OpRAdd: "RADD", OpRSub: "RSUB", OpRXor: "RXOR",
	OpLoad: "LOAD", OpStore: "STORE", OpPush: "PUSH", OpPop: "POP", OpLoadImm: "LOADIMM",
	OpRLoad: "RLOAD", OpRStore: "RSTORE", OpSwap: "SWAP", OpMSwap: "MSWAP",
	OpTapeRead: "TAPEREAD", OpTapeWrite: "TAPEWRITE", OpTapeSeek: "TAPESEEK",
	OpTapeSeekReg: "TAPESEEKREG", OpTapeAdvance: "TAPEADVANCE",
	OpTapeMark: "TAPEMARK", OpTapeSeekMark: "TAPESEEKMARK",
	OpSegCreate: "SEGCREATE", OpSegRead: "SEGREAD", OpSegWrite: "SEGWRITE", OpSegSeek: "SEGSEEK",
	OpJump: "JUMP", OpBranchZero: "BRANCHZERO", OpBranchNotZero: "BRANCHNOTZERO",
	OpCall: "CALL", OpReturn: "RETURN",
	OpCheckpoint: "CHECKPOINT", OpRewind: "REWIND", OpRewindN: "REWINDN",
	OpCompare: "COMPARE", OpEqual: "EQUAL", OpLessThan: "LESSTHAN",
	OpSplice: "SPLICE", OpCompact: "COMPACT", OpFork: "FORK", OpMerge: "MERGE", OpBranch: "BRANCH",
}

func (o Op) String() string {
	if s, ok := opNames[o]; ok {
		return s
	}
	return "UNKNOWN"
}

// Instruction is a single decoded instruction. Only the fields
// relevant to Op are meaningful; this is the Go analogue of the
// source's per-variant enum payloads, collapsed into one struct since
// Go has no tagged-union sum type.
type Instruction struct {
	Op Op

	Dst, Src1, Src2 Register
	Reg, Addr, Old  Register
	Reg2            Register // Swap's second operand; also SegRead/SegWrite's length register
	Steps           Register // RewindN's register holding the count

	Label string
	Value int64
	Delta int64
	Pos   int64
	Len   uint8
	Size  Register // SegCreate's size register
	Msg   string
}

// IsStateful reports whether executing the instruction can mutate VM
// state. Nop, Debug, and the pure-comparison instructions are not
// stateful in the sense that matters for history bookkeeping, even
// though a History Frame is still pushed for them (spec.md §4.5).
func (i Instruction) IsStateful() bool {
	switch i.Op {
	case OpNop, OpDebug, OpCompare, OpEqual, OpLessThan:
		return false
	default:
		return true
	}
}

// IsBranch reports whether the instruction is a control transfer.
func (i Instruction) IsBranch() bool {
	switch i.Op {
	case OpJump, OpBranchZero, OpBranchNotZero, OpBranch, OpCall, OpReturn:
		return true
	default:
		return false
	}
}

// Inverse returns a structural, context-free inverse where one
// exists. The runtime never calls this — see the package doc comment
// above — it exists for static analysis and symbolic rewrites.
func (i Instruction) Inverse() (Instruction, bool) {
	switch i.Op {
	case OpIAdd:
		return Instruction{Op: OpISub, Dst: i.Src1, Src1: i.Dst, Src2: i.Src2}, true
	case OpISub:
		return Instruction{Op: OpIAdd, Dst: i.Src1, Src1: i.Dst, Src2: i.Src2}, true
	case OpIXor:
		return i, true
	case OpRAdd:
		return Instruction{Op: OpRSub, Dst: i.Dst, Src1: i.Src1, Src2: i.Src2}, true
	case OpRSub:
		return Instruction{Op: OpRAdd, Dst: i.Dst, Src1: i.Src1, Src2: i.Src2}, true
	case OpRXor:
		return i, true
	case OpSwap, OpMSwap:
		return i, true
	case OpPush:
		return Instruction{Op: OpPop, Reg: i.Reg}, true
	case OpPop:
		return Instruction{Op: OpPush, Reg: i.Reg}, true
	case OpTapeAdvance:
		return Instruction{Op: OpTapeAdvance, Delta: -i.Delta}, true
	case OpRLoad:
		return Instruction{Op: OpRLoad, Dst: i.Old, Addr: i.Addr, Old: i.Dst}, true
	case OpRStore:
		return Instruction{Op: OpRStore, Addr: i.Addr, Reg: i.Old, Old: i.Reg}, true
	default:
		return Instruction{}, false
	}
}
