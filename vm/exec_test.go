package vm

import "testing"

// TestArithmeticAndReverse matches scenario 1: LI R0,10; LI R1,20;
// IADD R2,R0,R1; HALT — after the add, R2=30 and flags clear; after
// one reverse, R2 returns to 0 and history depth drops to 2.
func TestArithmeticAndReverse(t *testing.T) {
	m := NewVM()
	m.LoadProgram([]Instruction{
		{Op: OpLoadImm, Reg: 0, Value: 10},
		{Op: OpLoadImm, Reg: 1, Value: 20},
		{Op: OpIAdd, Dst: 2, Src1: 0, Src2: 1},
		{Op: OpHalt},
	}, nil)

	for i := 0; i < 3; i++ {
		ok, err := m.Step()
		assert(t, ok && err == nil, "step %d failed: %v", i, err)
	}
	v, _ := m.Registers.Read(2)
	assert(t, v == 30, "expected R2=30, got %d", v)
	assert(t, !m.Registers.Flags.Zero && !m.Registers.Flags.Negative, "flags should be clear")

	assert(t, m.ReverseLast() == nil, "reverse failed")
	v, _ = m.Registers.Read(2)
	assert(t, v == 0, "expected R2=0 after reverse, got %d", v)
	assert(t, m.History.Depth() == 2, "expected history depth 2, got %d", m.History.Depth())
}

// TestCheckpointRewind matches scenario 4. Rewind jumps execution back
// to just after the Checkpoint, so this steps through exactly the
// seven listed instructions rather than Run-ing to Halt: the loop body
// between Checkpoint and Rewind would otherwise repeat forever.
func TestCheckpointRewind(t *testing.T) {
	m := NewVM()
	m.LoadProgram([]Instruction{
		{Op: OpCheckpoint, Label: "start"},
		{Op: OpLoadImm, Reg: 0, Value: 0x41},
		{Op: OpTapeWrite, Reg: 0, Len: 1},
		{Op: OpTapeAdvance, Delta: 3},
		{Op: OpLoadImm, Reg: 0, Value: 0x42},
		{Op: OpTapeWrite, Reg: 0, Len: 1},
		{Op: OpRewind, Label: "start"},
		{Op: OpHalt},
	}, nil)

	for i := 0; i < 7; i++ {
		ok, err := m.Step()
		assert(t, ok && err == nil, "step %d failed: %v", i, err)
	}
	assert(t, m.Tape.Tape.Position() == 0, "expected head 0 after rewind, got %d", m.Tape.Tape.Position())
	assert(t, m.IP == 1, "expected IP to resume just after Checkpoint, got %d", m.IP)
	data := m.Tape.Tape.Read(6)
	for i, b := range data {
		assert(t, b == 0, "byte %d should be zero after rewind, got %d", i, b)
	}
}

// TestBranchZero matches scenario 5.
func TestBranchZero(t *testing.T) {
	m := NewVM()
	m.LoadProgram([]Instruction{
		{Op: OpLoadImm, Reg: 0, Value: 0},
		{Op: OpBranchZero, Reg: 0, Label: "done"},
		{Op: OpLoadImm, Reg: 1, Value: 99},
		{Op: OpHalt},
	}, map[string]int64{"done": 3})

	err := m.Run()
	assert(t, err == ErrHalt, "expected ErrHalt, got %v", err)
	v, _ := m.Registers.Read(1)
	assert(t, v == 0, "expected R1=0 (branch taken), got %d", v)
}

// TestCallReturn matches scenario 6: frame conservation across a
// Call/Return pair.
func TestCallReturn(t *testing.T) {
	m := NewVM()
	m.LoadProgram([]Instruction{
		{Op: OpLoadImm, Reg: 0, Value: 7},
		{Op: OpCall, Label: "fn"},
		{Op: OpHalt},
		{Op: OpLoadImm, Reg: 0, Value: 8},
		{Op: OpReturn},
	}, map[string]int64{"fn": 3})

	spBefore := m.SP
	fpBefore := m.FP

	err := m.Run()
	assert(t, err == ErrHalt, "expected ErrHalt, got %v", err)
	v, _ := m.Registers.Read(0)
	assert(t, v == 8, "expected R0=8, got %d", v)
	assert(t, m.SP == spBefore, "SP should be conserved, before=%d after=%d", spBefore, m.SP)
	assert(t, m.FP == fpBefore, "FP should be conserved, before=%d after=%d", fpBefore, m.FP)
	assert(t, m.IP == 2, "IP should point at Halt (index 2), got %d", m.IP)
}

// TestPushPopDuality matches property P5.
func TestPushPopDuality(t *testing.T) {
	m := NewVM()
	m.LoadProgram([]Instruction{
		{Op: OpLoadImm, Reg: 0, Value: 123},
		{Op: OpPush, Reg: 0},
		{Op: OpLoadImm, Reg: 0, Value: 0},
		{Op: OpPop, Reg: 0},
		{Op: OpHalt},
	}, nil)

	spBefore := m.SP
	err := m.Run()
	assert(t, err == ErrHalt, "expected ErrHalt, got %v", err)
	v, _ := m.Registers.Read(0)
	assert(t, v == 123, "expected R0=123, got %d", v)
	assert(t, m.SP == spBefore, "SP should be net unchanged, before=%d after=%d", spBefore, m.SP)
}

// TestXorSelfInverse matches property P9.
func TestXorSelfInverse(t *testing.T) {
	m := NewVM()
	m.Registers.Write(0, 77)
	m.Registers.Write(1, 5)
	inst := Instruction{Op: OpIXor, Dst: 0, Src1: 0, Src2: 1}
	assert(t, m.Execute(inst) == nil, "first xor failed")
	assert(t, m.Execute(inst) == nil, "second xor failed")
	v, _ := m.Registers.Read(0)
	assert(t, v == 77, "expected R0 restored to 77, got %d", v)
}

// TestReverseLastExhausted ensures reversing past the start of history
// fails cleanly rather than panicking.
func TestReverseLastExhausted(t *testing.T) {
	m := NewVM()
	err := m.ReverseLast()
	assert(t, err == ErrHistoryExhausted, "expected ErrHistoryExhausted, got %v", err)
}

// TestHistoryCapDropsOldestFrame exercises the bounded-history mode
// from spec.md §5.
func TestHistoryCapDropsOldestFrame(t *testing.T) {
	m := NewVM()
	m.HistoryCap = 2
	m.LoadProgram([]Instruction{
		{Op: OpLoadImm, Reg: 0, Value: 1},
		{Op: OpLoadImm, Reg: 0, Value: 2},
		{Op: OpLoadImm, Reg: 0, Value: 3},
		{Op: OpHalt},
	}, nil)

	for i := 0; i < 3; i++ {
		ok, err := m.Step()
		assert(t, ok && err == nil, "step %d failed: %v", i, err)
	}
	assert(t, m.History.Depth() == 2, "expected capped depth 2, got %d", m.History.Depth())
}

// TestRewindNNegativeClampsToZero covers the open-question decision on
// RewindN with a negative count.
func TestRewindNNegativeClampsToZero(t *testing.T) {
	m := NewVM()
	m.Registers.Write(5, -3)
	m.LoadProgram([]Instruction{
		{Op: OpLoadImm, Reg: 0, Value: 1},
		{Op: OpRewindN, Steps: 5},
		{Op: OpHalt},
	}, nil)

	depthBefore := m.History.Depth()
	_, err := m.Step() // LoadImm
	assert(t, err == nil, "loadimm failed: %v", err)
	_, err = m.Step() // RewindN with R5=-3: clamped to zero, reverses nothing
	assert(t, err == nil, "rewindn failed: %v", err)
	// Two frames pushed (LoadImm, RewindN itself), zero popped.
	assert(t, m.History.Depth() == depthBefore+2, "expected depth %d, got %d", depthBefore+2, m.History.Depth())
}
