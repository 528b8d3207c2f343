package vm

import (
	"encoding/binary"
)

// le64 decodes 8 little-endian bytes into an int64. bytes must be
// exactly 8 long; Tape.Read always returns exactly the requested
// length (zero-padding unwritten positions), so ErrBadRead can only
// occur if a caller asks for something other than 8 bytes, which none
// of the instructions below do.
func le64(b []byte) (int64, error) {
	if len(b) != 8 {
		return 0, ErrBadRead
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

func putLE64(v int64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, uint64(v))
	return b
}

// Execute dispatches a single instruction. It pushes a History Frame
// capturing pre-effect state *before* running the effect (spec.md
// §4.5), so that even an instruction that errors mid-effect leaves a
// frame an operator can reverse to. Instructions that set IP
// explicitly (jumps, branches, calls, returns, Rewind and RewindN)
// return before the trailing IP++; a branch that is not taken
// increments IP itself. Everything else falls through to it.
func (vm *VM) Execute(inst Instruction) error {
	vm.pushFrame(inst)

	switch inst.Op {
	case OpNop, OpDebug:
		if inst.Op == OpDebug {
			vm.Log.WithFields(map[string]interface{}{
				"ip": vm.IP, "sp": vm.SP, "fp": vm.FP,
			}).Info(inst.Msg)
		}

	case OpIAdd:
		if err := vm.arith3(inst, func(a, b int64) int64 { return a + b }); err != nil {
			return err
		}
	case OpISub:
		if err := vm.arith3(inst, func(a, b int64) int64 { return a - b }); err != nil {
			return err
		}
	case OpIMul:
		if err := vm.arith3(inst, func(a, b int64) int64 { return a * b }); err != nil {
			return err
		}
	case OpIXor:
		if err := vm.arith3(inst, func(a, b int64) int64 { return a ^ b }); err != nil {
			return err
		}

	case OpRAdd:
		if err := vm.risaAccumulate(inst, func(a, b int64) int64 { return a + b }); err != nil {
			return err
		}
	case OpRSub:
		if err := vm.risaAccumulate(inst, func(a, b int64) int64 { return a - b }); err != nil {
			return err
		}
	case OpRXor:
		src, err := vm.Registers.Read(inst.Src1)
		if err != nil {
			return err
		}
		dst, err := vm.Registers.Read(inst.Dst)
		if err != nil {
			return err
		}
		if err := vm.Registers.Write(inst.Dst, dst^src); err != nil {
			return err
		}

	case OpSwap:
		a, err := vm.Registers.Read(inst.Reg)
		if err != nil {
			return err
		}
		b, err := vm.Registers.Read(inst.Reg2)
		if err != nil {
			return err
		}
		if err := vm.Registers.Write(inst.Reg, b); err != nil {
			return err
		}
		if err := vm.Registers.Write(inst.Reg2, a); err != nil {
			return err
		}

	case OpMSwap:
		addr, err := vm.Registers.Read(inst.Addr)
		if err != nil {
			return err
		}
		reg, err := vm.Registers.Read(inst.Reg)
		if err != nil {
			return err
		}
		vm.Tape.Tape.Seek(addr)
		old, err := le64(vm.Tape.Tape.Read(8))
		if err != nil {
			return err
		}
		vm.Tape.Tape.Write(putLE64(reg))
		if err := vm.Registers.Write(inst.Reg, old); err != nil {
			return err
		}

	case OpLoad:
		addr, err := vm.Registers.Read(inst.Addr)
		if err != nil {
			return err
		}
		vm.Tape.Tape.Seek(addr)
		v, err := le64(vm.Tape.Tape.Read(8))
		if err != nil {
			return err
		}
		if err := vm.Registers.Write(inst.Reg, v); err != nil {
			return err
		}

	case OpStore:
		addr, err := vm.Registers.Read(inst.Addr)
		if err != nil {
			return err
		}
		v, err := vm.Registers.Read(inst.Reg)
		if err != nil {
			return err
		}
		vm.Tape.Tape.Seek(addr)
		vm.Tape.Tape.Write(putLE64(v))

	case OpRLoad:
		addr, err := vm.Registers.Read(inst.Addr)
		if err != nil {
			return err
		}
		prevDst, err := vm.Registers.Read(inst.Dst)
		if err != nil {
			return err
		}
		vm.Tape.Tape.Seek(addr)
		v, err := le64(vm.Tape.Tape.Read(8))
		if err != nil {
			return err
		}
		if err := vm.Registers.Write(inst.Dst, v); err != nil {
			return err
		}
		if err := vm.Registers.Write(inst.Old, prevDst); err != nil {
			return err
		}

	case OpRStore:
		addr, err := vm.Registers.Read(inst.Addr)
		if err != nil {
			return err
		}
		src, err := vm.Registers.Read(inst.Reg)
		if err != nil {
			return err
		}
		vm.Tape.Tape.Seek(addr)
		prevTape, err := le64(vm.Tape.Tape.Read(8))
		if err != nil {
			return err
		}
		vm.Tape.Tape.Write(putLE64(src))
		if err := vm.Registers.Write(inst.Old, prevTape); err != nil {
			return err
		}

	case OpPush:
		v, err := vm.Registers.Read(inst.Reg)
		if err != nil {
			return err
		}
		vm.SP -= 8
		vm.Tape.Tape.Seek(vm.SP)
		vm.Tape.Tape.Write(putLE64(v))

	case OpPop:
		vm.Tape.Tape.Seek(vm.SP)
		v, err := le64(vm.Tape.Tape.Read(8))
		if err != nil {
			return err
		}
		if err := vm.Registers.Write(inst.Reg, v); err != nil {
			return err
		}
		vm.SP += 8

	case OpLoadImm:
		if err := vm.Registers.Write(inst.Reg, inst.Value); err != nil {
			return err
		}

	case OpTapeRead:
		// The underlying Tape.Read never moves the head (source
		// behavior, §9 open question); programs that want the head to
		// advance follow a TapeRead with an explicit TapeAdvance.
		data := vm.Tape.Tape.Read(int(inst.Len))
		n := int(inst.Len)
		if n > 8 {
			n = 8
		}
		buf := make([]byte, 8)
		copy(buf, data[:n])
		v, _ := le64(buf)
		if err := vm.Registers.Write(inst.Reg, v); err != nil {
			return err
		}

	case OpTapeWrite:
		v, err := vm.Registers.Read(inst.Reg)
		if err != nil {
			return err
		}
		n := int(inst.Len)
		if n > 8 {
			n = 8
		}
		vm.Tape.Tape.Write(putLE64(v)[:n])

	case OpTapeSeek:
		vm.Tape.Tape.Seek(inst.Pos)

	case OpTapeSeekReg:
		pos, err := vm.Registers.Read(inst.Reg)
		if err != nil {
			return err
		}
		vm.Tape.Tape.Seek(pos)

	case OpTapeAdvance:
		vm.Tape.Tape.Advance(inst.Delta)

	case OpTapeMark:
		vm.Tape.Tape.Mark(inst.Label)

	case OpTapeSeekMark:
		if err := vm.Tape.Tape.SeekMark(inst.Label); err != nil {
			return err
		}

	case OpSegCreate:
		size, err := vm.Registers.Read(inst.Size)
		if err != nil {
			return err
		}
		if _, err := vm.Tape.CreateSegment(inst.Label, int(size), SegmentData); err != nil {
			return err
		}

	case OpSegSeek:
		seg := vm.Tape.GetSegment(inst.Label)
		if seg == nil {
			return ErrUnknownSegment
		}
		offset, err := vm.Registers.Read(inst.Addr)
		if err != nil {
			return err
		}
		vm.Tape.Tape.Seek(seg.Start + offset)

	case OpSegRead:
		offset, err := vm.Registers.Read(inst.Addr)
		if err != nil {
			return err
		}
		length, err := vm.Registers.Read(inst.Reg2)
		if err != nil {
			return err
		}
		data, err := vm.Tape.ReadSegment(inst.Label, offset, int(length))
		if err != nil {
			return err
		}
		n := len(data)
		if n > 8 {
			n = 8
		}
		buf := make([]byte, 8)
		copy(buf, data[:n])
		v, _ := le64(buf)
		if err := vm.Registers.Write(inst.Dst, v); err != nil {
			return err
		}

	case OpSegWrite:
		offset, err := vm.Registers.Read(inst.Addr)
		if err != nil {
			return err
		}
		length, err := vm.Registers.Read(inst.Reg2)
		if err != nil {
			return err
		}
		src, err := vm.Registers.Read(inst.Src1)
		if err != nil {
			return err
		}
		n := int(length)
		if n > 8 {
			n = 8
		}
		if err := vm.Tape.WriteSegment(inst.Label, offset, putLE64(src)[:n]); err != nil {
			return err
		}

	case OpJump:
		target, err := vm.ResolveLabel(inst.Label)
		if err != nil {
			return err
		}
		vm.IP = target
		return nil

	case OpBranchZero:
		v, err := vm.Registers.Read(inst.Reg)
		if err != nil {
			return err
		}
		if v == 0 {
			target, err := vm.ResolveLabel(inst.Label)
			if err != nil {
				return err
			}
			vm.IP = target
			return nil
		}
		vm.IP++
		return nil

	case OpBranchNotZero:
		v, err := vm.Registers.Read(inst.Reg)
		if err != nil {
			return err
		}
		if v != 0 {
			target, err := vm.ResolveLabel(inst.Label)
			if err != nil {
				return err
			}
			vm.IP = target
			return nil
		}
		vm.IP++
		return nil

	case OpCall:
		target, err := vm.ResolveLabel(inst.Label)
		if err != nil {
			return err
		}
		vm.SP -= 8
		vm.Tape.Tape.Seek(vm.SP)
		vm.Tape.Tape.Write(putLE64(vm.IP + 1))
		vm.SP -= 8
		vm.Tape.Tape.Seek(vm.SP)
		vm.Tape.Tape.Write(putLE64(vm.FP))
		vm.FP = vm.SP
		vm.IP = target
		return nil

	case OpReturn:
		vm.Tape.Tape.Seek(vm.FP)
		fp, err := le64(vm.Tape.Tape.Read(8))
		if err != nil {
			return err
		}
		vm.SP = vm.FP + 8
		vm.Tape.Tape.Seek(vm.SP)
		ip, err := le64(vm.Tape.Tape.Read(8))
		if err != nil {
			return err
		}
		vm.SP += 8
		vm.FP = fp
		vm.IP = ip
		return nil

	case OpCheckpoint:
		vm.Tape.Tape.Checkpoint(inst.Label)
		vm.History.Checkpoints[inst.Label] = vm.History.Depth()

	case OpRewind:
		if err := vm.Tape.Tape.Rewind(inst.Label); err != nil {
			return err
		}
		if depth, ok := vm.History.Checkpoints[inst.Label]; ok {
			vm.History.truncate(depth)
			if depth > 0 {
				// Stack[depth-1] is the Checkpoint instruction's own
				// frame. Checkpoint does not touch registers/SP/FP and
				// falls through to the normal IP++, so "state
				// immediately after Checkpoint" (spec.md §8 P3) is that
				// frame's pre-state with IP advanced by one, not the
				// frame's IPBefore itself.
				top := vm.History.Stack[depth-1]
				vm.Registers = top.RegistersBefore
				vm.IP = top.IPBefore + 1
				vm.SP = top.SPBefore
				vm.FP = top.FPBefore
			}
		}
		return nil

	case OpRewindN:
		n, err := vm.Registers.Read(inst.Steps)
		if err != nil {
			return err
		}
		if n < 0 {
			n = 0
		}
		if int(n) > vm.History.Depth() {
			n = int64(vm.History.Depth())
		}
		for i := int64(0); i < n; i++ {
			if err := vm.ReverseLast(); err != nil {
				return err
			}
		}
		return nil

	case OpCompare:
		a, err := vm.Registers.Read(inst.Src1)
		if err != nil {
			return err
		}
		b, err := vm.Registers.Read(inst.Src2)
		if err != nil {
			return err
		}
		var r int64
		switch {
		case a < b:
			r = -1
		case a > b:
			r = 1
		}
		if err := vm.Registers.Write(inst.Dst, r); err != nil {
			return err
		}
		vm.Registers.UpdateFlags(r)

	case OpEqual:
		a, err := vm.Registers.Read(inst.Src1)
		if err != nil {
			return err
		}
		b, err := vm.Registers.Read(inst.Src2)
		if err != nil {
			return err
		}
		r := int64(0)
		if a == b {
			r = 1
		}
		if err := vm.Registers.Write(inst.Dst, r); err != nil {
			return err
		}
		vm.Registers.UpdateFlags(r)

	case OpLessThan:
		a, err := vm.Registers.Read(inst.Src1)
		if err != nil {
			return err
		}
		b, err := vm.Registers.Read(inst.Src2)
		if err != nil {
			return err
		}
		r := int64(0)
		if a < b {
			r = 1
		}
		if err := vm.Registers.Write(inst.Dst, r); err != nil {
			return err
		}
		vm.Registers.UpdateFlags(r)

	case OpHalt:
		return ErrHalt

	default:
		return ErrUnimplementedInstruction
	}

	vm.IP++
	return nil
}

// arith3 implements the IAdd/ISub/IMul/IXor shape: dst = op(src1,src2),
// flags updated from the result.
func (vm *VM) arith3(inst Instruction, op func(a, b int64) int64) error {
	a, err := vm.Registers.Read(inst.Src1)
	if err != nil {
		return err
	}
	b, err := vm.Registers.Read(inst.Src2)
	if err != nil {
		return err
	}
	r := op(a, b)
	if err := vm.Registers.Write(inst.Dst, r); err != nil {
		return err
	}
	vm.Registers.UpdateFlags(r)
	return nil
}

// risaAccumulate implements the RAdd/RSub shape: dst = op(dst,
// op2(src1,src2)) where op2 is always +, i.e. dst := dst (+/-) (src1 +
// src2). Applying RSub with the same operands after RAdd restores dst
// exactly, matching Instruction.Inverse.
func (vm *VM) risaAccumulate(inst Instruction, op func(a, b int64) int64) error {
	dst, err := vm.Registers.Read(inst.Dst)
	if err != nil {
		return err
	}
	s1, err := vm.Registers.Read(inst.Src1)
	if err != nil {
		return err
	}
	s2, err := vm.Registers.Read(inst.Src2)
	if err != nil {
		return err
	}
	r := op(dst, s1+s2)
	return vm.Registers.Write(inst.Dst, r)
}

// pushFrame records pre-effect state. When HistoryCap is positive and
// would be exceeded, the oldest frame is dropped rather than growing
// unbounded (spec.md §5); ReverseLast past the cap then reports
// ErrHistoryExhausted.
func (vm *VM) pushFrame(inst Instruction) {
	vm.History.push(HistoryFrame{
		Instruction:     inst,
		RegistersBefore: vm.Registers,
		IPBefore:        vm.IP,
		SPBefore:        vm.SP,
		FPBefore:        vm.FP,
		TrailLenBefore:  vm.Tape.Tape.TrailLen(),
	})
	if vm.HistoryCap > 0 && len(vm.History.Stack) > vm.HistoryCap {
		vm.History.Stack = vm.History.Stack[1:]
	}
}

// ReverseLast pops the top History Frame, restores VM-side state from
// its snapshot, and rewinds the Tape's trail by the delta the
// instruction produced. Returns ErrHistoryExhausted if there is
// nothing to reverse.
func (vm *VM) ReverseLast() error {
	frame, ok := vm.History.pop()
	if !ok {
		return ErrHistoryExhausted
	}
	vm.Registers = frame.RegistersBefore
	vm.IP = frame.IPBefore
	vm.SP = frame.SPBefore
	vm.FP = frame.FPBefore

	delta := vm.Tape.Tape.TrailLen() - frame.TrailLenBefore
	vm.Tape.Tape.RewindN(delta)
	return nil
}

// Step runs one fetch/execute cycle. It returns ErrHalt on a Halt
// instruction and a sentinel "out of range" condition by returning
// (false, nil) when IP has fallen outside the program.
func (vm *VM) Step() (ok bool, err error) {
	if vm.IP < 0 || int(vm.IP) >= len(vm.Program) {
		return false, nil
	}
	inst := vm.Program[vm.IP]
	if err := vm.Execute(inst); err != nil {
		return false, err
	}
	return true, nil
}

// Run executes instructions until Halt, IP falls outside the program,
// or an instruction errors. A non-Halt error leaves the pushed history
// frame in place so the caller can ReverseLast and retry.
func (vm *VM) Run() error {
	for {
		ok, err := vm.Step()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
	}
}
