package vm

import "testing"

func TestRegisterReadWriteBounds(t *testing.T) {
	var rf RegisterFile
	assert(t, rf.Write(15, 42) == nil, "writing R15 should succeed")
	v, err := rf.Read(15)
	assert(t, err == nil && v == 42, "expected R15=42, got %d err=%v", v, err)

	err = rf.Write(16, 1)
	assert(t, err == ErrInvalidRegister, "expected ErrInvalidRegister, got %v", err)

	_, err = rf.Read(-1)
	assert(t, err == ErrInvalidRegister, "expected ErrInvalidRegister for negative register, got %v", err)
}

func TestUpdateFlagsLeavesCarryOverflowAlone(t *testing.T) {
	var rf RegisterFile
	rf.Flags.Carry = true
	rf.Flags.Overflow = true
	rf.UpdateFlags(-5)
	assert(t, rf.Flags.Negative, "expected negative flag set")
	assert(t, !rf.Flags.Zero, "expected zero flag clear")
	assert(t, rf.Flags.Carry, "carry must never be touched by UpdateFlags")
	assert(t, rf.Flags.Overflow, "overflow must never be touched by UpdateFlags")
}

func TestConditionCodeEncoding(t *testing.T) {
	f := Flags{Zero: true, Carry: true}
	assert(t, f.ConditionCode() == 0b0011, "expected condition code 0b0011, got %#b", f.ConditionCode())
}
