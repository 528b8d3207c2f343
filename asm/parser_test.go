package asm

import (
	"fmt"
	"testing"

	"palindrome/vm"
)

func assert(t *testing.T, cond bool, format string, args ...any) {
	t.Helper()
	if !cond {
		t.Fatalf(fmt.Sprintf("%v %s", cond, format), args...)
	}
}

func TestParseArithmeticAndReverse(t *testing.T) {
	program, _, err := Parse(`
		LI R0, 10
		LI R1, 20
		IADD R2, R0, R1
		HALT
	`)
	assert(t, err == nil, "parse failed: %v", err)
	assert(t, len(program) == 4, "expected 4 instructions, got %d", len(program))
	assert(t, program[2].Op == vm.OpIAdd, "expected IADD at index 2")
	assert(t, program[2].Dst == 2 && program[2].Src1 == 0 && program[2].Src2 == 1, "unexpected operands")
}

func TestParseHexImmediate(t *testing.T) {
	program, _, err := Parse(`LI R0, 0xFF`)
	assert(t, err == nil, "parse failed: %v", err)
	assert(t, program[0].Value == 255, "expected R0=255, got %d", program[0].Value)
}

func TestParseLabelDoesNotConsumeIndex(t *testing.T) {
	program, labels, err := Parse(`
		LI R0, 0
		BZ R0, done
		LI R1, 99
	done:
		HALT
	`)
	assert(t, err == nil, "parse failed: %v", err)
	idx, ok := labels["done"]
	assert(t, ok, "expected label 'done' to be recorded")
	assert(t, idx == 3, "expected label index 3, got %d", idx)
	assert(t, len(program) == 4, "expected 4 instructions, got %d", len(program))
	assert(t, program[1].Op == vm.OpBranchZero && program[1].Label == "done", "unexpected BZ decode")
}

func TestParseAliases(t *testing.T) {
	program, _, err := Parse(`
		CP start
		RW start
		RET
	`)
	assert(t, err == nil, "parse failed: %v", err)
	assert(t, program[0].Op == vm.OpCheckpoint, "CP should alias CHECKPOINT")
	assert(t, program[1].Op == vm.OpRewind, "RW should alias REWIND")
	assert(t, program[2].Op == vm.OpReturn, "RET should alias RETURN")
}

func TestParseTrailingComma(t *testing.T) {
	program, _, err := Parse(`IADD R0, R1, R2`)
	assert(t, err == nil, "parse failed: %v", err)
	assert(t, program[0].Dst == 0 && program[0].Src1 == 1 && program[0].Src2 == 2, "trailing commas should be tolerated")
}

func TestParseDebugFreeform(t *testing.T) {
	program, _, err := Parse(`DEBUG hello, world! this is a message`)
	assert(t, err == nil, "parse failed: %v", err)
	assert(t, program[0].Op == vm.OpDebug, "expected DEBUG op")
	assert(t, program[0].Msg == "hello, world! this is a message", "unexpected message %q", program[0].Msg)
}

func TestParseOutOfRangeRegister(t *testing.T) {
	_, _, err := Parse(`LI R16, 1`)
	assert(t, err != nil, "expected parse error for out-of-range register")
}

func TestParseUnknownMnemonic(t *testing.T) {
	_, _, err := Parse(`FROB R0, R1`)
	assert(t, err != nil, "expected parse error for unknown mnemonic")
}

func TestParseCommentsAndBlankLines(t *testing.T) {
	program, _, err := Parse(`
		; a full-line comment
		LI R0, 1  ; trailing comment

		HALT
	`)
	assert(t, err == nil, "parse failed: %v", err)
	assert(t, len(program) == 2, "expected 2 instructions, got %d", len(program))
}
