// Package asm implements the external assembler described in
// spec.md §6: a line-oriented syntax that compiles to a
// []vm.Instruction plus a label→index symbol table, fed directly into
// vm.VM.LoadProgram.
package asm

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"palindrome/vm"
)

var commentRe = regexp.MustCompile(`;.*$`)

// Parse compiles assembly source into an instruction stream and its
// label table. Labels do not consume an instruction index: a bare
// "label:" line records the index of the next real instruction and
// produces no Instruction of its own.
func Parse(src string) ([]vm.Instruction, map[string]int64, error) {
	labels := make(map[string]int64)
	var program []vm.Instruction

	for lineNo, raw := range strings.Split(src, "\n") {
		line := strings.TrimSpace(commentRe.ReplaceAllString(raw, ""))
		if line == "" {
			continue
		}

		if strings.HasSuffix(line, ":") && !strings.ContainsAny(strings.TrimSuffix(line, ":"), " \t") {
			label := strings.TrimSuffix(line, ":")
			labels[label] = int64(len(program))
			continue
		}

		inst, err := parseLine(line)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d", lineNo+1)
		}
		program = append(program, inst)
	}

	return program, labels, nil
}

func parseLine(line string) (vm.Instruction, error) {
	fields := strings.Fields(line)
	mnemonic := strings.ToUpper(fields[0])

	if mnemonic == "DEBUG" {
		msg := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
		return vm.Instruction{Op: vm.OpDebug, Msg: msg}, nil
	}

	args := make([]string, 0, len(fields)-1)
	for _, f := range fields[1:] {
		args = append(args, strings.TrimSuffix(f, ","))
	}

	op, canon := resolveMnemonic(mnemonic)
	if canon == "" {
		return vm.Instruction{}, errors.Errorf("unknown mnemonic %q", fields[0])
	}

	build, ok := builders[canon]
	if !ok {
		return vm.Instruction{}, errors.Errorf("mnemonic %q has no operand form", canon)
	}
	inst, err := build(args)
	if err != nil {
		return vm.Instruction{}, errors.Wrapf(err, "%s", canon)
	}
	inst.Op = op
	return inst, nil
}

// aliases maps accepted shorthand mnemonics to their canonical name,
// per spec.md §6.
var aliases = map[string]string{
	"JMP": "JUMP",
	"BZ":  "BRANCHZERO",
	"BNZ": "BRANCHNOTZERO",
	"RET": "RETURN",
	"CP":  "CHECKPOINT",
	"RW":  "REWIND",
	"LI":  "LOADIMM",
	"CMP": "COMPARE",
	"EQ":  "EQUAL",
	"LT":  "LESSTHAN",
}

func resolveMnemonic(m string) (vm.Op, string) {
	if canon, ok := aliases[m]; ok {
		m = canon
	}
	if op, ok := nameToOp[m]; ok {
		return op, m
	}
	return 0, ""
}

var nameToOp = func() map[string]vm.Op {
	out := make(map[string]vm.Op, len(opByName))
	for op, name := range opByName {
		out[name] = op
	}
	return out
}()

var opByName = map[vm.Op]string{
	vm.OpNop: "NOP", vm.OpHalt: "HALT", vm.OpDebug: "DEBUG",
	vm.OpIAdd: "IADD", vm.OpISub: "ISUB", vm.OpIMul: "IMUL", vm.OpIXor: "IXOR",
	vm.OpRAdd: "RADD", vm.OpRSub: "RSUB", vm.OpRXor: "RXOR",
	vm.OpLoad: "LOAD", vm.OpStore: "STORE", vm.OpPush: "PUSH", vm.OpPop: "POP", vm.OpLoadImm: "LOADIMM",
	vm.OpRLoad: "RLOAD", vm.OpRStore: "RSTORE", vm.OpSwap: "SWAP", vm.OpMSwap: "MSWAP",
	vm.OpTapeRead: "TAPEREAD", vm.OpTapeWrite: "TAPEWRITE", vm.OpTapeSeek: "TAPESEEK",
	vm.OpTapeSeekReg: "TAPESEEKREG", vm.OpTapeAdvance: "TAPEADVANCE",
	vm.OpTapeMark: "TAPEMARK", vm.OpTapeSeekMark: "TAPESEEKMARK",
	vm.OpSegCreate: "SEGCREATE", vm.OpSegRead: "SEGREAD", vm.OpSegWrite: "SEGWRITE", vm.OpSegSeek: "SEGSEEK",
	vm.OpJump: "JUMP", vm.OpBranchZero: "BRANCHZERO", vm.OpBranchNotZero: "BRANCHNOTZERO",
	vm.OpCall: "CALL", vm.OpReturn: "RETURN",
	vm.OpCheckpoint: "CHECKPOINT", vm.OpRewind: "REWIND", vm.OpRewindN: "REWINDN",
	vm.OpCompare: "COMPARE", vm.OpEqual: "EQUAL", vm.OpLessThan: "LESSTHAN",
	vm.OpSplice: "SPLICE", vm.OpCompact: "COMPACT", vm.OpFork: "FORK", vm.OpMerge: "MERGE", vm.OpBranch: "BRANCH",
}

type builderFunc func(args []string) (vm.Instruction, error)

var builders = map[string]builderFunc{
	"NOP":  func(a []string) (vm.Instruction, error) { return vm.Instruction{}, expect(a, 0) },
	"HALT": func(a []string) (vm.Instruction, error) { return vm.Instruction{}, expect(a, 0) },
	"RETURN": func(a []string) (vm.Instruction, error) { return vm.Instruction{}, expect(a, 0) },

	"IADD": reg3(func(dst, s1, s2 vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Src1: s1, Src2: s2}
	}),
	"ISUB": reg3(func(dst, s1, s2 vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Src1: s1, Src2: s2}
	}),
	"IMUL": reg3(func(dst, s1, s2 vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Src1: s1, Src2: s2}
	}),
	"IXOR": reg3(func(dst, s1, s2 vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Src1: s1, Src2: s2}
	}),
	"RADD": reg3(func(dst, s1, s2 vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Src1: s1, Src2: s2}
	}),
	"RSUB": reg3(func(dst, s1, s2 vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Src1: s1, Src2: s2}
	}),
	"COMPARE": reg3(func(dst, s1, s2 vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Src1: s1, Src2: s2}
	}),
	"EQUAL": reg3(func(dst, s1, s2 vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Src1: s1, Src2: s2}
	}),
	"LESSTHAN": reg3(func(dst, s1, s2 vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Src1: s1, Src2: s2}
	}),

	"RXOR": reg2(func(dst, src vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Src1: src}
	}),
	"SWAP": reg2(func(r1, r2 vm.Register) vm.Instruction {
		return vm.Instruction{Reg: r1, Reg2: r2}
	}),
	"LOAD": reg2(func(reg, addr vm.Register) vm.Instruction {
		return vm.Instruction{Reg: reg, Addr: addr}
	}),
	"STORE": reg2(func(addr, reg vm.Register) vm.Instruction {
		return vm.Instruction{Addr: addr, Reg: reg}
	}),
	"MSWAP": reg2(func(addr, reg vm.Register) vm.Instruction {
		return vm.Instruction{Addr: addr, Reg: reg}
	}),

	"RLOAD": reg3(func(dst, addr, old vm.Register) vm.Instruction {
		return vm.Instruction{Dst: dst, Addr: addr, Old: old}
	}),
	"RSTORE": reg3(func(addr, src, old vm.Register) vm.Instruction {
		return vm.Instruction{Addr: addr, Reg: src, Old: old}
	}),

	"PUSH": reg1(func(reg vm.Register) vm.Instruction { return vm.Instruction{Reg: reg} }),
	"POP":  reg1(func(reg vm.Register) vm.Instruction { return vm.Instruction{Reg: reg} }),
	"TAPESEEKREG": reg1(func(reg vm.Register) vm.Instruction { return vm.Instruction{Reg: reg} }),
	"REWINDN":     reg1(func(reg vm.Register) vm.Instruction { return vm.Instruction{Steps: reg} }),

	"LOADIMM": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 2); err != nil {
			return vm.Instruction{}, err
		}
		reg, err := parseRegister(a[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		v, err := parseImmediate(a[1])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Reg: reg, Value: v}, nil
	},

	"TAPEREAD": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 2); err != nil {
			return vm.Instruction{}, err
		}
		reg, err := parseRegister(a[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		length, err := parseByte(a[1])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Reg: reg, Len: length}, nil
	},
	"TAPEWRITE": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 2); err != nil {
			return vm.Instruction{}, err
		}
		reg, err := parseRegister(a[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		length, err := parseByte(a[1])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Reg: reg, Len: length}, nil
	},

	"TAPESEEK": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 1); err != nil {
			return vm.Instruction{}, err
		}
		pos, err := parseImmediate(a[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Pos: pos}, nil
	},
	"TAPEADVANCE": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 1); err != nil {
			return vm.Instruction{}, err
		}
		delta, err := parseImmediate(a[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Delta: delta}, nil
	},

	"TAPEMARK":     label1(func(l string) vm.Instruction { return vm.Instruction{Label: l} }),
	"TAPESEEKMARK": label1(func(l string) vm.Instruction { return vm.Instruction{Label: l} }),
	"JUMP":         label1(func(l string) vm.Instruction { return vm.Instruction{Label: l} }),
	"CALL":         label1(func(l string) vm.Instruction { return vm.Instruction{Label: l} }),
	"CHECKPOINT":   label1(func(l string) vm.Instruction { return vm.Instruction{Label: l} }),
	"REWIND":       label1(func(l string) vm.Instruction { return vm.Instruction{Label: l} }),

	"BRANCHZERO": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 2); err != nil {
			return vm.Instruction{}, err
		}
		reg, err := parseRegister(a[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Reg: reg, Label: a[1]}, nil
	},
	"BRANCHNOTZERO": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 2); err != nil {
			return vm.Instruction{}, err
		}
		reg, err := parseRegister(a[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Reg: reg, Label: a[1]}, nil
	},

	"SEGCREATE": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 2); err != nil {
			return vm.Instruction{}, err
		}
		size, err := parseRegister(a[1])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Label: a[0], Size: size}, nil
	},
	"SEGSEEK": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 2); err != nil {
			return vm.Instruction{}, err
		}
		addr, err := parseRegister(a[1])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Label: a[0], Addr: addr}, nil
	},
	"SEGREAD": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 4); err != nil {
			return vm.Instruction{}, err
		}
		addr, err := parseRegister(a[1])
		if err != nil {
			return vm.Instruction{}, err
		}
		length, err := parseRegister(a[2])
		if err != nil {
			return vm.Instruction{}, err
		}
		dst, err := parseRegister(a[3])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Label: a[0], Addr: addr, Reg2: length, Dst: dst}, nil
	},
	"SEGWRITE": func(a []string) (vm.Instruction, error) {
		if err := expect(a, 4); err != nil {
			return vm.Instruction{}, err
		}
		addr, err := parseRegister(a[1])
		if err != nil {
			return vm.Instruction{}, err
		}
		length, err := parseRegister(a[2])
		if err != nil {
			return vm.Instruction{}, err
		}
		src, err := parseRegister(a[3])
		if err != nil {
			return vm.Instruction{}, err
		}
		return vm.Instruction{Label: a[0], Addr: addr, Reg2: length, Src1: src}, nil
	},

	"SPLICE":  func(a []string) (vm.Instruction, error) { return vm.Instruction{}, nil },
	"COMPACT": func(a []string) (vm.Instruction, error) { return vm.Instruction{}, nil },
	"FORK":    func(a []string) (vm.Instruction, error) { return vm.Instruction{}, nil },
	"MERGE":   func(a []string) (vm.Instruction, error) { return vm.Instruction{}, nil },
	"BRANCH":  func(a []string) (vm.Instruction, error) { return vm.Instruction{}, nil },
}

func reg3(f func(a, b, c vm.Register) vm.Instruction) builderFunc {
	return func(args []string) (vm.Instruction, error) {
		if err := expect(args, 3); err != nil {
			return vm.Instruction{}, err
		}
		r1, err := parseRegister(args[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		r2, err := parseRegister(args[1])
		if err != nil {
			return vm.Instruction{}, err
		}
		r3, err := parseRegister(args[2])
		if err != nil {
			return vm.Instruction{}, err
		}
		return f(r1, r2, r3), nil
	}
}

func reg2(f func(a, b vm.Register) vm.Instruction) builderFunc {
	return func(args []string) (vm.Instruction, error) {
		if err := expect(args, 2); err != nil {
			return vm.Instruction{}, err
		}
		r1, err := parseRegister(args[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		r2, err := parseRegister(args[1])
		if err != nil {
			return vm.Instruction{}, err
		}
		return f(r1, r2), nil
	}
}

func reg1(f func(a vm.Register) vm.Instruction) builderFunc {
	return func(args []string) (vm.Instruction, error) {
		if err := expect(args, 1); err != nil {
			return vm.Instruction{}, err
		}
		r1, err := parseRegister(args[0])
		if err != nil {
			return vm.Instruction{}, err
		}
		return f(r1), nil
	}
}

func label1(f func(l string) vm.Instruction) builderFunc {
	return func(args []string) (vm.Instruction, error) {
		if err := expect(args, 1); err != nil {
			return vm.Instruction{}, err
		}
		return f(args[0]), nil
	}
}

func expect(args []string, n int) error {
	if len(args) != n {
		return errors.Errorf("expected %d operand(s), got %d", n, len(args))
	}
	return nil
}

var registerRe = regexp.MustCompile(`(?i)^R(\d{1,2})$`)

func parseRegister(tok string) (vm.Register, error) {
	m := registerRe.FindStringSubmatch(tok)
	if m == nil {
		return 0, errors.Errorf("not a register: %q", tok)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n > 15 {
		return 0, errors.Errorf("register out of range: %q", tok)
	}
	return vm.Register(n), nil
}

// parseImmediate accepts an optional leading '#', decimal, or 0x/0X
// hex, as a signed 64-bit value.
func parseImmediate(tok string) (int64, error) {
	tok = strings.TrimPrefix(tok, "#")
	if strings.HasPrefix(tok, "0x") || strings.HasPrefix(tok, "0X") {
		v, err := strconv.ParseInt(tok[2:], 16, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "bad hex immediate %q", tok)
		}
		return v, nil
	}
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "bad immediate %q", tok)
	}
	return v, nil
}

// parseByte accepts an unsigned 8-bit decimal tape-length operand.
func parseByte(tok string) (uint8, error) {
	v, err := strconv.ParseUint(tok, 10, 8)
	if err != nil {
		return 0, errors.Wrapf(err, "bad byte operand %q", tok)
	}
	return uint8(v), nil
}
