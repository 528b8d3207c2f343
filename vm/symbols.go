package vm

// SymbolTable maps assembly-time label names to instruction indices.
// Populated by the assembler (or directly by callers embedding the
// VM) and consulted first by control-transfer instructions before
// falling back to the tape's mark map.
type SymbolTable map[string]int64

// programSizeSymbol is the synthetic symbol table entry recording the
// instruction count, written by LoadProgram.
const programSizeSymbol = "__program_size__"

// ResolveLabel unifies the symbol table and the tape's mark map under
// a single lookup (spec.md §4.4): a symbol table hit wins; otherwise a
// tape mark. Callers interpret the returned integer as an instruction
// index or a tape position depending on which instruction asked.
func (vm *VM) ResolveLabel(label string) (int64, error) {
	if idx, ok := vm.Symbols[label]; ok {
		return idx, nil
	}
	if pos, ok := vm.Tape.Tape.GetMark(label); ok {
		return pos, nil
	}
	return 0, ErrUnknownLabel
}
