package vm

// HistoryFrame captures VM state immediately before an instruction's
// effect runs, so reversal always restores exactly the pre-effect
// state. RegistersBefore is a value snapshot, not a shared reference,
// so discarding an undone frame needs no further cleanup.
type HistoryFrame struct {
	Instruction     Instruction
	RegistersBefore RegisterFile
	IPBefore        int64
	SPBefore        int64
	FPBefore        int64
	TrailLenBefore  int
}

// ExecutionHistory is the stack of History Frames plus named
// checkpoints recording stack depth at the moment of a Checkpoint
// instruction.
type ExecutionHistory struct {
	Stack       []HistoryFrame
	Checkpoints map[string]int
}

// NewExecutionHistory returns an empty history.
func NewExecutionHistory() ExecutionHistory {
	return ExecutionHistory{Checkpoints: make(map[string]int)}
}

// Depth returns the number of frames currently on the stack.
func (h *ExecutionHistory) Depth() int {
	return len(h.Stack)
}

// push appends a frame.
func (h *ExecutionHistory) push(f HistoryFrame) {
	h.Stack = append(h.Stack, f)
}

// pop removes and returns the top frame, or ok=false if empty.
func (h *ExecutionHistory) pop() (HistoryFrame, bool) {
	if len(h.Stack) == 0 {
		return HistoryFrame{}, false
	}
	n := len(h.Stack) - 1
	f := h.Stack[n]
	h.Stack = h.Stack[:n]
	return f, true
}

// truncate drops frames down to depth (used by Rewind-to-checkpoint).
func (h *ExecutionHistory) truncate(depth int) {
	if depth < len(h.Stack) {
		h.Stack = h.Stack[:depth]
	}
}
