package vm

import "errors"

// Canonical error kinds. String forms are ours; callers should match
// against these sentinels with errors.Is, not by message.
var (
	ErrInvalidRegister          = errors.New("invalid register")
	ErrUnknownLabel             = errors.New("unknown label")
	ErrUnknownMark              = errors.New("unknown mark")
	ErrUnknownCheckpoint        = errors.New("unknown checkpoint")
	ErrSegmentBounds            = errors.New("segment bounds violation")
	ErrDuplicateSegment         = errors.New("duplicate segment")
	ErrUnknownSegment           = errors.New("unknown segment")
	ErrBadRead                  = errors.New("tape read did not return 8 bytes")
	ErrUnimplementedInstruction = errors.New("unimplemented instruction")
	ErrHistoryExhausted         = errors.New("history exhausted")
	ErrHalt                     = errors.New("halt")
)
