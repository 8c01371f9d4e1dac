package interp

import (
	"fmt"
	"maps"
	"slices"

	"github.com/fictionkit/zvm/story"
	"github.com/fictionkit/zvm/zerrors"
)

const maxLocals = 15

// Frame is one activation record: an evaluation stack, the routine's
// locals, the address of the calling instruction, and the store target the
// caller expects the return value in. Frames are value types; every
// mutation returns a fresh frame so older interpreter snapshots stay
// intact.
type Frame struct {
	stack  []uint16
	locals map[uint8]uint16
	caller uint32
	store  *story.Variable
}

func newFrame(locals map[uint8]uint16, caller uint32, store *story.Variable) Frame {
	if locals == nil {
		locals = make(map[uint8]uint16)
	}
	return Frame{locals: locals, caller: caller, store: store}
}

// Caller returns the address of the instruction that created this frame.
func (f Frame) Caller() uint32 {
	return f.caller
}

// Stack returns a copy of the evaluation stack, topmost value first.
func (f Frame) Stack() []uint16 {
	out := make([]uint16, len(f.stack))
	for i, v := range f.stack {
		out[len(f.stack)-1-i] = v
	}
	return out
}

// StackDepth returns the number of values on the evaluation stack.
func (f Frame) StackDepth() int {
	return len(f.stack)
}

// Locals returns a copy of the locals mapping.
func (f Frame) Locals() map[uint8]uint16 {
	return maps.Clone(f.locals)
}

func (f Frame) push(v uint16) Frame {
	f.stack = append(slices.Clip(f.stack), v)
	return f
}

func (f Frame) pop() (uint16, Frame, error) {
	if len(f.stack) == 0 {
		return 0, Frame{}, zerrors.ErrStackUnderflow
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1:len(f.stack)-1]
	return v, f, nil
}

func (f Frame) peek() (uint16, error) {
	if len(f.stack) == 0 {
		return 0, zerrors.ErrStackUnderflow
	}
	return f.stack[len(f.stack)-1], nil
}

// Local reads local variable index (1..15).
func (f Frame) Local(index uint8) (uint16, error) {
	if index < 1 || index > maxLocals {
		return 0, fmt.Errorf("%w: local %d", zerrors.ErrInvalidLocal, index)
	}
	v, ok := f.locals[index]
	if !ok {
		return 0, fmt.Errorf("%w: local %d not present in frame", zerrors.ErrInvalidLocal, index)
	}
	return v, nil
}

func (f Frame) withLocal(index uint8, value uint16) (Frame, error) {
	if index < 1 || index > maxLocals {
		return Frame{}, fmt.Errorf("%w: local %d", zerrors.ErrInvalidLocal, index)
	}
	if _, ok := f.locals[index]; !ok {
		return Frame{}, fmt.Errorf("%w: local %d not present in frame", zerrors.ErrInvalidLocal, index)
	}
	locals := maps.Clone(f.locals)
	locals[index] = value
	f.locals = locals
	return f, nil
}
