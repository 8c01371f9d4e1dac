// Package interp executes decoded v3 instructions over a story image. The
// interpreter is a value: step produces a successor and leaves the receiver
// observable, which is what makes reverse-step debugging cheap.
package interp

import (
	"fmt"
	"slices"
	"strings"

	"github.com/fictionkit/zvm/log"
	"github.com/fictionkit/zvm/story"
	"github.com/fictionkit/zvm/zerrors"
)

// State is the interpreter's scheduling state.
type State uint8

const (
	// Running means Step may be called.
	Running State = iota
	// WaitingForInput means a read instruction is pending and StepWithInput
	// must supply the next key.
	WaitingForInput
	// Halted means execution has finished; no further steps are possible.
	Halted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case WaitingForInput:
		return "waiting_for_input"
	case Halted:
		return "halted"
	default:
		return "unknown"
	}
}

const rngSeedDefault = 0x2545f491

// pendingRead carries the operands of an executed sread across the
// waiting-for-input gap; the operands were already evaluated (and their
// stack pops taken) when the instruction ran.
type pendingRead struct {
	textAddr  uint32
	parseAddr uint32
}

// Interpreter is the call-frame machine. The zero value is not usable;
// construct with Make.
type Interpreter struct {
	story  story.Story
	pc     uint32
	frames []Frame // bottom first, current frame last; never empty
	state  State
	output string // screen stream, drained by the host
	input  string // keys buffered while waiting for input
	rng    uint32
	read   *pendingRead
}

// Make builds an interpreter over st with a single empty frame and the
// program counter at the header's initial PC.
func Make(st story.Story) Interpreter {
	return Interpreter{
		story:  st,
		pc:     st.InitialPC(),
		frames: []Frame{newFrame(nil, 0, nil)},
		state:  Running,
		rng:    rngSeedDefault,
	}
}

// State returns the scheduling state.
func (in Interpreter) State() State {
	return in.state
}

// ProgramCounter returns the address of the next instruction.
func (in Interpreter) ProgramCounter() uint32 {
	return in.pc
}

// Story returns the current story image.
func (in Interpreter) Story() story.Story {
	return in.story
}

// CurrentFrame returns the active call frame.
func (in Interpreter) CurrentFrame() Frame {
	return in.frames[len(in.frames)-1]
}

// FrameDepth returns the call-stack depth.
func (in Interpreter) FrameDepth() int {
	return len(in.frames)
}

// ScreenOutput returns every character printed so far. The stream is
// opaque to the core; the host decides how to render and drain it.
func (in Interpreter) ScreenOutput() string {
	return in.output
}

// clone prepares a successor the step may mutate freely: the frames slice
// is copied, and the Frame values inside are themselves persistent.
func (in Interpreter) clone() Interpreter {
	in.frames = slices.Clone(in.frames)
	return in
}

// Step decodes and executes one instruction, returning the successor
// interpreter. The receiver remains valid and unchanged.
func (in Interpreter) Step() (Interpreter, error) {
	if in.state != Running {
		return Interpreter{}, fmt.Errorf("%w: state %s", zerrors.ErrNotRunning, in.state)
	}
	instr, err := in.story.DecodeInstruction(in.pc)
	if err != nil {
		return Interpreter{}, err
	}
	log.Trace(log.InterpMonitoring, "step", "pc", fmt.Sprintf("0x%05x", in.pc), "op", instr.Opcode.Name())

	next := in.clone()
	vals, err := next.evalOperands(instr)
	if err != nil {
		return Interpreter{}, err
	}
	if err := next.exec(instr, vals); err != nil {
		return Interpreter{}, err
	}
	return next, nil
}

// StepWithInput supplies one key while the interpreter is waiting for
// input. Keys accumulate until a newline completes the pending read.
func (in Interpreter) StepWithInput(key byte) (Interpreter, error) {
	if in.state != WaitingForInput {
		return Interpreter{}, fmt.Errorf("%w: state %s", zerrors.ErrNotWaitingForInput, in.state)
	}
	next := in.clone()
	if key != '\n' && key != '\r' {
		next.input += string(key)
		return next, nil
	}
	line := strings.ToLower(strings.TrimSpace(next.input))
	next.input = ""
	if err := next.completeRead(line); err != nil {
		return Interpreter{}, err
	}
	return next, nil
}

// evalOperands evaluates the operand list left to right, threading the
// interpreter: a stack operand pops the value its predecessors left on top.
func (in *Interpreter) evalOperands(instr story.Instruction) ([]uint16, error) {
	vals := make([]uint16, len(instr.Operands))
	for i, op := range instr.Operands {
		switch op.Kind {
		case story.LargeConstant, story.SmallConstant:
			vals[i] = uint16(op.Value)
		case story.VariableOperand:
			v, err := in.readVariable(op.Var)
			if err != nil {
				return nil, err
			}
			vals[i] = v
		}
	}
	return vals, nil
}

// readVariable reads a variable reference; reading the stack pops it.
func (in *Interpreter) readVariable(v story.Variable) (uint16, error) {
	top := len(in.frames) - 1
	switch v.Kind {
	case story.StackVar:
		val, frame, err := in.frames[top].pop()
		if err != nil {
			return 0, err
		}
		in.frames[top] = frame
		return val, nil
	case story.LocalVar:
		return in.frames[top].Local(v.Index)
	default:
		return in.story.ReadGlobal(int(v.Index))
	}
}

// writeVariable writes a variable reference; writing the stack pushes.
func (in *Interpreter) writeVariable(v story.Variable, value uint16) error {
	top := len(in.frames) - 1
	switch v.Kind {
	case story.StackVar:
		in.frames[top] = in.frames[top].push(value)
		return nil
	case story.LocalVar:
		frame, err := in.frames[top].withLocal(v.Index, value)
		if err != nil {
			return err
		}
		in.frames[top] = frame
		return nil
	default:
		st, err := in.story.WriteGlobal(int(v.Index), value)
		if err != nil {
			return err
		}
		in.story = st
		return nil
	}
}

func (in *Interpreter) storeResult(instr story.Instruction, value uint16) error {
	if instr.Store == nil {
		return nil
	}
	return in.writeVariable(*instr.Store, value)
}

func (in *Interpreter) advance(instr story.Instruction) {
	in.pc = instr.Next()
}

// applyBranch transfers control after a conditional opcode: when the
// condition matches the branch sense, return false/true or jump; otherwise
// fall through.
func (in *Interpreter) applyBranch(instr story.Instruction, condition bool) error {
	b := instr.Branch
	if b == nil || condition != b.Sense {
		in.advance(instr)
		return nil
	}
	switch b.Dest {
	case story.BranchReturnFalse:
		return in.doReturn(0)
	case story.BranchReturnTrue:
		return in.doReturn(1)
	default:
		in.pc = b.Addr
		return nil
	}
}

// doReturn pops the current frame, restores the caller's program counter
// from the recorded calling-instruction address, and delivers the return
// value to the caller's store target. Returning from the bottom frame
// halts the machine.
func (in *Interpreter) doReturn(value uint16) error {
	top := len(in.frames) - 1
	if top == 0 {
		in.state = Halted
		return nil
	}
	popped := in.frames[top]
	in.frames = in.frames[:top:top]

	caller, err := in.story.DecodeInstruction(popped.caller)
	if err != nil {
		return err
	}
	in.pc = caller.Next()
	if popped.store != nil {
		return in.writeVariable(*popped.store, value)
	}
	return nil
}

// doCall enters the routine named by the first operand. Arguments overlay
// the declared defaults in order; surplus arguments were already evaluated
// (taking their stack pops) and are dropped.
func (in *Interpreter) doCall(instr story.Instruction, vals []uint16) error {
	if len(vals) == 0 {
		return fmt.Errorf("%w: call with no routine operand at 0x%x", zerrors.ErrBadOperandShape, instr.Addr)
	}

	// A large operand was unpacked at decode time; a packed address read
	// out of a variable is unpacked here.
	routine := instr.Operands[0].Value
	if instr.Operands[0].Kind != story.LargeConstant {
		routine = story.UnpackAddress(vals[0])
	}

	// Calling routine 0 stores false and carries on.
	if routine == 0 {
		if err := in.storeResult(instr, 0); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	}

	count, err := in.story.ReadByte(routine)
	if err != nil {
		return err
	}
	if count > maxLocals {
		return fmt.Errorf("%w: routine 0x%x claims %d locals", zerrors.ErrTooManyLocals, routine, count)
	}

	locals := make(map[uint8]uint16, count)
	for i := uint8(1); i <= count; i++ {
		def, err := in.story.ReadWord(routine + 1 + 2*uint32(i-1))
		if err != nil {
			return err
		}
		locals[i] = def
	}
	for i, arg := range vals[1:] {
		if i >= int(count) {
			break
		}
		locals[uint8(i+1)] = arg
	}

	in.frames = append(in.frames, newFrame(locals, instr.Addr, instr.Store))
	in.pc = routine + 1 + 2*uint32(count)
	return nil
}

// varRefFromValue interprets an operand value as a variable number, as
// store, load, pull and the inc/dec family use their first operand.
func varRefFromValue(v uint16) (story.Variable, error) {
	if v > 255 {
		return story.Variable{}, fmt.Errorf("%w: variable number %d", zerrors.ErrBadOperandShape, v)
	}
	return story.DecodeVariable(byte(v)), nil
}

// modifyVariable adds delta to the referenced variable and returns the new
// value. A stack reference adjusts the top in place (pop, add, push).
func (in *Interpreter) modifyVariable(ref story.Variable, delta int) (uint16, error) {
	old, err := in.readVariable(ref)
	if err != nil {
		return 0, err
	}
	updated := uint16(int(old) + delta)
	if err := in.writeVariable(ref, updated); err != nil {
		return 0, err
	}
	return updated, nil
}

// nextRandom advances the deterministic generator and returns a value in
// 1..max. The generator state lives in the interpreter value so stepping
// stays a pure function.
func (in *Interpreter) nextRandom(max uint16) uint16 {
	in.rng = in.rng*1664525 + 1013904223
	return uint16(in.rng>>16&0x7fff)%max + 1
}

// completeRead finishes an executed sread once a full line has arrived:
// the line is written into the text buffer, tokenised against the
// dictionary, and the parse blocks are filled in.
func (in *Interpreter) completeRead(line string) error {
	if in.read == nil {
		return fmt.Errorf("%w: no pending read", zerrors.ErrNotWaitingForInput)
	}
	textAddr, parseAddr := in.read.textAddr, in.read.parseAddr
	in.read = nil

	maxChars, err := in.story.ReadByte(textAddr)
	if err != nil {
		return err
	}
	if int(maxChars) > 0 && len(line) > int(maxChars)-1 {
		line = line[:maxChars-1]
	}
	st := in.story
	for i := 0; i < len(line); i++ {
		if st, err = st.WriteByte(textAddr+1+uint32(i), line[i]); err != nil {
			return err
		}
	}
	if st, err = st.WriteByte(textAddr+1+uint32(len(line)), 0); err != nil {
		return err
	}

	dict, err := st.Dictionary()
	if err != nil {
		return err
	}
	tokens := dict.Tokenize(line)

	maxTokens, err := st.ReadByte(parseAddr)
	if err != nil {
		return err
	}
	if len(tokens) > int(maxTokens) {
		tokens = tokens[:maxTokens]
	}
	if st, err = st.WriteByte(parseAddr+1, byte(len(tokens))); err != nil {
		return err
	}
	block := parseAddr + 2
	for _, tok := range tokens {
		entry, err := st.LookupWord(tok.Text)
		if err != nil {
			return err
		}
		if st, err = st.WriteWord(block, uint16(entry)); err != nil {
			return err
		}
		if st, err = st.WriteByte(block+2, byte(len(tok.Text))); err != nil {
			return err
		}
		if st, err = st.WriteByte(block+3, byte(tok.Position)); err != nil {
			return err
		}
		block += 4
	}
	in.story = st

	instr, err := in.story.DecodeInstruction(in.pc)
	if err != nil {
		return err
	}
	in.state = Running
	in.advance(instr)
	return nil
}
