package interp

import (
	"fmt"

	"github.com/fictionkit/zvm/bits"
	"github.com/fictionkit/zvm/story"
	"github.com/fictionkit/zvm/zerrors"
)

func operandCount(instr story.Instruction, vals []uint16, want int) error {
	if len(vals) != want {
		return fmt.Errorf("%w: %s at 0x%x given %d operands, wants %d",
			zerrors.ErrBadOperandShape, instr.Opcode.Name(), instr.Addr, len(vals), want)
	}
	return nil
}

// exec dispatches one decoded instruction with its evaluated operands. The
// opcode metadata already determined store, branch and text decoding; this
// switch supplies the semantics.
func (in *Interpreter) exec(instr story.Instruction, vals []uint16) error {
	switch instr.Opcode {

	// Comparisons and control.
	case story.JE:
		if len(vals) < 2 || len(vals) > 4 {
			return fmt.Errorf("%w: je at 0x%x given %d operands", zerrors.ErrBadOperandShape, instr.Addr, len(vals))
		}
		cond := false
		for _, v := range vals[1:] {
			if v == vals[0] {
				cond = true
				break
			}
		}
		return in.applyBranch(instr, cond)
	case story.JL:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		return in.applyBranch(instr, int16(vals[0]) < int16(vals[1]))
	case story.JG:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		return in.applyBranch(instr, int16(vals[0]) > int16(vals[1]))
	case story.JZ:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		return in.applyBranch(instr, vals[0] == 0)
	case story.JIN:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		parent, err := in.story.Parent(int(vals[0]))
		if err != nil {
			return err
		}
		return in.applyBranch(instr, parent == int(vals[1]))
	case story.TEST:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		return in.applyBranch(instr, vals[0]&vals[1] == vals[1])
	case story.TEST_ATTR:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		set, err := in.story.TestAttribute(int(vals[0]), int(vals[1]))
		if err != nil {
			return err
		}
		return in.applyBranch(instr, set)
	case story.JUMP:
		in.pc = instr.Operands[0].Value
		return nil

	// Arithmetic and logic, all on canonical signed 16-bit values.
	case story.ADD:
		return in.arith(instr, vals, func(a, b int) (int, error) { return a + b, nil })
	case story.SUB:
		return in.arith(instr, vals, func(a, b int) (int, error) { return a - b, nil })
	case story.MUL:
		return in.arith(instr, vals, func(a, b int) (int, error) { return a * b, nil })
	case story.DIV:
		return in.arith(instr, vals, func(a, b int) (int, error) {
			if b == 0 {
				return 0, fmt.Errorf("%w: div at 0x%x", zerrors.ErrDivideByZero, instr.Addr)
			}
			return a / b, nil
		})
	case story.MOD:
		return in.arith(instr, vals, func(a, b int) (int, error) {
			if b == 0 {
				return 0, fmt.Errorf("%w: mod at 0x%x", zerrors.ErrDivideByZero, instr.Addr)
			}
			return a % b, nil
		})
	case story.OR:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		if err := in.storeResult(instr, vals[0]|vals[1]); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.AND:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		if err := in.storeResult(instr, vals[0]&vals[1]); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.NOT:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		if err := in.storeResult(instr, ^vals[0]); err != nil {
			return err
		}
		in.advance(instr)
		return nil

	// Variables and memory.
	case story.STORE:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		ref, err := varRefFromValue(vals[0])
		if err != nil {
			return err
		}
		if err := in.writeVariable(ref, vals[1]); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.LOAD:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		ref, err := varRefFromValue(vals[0])
		if err != nil {
			return err
		}
		var value uint16
		if ref.Kind == story.StackVar {
			// Indirect loads inspect the stack top without consuming it.
			if value, err = in.CurrentFrame().peek(); err != nil {
				return err
			}
		} else if value, err = in.readVariable(ref); err != nil {
			return err
		}
		if err := in.storeResult(instr, value); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.LOADW:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		w, err := in.story.ReadWord(uint32(vals[0]) + 2*uint32(vals[1]))
		if err != nil {
			return err
		}
		if err := in.storeResult(instr, w); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.LOADB:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		b, err := in.story.ReadByte(uint32(vals[0]) + uint32(vals[1]))
		if err != nil {
			return err
		}
		if err := in.storeResult(instr, uint16(b)); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.STOREW:
		if err := operandCount(instr, vals, 3); err != nil {
			return err
		}
		st, err := in.story.WriteWord(uint32(vals[0])+2*uint32(vals[1]), vals[2])
		if err != nil {
			return err
		}
		in.story = st
		in.advance(instr)
		return nil
	case story.STOREB:
		if err := operandCount(instr, vals, 3); err != nil {
			return err
		}
		st, err := in.story.WriteByte(uint32(vals[0])+uint32(vals[1]), byte(vals[2]))
		if err != nil {
			return err
		}
		in.story = st
		in.advance(instr)
		return nil
	case story.PUSH:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		top := len(in.frames) - 1
		in.frames[top] = in.frames[top].push(vals[0])
		in.advance(instr)
		return nil
	case story.PULL:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		ref, err := varRefFromValue(vals[0])
		if err != nil {
			return err
		}
		value, err := in.readVariable(story.Variable{Kind: story.StackVar})
		if err != nil {
			return err
		}
		if err := in.writeVariable(ref, value); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.POP:
		if _, err := in.readVariable(story.Variable{Kind: story.StackVar}); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.INC:
		return in.incDec(instr, vals, 1)
	case story.DEC:
		return in.incDec(instr, vals, -1)
	case story.INC_CHK:
		return in.incDecChk(instr, vals, 1, func(v, limit int16) bool { return v > limit })
	case story.DEC_CHK:
		return in.incDecChk(instr, vals, -1, func(v, limit int16) bool { return v < limit })

	// Objects.
	case story.GET_PARENT:
		return in.objectLink(instr, vals, in.story.Parent, false)
	case story.GET_SIBLING:
		return in.objectLink(instr, vals, in.story.Sibling, true)
	case story.GET_CHILD:
		return in.objectLink(instr, vals, in.story.Child, true)
	case story.GET_PROP:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		v, err := in.story.Property(int(vals[0]), int(vals[1]))
		if err != nil {
			return err
		}
		if err := in.storeResult(instr, v); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.GET_PROP_ADDR:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		addr, err := in.story.PropertyAddr(int(vals[0]), int(vals[1]))
		if err != nil {
			return err
		}
		if err := in.storeResult(instr, uint16(addr)); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.GET_NEXT_PROP:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		next, err := in.story.NextProperty(int(vals[0]), int(vals[1]))
		if err != nil {
			return err
		}
		if err := in.storeResult(instr, uint16(next)); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.GET_PROP_LEN:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		length, err := in.story.PropertyLenAt(uint32(vals[0]))
		if err != nil {
			return err
		}
		if err := in.storeResult(instr, uint16(length)); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.PUT_PROP:
		if err := operandCount(instr, vals, 3); err != nil {
			return err
		}
		st, err := in.story.PutProperty(int(vals[0]), int(vals[1]), vals[2])
		if err != nil {
			return err
		}
		in.story = st
		in.advance(instr)
		return nil
	case story.SET_ATTR:
		return in.setAttr(instr, vals, true)
	case story.CLEAR_ATTR:
		return in.setAttr(instr, vals, false)
	case story.INSERT_OBJ:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		st, err := in.story.InsertObject(int(vals[0]), int(vals[1]))
		if err != nil {
			return err
		}
		in.story = st
		in.advance(instr)
		return nil
	case story.REMOVE_OBJ:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		st, err := in.story.RemoveObject(int(vals[0]))
		if err != nil {
			return err
		}
		in.story = st
		in.advance(instr)
		return nil

	// Printing.
	case story.PRINT:
		in.output += instr.Text
		in.advance(instr)
		return nil
	case story.PRINT_RET:
		in.output += instr.Text + "\n"
		return in.doReturn(1)
	case story.PRINT_ADDR:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		return in.printAt(instr, uint32(vals[0]))
	case story.PRINT_PADDR:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		return in.printAt(instr, story.UnpackAddress(vals[0]))
	case story.PRINT_OBJ:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		name, err := in.story.ObjectName(int(vals[0]))
		if err != nil {
			return err
		}
		in.output += name
		in.advance(instr)
		return nil
	case story.PRINT_CHAR:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		in.output += story.ZsciiChar(vals[0])
		in.advance(instr)
		return nil
	case story.PRINT_NUM:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		in.output += fmt.Sprintf("%d", int16(vals[0]))
		in.advance(instr)
		return nil
	case story.NEW_LINE:
		in.output += "\n"
		in.advance(instr)
		return nil

	// Calling and returning.
	case story.CALL:
		return in.doCall(instr, vals)
	case story.RET:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		return in.doReturn(vals[0])
	case story.RTRUE:
		return in.doReturn(1)
	case story.RFALSE:
		return in.doReturn(0)
	case story.RET_POPPED:
		value, err := in.readVariable(story.Variable{Kind: story.StackVar})
		if err != nil {
			return err
		}
		return in.doReturn(value)

	// Input.
	case story.SREAD:
		if err := operandCount(instr, vals, 2); err != nil {
			return err
		}
		in.read = &pendingRead{textAddr: uint32(vals[0]), parseAddr: uint32(vals[1])}
		in.state = WaitingForInput
		return nil

	// Miscellany.
	case story.RANDOM:
		if err := operandCount(instr, vals, 1); err != nil {
			return err
		}
		r := int16(vals[0])
		var result uint16
		switch {
		case r > 0:
			result = in.nextRandom(vals[0])
		case r < 0:
			in.rng = uint32(-r)
		default:
			in.rng = rngSeedDefault
		}
		if err := in.storeResult(instr, result); err != nil {
			return err
		}
		in.advance(instr)
		return nil
	case story.QUIT:
		in.state = Halted
		return nil
	case story.NOP, story.SHOW_STATUS, story.SPLIT_WINDOW, story.SET_WINDOW,
		story.OUTPUT_STREAM, story.INPUT_STREAM, story.SOUND_EFFECT:
		// Screen and stream control belong to the host; the core treats
		// them as no-ops.
		in.advance(instr)
		return nil
	case story.VERIFY, story.PIRACY:
		return in.applyBranch(instr, true)

	default:
		return fmt.Errorf("%w: %s at 0x%x", zerrors.ErrIllegalInstruction, instr.Opcode.Name(), instr.Addr)
	}
}

func (in *Interpreter) arith(instr story.Instruction, vals []uint16, f func(a, b int) (int, error)) error {
	if err := operandCount(instr, vals, 2); err != nil {
		return err
	}
	a := int(bits.SignedWord(int(vals[0])))
	b := int(bits.SignedWord(int(vals[1])))
	r, err := f(a, b)
	if err != nil {
		return err
	}
	if err := in.storeResult(instr, bits.UnsignedWord(r)); err != nil {
		return err
	}
	in.advance(instr)
	return nil
}

func (in *Interpreter) incDec(instr story.Instruction, vals []uint16, delta int) error {
	if err := operandCount(instr, vals, 1); err != nil {
		return err
	}
	ref, err := varRefFromValue(vals[0])
	if err != nil {
		return err
	}
	if _, err := in.modifyVariable(ref, delta); err != nil {
		return err
	}
	in.advance(instr)
	return nil
}

func (in *Interpreter) incDecChk(instr story.Instruction, vals []uint16, delta int, cmp func(v, limit int16) bool) error {
	if err := operandCount(instr, vals, 2); err != nil {
		return err
	}
	ref, err := varRefFromValue(vals[0])
	if err != nil {
		return err
	}
	updated, err := in.modifyVariable(ref, delta)
	if err != nil {
		return err
	}
	return in.applyBranch(instr, cmp(int16(updated), int16(vals[1])))
}

func (in *Interpreter) setAttr(instr story.Instruction, vals []uint16, on bool) error {
	if err := operandCount(instr, vals, 2); err != nil {
		return err
	}
	st, err := in.story.SetAttribute(int(vals[0]), int(vals[1]), on)
	if err != nil {
		return err
	}
	in.story = st
	in.advance(instr)
	return nil
}

// objectLink handles get_parent, get_sibling and get_child: store the link,
// and for the latter two branch on it being non-null.
func (in *Interpreter) objectLink(instr story.Instruction, vals []uint16, link func(int) (int, error), branches bool) error {
	if err := operandCount(instr, vals, 1); err != nil {
		return err
	}
	target, err := link(int(vals[0]))
	if err != nil {
		return err
	}
	if err := in.storeResult(instr, uint16(target)); err != nil {
		return err
	}
	if branches {
		return in.applyBranch(instr, target != story.NullObject)
	}
	in.advance(instr)
	return nil
}

func (in *Interpreter) printAt(instr story.Instruction, addr uint32) error {
	text, _, err := in.story.DecodeString(addr)
	if err != nil {
		return err
	}
	in.output += text
	in.advance(instr)
	return nil
}
