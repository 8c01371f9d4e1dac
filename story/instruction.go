package story

import (
	"fmt"

	"github.com/fictionkit/zvm/bits"
	"github.com/fictionkit/zvm/zerrors"
)

// Operand type fields.
const (
	operandLarge    = 0x0
	operandSmall    = 0x1
	operandVariable = 0x2
	operandOmitted  = 0x3
)

// OperandKind tags a decoded operand.
type OperandKind uint8

const (
	LargeConstant OperandKind = iota
	SmallConstant
	VariableOperand
)

// VarKind tags a variable reference.
type VarKind uint8

const (
	StackVar VarKind = iota
	LocalVar
	GlobalVar
)

// Variable names a store destination or variable operand: the stack top, a
// local 1..15, or a global 16..255.
type Variable struct {
	Kind  VarKind
	Index uint8
}

func (v Variable) String() string {
	switch v.Kind {
	case StackVar:
		return "stack"
	case LocalVar:
		return fmt.Sprintf("local%d", v.Index)
	default:
		return fmt.Sprintf("g%d", v.Index)
	}
}

// DecodeVariable maps a variable byte: 0 is the stack, 1..15 locals,
// 16..255 globals.
func DecodeVariable(b byte) Variable {
	switch {
	case b == 0:
		return Variable{Kind: StackVar}
	case b <= 15:
		return Variable{Kind: LocalVar, Index: b}
	default:
		return Variable{Kind: GlobalVar, Index: b}
	}
}

// Operand is one decoded operand. Value holds the raw constant for large
// and small operands; for munged jump and call operands it holds the
// absolute byte address, which may exceed 16 bits. Var is set for variable
// operands.
type Operand struct {
	Kind  OperandKind
	Value uint32
	Var   Variable
}

// BranchDest tags where a taken branch transfers to.
type BranchDest uint8

const (
	BranchAddress BranchDest = iota
	BranchReturnFalse
	BranchReturnTrue
)

// Branch is a decoded branch spec: take the transfer when the condition
// equals Sense.
type Branch struct {
	Sense bool
	Dest  BranchDest
	Addr  uint32
}

// Instruction is a fully decoded instruction record.
type Instruction struct {
	Opcode   Opcode
	Addr     uint32
	Length   uint32
	Operands []Operand
	Store    *Variable
	Branch   *Branch
	Text     string
}

// Next returns the address immediately after the instruction.
func (i Instruction) Next() uint32 {
	return i.Addr + i.Length
}

// DecodeInstruction decodes the instruction at addr: form, operand count,
// operand types and values, store target, branch spec and inline text.
func (s Story) DecodeInstruction(addr uint32) (Instruction, error) {
	first, err := s.mem.ReadByte(addr)
	if err != nil {
		return Instruction{}, err
	}

	instr := Instruction{Addr: addr}
	cursor := addr + 1

	var types []uint8
	switch bits.FetchBits(uint16(first), 7, 2) {
	case 0b11: // variable form
		if bits.FetchBit(uint16(first), 5) {
			instr.Opcode = varTable[first&0x1F]
		} else {
			instr.Opcode = op2Table[first&0x1F]
		}
		typeByte, err := s.mem.ReadByte(cursor)
		if err != nil {
			return Instruction{}, err
		}
		cursor++
		for shift := 6; shift >= 0; shift -= 2 {
			t := typeByte >> uint(shift) & 0x3
			if t == operandOmitted {
				break
			}
			types = append(types, t)
		}
	case 0b10: // short form
		t := uint8(bits.FetchBits(uint16(first), 5, 2))
		if t == operandOmitted {
			instr.Opcode = op0Table[first&0x0F]
		} else {
			instr.Opcode = op1Table[first&0x0F]
			types = []uint8{t}
		}
	default: // long form
		instr.Opcode = op2Table[first&0x1F]
		types = []uint8{
			operandSmall + uint8(bits.FetchBits(uint16(first), 6, 1)),
			operandSmall + uint8(bits.FetchBits(uint16(first), 5, 1)),
		}
	}

	if instr.Opcode == ILLEGAL {
		return Instruction{}, fmt.Errorf("%w: opcode byte 0x%02x at 0x%x", zerrors.ErrIllegalInstruction, first, addr)
	}

	for _, t := range types {
		var op Operand
		switch t {
		case operandLarge:
			w, err := s.mem.ReadWord(cursor)
			if err != nil {
				return Instruction{}, err
			}
			cursor += 2
			op = Operand{Kind: LargeConstant, Value: uint32(w)}
		case operandSmall:
			b, err := s.mem.ReadByte(cursor)
			if err != nil {
				return Instruction{}, err
			}
			cursor++
			op = Operand{Kind: SmallConstant, Value: uint32(b)}
		case operandVariable:
			b, err := s.mem.ReadByte(cursor)
			if err != nil {
				return Instruction{}, err
			}
			cursor++
			op = Operand{Kind: VariableOperand, Var: DecodeVariable(b)}
		}
		instr.Operands = append(instr.Operands, op)
	}

	info := instr.Opcode.Info()
	if info.Store {
		b, err := s.mem.ReadByte(cursor)
		if err != nil {
			return Instruction{}, err
		}
		cursor++
		v := DecodeVariable(b)
		instr.Store = &v
	}

	var branchOffset int32
	if info.Branch {
		b1, err := s.mem.ReadByte(cursor)
		if err != nil {
			return Instruction{}, err
		}
		cursor++
		branch := Branch{Sense: b1&0x80 != 0}
		if b1&0x40 != 0 {
			branchOffset = int32(b1 & 0x3F)
		} else {
			b2, err := s.mem.ReadByte(cursor)
			if err != nil {
				return Instruction{}, err
			}
			cursor++
			raw := int32(b1&0x3F)<<8 | int32(b2)
			if raw >= 8192 {
				raw -= 16384
			}
			branchOffset = raw
		}
		switch branchOffset {
		case 0:
			branch.Dest = BranchReturnFalse
		case 1:
			branch.Dest = BranchReturnTrue
		default:
			branch.Dest = BranchAddress
		}
		instr.Branch = &branch
	}

	if info.Text {
		text, textLen, err := s.DecodeString(cursor)
		if err != nil {
			return Instruction{}, err
		}
		cursor += textLen
		instr.Text = text
	}

	instr.Length = cursor - addr

	if instr.Branch != nil && instr.Branch.Dest == BranchAddress {
		instr.Branch.Addr = uint32(int32(instr.Next()) + branchOffset - 2)
	}

	// Operand munging: jump's single operand becomes an absolute target,
	// and a call's large routine operand is unpacked.
	if instr.Opcode == JUMP {
		if len(instr.Operands) != 1 || instr.Operands[0].Kind != LargeConstant {
			return Instruction{}, fmt.Errorf("%w: jump at 0x%x needs one large operand", zerrors.ErrBadOperandShape, addr)
		}
		offset := bits.SignedWord(int(instr.Operands[0].Value))
		instr.Operands[0].Value = uint32(int32(instr.Next()) + int32(offset) - 2)
	}
	if info.Call && len(instr.Operands) > 0 && instr.Operands[0].Kind == LargeConstant {
		instr.Operands[0].Value = UnpackAddress(uint16(instr.Operands[0].Value))
	}

	return instr, nil
}
