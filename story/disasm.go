package story

import (
	"fmt"
	"strings"
)

// DisplayInstruction renders one decoded instruction as assembler-style
// text: address, name, operands, then the store target, branch spec and
// inline text when present.
func (s Story) DisplayInstruction(instr Instruction) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%05x: %s", instr.Addr, instr.Opcode.Name())

	for _, op := range instr.Operands {
		switch op.Kind {
		case LargeConstant:
			fmt.Fprintf(&sb, " 0x%04x", op.Value)
		case SmallConstant:
			fmt.Fprintf(&sb, " #%d", op.Value)
		case VariableOperand:
			fmt.Fprintf(&sb, " %s", op.Var)
		}
	}

	if instr.Store != nil {
		fmt.Fprintf(&sb, " -> %s", instr.Store)
	}

	if instr.Branch != nil {
		sense := "?"
		if !instr.Branch.Sense {
			sense = "?~"
		}
		switch instr.Branch.Dest {
		case BranchReturnFalse:
			fmt.Fprintf(&sb, " %srfalse", sense)
		case BranchReturnTrue:
			fmt.Fprintf(&sb, " %srtrue", sense)
		case BranchAddress:
			fmt.Fprintf(&sb, " %s0x%05x", sense, instr.Branch.Addr)
		}
	}

	if instr.Text != "" {
		fmt.Fprintf(&sb, " %q", instr.Text)
	}

	return sb.String()
}

// DisplayRoutine renders the routine header at addr followed by every
// reachable instruction of its body.
func (s Story) DisplayRoutine(addr uint32) (string, error) {
	body, count, err := s.RoutineBody(addr)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%05x: routine, %d locals\n", addr, count)
	instrs, err := s.Reachable(body)
	for _, instr := range instrs {
		sb.WriteString(s.DisplayInstruction(instr))
		sb.WriteByte('\n')
	}
	return sb.String(), err
}
