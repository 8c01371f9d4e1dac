package story

import (
	"slices"
)

// Successors returns the addresses control can transfer to after instr
// within the same routine: the next instruction when the opcode continues,
// plus the branch or jump target when one exists.
func (s Story) Successors(instr Instruction) []uint32 {
	var succ []uint32
	if !instr.Opcode.Info().Stops {
		succ = append(succ, instr.Next())
	}
	if instr.Branch != nil && instr.Branch.Dest == BranchAddress {
		succ = append(succ, instr.Branch.Addr)
	}
	if instr.Opcode == JUMP {
		succ = append(succ, instr.Operands[0].Value)
	}
	return succ
}

// Reachable decodes the transitive closure of Successors starting at addr
// and returns the instructions in address order. Decoding stops at the
// first address that fails to decode; the instructions found so far are
// returned with the error.
func (s Story) Reachable(addr uint32) ([]Instruction, error) {
	seen := make(map[uint32]Instruction)
	work := []uint32{addr}
	for len(work) > 0 {
		a := work[len(work)-1]
		work = work[:len(work)-1]
		if _, ok := seen[a]; ok {
			continue
		}
		instr, err := s.DecodeInstruction(a)
		if err != nil {
			return sortedInstructions(seen), err
		}
		seen[a] = instr
		work = append(work, s.Successors(instr)...)
	}
	return sortedInstructions(seen), nil
}

func sortedInstructions(seen map[uint32]Instruction) []Instruction {
	out := make([]Instruction, 0, len(seen))
	for _, instr := range seen {
		out = append(out, instr)
	}
	slices.SortFunc(out, func(a, b Instruction) int {
		return int(a.Addr) - int(b.Addr)
	})
	return out
}

// callTargets extracts the already-unpacked routine addresses of call
// instructions whose routine operand was a large constant.
func callTargets(instrs []Instruction) []uint32 {
	var targets []uint32
	for _, instr := range instrs {
		if instr.Opcode.Info().Call && len(instr.Operands) > 0 && instr.Operands[0].Kind == LargeConstant {
			targets = append(targets, instr.Operands[0].Value)
		}
	}
	return targets
}

// RoutineBody returns the address of the first instruction of the routine
// at addr, past the locals count and default words, along with the count.
func (s Story) RoutineBody(addr uint32) (uint32, int, error) {
	count, err := s.mem.ReadByte(addr)
	if err != nil {
		return 0, 0, err
	}
	return addr + 1 + 2*uint32(count), int(count), nil
}

// AllRoutines computes the fixed point of call-target extraction starting
// from the initial program counter, returning the routine addresses in
// ascending order. Routines whose bodies fail to decode are kept (the
// image may interleave data the analysis cannot prove unreachable); only
// the call targets decoded before the failing address are followed.
func (s Story) AllRoutines() ([]uint32, error) {
	seen := make(map[uint32]bool)
	initial, err := s.Reachable(s.InitialPC())
	if err != nil {
		return nil, err
	}
	work := callTargets(initial)
	for len(work) > 0 {
		routine := work[len(work)-1]
		work = work[:len(work)-1]
		if seen[routine] {
			continue
		}
		seen[routine] = true
		body, _, err := s.RoutineBody(routine)
		if err != nil {
			continue
		}
		instrs, _ := s.Reachable(body)
		work = append(work, callTargets(instrs)...)
	}

	routines := make([]uint32, 0, len(seen))
	for addr := range seen {
		routines = append(routines, addr)
	}
	slices.Sort(routines)
	return routines, nil
}
