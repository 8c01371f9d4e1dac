package story

import (
	"testing"
)

func TestSuccessors(t *testing.T) {
	s := testStory(t, func(img []byte) {
		copy(img[0x1000:], []byte{
			0x90, 0x00, 0xC5, // 0x1000: jz #0 ?0x1006
			0xBA, // 0x1003: quit
		})
		copy(img[0x1010:], []byte{0x8C, 0xFF, 0xEB}) // 0x1010: jump 0x0FFC
	})

	jz, err := s.DecodeInstruction(0x1000)
	if err != nil {
		t.Fatalf("decode jz: %v", err)
	}
	succ := s.Successors(jz)
	if len(succ) != 2 || succ[0] != 0x1003 || succ[1] != 0x1006 {
		t.Errorf("jz successors = %#v, want [0x1003 0x1006]", succ)
	}

	quit, err := s.DecodeInstruction(0x1003)
	if err != nil {
		t.Fatalf("decode quit: %v", err)
	}
	if succ := s.Successors(quit); len(succ) != 0 {
		t.Errorf("quit successors = %#v, want none", succ)
	}

	jump, err := s.DecodeInstruction(0x1010)
	if err != nil {
		t.Fatalf("decode jump: %v", err)
	}
	succ = s.Successors(jump)
	if len(succ) != 1 || succ[0] != 0x0FFC {
		t.Errorf("jump successors = %#v, want [0x0FFC]", succ)
	}
}

func TestReachable(t *testing.T) {
	s := testStory(t, func(img []byte) {
		copy(img[0x1000:], []byte{
			0x90, 0x00, 0xC5, // 0x1000: jz #0 ?0x1006
			0xBA,             // 0x1003: quit
			0x00, 0x00,       // 0x1004: padding, never decoded
			0x8C, 0xFF, 0xFC, // 0x1006: jump 0x1003
		})
	})

	instrs, err := s.Reachable(0x1000)
	if err != nil {
		t.Fatalf("Reachable: %v", err)
	}
	want := []uint32{0x1000, 0x1003, 0x1006}
	if len(instrs) != len(want) {
		t.Fatalf("got %d instructions, want %d", len(instrs), len(want))
	}
	for i, instr := range instrs {
		if instr.Addr != want[i] {
			t.Errorf("instrs[%d].Addr = 0x%x, want 0x%x", i, instr.Addr, want[i])
		}
	}
}

func TestRoutineBody(t *testing.T) {
	s := testStory(t, func(img []byte) {
		img[0x0500] = 2
		putWord(img, 0x0501, 7)
		putWord(img, 0x0503, 9)
	})
	body, count, err := s.RoutineBody(0x0500)
	if err != nil {
		t.Fatalf("RoutineBody: %v", err)
	}
	if body != 0x0505 {
		t.Errorf("body = 0x%x, want 0x0505", body)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}

func TestAllRoutines(t *testing.T) {
	s := testStory(t, func(img []byte) {
		// Entry: call 0x0500, then quit.
		copy(img[0x0400:], []byte{0xE0, 0x3F, 0x02, 0x80, 0x00, 0xBA})
		// Routine at 0x0500: one local, then call 0x0520, then rtrue.
		img[0x0500] = 1
		copy(img[0x0503:], []byte{0xE0, 0x3F, 0x02, 0x90, 0x00, 0xB0})
		// Routine at 0x0520: no locals, rtrue.
		img[0x0520] = 0
		img[0x0521] = 0xB0
	})

	routines, err := s.AllRoutines()
	if err != nil {
		t.Fatalf("AllRoutines: %v", err)
	}
	want := []uint32{0x0500, 0x0520}
	if len(routines) != len(want) {
		t.Fatalf("got %v, want %v", routines, want)
	}
	for i := range want {
		if routines[i] != want[i] {
			t.Errorf("routines[%d] = 0x%x, want 0x%x", i, routines[i], want[i])
		}
	}
}
