package interp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fictionkit/zvm/zerrors"
)

// runOne boots with code at the entry point and steps n times.
func runOne(t *testing.T, code []byte, n int) Interpreter {
	t.Helper()
	in := boot(t, func(img []byte) {
		copy(img[fixtureEntry:], code)
	})
	return stepN(t, in, n)
}

func TestArithmetic(t *testing.T) {
	testCases := []struct {
		name   string
		opcode byte
		a, b   uint16
		want   uint16
	}{
		{"add", 0x14, 3, 7, 10},
		{"add wraps", 0x14, 0x7FFF, 1, 0x8000},
		{"sub", 0x15, 3, 7, 0xFFFC}, // -4
		{"mul", 0x16, 0xFFFE, 3, 0xFFFA}, // -2 * 3 = -6
		{"div", 0x17, 0xFFF8, 3, 0xFFFE}, // -8 / 3 = -2 (truncated)
		{"mod", 0x18, 0xFFF8, 3, 0xFFFE}, // -8 mod 3 = -2
		{"or", 0x08, 0x00F0, 0x0F00, 0x0FF0},
		{"and", 0x09, 0x0FF0, 0x00FF, 0x00F0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Variable form of the 2OP with two large operands.
			code := []byte{
				0xC0 | tc.opcode, 0x0F,
				byte(tc.a >> 8), byte(tc.a),
				byte(tc.b >> 8), byte(tc.b),
				0x00, // -> stack
			}
			in := runOne(t, code, 1)
			assert.Equal(t, []uint16{tc.want}, in.CurrentFrame().Stack())
		})
	}
}

func TestDivideByZero(t *testing.T) {
	for _, opcode := range []byte{0x17, 0x18} {
		code := []byte{opcode, 0x06, 0x00, 0x00}
		in := boot(t, func(img []byte) {
			copy(img[fixtureEntry:], code)
		})
		_, err := in.Step()
		assert.ErrorIs(t, err, zerrors.ErrDivideByZero)
		// The failed step left the receiver untouched.
		assert.Equal(t, uint32(fixtureEntry), in.ProgramCounter())
		assert.Equal(t, Running, in.State())
	}
}

func TestNot(t *testing.T) {
	// not 0x00FF -> stack (short form, large operand).
	in := runOne(t, []byte{0x8F, 0x00, 0xFF, 0x00}, 1)
	assert.Equal(t, []uint16{0xFF00}, in.CurrentFrame().Stack())
}

func TestStackPopOrder(t *testing.T) {
	// push 1; push 2; sub stack stack -> stack. The first listed operand
	// pops first, so the subtraction is 2 - 1.
	code := []byte{
		0xE8, 0x7F, 0x01, // push #1
		0xE8, 0x7F, 0x02, // push #2
		0xD5, 0xAF, 0x00, 0x00, 0x00, // sub stack stack -> stack
	}
	in := runOne(t, code, 3)
	assert.Equal(t, []uint16{1}, in.CurrentFrame().Stack())
}

func TestPushPullPop(t *testing.T) {
	code := []byte{
		0xE8, 0x7F, 0x2A, // push #42
		0xE9, 0x7F, 0x10, // pull -> global 16
		0xE8, 0x7F, 0x07, // push #7
		0xB9, // pop
	}
	in := runOne(t, code, 4)
	assert.Empty(t, in.CurrentFrame().Stack())
	g, err := in.Story().ReadGlobal(16)
	require.NoError(t, err)
	assert.Equal(t, uint16(42), g)
}

func TestStoreAndLoadGlobals(t *testing.T) {
	code := []byte{
		0x0D, 0x11, 0x63, // store g17 #99 (long form, two small constants)
		0x8E, 0x00, 0x11, 0x00, // load g17 -> stack (large operand 0x11)
	}
	in := runOne(t, code, 2)
	assert.Equal(t, []uint16{99}, in.CurrentFrame().Stack())
	g, err := in.Story().ReadGlobal(17)
	require.NoError(t, err)
	assert.Equal(t, uint16(99), g)
}

func TestIncChkBranch(t *testing.T) {
	// store g16 #5; inc_chk g16 #5 ?taken -> branches once 6 > 5.
	code := []byte{
		0x0D, 0x10, 0x05, // store g16 #5
		0x05, 0x10, 0x05, 0xC5, // inc_chk g16 #5 ?+5
	}
	in := runOne(t, code, 2)
	// inc_chk ends at 0x0407; target 0x0407 + 5 - 2.
	assert.Equal(t, uint32(0x040A), in.ProgramCounter())
	g, err := in.Story().ReadGlobal(16)
	require.NoError(t, err)
	assert.Equal(t, uint16(6), g)
}

func TestDecChkNoBranch(t *testing.T) {
	code := []byte{
		0x0D, 0x10, 0x05, // store g16 #5
		0x04, 0x10, 0x02, 0xC5, // dec_chk g16 #2: 4 < 2 is false
	}
	in := runOne(t, code, 2)
	assert.Equal(t, uint32(0x0407), in.ProgramCounter())
}

func TestLoadWAndLoadB(t *testing.T) {
	// The table address exceeds a small constant, so use the variable
	// form with a large first operand.
	code := []byte{
		0xCF, 0x1F, 0x03, 0x00, 0x01, 0x00, // loadw 0x0300 1 -> stack
		0xD0, 0x1F, 0x03, 0x02, 0x01, 0x00, // loadb 0x0302 1 -> stack
	}
	in := boot(t, func(img []byte) {
		putWord(img, 0x0302, 0x1234)
		copy(img[fixtureEntry:], code)
	})
	got := stepN(t, in, 2)
	assert.Equal(t, []uint16{0x34, 0x1234}, got.CurrentFrame().Stack())
}

func TestJeMultiOperand(t *testing.T) {
	// je #7 #3 #7 ?+5: true because the first operand equals the third.
	code := []byte{0xC1, 0x57, 0x07, 0x03, 0x07, 0xC5}
	in := runOne(t, code, 1)
	// Instruction length 6, so the branch target is 0x0406 + 5 - 2.
	assert.Equal(t, uint32(0x0409), in.ProgramCounter())
}

func TestJeSingleOperandRejected(t *testing.T) {
	in := boot(t, func(img []byte) {
		copy(img[fixtureEntry:], []byte{0xC1, 0x7F, 0x07, 0xC5})
	})
	_, err := in.Step()
	assert.ErrorIs(t, err, zerrors.ErrBadOperandShape)
}

func TestObjectOpcodes(t *testing.T) {
	// get_child #1 -> stack, branching when a child exists.
	in := runOne(t, []byte{0x92, 0x01, 0x00, 0xC5}, 1)
	assert.Equal(t, []uint16{2}, in.CurrentFrame().Stack())
	// Length 4: branch lands at 0x0404 + 5 - 2.
	assert.Equal(t, uint32(0x0407), in.ProgramCounter())

	// get_parent #2 -> stack.
	in = runOne(t, []byte{0x93, 0x02, 0x00}, 1)
	assert.Equal(t, []uint16{1}, in.CurrentFrame().Stack())

	// jin #2 #1 ?+5: object 2 is inside object 1.
	in = runOne(t, []byte{0x06, 0x02, 0x01, 0xC5}, 1)
	assert.Equal(t, uint32(0x0407), in.ProgramCounter())

	// set_attr #2 #4 then test_attr #2 #4 ?+5.
	code := []byte{
		0x0B, 0x02, 0x04, // set_attr
		0x0A, 0x02, 0x04, 0xC5, // test_attr ?+5
	}
	in = runOne(t, code, 2)
	assert.Equal(t, uint32(0x040A), in.ProgramCounter())

	// remove_obj #2: object 1 loses its child.
	in = runOne(t, []byte{0x99, 0x02}, 1)
	child, err := in.Story().Child(1)
	require.NoError(t, err)
	assert.Equal(t, 0, child)
}

func TestPrintOpcodes(t *testing.T) {
	in := boot(t, func(img []byte) {
		copy(img[fixtureEntry:], []byte{
			0xB2, 0x9E, 0x9D, // print "box"
			0xE5, 0x7F, 0x41, // print_char 'A'
			0xE6, 0x3F, 0xFF, 0xFB, // print_num -5
			0xBB, // new_line
		})
	})
	out := stepN(t, in, 4)
	assert.Equal(t, "boxA-5\n", out.ScreenOutput())

	// Output accumulates immutably: the intermediate snapshot kept its
	// shorter stream.
	mid := stepN(t, in, 2)
	assert.Equal(t, "boxA", mid.ScreenOutput())
}

func TestPrintRetReturnsTrue(t *testing.T) {
	in := boot(t, func(img []byte) {
		copy(img[0x0400:], []byte{0xE0, 0x3F, 0x02, 0x80, 0x00, 0xBA})
		img[0x0500] = 0
		// print_ret "box"
		copy(img[0x0501:], []byte{0xB3, 0x9E, 0x9D})
	})
	in2 := stepN(t, in, 2)
	assert.Equal(t, "box\n", in2.ScreenOutput())
	assert.Equal(t, 1, in2.FrameDepth())
	assert.Equal(t, []uint16{1}, in2.CurrentFrame().Stack())
}

func TestRandomIsDeterministic(t *testing.T) {
	code := []byte{0xE7, 0x7F, 0x0A, 0x00} // random #10 -> stack
	a := runOne(t, code, 1)
	b := runOne(t, code, 1)

	av := a.CurrentFrame().Stack()[0]
	bv := b.CurrentFrame().Stack()[0]
	assert.Equal(t, av, bv)
	assert.GreaterOrEqual(t, av, uint16(1))
	assert.LessOrEqual(t, av, uint16(10))
}

func TestRandomSeedResets(t *testing.T) {
	// random #-7 seeds and stores 0; two seeded sequences agree.
	code := []byte{
		0xE7, 0x3F, 0xFF, 0xF9, 0x00, // random #-7 -> stack (stores 0)
		0xE7, 0x7F, 0x64, 0x00, // random #100 -> stack
	}
	a := runOne(t, code, 2)
	b := runOne(t, code, 2)
	assert.Equal(t, a.CurrentFrame().Stack(), b.CurrentFrame().Stack())
	assert.Equal(t, uint16(0), a.CurrentFrame().Stack()[1])
}

func TestScreenOpcodesAreNoOps(t *testing.T) {
	code := []byte{
		0xEA, 0x7F, 0x01, // split_window #1
		0xEB, 0x7F, 0x00, // set_window #0
		0xB4, // nop
		0xBC, // show_status
	}
	in := runOne(t, code, 4)
	assert.Equal(t, uint32(0x0408), in.ProgramCounter())
	assert.Equal(t, Running, in.State())
}

func TestVerifyBranchesTrue(t *testing.T) {
	// verify ?+5: the branch is always taken.
	in := runOne(t, []byte{0xBD, 0xC5}, 1)
	assert.Equal(t, uint32(0x0405), in.ProgramCounter())
}

func TestSaveIsUnimplemented(t *testing.T) {
	in := boot(t, func(img []byte) {
		copy(img[fixtureEntry:], []byte{0xB5, 0xC5})
	})
	_, err := in.Step()
	assert.ErrorIs(t, err, zerrors.ErrIllegalInstruction)
}

func TestRetPopped(t *testing.T) {
	in := boot(t, func(img []byte) {
		copy(img[0x0400:], []byte{0xE0, 0x3F, 0x02, 0x80, 0x00, 0xBA})
		img[0x0500] = 0
		copy(img[0x0501:], []byte{
			0xE8, 0x7F, 0x2C, // push #44
			0xB8, // ret_popped
		})
	})
	in2 := stepN(t, in, 3)
	assert.Equal(t, 1, in2.FrameDepth())
	assert.Equal(t, []uint16{44}, in2.CurrentFrame().Stack())
}

func TestStackUnderflow(t *testing.T) {
	in := boot(t, func(img []byte) {
		img[fixtureEntry] = 0xB9 // pop on an empty stack
	})
	_, err := in.Step()
	assert.ErrorIs(t, err, zerrors.ErrStackUnderflow)
}
