package interp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fictionkit/zvm/story"
)

// Fixture: a minimal v3 image with the code region starting at the initial
// PC of 0x0400 (the static base). Tests inject code via the mutate hook.
const (
	fixtureSize    = 0x2000
	fixtureStatic  = 0x0400
	fixtureEntry   = 0x0400
	fixtureGlobals = 0x01C0
	fixtureDict    = 0x0190

	// Dynamic scratch buffers used by read tests.
	textBuffer  = 0x0300
	parseBuffer = 0x0320
)

func putWord(img []byte, addr uint32, w uint16) {
	img[addr] = byte(w >> 8)
	img[addr+1] = byte(w)
}

func testBlob() []byte {
	img := make([]byte, fixtureSize)
	img[0] = 3
	putWord(img, 4, fixtureStatic)
	putWord(img, 6, fixtureEntry)
	putWord(img, 8, fixtureDict)
	putWord(img, 10, 0x0100)
	putWord(img, 12, fixtureGlobals)
	putWord(img, 14, fixtureStatic)
	putWord(img, 24, 0x0040)
	putWord(img, 0x1A, fixtureSize/2)

	// Dictionary: comma separator, two entries "look" and "take".
	img[fixtureDict] = 1
	img[fixtureDict+1] = ','
	img[fixtureDict+2] = 7
	putWord(img, fixtureDict+3, 2)
	copy(img[fixtureDict+5:], []byte{0x46, 0x94, 0xC0, 0xA5, 0, 0, 0})
	copy(img[fixtureDict+12:], []byte{0x64, 0xD0, 0xA8, 0xA5, 0, 0, 0})

	// Two objects: 1 contains 2. Property blocks are nameless and empty,
	// with object 1's block directly after the entries.
	tree := uint32(0x0100 + 62)
	img[tree+6] = 2
	putWord(img, tree+7, 0x0150)
	img[tree+9+4] = 1
	putWord(img, tree+9+7, 0x0160)

	// Read buffers: up to 19 letters plus the terminating zero, up to 5
	// tokens.
	img[textBuffer] = 20
	img[parseBuffer] = 5

	return img
}

// boot assembles the fixture with code laid in by mutate and returns a
// fresh interpreter on it.
func boot(t *testing.T, mutate func(img []byte)) Interpreter {
	t.Helper()
	img := testBlob()
	if mutate != nil {
		mutate(img)
	}
	st, err := story.Load(img)
	require.NoError(t, err)
	return Make(st)
}

// stepN steps n times, failing the test on any error.
func stepN(t *testing.T, in Interpreter, n int) Interpreter {
	t.Helper()
	for i := 0; i < n; i++ {
		next, err := in.Step()
		require.NoError(t, err, "step %d", i+1)
		in = next
	}
	return in
}
