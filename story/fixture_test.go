package story

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Fixture layout: a hand-assembled v3 image.
const (
	fixtureSize   = 0x6000
	fixtureStatic = 0x0400

	fixtureAbbrevBase  = 0x0040
	fixtureObjectBase  = 0x0100
	fixtureTreeBase    = fixtureObjectBase + 62
	fixtureDictBase    = 0x0190
	fixtureGlobalsBase = 0x01C0
	fixtureInitialPC   = 0x0400

	fixtureLookEntry = 0x0195
	fixtureTakeEntry = 0x019C
)

func putWord(img []byte, addr uint32, w uint16) {
	img[addr] = byte(w >> 8)
	img[addr+1] = byte(w)
}

// testBlob assembles the fixture image: header, abbreviations, a
// three-object tree, a two-entry dictionary, globals and a handful of
// encoded strings in static memory.
func testBlob() []byte {
	img := make([]byte, fixtureSize)

	img[0] = 3
	putWord(img, 2, 1)                    // release
	putWord(img, 4, fixtureStatic)        // high memory
	putWord(img, 6, fixtureInitialPC)     // initial PC
	putWord(img, 8, fixtureDictBase)      // dictionary
	putWord(img, 10, fixtureObjectBase)   // object table
	putWord(img, 12, fixtureGlobalsBase)  // globals
	putWord(img, 14, fixtureStatic)       // static memory base
	copy(img[0x12:], "250806")            // serial
	putWord(img, 24, fixtureAbbrevBase)   // abbreviations
	putWord(img, 0x1A, fixtureSize/2)     // file length (v3: /2)

	// Abbreviations: entry 0 -> "the " at 0x0402, entry 1 -> a string that
	// itself uses an abbreviation code (must be rejected when expanded).
	putWord(img, fixtureAbbrevBase, 0x0201)
	putWord(img, fixtureAbbrevBase+2, 0x0203)

	// Default property 5.
	putWord(img, fixtureObjectBase+(5-1)*2, 0x1234)

	// Object 1 "box": attributes 0 and 31, child 2, properties at 0x0159.
	obj1 := uint32(fixtureTreeBase)
	img[obj1] = 0x80
	img[obj1+3] = 0x01
	img[obj1+6] = 2
	putWord(img, obj1+7, 0x0159)
	// Object 2: parent 1, sibling 3.
	obj2 := obj1 + 9
	img[obj2+4] = 1
	img[obj2+5] = 3
	putWord(img, obj2+7, 0x0170)
	// Object 3: parent 1.
	obj3 := obj2 + 9
	img[obj3+4] = 1
	putWord(img, obj3+7, 0x0180)

	// Object 1 property block: name "box", then properties 7 (2 bytes),
	// 5 (1 byte) and 2 (2 bytes) in descending order.
	copy(img[0x0159:], []byte{
		0x01, 0x9E, 0x9D,
		0x27, 0xBE, 0xEF,
		0x05, 0x42,
		0x22, 0x11, 0x11,
		0x00,
	})
	// Object 2: anonymous, property 3 only.
	copy(img[0x0170:], []byte{0x00, 0x03, 0x07, 0x00})
	// Object 3: anonymous, no properties.
	copy(img[0x0180:], []byte{0x00, 0x00})

	// Dictionary: one separator (comma), entry length 7, two entries
	// sorted on their encoded form: "look", "take".
	img[fixtureDictBase] = 1
	img[fixtureDictBase+1] = ','
	img[fixtureDictBase+2] = 7
	putWord(img, fixtureDictBase+3, 2)
	copy(img[fixtureLookEntry:], []byte{0x46, 0x94, 0xC0, 0xA5})
	copy(img[fixtureTakeEntry:], []byte{0x64, 0xD0, 0xA8, 0xA5})

	// Global 17 starts at 0xBEEF.
	putWord(img, fixtureGlobalsBase+2, 0xBEEF)

	// Static strings.
	putWord(img, 0x0402, 0x65AA) // "the "
	putWord(img, 0x0404, 0x80A5)
	putWord(img, 0x0406, 0x8406) // abbreviation 1: contains z-char 1
	putWord(img, 0x0410, 0x8406) // abbreviation 0 then 'a' -> "the a"
	putWord(img, 0x0420, 0x9E9D) // "box"
	putWord(img, 0x0430, 0x14C2) // 10-bit escape for '@'
	putWord(img, 0x0432, 0x80A5)
	putWord(img, 0x0450, 0x8426) // expands abbreviation 1 (nested)

	return img
}

// testStory loads the fixture, applying mutate to the raw blob first.
func testStory(t *testing.T, mutate func(img []byte)) Story {
	t.Helper()
	img := testBlob()
	if mutate != nil {
		mutate(img)
	}
	s, err := Load(img)
	require.NoError(t, err)
	return s
}
