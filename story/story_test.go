package story

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fictionkit/zvm/zerrors"
)

func TestLoadRejectsBadImages(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(img []byte) []byte
	}{
		{"truncated", func(img []byte) []byte { return img[:32] }},
		{"wrong version", func(img []byte) []byte { img[0] = 5; return img }},
		{"static base past end", func(img []byte) []byte { putWord(img, 14, 0x7000); return img }},
		{"static base inside header", func(img []byte) []byte { putWord(img, 14, 0x20); return img }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			img := tc.mutate(testBlob())
			_, err := Load(img)
			assert.ErrorIs(t, err, zerrors.ErrInvalidStoryFile)
		})
	}
}

func TestHeaderFields(t *testing.T) {
	s := testStory(t, nil)
	hdr := s.HeaderFields()
	assert.Equal(t, uint8(3), hdr.Version)
	assert.Equal(t, uint16(1), hdr.Release)
	assert.Equal(t, uint16(fixtureInitialPC), hdr.InitialPC)
	assert.Equal(t, uint16(fixtureDictBase), hdr.Dictionary)
	assert.Equal(t, uint16(fixtureObjectBase), hdr.ObjectTable)
	assert.Equal(t, uint16(fixtureGlobalsBase), hdr.Globals)
	assert.Equal(t, uint16(fixtureStatic), hdr.StaticMemory)
	assert.Equal(t, uint16(fixtureAbbrevBase), hdr.Abbreviations)
	assert.Equal(t, "250806", hdr.Serial)
	assert.Equal(t, uint32(fixtureSize), hdr.FileLength)
}

func TestStaticSplit(t *testing.T) {
	// Static base 0x1A00: the first static byte is read at 0x1A00.
	img := testBlob()
	putWord(img, 14, 0x1A00)
	img[0x1A00] = 0xAB
	s, err := Load(img)
	require.NoError(t, err)

	assert.Equal(t, uint32(0x1A00), s.StaticOffset())
	b, err := s.ReadByte(0x1A00)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), b)

	_, err = s.WriteByte(0x1A00, 0x01)
	assert.ErrorIs(t, err, zerrors.ErrWriteToStaticMemory)
}

func TestGlobals(t *testing.T) {
	s := testStory(t, nil)

	v, err := s.ReadGlobal(17)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xBEEF), v)

	s2, err := s.WriteGlobal(16, 0x0042)
	require.NoError(t, err)
	v, err = s2.ReadGlobal(16)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0042), v)

	// The predecessor story is unchanged.
	v, err = s.ReadGlobal(16)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), v)

	_, err = s.ReadGlobal(15)
	assert.ErrorIs(t, err, zerrors.ErrInvalidGlobal)
	_, err = s.ReadGlobal(256)
	assert.ErrorIs(t, err, zerrors.ErrInvalidGlobal)
	_, err = s.WriteGlobal(7, 1)
	assert.ErrorIs(t, err, zerrors.ErrInvalidGlobal)
}

func TestWritesProduceSuccessors(t *testing.T) {
	s := testStory(t, nil)
	s2, err := s.WriteWord(0x0300, 0xCAFE)
	require.NoError(t, err)

	w, err := s2.ReadWord(0x0300)
	require.NoError(t, err)
	assert.Equal(t, uint16(0xCAFE), w)

	w, err = s.ReadWord(0x0300)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), w)
}

func TestUnpackAddress(t *testing.T) {
	assert.Equal(t, uint32(0x5478), UnpackAddress(0x2A3C))
	assert.Equal(t, uint32(0x1FFFE), UnpackAddress(0xFFFF))
}
