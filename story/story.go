// Package story interprets a memory image as a Z-machine story file: header
// fields, the ZSCII text codec, the object tree and property tables, the
// dictionary, the instruction decoder and the routine analyses built on it.
package story

import (
	"fmt"

	"github.com/fictionkit/zvm/bits"
	"github.com/fictionkit/zvm/log"
	"github.com/fictionkit/zvm/memory"
	"github.com/fictionkit/zvm/zerrors"
)

// Header byte offsets. All multi-byte fields are big-endian.
const (
	hdrVersion       = 0x00
	hdrRelease       = 0x02
	hdrHighMemory    = 0x04
	hdrInitialPC     = 0x06
	hdrDictionary    = 0x08
	hdrObjectTable   = 0x0A
	hdrGlobals       = 0x0C
	hdrStaticMemory  = 0x0E
	hdrSerial        = 0x12
	hdrFileLength    = 0x1A
	hdrChecksum      = 0x1C
	hdrAbbreviations = 0x18

	headerSize = 64
)

// SupportedVersion is the only version this interpreter executes. The
// decoder tables anticipate later versions but execution is v3 only.
const SupportedVersion = 3

const (
	firstGlobal = 16
	lastGlobal  = 255
)

// Story is a value type: a memory image plus the structure the header
// implies. All derived structure is re-read from memory on demand, so a
// Story stays consistent with the successor memories its writes produce.
type Story struct {
	mem memory.Memory
}

// Header is a decoded snapshot of the header fields, for host display.
type Header struct {
	Version       uint8
	Release       uint16
	HighMemory    uint16
	InitialPC     uint16
	Dictionary    uint16
	ObjectTable   uint16
	Globals       uint16
	StaticMemory  uint16
	Abbreviations uint16
	Serial        string
	FileLength    uint32
	Checksum      uint16
}

// Load validates a story blob and splits it into dynamic and static regions
// at the static-memory base.
func Load(blob []byte) (Story, error) {
	if len(blob) < headerSize {
		return Story{}, fmt.Errorf("%w: %d bytes is shorter than the header", zerrors.ErrInvalidStoryFile, len(blob))
	}
	version := blob[hdrVersion]
	if version != SupportedVersion {
		return Story{}, fmt.Errorf("%w: version %d", zerrors.ErrInvalidStoryFile, version)
	}
	staticBase := uint32(blob[hdrStaticMemory])<<8 | uint32(blob[hdrStaticMemory+1])
	if staticBase < headerSize || staticBase > uint32(len(blob)) {
		return Story{}, fmt.Errorf("%w: static base 0x%x, file length 0x%x", zerrors.ErrInvalidStoryFile, staticBase, len(blob))
	}

	dynamic := make([]byte, staticBase)
	copy(dynamic, blob[:staticBase])
	static := make([]byte, uint32(len(blob))-staticBase)
	copy(static, blob[staticBase:])

	s := Story{mem: memory.New(dynamic, static)}
	log.Debug(log.StoryMonitoring, "story loaded",
		"version", version, "staticBase", staticBase, "initialPC", s.InitialPC(), "size", len(blob))
	return s, nil
}

// FromMemory wraps an already-split memory image. Used by tests that
// hand-assemble images.
func FromMemory(mem memory.Memory) Story {
	return Story{mem: mem}
}

// Memory returns the underlying memory image.
func (s Story) Memory() memory.Memory {
	return s.mem
}

func (s Story) headerWord(offset uint32) uint16 {
	// The header always lies inside dynamic memory; a failed read means the
	// story was built from an undersized image, which Load rejects.
	w, err := s.mem.ReadWord(offset)
	if err != nil {
		return 0
	}
	return w
}

// Version returns the story-format version byte.
func (s Story) Version() uint8 {
	b, err := s.mem.ReadByte(hdrVersion)
	if err != nil {
		return 0
	}
	return b
}

// InitialPC returns the byte address of the first instruction.
func (s Story) InitialPC() uint32 {
	return uint32(s.headerWord(hdrInitialPC))
}

// HighMemoryBase returns the base of high memory.
func (s Story) HighMemoryBase() uint32 {
	return uint32(s.headerWord(hdrHighMemory))
}

// DictionaryBase returns the byte address of the dictionary.
func (s Story) DictionaryBase() uint32 {
	return uint32(s.headerWord(hdrDictionary))
}

// ObjectTableBase returns the byte address of the object table.
func (s Story) ObjectTableBase() uint32 {
	return uint32(s.headerWord(hdrObjectTable))
}

// GlobalsBase returns the byte address of the global-variable table.
func (s Story) GlobalsBase() uint32 {
	return uint32(s.headerWord(hdrGlobals))
}

// StaticOffset returns the first address of static memory.
func (s Story) StaticOffset() uint32 {
	return s.mem.StaticOffset()
}

// AbbreviationsBase returns the byte address of the abbreviations table.
func (s Story) AbbreviationsBase() uint32 {
	return uint32(s.headerWord(hdrAbbreviations))
}

// HeaderFields decodes the full header for host display.
func (s Story) HeaderFields() Header {
	serial := make([]byte, 6)
	for i := range serial {
		b, err := s.mem.ReadByte(hdrSerial + uint32(i))
		if err != nil {
			b = '?'
		}
		serial[i] = b
	}
	return Header{
		Version:       s.Version(),
		Release:       s.headerWord(hdrRelease),
		HighMemory:    s.headerWord(hdrHighMemory),
		InitialPC:     s.headerWord(hdrInitialPC),
		Dictionary:    s.headerWord(hdrDictionary),
		ObjectTable:   s.headerWord(hdrObjectTable),
		Globals:       s.headerWord(hdrGlobals),
		StaticMemory:  s.headerWord(hdrStaticMemory),
		Abbreviations: s.headerWord(hdrAbbreviations),
		Serial:        string(serial),
		// In v3 the file-length word holds length/2.
		FileLength: uint32(s.headerWord(hdrFileLength)) * 2,
		Checksum:   s.headerWord(hdrChecksum),
	}
}

// ReadByte reads one byte of the image.
func (s Story) ReadByte(addr uint32) (byte, error) {
	return s.mem.ReadByte(addr)
}

// ReadWord reads a big-endian word of the image.
func (s Story) ReadWord(addr uint32) (uint16, error) {
	return s.mem.ReadWord(addr)
}

// WriteByte writes into dynamic memory and returns the successor story.
func (s Story) WriteByte(addr uint32, value byte) (Story, error) {
	mem, err := s.mem.WriteByte(addr, value)
	if err != nil {
		return Story{}, err
	}
	return Story{mem: mem}, nil
}

// WriteWord writes into dynamic memory and returns the successor story.
func (s Story) WriteWord(addr uint32, value uint16) (Story, error) {
	mem, err := s.mem.WriteWord(addr, value)
	if err != nil {
		return Story{}, err
	}
	return Story{mem: mem}, nil
}

func (s Story) globalAddr(number int) (uint32, error) {
	if number < firstGlobal || number > lastGlobal {
		return 0, fmt.Errorf("%w: global %d", zerrors.ErrInvalidGlobal, number)
	}
	return s.GlobalsBase() + uint32(number-firstGlobal)*2, nil
}

// ReadGlobal reads global variable number (16..255).
func (s Story) ReadGlobal(number int) (uint16, error) {
	addr, err := s.globalAddr(number)
	if err != nil {
		return 0, err
	}
	return s.mem.ReadWord(addr)
}

// WriteGlobal writes global variable number (16..255), returning the
// successor story.
func (s Story) WriteGlobal(number int, value uint16) (Story, error) {
	addr, err := s.globalAddr(number)
	if err != nil {
		return Story{}, err
	}
	return s.WriteWord(addr, value)
}

// UnpackAddress converts a v3 packed routine/string address to a byte
// address.
func UnpackAddress(packed uint16) uint32 {
	return uint32(packed) * 2
}

// SignedOperand is a convenience wrapper for interpreting a raw operand
// value as the canonical signed word.
func SignedOperand(v uint16) int16 {
	return bits.SignedWord(int(v))
}
