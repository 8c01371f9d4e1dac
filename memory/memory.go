// Package memory models the Z-machine address space: a mutable dynamic
// region below the static-memory boundary, and a read-only static region
// shared by every snapshot above it.
package memory

import (
	"fmt"

	"github.com/fictionkit/zvm/overlay"
	"github.com/fictionkit/zvm/zerrors"
)

// Memory is a value type. Reads are pure; writes return a successor Memory
// and leave the receiver observable. The static block is aliased, never
// copied.
type Memory struct {
	dynamic *overlay.Buffer
	static  []byte
}

// New splits an address space into a dynamic prefix and a static suffix.
// The static-memory boundary equals len(dynamic).
func New(dynamic, static []byte) Memory {
	return Memory{dynamic: overlay.NewBuffer(dynamic), static: static}
}

// StaticOffset returns the first address of static memory.
func (m Memory) StaticOffset() uint32 {
	return m.dynamic.Len()
}

// Size returns the total length of the address space.
func (m Memory) Size() uint32 {
	return m.dynamic.Len() + uint32(len(m.static))
}

// ReadByte reads one byte from either region.
func (m Memory) ReadByte(addr uint32) (byte, error) {
	split := m.dynamic.Len()
	if addr < split {
		return m.dynamic.ReadByte(addr)
	}
	if addr-split >= uint32(len(m.static)) {
		return 0, fmt.Errorf("%w: read at 0x%x, size 0x%x", zerrors.ErrAddressOutOfRange, addr, m.Size())
	}
	return m.static[addr-split], nil
}

// ReadWord reads a big-endian 16-bit word at addr.
func (m Memory) ReadWord(addr uint32) (uint16, error) {
	hi, err := m.ReadByte(addr)
	if err != nil {
		return 0, err
	}
	lo, err := m.ReadByte(addr + 1)
	if err != nil {
		return 0, err
	}
	return uint16(hi)<<8 | uint16(lo), nil
}

// WriteByte writes one byte into dynamic memory, returning the successor.
// Writes at or above the static boundary fail.
func (m Memory) WriteByte(addr uint32, value byte) (Memory, error) {
	if addr >= m.dynamic.Len() {
		return Memory{}, fmt.Errorf("%w: write at 0x%x, static offset 0x%x", zerrors.ErrWriteToStaticMemory, addr, m.dynamic.Len())
	}
	dyn, err := m.dynamic.WriteByte(addr, value)
	if err != nil {
		return Memory{}, err
	}
	return Memory{dynamic: dyn, static: m.static}, nil
}

// WriteWord writes a big-endian 16-bit word, returning the successor.
func (m Memory) WriteWord(addr uint32, value uint16) (Memory, error) {
	m2, err := m.WriteByte(addr, byte(value>>8))
	if err != nil {
		return Memory{}, err
	}
	return m2.WriteByte(addr+1, byte(value))
}
