// Package overlay provides an immutable byte buffer: a shared base blob plus
// a per-buffer overlay of byte edits. Writes return a new buffer that shares
// the base, so keeping a history of buffers costs O(edits), not O(len).
package overlay

import (
	"maps"

	"github.com/fictionkit/zvm/zerrors"
)

// Buffer is an immutable view over a base blob with point edits layered on
// top. The zero value is an empty buffer. Reads consult the edits first,
// then the base. All edit addresses lie in [0, Len()).
type Buffer struct {
	base  []byte
	edits map[uint32]byte
}

// NewBuffer wraps base without copying it. The caller must not mutate base
// afterwards; every Buffer derived from it aliases the same backing array.
func NewBuffer(base []byte) *Buffer {
	return &Buffer{base: base}
}

// Len returns the length of the address space.
func (b *Buffer) Len() uint32 {
	return uint32(len(b.base))
}

// ReadByte returns the byte at addr.
func (b *Buffer) ReadByte(addr uint32) (byte, error) {
	if addr >= uint32(len(b.base)) {
		return 0, zerrors.ErrAddressOutOfRange
	}
	if v, ok := b.edits[addr]; ok {
		return v, nil
	}
	return b.base[addr], nil
}

// WriteByte returns a new buffer carrying the edit. The receiver is left
// observable and unchanged.
func (b *Buffer) WriteByte(addr uint32, value byte) (*Buffer, error) {
	if addr >= uint32(len(b.base)) {
		return nil, zerrors.ErrAddressOutOfRange
	}
	edits := maps.Clone(b.edits)
	if edits == nil {
		edits = make(map[uint32]byte, 1)
	}
	edits[addr] = value
	return &Buffer{base: b.base, edits: edits}, nil
}

// EditCount returns the number of overlaid bytes. Diagnostic only.
func (b *Buffer) EditCount() int {
	return len(b.edits)
}

// Bytes materialises the current contents as a fresh slice.
func (b *Buffer) Bytes() []byte {
	out := make([]byte, len(b.base))
	copy(out, b.base)
	for addr, v := range b.edits {
		out[addr] = v
	}
	return out
}
