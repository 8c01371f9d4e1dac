package story

import (
	"fmt"

	"github.com/fictionkit/zvm/zerrors"
)

// v3 object-table layout.
const (
	defaultPropertyCount = 31
	objectEntrySize      = 9
	objectAttrBytes      = 4
	objectParentOffset   = 4
	objectSiblingOffset  = 5
	objectChildOffset    = 6
	objectPropsOffset    = 7

	// NullObject is the invalid/absent object number.
	NullObject = 0
)

// treeBase returns the address of object entry 1, just past the 31
// default-property words.
func (s Story) treeBase() uint32 {
	return s.ObjectTableBase() + defaultPropertyCount*2
}

// ObjectCount derives the number of objects from the gap between the tree
// base and object 1's property block. The property block of object 1 is
// assumed to immediately follow the object entries; the format does not
// mandate this, but every released v3 image satisfies it.
func (s Story) ObjectCount() (int, error) {
	props, err := s.mem.ReadWord(s.treeBase() + objectPropsOffset)
	if err != nil {
		return 0, err
	}
	return int(uint32(props)-s.treeBase()) / objectEntrySize, nil
}

func (s Story) objectAddr(object int) (uint32, error) {
	count, err := s.ObjectCount()
	if err != nil {
		return 0, err
	}
	if object < 1 || object > count {
		return 0, fmt.Errorf("%w: object %d of %d", zerrors.ErrInvalidObject, object, count)
	}
	return s.treeBase() + uint32(object-1)*objectEntrySize, nil
}

// PropertyDefault reads the default value of property number (1..31).
func (s Story) PropertyDefault(number int) (uint16, error) {
	if number < 1 || number > defaultPropertyCount {
		return 0, fmt.Errorf("%w: property %d", zerrors.ErrInvalidDefaultProperty, number)
	}
	return s.mem.ReadWord(s.ObjectTableBase() + uint32(number-1)*2)
}

// TestAttribute reports whether attribute (0..31) is set on object.
// Attribute 0 is the most significant bit of the first attribute byte.
func (s Story) TestAttribute(object, attribute int) (bool, error) {
	if attribute < 0 || attribute > 31 {
		return false, fmt.Errorf("%w: attribute %d", zerrors.ErrInvalidObject, attribute)
	}
	addr, err := s.objectAddr(object)
	if err != nil {
		return false, err
	}
	b, err := s.mem.ReadByte(addr + uint32(attribute/8))
	if err != nil {
		return false, err
	}
	return b&(1<<(7-uint(attribute%8))) != 0, nil
}

// SetAttribute sets or clears attribute (0..31) on object, returning the
// successor story.
func (s Story) SetAttribute(object, attribute int, on bool) (Story, error) {
	if attribute < 0 || attribute > 31 {
		return Story{}, fmt.Errorf("%w: attribute %d", zerrors.ErrInvalidObject, attribute)
	}
	addr, err := s.objectAddr(object)
	if err != nil {
		return Story{}, err
	}
	byteAddr := addr + uint32(attribute/8)
	b, err := s.mem.ReadByte(byteAddr)
	if err != nil {
		return Story{}, err
	}
	mask := byte(1) << (7 - uint(attribute%8))
	if on {
		b |= mask
	} else {
		b &^= mask
	}
	return s.WriteByte(byteAddr, b)
}

func (s Story) objectLink(object int, offset uint32) (int, error) {
	addr, err := s.objectAddr(object)
	if err != nil {
		return 0, err
	}
	b, err := s.mem.ReadByte(addr + offset)
	if err != nil {
		return 0, err
	}
	return int(b), nil
}

func (s Story) setObjectLink(object int, offset uint32, target int) (Story, error) {
	addr, err := s.objectAddr(object)
	if err != nil {
		return Story{}, err
	}
	return s.WriteByte(addr+offset, byte(target))
}

// Parent returns the parent object number, 0 for none.
func (s Story) Parent(object int) (int, error) {
	return s.objectLink(object, objectParentOffset)
}

// Sibling returns the next-sibling object number, 0 for none.
func (s Story) Sibling(object int) (int, error) {
	return s.objectLink(object, objectSiblingOffset)
}

// Child returns the first-child object number, 0 for none.
func (s Story) Child(object int) (int, error) {
	return s.objectLink(object, objectChildOffset)
}

// PropertyBlockAddr returns the address of object's property block.
func (s Story) PropertyBlockAddr(object int) (uint32, error) {
	addr, err := s.objectAddr(object)
	if err != nil {
		return 0, err
	}
	props, err := s.mem.ReadWord(addr + objectPropsOffset)
	if err != nil {
		return 0, err
	}
	return uint32(props), nil
}

// ObjectName decodes the short name at the head of object's property block.
func (s Story) ObjectName(object int) (string, error) {
	props, err := s.PropertyBlockAddr(object)
	if err != nil {
		return "", err
	}
	nameWords, err := s.mem.ReadByte(props)
	if err != nil {
		return "", err
	}
	if nameWords == 0 {
		return "", nil
	}
	name, _, err := s.DecodeString(props + 1)
	return name, err
}

// firstPropertyAddr returns the address of the first property entry header,
// just past the object's encoded name.
func (s Story) firstPropertyAddr(object int) (uint32, error) {
	props, err := s.PropertyBlockAddr(object)
	if err != nil {
		return 0, err
	}
	nameWords, err := s.mem.ReadByte(props)
	if err != nil {
		return 0, err
	}
	return props + 1 + uint32(nameWords)*2, nil
}

// propertyEntry locates property number on object. It returns the data
// address and length in bytes, or (0, 0) when absent. Properties are
// listed in descending number order, so the scan stops early.
func (s Story) propertyEntry(object, number int) (uint32, int, error) {
	addr, err := s.firstPropertyAddr(object)
	if err != nil {
		return 0, 0, err
	}
	for {
		header, err := s.mem.ReadByte(addr)
		if err != nil {
			return 0, 0, err
		}
		if header == 0 {
			return 0, 0, nil
		}
		num := int(header & 0x1F)
		size := int(header>>5) + 1
		if num < number {
			return 0, 0, nil
		}
		if num == number {
			return addr + 1, size, nil
		}
		addr += 1 + uint32(size)
	}
}

// Property reads property number of object, falling back to the default
// table when the object does not carry it.
func (s Story) Property(object, number int) (uint16, error) {
	addr, size, err := s.propertyEntry(object, number)
	if err != nil {
		return 0, err
	}
	if addr == 0 {
		return s.PropertyDefault(number)
	}
	switch size {
	case 1:
		b, err := s.mem.ReadByte(addr)
		return uint16(b), err
	case 2:
		return s.mem.ReadWord(addr)
	default:
		return 0, fmt.Errorf("%w: property %d of object %d has length %d", zerrors.ErrInvalidProperty, number, object, size)
	}
}

// PropertyAddr returns the data address of property number on object, or 0
// when the object does not carry it.
func (s Story) PropertyAddr(object, number int) (uint32, error) {
	addr, _, err := s.propertyEntry(object, number)
	return addr, err
}

// NextProperty returns the property number following number on object. A
// number of 0 yields the first property; the end of the list yields 0.
func (s Story) NextProperty(object, number int) (int, error) {
	var addr uint32
	var err error
	if number == 0 {
		addr, err = s.firstPropertyAddr(object)
		if err != nil {
			return 0, err
		}
	} else {
		dataAddr, size, err := s.propertyEntry(object, number)
		if err != nil {
			return 0, err
		}
		if dataAddr == 0 {
			return 0, fmt.Errorf("%w: next of absent property %d on object %d", zerrors.ErrInvalidProperty, number, object)
		}
		addr = dataAddr + uint32(size)
	}
	header, err := s.mem.ReadByte(addr)
	if err != nil {
		return 0, err
	}
	return int(header & 0x1F), nil
}

// PropertyLenAt returns the length in bytes of the property whose data
// starts at addr, as used by get_prop_len. An addr of 0 yields 0.
func (s Story) PropertyLenAt(addr uint32) (int, error) {
	if addr == 0 {
		return 0, nil
	}
	header, err := s.mem.ReadByte(addr - 1)
	if err != nil {
		return 0, err
	}
	return int(header>>5) + 1, nil
}

// PutProperty writes property number on object, returning the successor
// story. Writing an absent property or one wider than two bytes fails.
func (s Story) PutProperty(object, number int, value uint16) (Story, error) {
	addr, size, err := s.propertyEntry(object, number)
	if err != nil {
		return Story{}, err
	}
	if addr == 0 {
		return Story{}, fmt.Errorf("%w: put of absent property %d on object %d", zerrors.ErrInvalidProperty, number, object)
	}
	switch size {
	case 1:
		return s.WriteByte(addr, byte(value))
	case 2:
		return s.WriteWord(addr, value)
	default:
		return Story{}, fmt.Errorf("%w: put of %d-byte property %d on object %d", zerrors.ErrInvalidProperty, size, number, object)
	}
}

// RemoveObject detaches object from its parent, leaving its own children
// in place. The successor story is returned.
func (s Story) RemoveObject(object int) (Story, error) {
	parent, err := s.Parent(object)
	if err != nil {
		return Story{}, err
	}
	if parent == NullObject {
		return s, nil
	}
	sibling, err := s.Sibling(object)
	if err != nil {
		return Story{}, err
	}

	firstChild, err := s.Child(parent)
	if err != nil {
		return Story{}, err
	}
	if firstChild == object {
		s, err = s.setObjectLink(parent, objectChildOffset, sibling)
	} else {
		// Walk the sibling chain to the predecessor.
		prev := firstChild
		for {
			next, err := s.Sibling(prev)
			if err != nil {
				return Story{}, err
			}
			if next == object {
				break
			}
			if next == NullObject {
				return Story{}, fmt.Errorf("%w: object %d missing from children of %d", zerrors.ErrInvalidObject, object, parent)
			}
			prev = next
		}
		s, err = s.setObjectLink(prev, objectSiblingOffset, sibling)
	}
	if err != nil {
		return Story{}, err
	}

	if s, err = s.setObjectLink(object, objectParentOffset, NullObject); err != nil {
		return Story{}, err
	}
	return s.setObjectLink(object, objectSiblingOffset, NullObject)
}

// InsertObject makes object the first child of destination, detaching it
// from any current parent first. The successor story is returned.
func (s Story) InsertObject(object, destination int) (Story, error) {
	s, err := s.RemoveObject(object)
	if err != nil {
		return Story{}, err
	}
	oldChild, err := s.Child(destination)
	if err != nil {
		return Story{}, err
	}
	if s, err = s.setObjectLink(object, objectSiblingOffset, oldChild); err != nil {
		return Story{}, err
	}
	if s, err = s.setObjectLink(object, objectParentOffset, destination); err != nil {
		return Story{}, err
	}
	return s.setObjectLink(destination, objectChildOffset, object)
}
