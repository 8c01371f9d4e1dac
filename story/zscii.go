package story

import (
	"fmt"
	"strings"

	"github.com/fictionkit/zvm/zerrors"
)

// The three z-char alphabets. Entries are indexed by zchar-6; slot 0 of A2
// is never consulted because z-char 6 in A2 escapes to a 10-bit literal.
var alphabets = []string{
	"abcdefghijklmnopqrstuvwxyz",
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ",
	" \n0123456789.,!?_#'\"/\\-:()",
}

const (
	zcharsPerWord    = 3
	abbreviationRows = 3
	abbreviationSize = 32
)

// zsciiState enumerates the decoder's state machine: a current alphabet,
// a pending abbreviation row, or the two halves of a 10-bit literal escape.
type zsciiState struct {
	alphabet  int
	abbrevRow int  // -1 when idle, else 0/32/64
	leading   bool // seen A2 z-char 6, waiting for high half
	trailing  bool // waiting for low half
	high      uint8
}

func newZsciiState() zsciiState {
	return zsciiState{abbrevRow: -1}
}

// DecodeString decodes the ZSCII string starting at addr. It returns the
// text and the encoded length in bytes (words consumed times two).
func (s Story) DecodeString(addr uint32) (string, uint32, error) {
	return s.decodeString(addr, true)
}

func (s Story) decodeString(addr uint32, allowAbbrev bool) (string, uint32, error) {
	var sb strings.Builder
	st := newZsciiState()

	words := uint32(0)
	for {
		w, err := s.mem.ReadWord(addr + words*2)
		if err != nil {
			return "", 0, err
		}
		words++

		zchars := [zcharsPerWord]uint8{
			uint8(w >> 10 & 0x1F),
			uint8(w >> 5 & 0x1F),
			uint8(w & 0x1F),
		}
		for _, zc := range zchars {
			if err := s.decodeZChar(&sb, &st, zc, allowAbbrev); err != nil {
				return "", 0, err
			}
		}

		if w&0x8000 != 0 {
			return sb.String(), words * 2, nil
		}
	}
}

func (s Story) decodeZChar(sb *strings.Builder, st *zsciiState, zc uint8, allowAbbrev bool) error {
	switch {
	case st.trailing:
		code := uint16(st.high)<<5 | uint16(zc)
		sb.WriteString(zsciiToText(code))
		*st = newZsciiState()
	case st.leading:
		st.leading = false
		st.trailing = true
		st.high = zc
	case st.abbrevRow >= 0:
		index := st.abbrevRow + int(zc)
		*st = newZsciiState()
		expansion, err := s.expandAbbreviation(index, allowAbbrev)
		if err != nil {
			return err
		}
		sb.WriteString(expansion)
	case zc == 0:
		sb.WriteByte(' ')
	case zc >= 1 && zc <= 3:
		if !allowAbbrev {
			return fmt.Errorf("%w: abbreviation z-char %d inside an abbreviation", zerrors.ErrNestedAbbreviation, zc)
		}
		st.abbrevRow = abbreviationSize * (int(zc) - 1)
	case zc == 4:
		st.alphabet = 1
	case zc == 5:
		st.alphabet = 2
	case zc == 6 && st.alphabet == 2:
		st.leading = true
		st.alphabet = 0
	default:
		sb.WriteByte(alphabets[st.alphabet][zc-6])
		st.alphabet = 0
	}
	return nil
}

// expandAbbreviation decodes abbreviation table entry index. Abbreviation
// contents must not themselves use abbreviation codes (a v3 constraint),
// which the allowAbbrev=false recursion enforces.
func (s Story) expandAbbreviation(index int, allowAbbrev bool) (string, error) {
	if !allowAbbrev {
		return "", zerrors.ErrNestedAbbreviation
	}
	if index < 0 || index >= abbreviationRows*abbreviationSize {
		return "", fmt.Errorf("%w: entry %d", zerrors.ErrInvalidAbbreviationIndex, index)
	}
	wordAddr, err := s.mem.ReadWord(s.AbbreviationsBase() + uint32(index)*2)
	if err != nil {
		return "", err
	}
	text, _, err := s.decodeString(UnpackAddress(wordAddr), false)
	return text, err
}

// zsciiToText maps a single ZSCII code point to output text.
func zsciiToText(code uint16) string {
	switch {
	case code == 13:
		return "\n"
	case code >= 32 && code <= 126:
		return string(rune(code))
	default:
		return ""
	}
}

// ZsciiChar renders one ZSCII output character, as printed by print_char.
func ZsciiChar(code uint16) string {
	return zsciiToText(code)
}

const dictionaryZChars = 6

// EncodeWord encodes up to six z-chars of text into the two-word (four
// byte) dictionary form, padding with z-char 5 and clamping longer input.
// Abbreviations are never produced.
func EncodeWord(text string) [4]byte {
	zchars := make([]uint8, 0, dictionaryZChars+3)
	for i := 0; i < len(text) && len(zchars) < dictionaryZChars; i++ {
		c := text[i]
		matched := false
		for a, table := range alphabets {
			if idx := strings.IndexByte(table, c); idx >= 0 && !(a == 2 && idx == 0) {
				if a != 0 {
					zchars = append(zchars, uint8(a+3))
				}
				zchars = append(zchars, uint8(idx+6))
				matched = true
				break
			}
		}
		if !matched {
			// 10-bit literal escape: shift to A2, z-char 6, then both halves.
			zchars = append(zchars, 5, 6, c>>5, c&0x1F)
		}
	}
	for len(zchars) < dictionaryZChars {
		zchars = append(zchars, 5)
	}
	zchars = zchars[:dictionaryZChars]

	var out [4]byte
	for i := 0; i < 2; i++ {
		w := uint16(zchars[i*3])<<10 | uint16(zchars[i*3+1])<<5 | uint16(zchars[i*3+2])
		if i == 1 {
			w |= 0x8000
		}
		out[i*2] = byte(w >> 8)
		out[i*2+1] = byte(w)
	}
	return out
}
