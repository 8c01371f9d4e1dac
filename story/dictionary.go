package story

import (
	"strings"
)

// Dictionary is a decoded view of the dictionary header. Entries stay in
// memory; only the layout is captured here.
type Dictionary struct {
	Separators  []byte
	EntryLength int
	EntryCount  int
	entriesBase uint32
}

// Dictionary decodes the dictionary header at the header-indicated base.
func (s Story) Dictionary() (Dictionary, error) {
	base := s.DictionaryBase()
	n, err := s.mem.ReadByte(base)
	if err != nil {
		return Dictionary{}, err
	}
	seps := make([]byte, n)
	for i := range seps {
		if seps[i], err = s.mem.ReadByte(base + 1 + uint32(i)); err != nil {
			return Dictionary{}, err
		}
	}
	entryLength, err := s.mem.ReadByte(base + 1 + uint32(n))
	if err != nil {
		return Dictionary{}, err
	}
	entryCount, err := s.mem.ReadWord(base + 2 + uint32(n))
	if err != nil {
		return Dictionary{}, err
	}
	return Dictionary{
		Separators:  seps,
		EntryLength: int(entryLength),
		EntryCount:  int(entryCount),
		entriesBase: base + 4 + uint32(n),
	}, nil
}

// EntryAddr returns the byte address of entry index (0-based).
func (d Dictionary) EntryAddr(index int) uint32 {
	return d.entriesBase + uint32(index*d.EntryLength)
}

// LookupWord finds text's dictionary entry address, or 0 when absent.
// Entries are sorted on their 4-byte encoded form, so a binary search over
// the encoded prefix suffices.
func (s Story) LookupWord(text string) (uint32, error) {
	dict, err := s.Dictionary()
	if err != nil {
		return 0, err
	}
	enc := EncodeWord(strings.ToLower(text))
	target := uint32(enc[0])<<24 | uint32(enc[1])<<16 | uint32(enc[2])<<8 | uint32(enc[3])

	lo, hi := 0, dict.EntryCount-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		addr := dict.EntryAddr(mid)
		w0, err := s.mem.ReadWord(addr)
		if err != nil {
			return 0, err
		}
		w1, err := s.mem.ReadWord(addr + 2)
		if err != nil {
			return 0, err
		}
		entry := uint32(w0)<<16 | uint32(w1)
		switch {
		case target < entry:
			hi = mid - 1
		case target > entry:
			lo = mid + 1
		default:
			return addr, nil
		}
	}
	return 0, nil
}

// Token is one word of a tokenised input line.
type Token struct {
	Text string
	// Position is the 1-based offset of the first letter within the text
	// buffer, as the parse-block format records it.
	Position int
}

// Tokenize splits line on spaces and on the dictionary's word separators.
// Separators form tokens of their own; spaces are discarded.
func (d Dictionary) Tokenize(line string) []Token {
	var tokens []Token
	start := -1
	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, Token{Text: line[start:end], Position: start + 1})
			start = -1
		}
	}
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == ' ':
			flush(i)
		case d.isSeparator(c):
			flush(i)
			tokens = append(tokens, Token{Text: string(c), Position: i + 1})
		default:
			if start < 0 {
				start = i
			}
		}
	}
	flush(len(line))
	return tokens
}

func (d Dictionary) isSeparator(c byte) bool {
	for _, sep := range d.Separators {
		if c == sep {
			return true
		}
	}
	return false
}
