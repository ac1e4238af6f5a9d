package keysym

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Code is an X11 keysym value.
type Code uint32

// NoSymbol is the keysym X uses for an empty keyboard-mapping slot.
const NoSymbol Code = 0

// unicodeOffset is added to a code point outside Latin-1 to form its keysym.
const unicodeOffset = 0x01000000

// ErrNoSuchKey is returned when a name does not resolve to a keysym.
var ErrNoSuchKey = errors.New("no such key")

// Lookup resolves a key name. A single character maps by code point; anything
// longer is looked up in the X keysym name table, case-sensitively.
func Lookup(name string) (Code, error) {
	if name == "" {
		return NoSymbol, fmt.Errorf("empty key name: %w", ErrNoSuchKey)
	}
	if utf8.RuneCountInString(name) == 1 {
		r, _ := utf8.DecodeRuneInString(name)
		if r == utf8.RuneError {
			return NoSymbol, fmt.Errorf("%q: %w", name, ErrNoSuchKey)
		}
		return FromRune(r), nil
	}
	code, ok := byName[name]
	if !ok {
		return NoSymbol, fmt.Errorf("%q: %w", name, ErrNoSuchKey)
	}
	return code, nil
}

// FromRune returns the keysym for a character.
func FromRune(r rune) Code {
	if (r >= 0x20 && r <= 0x7e) || (r >= 0xa0 && r <= 0xff) {
		return Code(r)
	}
	return Code(r) | unicodeOffset
}

// Rune returns the character a keysym types, if it types one.
func (c Code) Rune() (rune, bool) {
	switch {
	case (c >= 0x20 && c <= 0x7e) || (c >= 0xa0 && c <= 0xff):
		return rune(c), true
	case c >= unicodeOffset+0x100 && c <= unicodeOffset+0x10ffff:
		return rune(c - unicodeOffset), true
	}
	return 0, false
}

// IsModifier reports whether the keysym names a modifier key itself.
func (c Code) IsModifier() bool {
	switch {
	case c >= ShiftL && c <= HyperR:
		return true
	case c == ModeSwitch, c == NumLock, c == ISOLevel3Shift, c == ISOLevel5Shift:
		return true
	}
	return false
}

// String returns the keysym name, or the character for unnamed printable keysyms.
func (c Code) String() string {
	if name, ok := byCode[c]; ok {
		return name
	}
	if r, ok := c.Rune(); ok {
		return string(r)
	}
	return fmt.Sprintf("0x%x", uint32(c))
}
