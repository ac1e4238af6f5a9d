package chord

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/matheus3301/chordd/internal/keysym"
)

// Modifier is a single modifier bit. Bit positions follow the X11 core
// modifier mask; bit 1 (Lock) is never used.
type Modifier uint16

const (
	Shift   Modifier = 1 << 0
	Control Modifier = 1 << 2
	Mod1    Modifier = 1 << 3
	Mod2    Modifier = 1 << 4
	Mod3    Modifier = 1 << 5
	Mod4    Modifier = 1 << 6
	Mod5    Modifier = 1 << 7
)

// Mask covers every bit a Mods value may carry.
const Mask = Mods(Shift | Control | Mod1 | Mod2 | Mod3 | Mod4 | Mod5)

var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{Control, "ctrl"},
	{Mod1, "alt"},
	{Mod2, "mod2"},
	{Mod3, "mod3"},
	{Mod4, "super"},
	{Mod5, "mod5"},
	{Shift, "shift"},
}

// ErrUnknownModifier is returned for text that names no modifier.
var ErrUnknownModifier = errors.New("unknown modifier")

// ParseModifier resolves a modifier alias. Single-letter aliases are
// case-sensitive (S is Shift, s is Super); longer names are not.
func ParseModifier(text string) (Modifier, error) {
	switch text {
	case "C":
		return Control, nil
	case "S":
		return Shift, nil
	case "A", "M":
		return Mod1, nil
	case "s", "h":
		return Mod4, nil
	}
	if len(text) > 1 {
		switch strings.ToLower(text) {
		case "control", "ctrl":
			return Control, nil
		case "shift":
			return Shift, nil
		case "mod1", "alt", "meta":
			return Mod1, nil
		case "mod2":
			return Mod2, nil
		case "mod3":
			return Mod3, nil
		case "mod4", "super", "windows", "command", "hyper":
			return Mod4, nil
		case "mod5":
			return Mod5, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", text, ErrUnknownModifier)
}

func (m Modifier) String() string {
	for _, o := range modifierOrder {
		if o.mod == m {
			return o.name
		}
	}
	return fmt.Sprintf("Modifier(%#x)", uint16(m))
}

// Mods is an unordered set of modifiers.
type Mods uint16

// With returns the set with m added.
func (s Mods) With(m Modifier) Mods { return s | Mods(m) }

// Without returns the set with m removed.
func (s Mods) Without(m Modifier) Mods { return s &^ Mods(m) }

// Has reports whether m is in the set.
func (s Mods) Has(m Modifier) bool { return s&Mods(m) != 0 }

// String renders the set in a fixed order, joined with "+".
func (s Mods) String() string {
	var parts []string
	for _, o := range modifierOrder {
		if s.Has(o.mod) {
			parts = append(parts, o.name)
		}
	}
	return strings.Join(parts, "+")
}

// Chord is a key pressed while a set of modifiers is held.
type Chord struct {
	Mods Mods
	Key  keysym.Code
}

func (c Chord) String() string {
	if c.Mods == 0 {
		return c.Key.String()
	}
	return c.Mods.String() + "+" + c.Key.String()
}

// Compare orders chords by key, then by modifier set.
func Compare(a, b Chord) int {
	switch {
	case a.Key < b.Key:
		return -1
	case a.Key > b.Key:
		return 1
	case a.Mods < b.Mods:
		return -1
	case a.Mods > b.Mods:
		return 1
	}
	return 0
}

// Sequence is a series of chords pressed one after another.
type Sequence []Chord

// Equal reports whether both sequences hold the same chords in order.
func (s Sequence) Equal(o Sequence) bool {
	return slices.Equal(s, o)
}

func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}
