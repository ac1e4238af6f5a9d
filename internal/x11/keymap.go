package x11

import (
	"fmt"
	"unicode"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/matheus3301/chordd/internal/chord"
	"github.com/matheus3301/chordd/internal/keysym"
)

// Keymap is a snapshot of the server's keycode to keysym table, as returned
// by GetKeyboardMapping.
type Keymap struct {
	min     xproto.Keycode
	perCode int
	syms    []xproto.Keysym
}

// NewKeymap wraps a keyboard mapping starting at keycode first with perCode
// keysyms (columns) per keycode.
func NewKeymap(first xproto.Keycode, perCode int, syms []xproto.Keysym) *Keymap {
	return &Keymap{min: first, perCode: perCode, syms: syms}
}

// Keysym returns the keysym in the given column of code, or NoSymbol.
func (k *Keymap) Keysym(code xproto.Keycode, col int) keysym.Code {
	if code < k.min || col < 0 || col >= k.perCode {
		return keysym.NoSymbol
	}
	i := int(code-k.min)*k.perCode + col
	if i >= len(k.syms) {
		return keysym.NoSymbol
	}
	return keysym.Code(k.syms[i])
}

// Keycodes returns every keycode whose column 0 holds sym.
func (k *Keymap) Keycodes(sym keysym.Code) []xproto.Keycode {
	var out []xproto.Keycode
	k.each(func(code xproto.Keycode) {
		if k.Keysym(code, 0) == sym {
			out = append(out, code)
		}
	})
	return out
}

// find locates sym in column 0, then column 1 (the shifted level).
func (k *Keymap) find(sym keysym.Code) (xproto.Keycode, int, bool) {
	for col := 0; col < min(2, k.perCode); col++ {
		var hit xproto.Keycode
		found := false
		k.each(func(code xproto.Keycode) {
			if !found && k.Keysym(code, col) == sym {
				hit, found = code, true
			}
		})
		if found {
			return hit, col, true
		}
	}
	return 0, 0, false
}

func (k *Keymap) each(fn func(code xproto.Keycode)) {
	if k.perCode == 0 {
		return
	}
	n := len(k.syms) / k.perCode
	for i := 0; i < n; i++ {
		fn(k.min + xproto.Keycode(i))
	}
}

// Canonical rewrites a configured chord into the physical key the server
// reports: the column 0 keysym of the key carrying sym, plus Shift when sym
// is on the shifted level. colon becomes shift+semicolon on a US layout.
func (k *Keymap) Canonical(c chord.Chord) (chord.Chord, error) {
	code, col, ok := k.find(c.Key)
	if !ok {
		// Some layouts list only the lowercase letter.
		if r, isRune := c.Key.Rune(); isRune && unicode.IsUpper(r) {
			code, _, ok = k.find(keysym.FromRune(unicode.ToLower(r)))
			col = 1
		}
	}
	if !ok {
		return chord.Chord{}, fmt.Errorf("%s is not on this keyboard: %w", c.Key, keysym.ErrNoSuchKey)
	}
	out := chord.Chord{Mods: c.Mods, Key: k.Keysym(code, 0)}
	if col == 1 {
		out.Mods = out.Mods.With(chord.Shift)
	}
	return out, nil
}

// Chord translates a key press. It reports false for modifier keys and
// unmapped keycodes. ignored holds the lock-style modifier bits to drop.
func (k *Keymap) Chord(code xproto.Keycode, state, ignored uint16) (chord.Chord, bool) {
	sym := k.Keysym(code, 0)
	if sym == keysym.NoSymbol || sym.IsModifier() {
		return chord.Chord{}, false
	}
	mods := chord.Mods(state&^ignored) & chord.Mask
	return chord.Chord{Mods: mods, Key: sym}, true
}
