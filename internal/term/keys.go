package term

import (
	"unicode"

	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/chordd/internal/chord"
	"github.com/matheus3301/chordd/internal/keysym"
)

// named maps tcell's special keys to X keysyms. Control-letter keys are
// handled separately because several of them alias Tab, Enter and Backspace.
var named = map[tcell.Key]keysym.Code{
	tcell.KeyTab:        keysym.Tab,
	tcell.KeyEnter:      keysym.Return,
	tcell.KeyBackspace:  keysym.BackSpace,
	tcell.KeyBackspace2: keysym.BackSpace,
	tcell.KeyEscape:     keysym.Escape,
	tcell.KeyDelete:     keysym.Delete,
	tcell.KeyInsert:     keysym.Insert,
	tcell.KeyHome:       keysym.Home,
	tcell.KeyEnd:        keysym.End,
	tcell.KeyPgUp:       keysym.Prior,
	tcell.KeyPgDn:       keysym.Next,
	tcell.KeyUp:         keysym.Up,
	tcell.KeyDown:       keysym.Down,
	tcell.KeyLeft:       keysym.Left,
	tcell.KeyRight:      keysym.Right,
}

// Translate converts a terminal key event to a chord. It reports false for
// keys with no X equivalent.
func Translate(ev *tcell.EventKey) (chord.Chord, bool) {
	var mods chord.Mods
	m := ev.Modifiers()
	if m&tcell.ModCtrl != 0 {
		mods = mods.With(chord.Control)
	}
	if m&tcell.ModAlt != 0 {
		mods = mods.With(chord.Mod1)
	}
	if m&tcell.ModMeta != 0 {
		mods = mods.With(chord.Mod4)
	}
	if m&tcell.ModShift != 0 {
		mods = mods.With(chord.Shift)
	}

	k := ev.Key()
	switch {
	case k == tcell.KeyRune:
		return Normalize(chord.Chord{Mods: mods, Key: keysym.FromRune(ev.Rune())}), true
	case k == tcell.KeyBacktab:
		return chord.Chord{Mods: mods.With(chord.Shift), Key: keysym.Tab}, true
	}
	if sym, ok := named[k]; ok {
		return chord.Chord{Mods: mods, Key: sym}, true
	}
	switch {
	case k >= tcell.KeyCtrlA && k <= tcell.KeyCtrlZ:
		return chord.Chord{Mods: mods.With(chord.Control), Key: keysym.Code('a' + rune(k-tcell.KeyCtrlA))}, true
	case k >= tcell.KeyF1 && k <= tcell.KeyF35:
		return chord.Chord{Mods: mods, Key: keysym.F1 + keysym.Code(k-tcell.KeyF1)}, true
	}
	return chord.Chord{}, false
}

// Normalize rewrites a chord the way a terminal reports it: an uppercase
// letter is shift plus the lowercase letter, and other printable characters
// already include their shift level.
func Normalize(c chord.Chord) chord.Chord {
	r, ok := c.Key.Rune()
	if !ok {
		return c
	}
	switch {
	case unicode.IsUpper(r):
		return chord.Chord{Mods: c.Mods.With(chord.Shift), Key: keysym.FromRune(unicode.ToLower(r))}
	case unicode.IsLower(r):
		return c
	}
	return chord.Chord{Mods: c.Mods.Without(chord.Shift), Key: c.Key}
}
