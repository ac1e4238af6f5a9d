package x11

import (
	"errors"
	"slices"
	"testing"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/matheus3301/chordd/internal/chord"
	"github.com/matheus3301/chordd/internal/keysym"
)

// usKeymap is a small slice of a US layout, two columns per keycode,
// starting at keycode 8.
func usKeymap() *Keymap {
	rows := [][2]keysym.Code{
		{keysym.Escape, keysym.NoSymbol},          // 8
		{'a', 'A'},                                // 9
		{'b', 'B'},                                // 10
		{';', ':'},                                // 11
		{'1', '!'},                                // 12
		{keysym.Return, keysym.NoSymbol},          // 13
		{keysym.ShiftL, keysym.NoSymbol},          // 14
		{'q', keysym.NoSymbol},                    // 15, lowercase only
		{keysym.Return, keysym.NoSymbol},          // 16, second Return key
		{keysym.NumLock, keysym.NoSymbol},         // 17
		{keysym.F1, keysym.NoSymbol},              // 18
	}
	var syms []xproto.Keysym
	for _, r := range rows {
		syms = append(syms, xproto.Keysym(r[0]), xproto.Keysym(r[1]))
	}
	return NewKeymap(8, 2, syms)
}

func chordOf(t *testing.T, text string) chord.Chord {
	t.Helper()
	c, err := chord.ParseChord(text)
	if err != nil {
		t.Fatalf("ParseChord(%q) error = %v", text, err)
	}
	return c
}

func TestKeysym(t *testing.T) {
	km := usKeymap()
	tests := []struct {
		code xproto.Keycode
		col  int
		want keysym.Code
	}{
		{9, 0, 'a'},
		{9, 1, 'A'},
		{11, 1, ':'},
		{7, 0, keysym.NoSymbol},
		{9, 2, keysym.NoSymbol},
		{200, 0, keysym.NoSymbol},
	}
	for _, tt := range tests {
		if got := km.Keysym(tt.code, tt.col); got != tt.want {
			t.Errorf("Keysym(%d, %d) = %s, want %s", tt.code, tt.col, got, tt.want)
		}
	}
}

func TestCanonical(t *testing.T) {
	km := usKeymap()
	tests := []struct {
		in   string
		want string
	}{
		{"semicolon", "semicolon"},
		{"colon", "shift+semicolon"},
		{"shift-colon", "shift+semicolon"},
		{"ctrl+A", "ctrl+shift+a"},
		{"ctrl+a", "ctrl+a"},
		{"super+exclam", "super+shift+1"},
		{"Q", "shift+q"},
		{"alt+Return", "alt+Return"},
		{"F1", "F1"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := km.Canonical(chordOf(t, tt.in))
			if err != nil {
				t.Fatalf("Canonical() error = %v", err)
			}
			if want := chordOf(t, tt.want); got != want {
				t.Errorf("Canonical(%s) = %s, want %s", tt.in, got, want)
			}
		})
	}
}

func TestCanonicalKeepsShiftedSymbolsDistinct(t *testing.T) {
	km := usKeymap()
	colon, err := km.Canonical(chordOf(t, "shift-colon"))
	if err != nil {
		t.Fatal(err)
	}
	semi, err := km.Canonical(chordOf(t, "semicolon"))
	if err != nil {
		t.Fatal(err)
	}
	if colon == semi {
		t.Errorf("shift-colon and semicolon both canonicalise to %s", colon)
	}
}

func TestCanonicalMissingKey(t *testing.T) {
	km := usKeymap()
	_, err := km.Canonical(chordOf(t, "F12"))
	if !errors.Is(err, keysym.ErrNoSuchKey) {
		t.Errorf("Canonical(F12) error = %v, want ErrNoSuchKey", err)
	}
}

func TestKeycodes(t *testing.T) {
	km := usKeymap()
	if got := km.Keycodes(keysym.Return); !slices.Equal(got, []xproto.Keycode{13, 16}) {
		t.Errorf("Keycodes(Return) = %v, want [13 16]", got)
	}
	if got := km.Keycodes(':'); len(got) != 0 {
		t.Errorf("Keycodes(colon) = %v, want none (column 1 only)", got)
	}
}

func TestChord(t *testing.T) {
	km := usKeymap()
	const numLock = 1 << 4
	ignored := uint16(xproto.ModMaskLock) | numLock
	tests := []struct {
		name  string
		code  xproto.Keycode
		state uint16
		want  string
		ok    bool
	}{
		{"plain", 9, 0, "a", true},
		{"ctrl", 9, xproto.ModMaskControl, "ctrl+a", true},
		{"shifted symbol", 11, xproto.ModMaskShift, "shift+semicolon", true},
		{"caps lock ignored", 9, xproto.ModMaskLock | xproto.ModMaskControl, "ctrl+a", true},
		{"num lock ignored", 13, numLock | xproto.ModMask4, "super+Return", true},
		{"button bits dropped", 10, xproto.ModMask1 | xproto.KeyButMaskButton1, "alt+b", true},
		{"modifier key", 14, 0, "", false},
		{"unmapped", 100, 0, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := km.Chord(tt.code, tt.state, ignored)
			if ok != tt.ok {
				t.Fatalf("Chord() ok = %v, want %v", ok, tt.ok)
			}
			if ok && got != chordOf(t, tt.want) {
				t.Errorf("Chord() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLockCombos(t *testing.T) {
	got := lockCombos(uint16(xproto.ModMaskLock) | xproto.ModMask2)
	slices.Sort(got)
	want := []uint16{0, xproto.ModMaskLock, xproto.ModMask2, xproto.ModMaskLock | xproto.ModMask2}
	slices.Sort(want)
	if !slices.Equal(got, want) {
		t.Errorf("lockCombos() = %v, want %v", got, want)
	}
	if got := lockCombos(0); !slices.Equal(got, []uint16{0}) {
		t.Errorf("lockCombos(0) = %v, want [0]", got)
	}
}
