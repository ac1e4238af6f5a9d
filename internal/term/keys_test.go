package term

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/chordd/internal/chord"
)

func mustChord(t *testing.T, text string) chord.Chord {
	t.Helper()
	c, err := chord.ParseChord(text)
	if err != nil {
		t.Fatalf("ParseChord(%q) error = %v", text, err)
	}
	return c
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		key  tcell.Key
		r    rune
		mod  tcell.ModMask
		want string
	}{
		{"letter", tcell.KeyRune, 'a', tcell.ModNone, "a"},
		{"uppercase", tcell.KeyRune, 'A', tcell.ModNone, "shift+a"},
		{"uppercase with shift", tcell.KeyRune, 'A', tcell.ModShift, "shift+a"},
		{"symbol", tcell.KeyRune, ':', tcell.ModNone, "colon"},
		{"symbol shift dropped", tcell.KeyRune, ':', tcell.ModShift, "colon"},
		{"alt letter", tcell.KeyRune, 'x', tcell.ModAlt, "alt+x"},
		{"space", tcell.KeyRune, ' ', tcell.ModNone, "space"},
		{"ctrl letter", tcell.KeyCtrlX, 0, tcell.ModCtrl, "ctrl+x"},
		{"enter", tcell.KeyEnter, 0, tcell.ModNone, "Return"},
		{"tab", tcell.KeyTab, 0, tcell.ModNone, "Tab"},
		{"backtab", tcell.KeyBacktab, 0, tcell.ModNone, "shift+Tab"},
		{"escape", tcell.KeyEscape, 0, tcell.ModNone, "Escape"},
		{"arrow", tcell.KeyUp, 0, tcell.ModNone, "Up"},
		{"ctrl arrow", tcell.KeyLeft, 0, tcell.ModCtrl, "ctrl+Left"},
		{"page down", tcell.KeyPgDn, 0, tcell.ModNone, "Next"},
		{"function key", tcell.KeyF5, 0, tcell.ModNone, "F5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Translate(tcell.NewEventKey(tt.key, tt.r, tt.mod))
			if !ok {
				t.Fatal("Translate() ok = false")
			}
			if want := mustChord(t, tt.want); got != want {
				t.Errorf("Translate() = %s, want %s", got, want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ctrl+a", "ctrl+a"},
		{"A", "shift+a"},
		{"shift+a", "shift+a"},
		{"shift+colon", "colon"},
		{"semicolon", "semicolon"},
		{"shift+Tab", "shift+Tab"},
		{"super+Return", "super+Return"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got, want := Normalize(mustChord(t, tt.in)), mustChord(t, tt.want); got != want {
				t.Errorf("Normalize(%s) = %s, want %s", tt.in, got, want)
			}
		})
	}
}

func TestNormalizeKeepsColonAndSemicolonApart(t *testing.T) {
	colon := Normalize(mustChord(t, "shift-colon"))
	semi := Normalize(mustChord(t, "semicolon"))
	if colon == semi {
		t.Errorf("shift-colon and semicolon both normalise to %s", colon)
	}
}

func newSimScreen(t *testing.T) (*Screen, tcell.SimulationScreen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	s, err := NewScreen(sim)
	if err != nil {
		t.Fatalf("NewScreen() error = %v", err)
	}
	t.Cleanup(s.Close)
	return s, sim
}

func TestScreenDeliversChords(t *testing.T) {
	s, sim := newSimScreen(t)

	sim.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)
	sim.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)

	for _, want := range []string{"q", "Return"} {
		select {
		case got := <-s.Chords():
			if got != mustChord(t, want) {
				t.Errorf("chord = %s, want %s", got, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", want)
		}
	}
}

func TestScreenCtrlCQuits(t *testing.T) {
	s, sim := newSimScreen(t)
	sim.InjectKey(tcell.KeyCtrlC, 0, tcell.ModCtrl)

	select {
	case err := <-s.Errors():
		if !errors.Is(err, ErrQuit) {
			t.Errorf("error = %v, want ErrQuit", err)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for quit")
	}
}

func TestScreenPrint(t *testing.T) {
	s, _ := newSimScreen(t)
	s.Print("ctrl+a pending")
	s.Print("ctrl+a b completed")

	if got := s.Lines(); !slices.Equal(got, []string{"ctrl+a pending", "ctrl+a b completed"}) {
		t.Errorf("Lines() = %q", got)
	}
	for i := 0; i < maxLines+5; i++ {
		s.Print("x")
	}
	if n := len(s.Lines()); n != maxLines {
		t.Errorf("len(Lines()) = %d, want %d", n, maxLines)
	}
}
