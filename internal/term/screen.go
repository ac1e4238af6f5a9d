// Package term is a key source backed by the controlling terminal. It lets a
// bindings file be tried without an X server.
package term

import (
	"errors"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/matheus3301/chordd/internal/chord"
)

// ErrQuit is delivered on Errors when the user presses Ctrl+C.
var ErrQuit = errors.New("quit")

const maxLines = 200

// Screen delivers chords typed in the terminal and shows a scrolling log.
type Screen struct {
	screen tcell.Screen
	style  tcell.Style

	mu    sync.Mutex
	lines []string

	chords    chan chord.Chord
	errs      chan error
	closing   chan struct{}
	closeOnce sync.Once
}

// Open takes over the controlling terminal.
func Open() (*Screen, error) {
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return NewScreen(screen)
}

// NewScreen initialises screen and starts reading key events from it.
func NewScreen(screen tcell.Screen) (*Screen, error) {
	if err := screen.Init(); err != nil {
		return nil, err
	}
	s := &Screen{
		screen:  screen,
		style:   tcell.StyleDefault,
		chords:  make(chan chord.Chord, 16),
		errs:    make(chan error, 1),
		closing: make(chan struct{}),
	}
	screen.Clear()
	go s.poll()
	return s, nil
}

// Canonical implements eventloop.Source.
func (s *Screen) Canonical(c chord.Chord) (chord.Chord, error) {
	return Normalize(c), nil
}

// Listen is a no-op: a terminal delivers every key.
func (s *Screen) Listen([]chord.Chord) error { return nil }

// Capture is a no-op: a terminal delivers every key.
func (s *Screen) Capture(bool) error { return nil }

// Chords implements eventloop.Source.
func (s *Screen) Chords() <-chan chord.Chord { return s.chords }

// Errors implements eventloop.Source.
func (s *Screen) Errors() <-chan error { return s.errs }

// Print appends a line to the log and redraws.
func (s *Screen) Print(line string) {
	s.mu.Lock()
	s.lines = append(s.lines, line)
	if len(s.lines) > maxLines {
		s.lines = s.lines[len(s.lines)-maxLines:]
	}
	s.mu.Unlock()
	s.draw()
}

// Lines returns a copy of the log.
func (s *Screen) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Close restores the terminal.
func (s *Screen) Close() {
	s.closeOnce.Do(func() {
		close(s.closing)
		s.screen.Fini()
	})
}

func (s *Screen) draw() {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, height := s.screen.Size()
	s.screen.Clear()
	start := max(len(s.lines)-height, 0)
	for y, line := range s.lines[start:] {
		x := 0
		for _, r := range line {
			s.screen.SetContent(x, y, r, nil, s.style)
			x++
		}
	}
	s.screen.Show()
}

func (s *Screen) poll() {
	for {
		ev := s.screen.PollEvent()
		if ev == nil {
			return
		}
		switch e := ev.(type) {
		case *tcell.EventKey:
			if isInterrupt(e) {
				select {
				case s.errs <- ErrQuit:
				default:
				}
				return
			}
			c, ok := Translate(e)
			if !ok {
				continue
			}
			select {
			case s.chords <- c:
			case <-s.closing:
				return
			}
		case *tcell.EventResize:
			s.screen.Sync()
			s.draw()
		}
	}
}

func isInterrupt(e *tcell.EventKey) bool {
	if e.Key() == tcell.KeyCtrlC {
		return true
	}
	return e.Key() == tcell.KeyRune && e.Rune() == 'c' && e.Modifiers()&tcell.ModCtrl != 0
}
