package matcher

import (
	"errors"
	"testing"
	"time"

	"github.com/matheus3301/chordd/internal/chord"
	"github.com/matheus3301/chordd/internal/config"
)

const timeout = time.Second

func bind(seq, command string, line int) config.Binding {
	return config.Binding{
		Sequence: chord.MustParseSequence(seq),
		Action:   config.Action{Kind: config.RunCommand, Command: command},
		Line:     line,
	}
}

func newMatcher(t *testing.T, bindings ...config.Binding) *Matcher {
	t.Helper()
	m, err := New(bindings, timeout)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return m
}

func ch(t *testing.T, text string) chord.Chord {
	t.Helper()
	c, err := chord.ParseChord(text)
	if err != nil {
		t.Fatalf("ParseChord(%q) error = %v", text, err)
	}
	return c
}

// step describes one expected Result; command is checked for Completed.
type step struct {
	outcome Outcome
	command string
}

func checkResults(t *testing.T, got []Result, want ...step) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d results %v, want %d", len(got), got, len(want))
	}
	for i, w := range want {
		if got[i].Outcome != w.outcome {
			t.Errorf("results[%d].Outcome = %s, want %s", i, got[i].Outcome, w.outcome)
			continue
		}
		if w.outcome == Completed {
			if got[i].Binding == nil {
				t.Errorf("results[%d].Binding = nil", i)
			} else if got[i].Binding.Action.Command != w.command {
				t.Errorf("results[%d] command = %q, want %q", i, got[i].Binding.Action.Command, w.command)
			}
		} else if got[i].Binding != nil {
			t.Errorf("results[%d].Binding = %+v, want nil", i, got[i].Binding)
		}
	}
}

func prefixPair(t *testing.T) *Matcher {
	return newMatcher(t, bind("ctrl+a", "echo A", 1), bind("ctrl+a b", "echo AB", 2))
}

func TestLongerSequenceWithinTimeout(t *testing.T) {
	m := prefixPair(t)
	checkResults(t, m.Feed(ch(t, "ctrl+a"), 0), step{outcome: Pending})
	if !m.InProgress() {
		t.Fatal("InProgress() = false after pending chord")
	}
	checkResults(t, m.Feed(ch(t, "b"), 300*time.Millisecond), step{Completed, "echo AB"})
	if m.InProgress() {
		t.Error("InProgress() = true after completion")
	}
}

func TestShorterSequenceOnExpire(t *testing.T) {
	m := prefixPair(t)
	m.Feed(ch(t, "ctrl+a"), 0)
	r, ok := m.Expire()
	if !ok {
		t.Fatal("Expire() = false while in progress")
	}
	checkResults(t, []Result{r}, step{Completed, "echo A"})
	if m.InProgress() {
		t.Error("InProgress() = true after expire")
	}
	if _, ok := m.Expire(); ok {
		t.Error("Expire() = true at root")
	}
}

func TestLateChordExpiresFirst(t *testing.T) {
	m := prefixPair(t)
	m.Feed(ch(t, "ctrl+a"), 0)
	got := m.Feed(ch(t, "b"), 2*timeout)
	checkResults(t, got, step{Completed, "echo A"}, step{outcome: NoMatch})
}

func TestLateChordRestartsAttempt(t *testing.T) {
	m := newMatcher(t, bind("ctrl+x ctrl+s", "save", 1))
	m.Feed(ch(t, "ctrl+x"), 0)
	got := m.Feed(ch(t, "ctrl+x"), timeout+time.Millisecond)
	checkResults(t, got, step{outcome: TimedOut}, step{outcome: Pending})
	checkResults(t, m.Feed(ch(t, "ctrl+s"), 10*time.Millisecond), step{Completed, "save"})
}

func TestElapsedEqualToTimeoutIsInTime(t *testing.T) {
	m := prefixPair(t)
	m.Feed(ch(t, "ctrl+a"), 0)
	checkResults(t, m.Feed(ch(t, "b"), timeout), step{Completed, "echo AB"})
}

func TestTimeoutIgnoredAtRoot(t *testing.T) {
	m := prefixPair(t)
	checkResults(t, m.Feed(ch(t, "ctrl+a"), time.Hour), step{outcome: Pending})
}

func TestNoMatchRecovery(t *testing.T) {
	m := newMatcher(t, bind("ctrl+x ctrl+s", "save", 1), bind("ctrl+x ctrl+c", "quit", 2))

	checkResults(t, m.Feed(ch(t, "q"), 0), step{outcome: NoMatch})

	m.Feed(ch(t, "ctrl+x"), 0)
	got := m.Feed(ch(t, "z"), 0)
	checkResults(t, got, step{outcome: NoMatch})
	if !got[0].Chords.Equal(chord.MustParseSequence("ctrl+x z")) {
		t.Errorf("NoMatch Chords = %s, want ctrl+x z", got[0].Chords)
	}
	if m.InProgress() {
		t.Fatal("InProgress() = true after mismatch")
	}

	m.Feed(ch(t, "ctrl+x"), 0)
	checkResults(t, m.Feed(ch(t, "ctrl+c"), 0), step{Completed, "quit"})
}

func TestMismatchReevaluatesAsFirstChord(t *testing.T) {
	m := newMatcher(t, bind("ctrl+x ctrl+s", "save", 1), bind("ctrl+y", "yank", 2))
	m.Feed(ch(t, "ctrl+x"), 0)
	got := m.Feed(ch(t, "ctrl+y"), 0)
	checkResults(t, got, step{outcome: NoMatch}, step{Completed, "yank"})

	m.Feed(ch(t, "ctrl+x"), 0)
	got = m.Feed(ch(t, "ctrl+x"), 0)
	checkResults(t, got, step{outcome: NoMatch}, step{outcome: Pending})
	if !m.Progress().Equal(chord.MustParseSequence("ctrl+x")) {
		t.Errorf("Progress() = %s, want ctrl+x", m.Progress())
	}
}

func TestMismatchAtTerminalNodeFiresShorter(t *testing.T) {
	m := prefixPair(t)
	m.Feed(ch(t, "ctrl+a"), 0)
	got := m.Feed(ch(t, "c"), 0)
	checkResults(t, got, step{Completed, "echo A"}, step{outcome: NoMatch})

	m.Feed(ch(t, "ctrl+a"), 0)
	got = m.Feed(ch(t, "ctrl+a"), 0)
	checkResults(t, got, step{Completed, "echo A"}, step{outcome: Pending})
}

func TestDeepPrefixChain(t *testing.T) {
	m := newMatcher(t,
		bind("a", "1", 1),
		bind("a b", "2", 2),
		bind("a b c", "3", 3),
	)
	m.Feed(ch(t, "a"), 0)
	checkResults(t, m.Feed(ch(t, "b"), 0), step{outcome: Pending})
	r, ok := m.Expire()
	if !ok {
		t.Fatal("Expire() = false")
	}
	checkResults(t, []Result{r}, step{Completed, "2"})

	m.Feed(ch(t, "a"), 0)
	m.Feed(ch(t, "b"), 0)
	checkResults(t, m.Feed(ch(t, "c"), 0), step{Completed, "3"})
}

func TestNoTimeout(t *testing.T) {
	m, err := New([]config.Binding{bind("ctrl+a", "echo A", 1), bind("ctrl+a b", "echo AB", 2)}, 0)
	if err != nil {
		t.Fatal(err)
	}
	m.Feed(ch(t, "ctrl+a"), 0)
	checkResults(t, m.Feed(ch(t, "b"), time.Hour), step{Completed, "echo AB"})
}

func TestResultChords(t *testing.T) {
	m := prefixPair(t)
	got := m.Feed(ch(t, "ctrl+a"), 0)
	if !got[0].Chords.Equal(chord.MustParseSequence("ctrl+a")) {
		t.Errorf("pending Chords = %s", got[0].Chords)
	}
	got = m.Feed(ch(t, "b"), 0)
	if !got[0].Chords.Equal(chord.MustParseSequence("ctrl+a b")) {
		t.Errorf("completed Chords = %s", got[0].Chords)
	}
}

func TestConflict(t *testing.T) {
	_, err := New([]config.Binding{
		bind("ctrl+a b", "one", 1),
		bind("ctrl+a", "two", 2),
		bind("C-a b", "three", 3),
	}, timeout)
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("New() error = %v, want *ConflictError", err)
	}
	if ce.First.Line != 1 || ce.Second.Line != 3 {
		t.Errorf("conflict lines = %d, %d, want 1, 3", ce.First.Line, ce.Second.Line)
	}
}

func TestEmptySequence(t *testing.T) {
	_, err := New([]config.Binding{{Line: 4}}, timeout)
	if !errors.Is(err, ErrEmptySequence) {
		t.Errorf("New() error = %v, want ErrEmptySequence", err)
	}
}

func TestRoots(t *testing.T) {
	m := newMatcher(t,
		bind("super+Return", "xterm", 1),
		bind("ctrl+x ctrl+s", "save", 2),
		bind("ctrl+x ctrl+c", "quit", 3),
		bind("b", "b", 4),
	)
	roots := m.Roots()
	if len(roots) != 3 {
		t.Fatalf("Roots() = %v, want 3 chords", roots)
	}
	for i := 1; i < len(roots); i++ {
		if chord.Compare(roots[i-1], roots[i]) >= 0 {
			t.Errorf("Roots() not sorted: %v", roots)
		}
	}
}

func TestReset(t *testing.T) {
	m := prefixPair(t)
	m.Feed(ch(t, "ctrl+a"), 0)
	m.Reset()
	if m.InProgress() || len(m.Progress()) != 0 {
		t.Error("Reset() left an attempt in progress")
	}
	checkResults(t, m.Feed(ch(t, "b"), 0), step{outcome: NoMatch})
}

func TestEmptyMatcher(t *testing.T) {
	m := newMatcher(t)
	if m.Len() != 0 || len(m.Roots()) != 0 {
		t.Errorf("Len() = %d, Roots() = %v", m.Len(), m.Roots())
	}
	checkResults(t, m.Feed(ch(t, "a"), 0), step{outcome: NoMatch})
}
