package eventloop

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/matheus3301/chordd/internal/bus"
	"github.com/matheus3301/chordd/internal/chord"
	"github.com/matheus3301/chordd/internal/config"
	"github.com/matheus3301/chordd/internal/keysym"
	"github.com/matheus3301/chordd/internal/matcher"
	"github.com/matheus3301/chordd/internal/status"
)

// fakeSource is a Source fed by the test.
type fakeSource struct {
	mu       sync.Mutex
	chords   chan chord.Chord
	errs     chan error
	listened []chord.Chord
	captures []bool
	capErr   error
	canon    map[chord.Chord]chord.Chord
	missing  map[keysym.Code]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		chords: make(chan chord.Chord, 16),
		errs:   make(chan error, 1),
	}
}

func (f *fakeSource) Canonical(c chord.Chord) (chord.Chord, error) {
	if f.missing[c.Key] {
		return chord.Chord{}, keysym.ErrNoSuchKey
	}
	if cc, ok := f.canon[c]; ok {
		return cc, nil
	}
	return c, nil
}

func (f *fakeSource) Listen(chords []chord.Chord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listened = chords
	return nil
}

func (f *fakeSource) Capture(on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.captures = append(f.captures, on)
	return f.capErr
}

func (f *fakeSource) Chords() <-chan chord.Chord { return f.chords }

func (f *fakeSource) Errors() <-chan error { return f.errs }

func (f *fakeSource) captureLog() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.captures...)
}

// recorder is a Dispatcher that remembers what it was asked to run.
type recorder struct {
	mu       sync.Mutex
	commands []string
	notify   chan string
}

func newRecorder() *recorder { return &recorder{notify: make(chan string, 16)} }

func (r *recorder) Dispatch(b config.Binding) {
	r.mu.Lock()
	r.commands = append(r.commands, b.Action.Command)
	r.mu.Unlock()
	r.notify <- b.Action.Command
}

func (r *recorder) ran() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

// clock is a manual time source.
type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func parse(t *testing.T, text string) *config.Table {
	t.Helper()
	table, err := config.Parse(strings.NewReader(text), "test.conf")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return table
}

func ch(text string) chord.Chord {
	return chord.MustParseSequence(text)[0]
}

const prefixConf = "bind ctrl+a : echo A\nbind ctrl+a b : echo AB\n"

func newLoop(t *testing.T, conf string, timeout time.Duration) (*Loop, *fakeSource, *recorder, *clock) {
	t.Helper()
	src := newFakeSource()
	m, err := Prepare(parse(t, conf), src, timeout)
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	rec := newRecorder()
	l := New(m, src, rec, nil, nil, zap.NewNop())
	clk := &clock{t: time.Unix(1000, 0)}
	l.now = clk.now
	return l, src, rec, clk
}

func TestStepLongerSequence(t *testing.T) {
	l, src, rec, clk := newLoop(t, prefixConf, time.Second)

	l.Step(ch("ctrl+a"))
	clk.advance(200 * time.Millisecond)
	l.Step(ch("b"))

	if got := rec.ran(); !slices.Equal(got, []string{"echo AB"}) {
		t.Errorf("ran %q, want [echo AB]", got)
	}
	if got := src.captureLog(); len(got) != 2 || !got[0] || got[1] {
		t.Errorf("captures = %v, want [true false]", got)
	}
}

func TestStepLateChordRunsShorter(t *testing.T) {
	l, _, rec, clk := newLoop(t, prefixConf, time.Second)

	l.Step(ch("ctrl+a"))
	clk.advance(3 * time.Second)
	l.Step(ch("b"))

	if got := rec.ran(); !slices.Equal(got, []string{"echo A"}) {
		t.Errorf("ran %q, want [echo A]", got)
	}
}

func TestExpireRunsShorter(t *testing.T) {
	l, src, rec, _ := newLoop(t, prefixConf, time.Second)

	l.Step(ch("ctrl+a"))
	l.Expire()

	if got := rec.ran(); !slices.Equal(got, []string{"echo A"}) {
		t.Errorf("ran %q, want [echo A]", got)
	}
	if got := src.captureLog(); len(got) != 2 || got[1] {
		t.Errorf("captures = %v, want [true false]", got)
	}
}

func TestStepRecoversAfterNoMatch(t *testing.T) {
	l, _, rec, _ := newLoop(t, "bind ctrl+x ctrl+s : save\n", time.Second)

	l.Step(ch("ctrl+x"))
	l.Step(ch("q"))
	l.Step(ch("ctrl+x"))
	l.Step(ch("ctrl+s"))

	if got := rec.ran(); !slices.Equal(got, []string{"save"}) {
		t.Errorf("ran %q, want [save]", got)
	}
}

func TestStepPublishesOutcomes(t *testing.T) {
	l, _, _, _ := newLoop(t, prefixConf, time.Second)
	b := bus.New()
	l.bus = b
	evts, unsub := b.Subscribe(bus.NamespaceMatch, 16)
	defer unsub()

	l.Step(ch("ctrl+a"))
	l.Step(ch("b"))
	l.Step(ch("z"))

	want := []string{bus.KindMatchPending, bus.KindMatchCompleted, bus.KindMatchNoMatch}
	for _, kind := range want {
		select {
		case evt := <-evts:
			if evt.Kind != kind {
				t.Errorf("event = %s, want %s", evt.Kind, kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", kind)
		}
	}
}

func TestStepTracksStatus(t *testing.T) {
	l, _, _, _ := newLoop(t, prefixConf, time.Second)
	st := status.NewMachine(nil)
	for _, s := range []status.State{status.Connecting, status.Ready} {
		if err := st.Transition(s); err != nil {
			t.Fatal(err)
		}
	}
	l.status = st

	l.Step(ch("ctrl+a"))
	if st.Current() != status.Sequencing {
		t.Errorf("status = %s, want SEQUENCING", st.Current())
	}
	l.Step(ch("ctrl+a"))
	if st.Current() != status.Sequencing {
		t.Errorf("status = %s, want SEQUENCING", st.Current())
	}
	l.Expire()
	if st.Current() != status.Ready {
		t.Errorf("status = %s, want READY", st.Current())
	}
}

func TestCaptureFailureRunsBoundPrefix(t *testing.T) {
	l, src, rec, _ := newLoop(t, prefixConf, time.Second)
	src.capErr = errors.New("AlreadyGrabbed")
	st := status.NewMachine(nil)
	for _, s := range []status.State{status.Connecting, status.Ready} {
		if err := st.Transition(s); err != nil {
			t.Fatal(err)
		}
	}
	l.status = st
	core, logs := observer.New(zap.WarnLevel)
	l.logger = zap.New(core)

	l.Step(ch("ctrl+a"))

	entries := logs.FilterMessage("keyboard capture failed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d capture warnings, want 1", len(entries))
	}
	if seq := entries[0].ContextMap()["sequence"]; seq != "ctrl+a" {
		t.Errorf("logged sequence = %v, want ctrl+a", seq)
	}
	if got := rec.ran(); !slices.Equal(got, []string{"echo A"}) {
		t.Errorf("ran %q, want [echo A]", got)
	}
	if l.matcher.InProgress() {
		t.Error("matcher still in progress after capture failure")
	}
	if st.Current() != status.Ready {
		t.Errorf("status = %s, want READY", st.Current())
	}
	if got := src.captureLog(); !slices.Equal(got, []bool{true}) {
		t.Errorf("captures = %v, want [true]", got)
	}
}

func TestCaptureFailureAbandonsUnboundPrefix(t *testing.T) {
	l, src, rec, _ := newLoop(t, "bind ctrl+x y : echo XY\n", time.Second)
	src.capErr = errors.New("AlreadyGrabbed")
	b := bus.New()
	evts, unsub := b.Subscribe(bus.NamespaceMatch, 8)
	defer unsub()
	l.bus = b

	l.Step(ch("ctrl+x"))

	if got := rec.ran(); len(got) != 0 {
		t.Errorf("ran %q, want nothing", got)
	}
	if l.matcher.InProgress() {
		t.Error("matcher still in progress after capture failure")
	}
	for _, kind := range []string{bus.KindMatchPending, bus.KindMatchTimedOut} {
		select {
		case evt := <-evts:
			if evt.Kind != kind {
				t.Errorf("event = %s, want %s", evt.Kind, kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %s", kind)
		}
	}
}

func TestRunTimesOutWithoutInput(t *testing.T) {
	src := newFakeSource()
	m, err := Prepare(parse(t, prefixConf), src, 100*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	rec := newRecorder()
	l := New(m, src, rec, nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	src.chords <- ch("ctrl+a")
	select {
	case cmd := <-rec.notify:
		if cmd != "echo A" {
			t.Errorf("ran %q, want echo A", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout did not fire the shorter binding")
	}

	src.chords <- ch("ctrl+a")
	src.chords <- ch("b")
	select {
	case cmd := <-rec.notify:
		if cmd != "echo AB" {
			t.Errorf("ran %q, want echo AB", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("longer binding did not fire")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}

	src.mu.Lock()
	defer src.mu.Unlock()
	if len(src.listened) != 1 || src.listened[0] != ch("ctrl+a") {
		t.Errorf("listened = %v, want [ctrl+a]", src.listened)
	}
}

func TestRunReturnsSourceError(t *testing.T) {
	l, src, _, _ := newLoop(t, prefixConf, time.Second)
	boom := errors.New("connection lost")
	src.errs <- boom
	if err := l.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("Run() error = %v, want %v", err, boom)
	}
}

func TestRunSourceClosed(t *testing.T) {
	l, src, _, _ := newLoop(t, prefixConf, time.Second)
	close(src.chords)
	if err := l.Run(context.Background()); !errors.Is(err, ErrSourceClosed) {
		t.Errorf("Run() error = %v, want ErrSourceClosed", err)
	}
}

func TestPrepareCanonicalConflict(t *testing.T) {
	src := newFakeSource()
	src.canon = map[chord.Chord]chord.Chord{
		ch("colon"): ch("shift+semicolon"),
	}
	_, err := Prepare(parse(t, "bind colon : one\nbind shift+semicolon : two\n"), src, time.Second)
	var list config.ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("Prepare() error = %v, want ErrorList", err)
	}
	if len(list) != 1 || list[0].Line != 2 || !errors.Is(list[0], config.ErrConflict) {
		t.Errorf("errors = %v, want one conflict on line 2", list)
	}
}

func TestPrepareMissingKey(t *testing.T) {
	src := newFakeSource()
	src.missing = map[keysym.Code]bool{ch("F35").Key: true}
	_, err := Prepare(parse(t, "bind a : one\nbind super+F35 : two\n"), src, time.Second)
	var list config.ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("Prepare() error = %v, want ErrorList", err)
	}
	if len(list) != 1 || list[0].Line != 2 || !errors.Is(list[0], keysym.ErrNoSuchKey) {
		t.Errorf("errors = %v, want one missing key on line 2", list)
	}
}

func TestPrepareRewritesSequences(t *testing.T) {
	src := newFakeSource()
	src.canon = map[chord.Chord]chord.Chord{ch("colon"): ch("shift+semicolon")}
	m, err := Prepare(parse(t, "bind colon : one\n"), src, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	got := m.Feed(ch("shift+semicolon"), 0)
	if len(got) != 1 || got[0].Outcome != matcher.Completed {
		t.Errorf("Feed(shift+semicolon) = %v, want Completed", got)
	}
}
