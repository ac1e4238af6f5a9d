// Package eventloop drives the matcher from a key source and hands completed
// bindings to the dispatcher.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/chordd/internal/bus"
	"github.com/matheus3301/chordd/internal/chord"
	"github.com/matheus3301/chordd/internal/config"
	"github.com/matheus3301/chordd/internal/matcher"
	"github.com/matheus3301/chordd/internal/status"
)

// Source delivers chords from a keyboard.
type Source interface {
	// Canonical rewrites a configured chord into the form Chords delivers.
	Canonical(c chord.Chord) (chord.Chord, error)
	// Listen asks for the given chords to be delivered, replacing any
	// previous set.
	Listen(chords []chord.Chord) error
	// Capture turns delivery of every chord on or off. It is on while a
	// sequence is in progress.
	Capture(on bool) error
	Chords() <-chan chord.Chord
	Errors() <-chan error
}

// Dispatcher runs the action of a completed binding. It must not block.
type Dispatcher interface {
	Dispatch(b config.Binding)
}

// ErrSourceClosed is returned by Run when the source stops delivering chords.
var ErrSourceClosed = errors.New("key source closed")

// Loop is the single goroutine that owns the matcher.
type Loop struct {
	matcher *matcher.Matcher
	source  Source
	disp    Dispatcher
	status  *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger
	now     func() time.Time

	last      time.Time // time of the previous chord in the current attempt
	capturing bool
}

// New creates a Loop. status may be nil.
func New(m *matcher.Matcher, src Source, disp Dispatcher, st *status.Machine, b *bus.Bus, logger *zap.Logger) *Loop {
	return &Loop{
		matcher: m,
		source:  src,
		disp:    disp,
		status:  st,
		bus:     b,
		logger:  logger,
		now:     time.Now,
	}
}

// Run grabs the first chord of every binding and processes chords until ctx
// is done or the source fails. It returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	roots := l.matcher.Roots()
	if err := l.source.Listen(roots); err != nil {
		return fmt.Errorf("grab keys: %w", err)
	}
	l.logger.Info("listening", zap.Int("bindings", l.matcher.Len()), zap.Int("grabs", len(roots)))
	defer l.setCapture(false)

	for {
		var expire <-chan time.Time
		var timer *time.Timer
		if l.matcher.InProgress() && l.matcher.Timeout() > 0 {
			remaining := l.matcher.Timeout() - l.now().Sub(l.last)
			timer = time.NewTimer(max(remaining, 0))
			expire = timer.C
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return nil
		case err, ok := <-l.source.Errors():
			stopTimer(timer)
			if !ok {
				return ErrSourceClosed
			}
			return fmt.Errorf("key source: %w", err)
		case c, ok := <-l.source.Chords():
			stopTimer(timer)
			if !ok {
				return ErrSourceClosed
			}
			l.Step(c)
		case <-expire:
			l.Expire()
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// Step feeds one chord to the matcher and acts on the results.
func (l *Loop) Step(c chord.Chord) {
	now := l.now()
	var elapsed time.Duration
	if l.matcher.InProgress() {
		elapsed = now.Sub(l.last)
	}
	l.last = now

	for _, r := range l.matcher.Feed(c, elapsed) {
		l.handle(r)
	}
	l.settle()
}

// Expire ends a pending attempt because the inter-chord timeout elapsed.
func (l *Loop) Expire() {
	if r, ok := l.matcher.Expire(); ok {
		l.handle(r)
	}
	l.settle()
}

func (l *Loop) handle(r matcher.Result) {
	seq := r.Chords.String()
	switch r.Outcome {
	case matcher.Pending:
		l.logger.Debug("sequence pending", zap.String("sequence", seq))
		l.bus.Emit(bus.KindMatchPending, bus.MatchPayload{Sequence: seq})
	case matcher.Completed:
		b := *r.Binding
		l.logger.Debug("sequence completed", zap.String("sequence", seq), zap.Int("line", b.Line))
		l.bus.Emit(bus.KindMatchCompleted, bus.MatchPayload{Sequence: seq, Command: b.Action.Command, Line: b.Line})
		l.disp.Dispatch(b)
	case matcher.NoMatch:
		l.logger.Debug("no match", zap.String("sequence", seq))
		l.bus.Emit(bus.KindMatchNoMatch, bus.MatchPayload{Sequence: seq})
	case matcher.TimedOut:
		l.logger.Debug("sequence timed out", zap.String("sequence", seq))
		l.bus.Emit(bus.KindMatchTimedOut, bus.MatchPayload{Sequence: seq})
	}
}

// settle keeps the keyboard capture and daemon status in step with the
// matcher.
func (l *Loop) settle() {
	l.setCapture(l.matcher.InProgress())
	pending := l.matcher.InProgress()

	if l.status == nil || !l.status.Current().Serving() {
		return
	}
	to := status.Ready
	if pending {
		to = status.Sequencing
	}
	if err := l.status.Settle(to); err != nil {
		l.logger.Warn("status change failed", zap.Error(err))
	}
}

func (l *Loop) setCapture(on bool) {
	if on == l.capturing {
		return
	}
	if err := l.source.Capture(on); err != nil {
		l.logger.Warn("keyboard capture failed",
			zap.Bool("on", on),
			zap.Stringer("sequence", l.matcher.Progress()),
			zap.Error(err),
		)
		if on {
			// The next chord can't arrive, so end the attempt now. A bound
			// prefix still runs.
			if r, ok := l.matcher.Expire(); ok {
				l.handle(r)
			}
		}
		return
	}
	l.capturing = on
}
