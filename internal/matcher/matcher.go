// Package matcher recognises configured key sequences in a live stream of
// chords. It is a trie stored as an arena of nodes; node 0 is the root.
package matcher

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/matheus3301/chordd/internal/chord"
	"github.com/matheus3301/chordd/internal/config"
)

// Outcome classifies a Result.
type Outcome int

const (
	// Pending means the chord advanced a candidate that is not yet complete.
	Pending Outcome = iota + 1
	// Completed means a binding's sequence finished; Result.Binding is set.
	Completed
	// NoMatch means the chord continued no candidate.
	NoMatch
	// TimedOut means the attempt was abandoned because the inter-chord
	// timeout elapsed.
	TimedOut
)

func (o Outcome) String() string {
	switch o {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case NoMatch:
		return "nomatch"
	case TimedOut:
		return "timedout"
	}
	return "unknown"
}

// Result is one step reported by the matcher.
type Result struct {
	Outcome Outcome
	Binding *config.Binding // set for Completed
	Chords  chord.Sequence  // the chords of the attempt this result ends or extends
}

// ConflictError reports two bindings with the same full sequence.
type ConflictError struct {
	Sequence chord.Sequence
	First    config.Binding
	Second   config.Binding
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s is bound on line %d and line %d", e.Sequence, e.First.Line, e.Second.Line)
}

// ErrEmptySequence is returned by New for a binding with no chords.
var ErrEmptySequence = errors.New("binding has an empty sequence")

const noBinding = -1

type node struct {
	next    map[chord.Chord]int
	binding int // index into Matcher.bindings, or noBinding
}

// Matcher holds the trie and the progress of the current attempt. It is not
// safe for concurrent use; one goroutine feeds it.
type Matcher struct {
	nodes    []node
	bindings []config.Binding
	timeout  time.Duration

	cur  int
	path chord.Sequence
}

// New builds a Matcher. A timeout of zero or less disables expiry.
func New(bindings []config.Binding, timeout time.Duration) (*Matcher, error) {
	m := &Matcher{
		nodes:    []node{{binding: noBinding}},
		bindings: slices.Clone(bindings),
		timeout:  timeout,
	}
	for i, b := range m.bindings {
		if len(b.Sequence) == 0 {
			return nil, fmt.Errorf("line %d: %w", b.Line, ErrEmptySequence)
		}
		n := 0
		for _, c := range b.Sequence {
			child, ok := m.nodes[n].next[c]
			if !ok {
				child = len(m.nodes)
				m.nodes = append(m.nodes, node{binding: noBinding})
				if m.nodes[n].next == nil {
					m.nodes[n].next = make(map[chord.Chord]int)
				}
				m.nodes[n].next[c] = child
			}
			n = child
		}
		if prev := m.nodes[n].binding; prev != noBinding {
			return nil, &ConflictError{Sequence: b.Sequence, First: m.bindings[prev], Second: b}
		}
		m.nodes[n].binding = i
	}
	return m, nil
}

// Timeout returns the inter-chord timeout.
func (m *Matcher) Timeout() time.Duration { return m.timeout }

// InProgress reports whether an attempt is under way.
func (m *Matcher) InProgress() bool { return m.cur != 0 }

// Progress returns the chords consumed by the current attempt.
func (m *Matcher) Progress() chord.Sequence { return slices.Clone(m.path) }

// Len returns the number of bindings.
func (m *Matcher) Len() int { return len(m.bindings) }

// Roots returns every chord that can start a sequence, sorted.
func (m *Matcher) Roots() []chord.Chord {
	return slices.SortedFunc(maps.Keys(m.nodes[0].next), chord.Compare)
}

// Reset abandons the current attempt without reporting it.
func (m *Matcher) Reset() {
	m.cur = 0
	m.path = nil
}

// Feed consumes one chord. elapsed is the time since the previous chord of
// the current attempt. The returned results are in order; the last one
// describes c itself, any before it describe how the previous attempt ended.
func (m *Matcher) Feed(c chord.Chord, elapsed time.Duration) []Result {
	var out []Result
	if m.InProgress() && m.timeout > 0 && elapsed > m.timeout {
		r, _ := m.Expire()
		out = append(out, r)
	}

	if child, ok := m.nodes[m.cur].next[c]; ok {
		return append(out, m.advance(child, c))
	}

	if m.InProgress() {
		r := m.abandon(c)
		out = append(out, r)
		if child, ok := m.nodes[0].next[c]; ok {
			return append(out, m.advance(child, c))
		}
		// The abandoned attempt's result already names c.
		if r.Outcome == NoMatch {
			return out
		}
	}
	return append(out, Result{Outcome: NoMatch, Chords: chord.Sequence{c}})
}

// Expire ends the current attempt because the timeout elapsed. A pending
// sequence that is itself bound completes; otherwise the attempt times out.
// It reports false when no attempt is in progress.
func (m *Matcher) Expire() (Result, bool) {
	if !m.InProgress() {
		return Result{}, false
	}
	r := Result{Outcome: TimedOut, Chords: m.path}
	if b := m.nodes[m.cur].binding; b != noBinding {
		r = Result{Outcome: Completed, Binding: &m.bindings[b], Chords: m.path}
	}
	m.Reset()
	return r, true
}

func (m *Matcher) advance(child int, c chord.Chord) Result {
	m.path = append(m.path, c)
	n := m.nodes[child]
	if len(n.next) == 0 {
		r := Result{Outcome: Completed, Binding: &m.bindings[n.binding], Chords: m.path}
		m.Reset()
		return r
	}
	m.cur = child
	return Result{Outcome: Pending, Chords: slices.Clone(m.path)}
}

// abandon ends the attempt on a chord that does not continue it.
func (m *Matcher) abandon(c chord.Chord) Result {
	r := Result{Outcome: NoMatch, Chords: append(slices.Clone(m.path), c)}
	if b := m.nodes[m.cur].binding; b != noBinding {
		r = Result{Outcome: Completed, Binding: &m.bindings[b], Chords: m.path}
	}
	m.Reset()
	return r
}
