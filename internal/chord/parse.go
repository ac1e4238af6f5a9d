package chord

import (
	"errors"
	"fmt"
	"unicode"

	"github.com/matheus3301/chordd/internal/keysym"
)

var (
	// ErrMissingKey is returned when a chord ends in a separator.
	ErrMissingKey = errors.New("missing key")
	// ErrEmptySequence is returned for a sequence with no chords.
	ErrEmptySequence = errors.New("empty key sequence")
)

// SyntaxError locates a failure inside the text handed to a Parse function.
type SyntaxError struct {
	Offset int // byte offset of the offending token
	Len    int
	Err    error
}

func (e *SyntaxError) Error() string { return e.Err.Error() }

func (e *SyntaxError) Unwrap() error { return e.Err }

// ParseKey resolves the main key of a chord.
func ParseKey(text string) (keysym.Code, error) {
	return keysym.Lookup(text)
}

func isChordSep(r rune) bool { return r == '+' || r == '-' }

// ParseChord parses "mod+mod+key" or "mod-mod-key". Every part but the last
// must be a modifier; the last must be a key. A lone key is a valid chord.
func ParseChord(text string) (Chord, error) {
	parts := split(text, isChordSep)
	if len(parts) == 0 {
		return Chord{}, &SyntaxError{Len: len(text), Err: ErrMissingKey}
	}

	var c Chord
	last := parts[len(parts)-1]
	for _, p := range parts[:len(parts)-1] {
		mod, err := ParseModifier(p.text)
		if err != nil {
			return Chord{}, &SyntaxError{Offset: p.off, Len: max(len(p.text), 1), Err: err}
		}
		c.Mods = c.Mods.With(mod)
	}
	if last.text == "" {
		return Chord{}, &SyntaxError{Offset: last.off, Len: 1, Err: ErrMissingKey}
	}
	key, err := ParseKey(last.text)
	if err != nil {
		return Chord{}, &SyntaxError{Offset: last.off, Len: len(last.text), Err: err}
	}
	c.Key = key
	return c, nil
}

// ParseSequence parses whitespace-separated chords.
func ParseSequence(text string) (Sequence, error) {
	var seq Sequence
	for _, w := range fields(text) {
		c, err := ParseChord(w.text)
		if err != nil {
			var se *SyntaxError
			if errors.As(err, &se) {
				return nil, &SyntaxError{Offset: w.off + se.Offset, Len: se.Len, Err: fmt.Errorf("chord %q: %w", w.text, se.Err)}
			}
			return nil, err
		}
		seq = append(seq, c)
	}
	if len(seq) == 0 {
		return nil, &SyntaxError{Len: len(text), Err: ErrEmptySequence}
	}
	return seq, nil
}

// MustParseSequence is ParseSequence for known-good input; it panics on error.
func MustParseSequence(text string) Sequence {
	seq, err := ParseSequence(text)
	if err != nil {
		panic("invalid key sequence " + text + ": " + err.Error())
	}
	return seq
}

type token struct {
	text string
	off  int
}

// split cuts text at every separator, keeping empty parts.
func split(text string, sep func(rune) bool) []token {
	if text == "" {
		return nil
	}
	var out []token
	start := 0
	for i, r := range text {
		if sep(r) {
			out = append(out, token{text: text[start:i], off: start})
			start = i + len(string(r))
		}
	}
	return append(out, token{text: text[start:], off: start})
}

// fields cuts text at runs of whitespace, dropping empty parts.
func fields(text string) []token {
	var out []token
	start := -1
	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				out = append(out, token{text: text[start:i], off: start})
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, token{text: text[start:], off: start})
	}
	return out
}
