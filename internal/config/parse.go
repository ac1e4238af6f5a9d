package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/matheus3301/chordd/internal/chord"
)

// commandSep separates the key sequence of a bind line from its command.
const commandSep = ':'

// ParseFile opens and parses a bindings file.
func ParseFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f, path)
}

// Parse reads a bindings file. Every line is examined; if any line fails the
// returned error is an ErrorList holding all of them and no Table is returned.
func Parse(r io.Reader, file string) (*Table, error) {
	table := &Table{File: file}
	var errs ErrorList
	seen := make(map[string]int) // sequence key -> line

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	lineNum := 0
	for sc.Scan() {
		lineNum++
		text := sc.Text()
		b, err := parseLine(text)
		if err != nil {
			errs = append(errs, locate(err, file, lineNum, text))
			continue
		}
		if b == nil {
			continue
		}
		b.Line = lineNum
		k := sequenceKey(b.Sequence)
		if first, dup := seen[k]; dup {
			errs = append(errs, &LineError{
				File: file, Line: lineNum, Col: leadingSpace(text), Len: len(strings.TrimSpace(text)), Text: text,
				Err: fmt.Errorf("%w: %s is already bound on line %d", ErrConflict, b.Sequence, first),
			})
			continue
		}
		seen[k] = lineNum
		table.Bindings = append(table.Bindings, *b)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return table, nil
}

// lineError is a parse failure located within one line.
type lineError struct {
	col, len int
	err      error
}

func (e *lineError) Error() string { return e.err.Error() }

func locate(err error, file string, line int, text string) *LineError {
	le := &LineError{File: file, Line: line, Text: text, Len: 1, Err: err}
	var pe *lineError
	if errors.As(err, &pe) {
		le.Col, le.Len, le.Err = pe.col, pe.len, pe.err
	}
	return le
}

// parseLine returns nil for blank and comment lines.
func parseLine(text string) (*Binding, error) {
	start := leadingSpace(text)
	rest := text[start:]
	if rest == "" || rest[0] == '#' {
		return nil, nil
	}

	word := rest
	if i := strings.IndexFunc(rest, unicode.IsSpace); i >= 0 {
		word = rest[:i]
	}
	args := rest[len(word):]
	argsCol := start + len(word)

	switch word {
	case "bind":
		return parseBind(args, argsCol)
	case "map":
		return nil, &lineError{col: start, len: len(word), err: fmt.Errorf("%w: map (key synthesis is not implemented)", ErrUnsupported)}
	}
	return nil, &lineError{col: start, len: len(word), err: fmt.Errorf("%w: unrecognized command %q", ErrSyntax, word)}
}

func parseBind(args string, col int) (*Binding, error) {
	keys, command := args, ""
	if i := strings.IndexByte(args, commandSep); i >= 0 {
		keys, command = args[:i], strings.TrimLeftFunc(args[i+1:], unicode.IsSpace)
	}

	seq, err := chord.ParseSequence(keys)
	if err != nil {
		var se *chord.SyntaxError
		if errors.As(err, &se) {
			if errors.Is(err, chord.ErrEmptySequence) {
				return nil, &lineError{col: col, len: max(len(keys), 1), err: fmt.Errorf("%w: bind needs a key sequence", ErrSyntax)}
			}
			return nil, &lineError{col: col + se.Offset, len: se.Len, err: se.Err}
		}
		return nil, err
	}

	return &Binding{
		Sequence: seq,
		Action:   Action{Kind: RunCommand, Command: command},
	}, nil
}

func leadingSpace(text string) int {
	if i := strings.IndexFunc(text, func(r rune) bool { return !unicode.IsSpace(r) }); i >= 0 {
		return i
	}
	return len(text)
}

// sequenceKey is a map key identifying a sequence exactly.
func sequenceKey(seq chord.Sequence) string {
	var sb strings.Builder
	for _, c := range seq {
		fmt.Fprintf(&sb, "%x:%x;", uint16(c.Mods), uint32(c.Key))
	}
	return sb.String()
}
