package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrSyntax marks a malformed line.
	ErrSyntax = errors.New("syntax error")
	// ErrUnsupported marks a command that is recognised but not implemented.
	ErrUnsupported = errors.New("unsupported command")
	// ErrConflict marks a sequence bound more than once.
	ErrConflict = errors.New("conflicting binding")
)

// LineError is a problem found on one line of a bindings file.
type LineError struct {
	File string
	Line int    // 1-based
	Col  int    // 0-based byte column
	Len  int    // bytes to underline, at least 1
	Text string // the full source line
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %v", e.File, e.Line, e.Col+1, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// ErrorList collects every LineError found while parsing.
type ErrorList []*LineError

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// Unwrap exposes every entry to errors.Is and errors.As.
func (l ErrorList) Unwrap() []error {
	errs := make([]error, len(l))
	for i, e := range l {
		errs[i] = e
	}
	return errs
}

// Report writes each error with the offending line and a caret underline.
func (l ErrorList) Report(w io.Writer) {
	const margin = 4
	pad := strings.Repeat(" ", margin)
	for _, e := range l {
		fmt.Fprintf(w, "error: %s:%d:%d\n", e.File, e.Line, e.Col+1)
		fmt.Fprintf(w, "%s |\n", pad)
		fmt.Fprintf(w, "%*d | %s\n", margin, e.Line, e.Text)
		if e.Text != "" {
			fmt.Fprintf(w, "%s | %s%s\n", pad, strings.Repeat(" ", e.Col), strings.Repeat("^", max(e.Len, 1)))
		}
		fmt.Fprintf(w, "%v\n\n", e.Err)
	}
}
