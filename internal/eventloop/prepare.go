package eventloop

import (
	"errors"
	"fmt"
	"time"

	"github.com/matheus3301/chordd/internal/chord"
	"github.com/matheus3301/chordd/internal/config"
	"github.com/matheus3301/chordd/internal/matcher"
)

// Prepare rewrites every binding into the source's canonical chords and
// builds the matcher. Chords the source cannot produce, and bindings that
// become identical once rewritten, are reported as a config.ErrorList.
func Prepare(table *config.Table, src Source, timeout time.Duration) (*matcher.Matcher, error) {
	var errs config.ErrorList
	bindings := make([]config.Binding, 0, table.Len())
	seen := make(map[string]int)

	for _, b := range table.Bindings {
		seq, err := canonical(b.Sequence, src)
		if err != nil {
			errs = append(errs, &config.LineError{File: table.File, Line: b.Line, Len: 1, Err: err})
			continue
		}
		key := seq.String()
		if first, dup := seen[key]; dup {
			errs = append(errs, &config.LineError{
				File: table.File, Line: b.Line, Len: 1,
				Err: fmt.Errorf("%w: %s is the same keys as line %d (%s)", config.ErrConflict, b.Sequence, first, seq),
			})
			continue
		}
		seen[key] = b.Line
		b.Sequence = seq
		bindings = append(bindings, b)
	}
	if len(errs) > 0 {
		return nil, errs
	}

	m, err := matcher.New(bindings, timeout)
	if err != nil {
		var ce *matcher.ConflictError
		if errors.As(err, &ce) {
			return nil, config.ErrorList{{
				File: table.File, Line: ce.Second.Line, Len: 1,
				Err: fmt.Errorf("%w: %s is already bound on line %d", config.ErrConflict, ce.Sequence, ce.First.Line),
			}}
		}
		return nil, err
	}
	return m, nil
}

func canonical(seq chord.Sequence, src Source) (chord.Sequence, error) {
	out := make(chord.Sequence, len(seq))
	for i, c := range seq {
		cc, err := src.Canonical(c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c, err)
		}
		out[i] = cc
	}
	return out, nil
}
