package config

import "github.com/matheus3301/chordd/internal/chord"

// ActionKind tags the variant held by an Action.
type ActionKind int

const (
	// RunCommand runs Action.Command through the shell.
	RunCommand ActionKind = iota + 1
)

func (k ActionKind) String() string {
	switch k {
	case RunCommand:
		return "run"
	}
	return "unknown"
}

// Action is what happens when a binding's sequence completes.
type Action struct {
	Kind    ActionKind
	Command string
}

// Binding pairs a key sequence with an action.
type Binding struct {
	Sequence chord.Sequence
	Action   Action
	Line     int // 1-based line in the bindings file
}

// Table is the set of bindings loaded from one bindings file. It is not
// modified after Parse returns.
type Table struct {
	File     string
	Bindings []Binding
}

// Len returns the number of bindings.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Bindings)
}
