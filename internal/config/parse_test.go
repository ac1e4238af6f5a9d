package config

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matheus3301/chordd/internal/chord"
	"github.com/matheus3301/chordd/internal/keysym"
)

func mustParse(t *testing.T, text string) *Table {
	t.Helper()
	table, err := Parse(strings.NewReader(text), "test.conf")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return table
}

func parseErrors(t *testing.T, text string) ErrorList {
	t.Helper()
	table, err := Parse(strings.NewReader(text), "test.conf")
	if err == nil {
		t.Fatalf("Parse() expected error, got table with %d bindings", table.Len())
	}
	if table != nil {
		t.Error("Parse() returned a table alongside errors")
	}
	var list ErrorList
	if !errors.As(err, &list) {
		t.Fatalf("Parse() error = %T, want ErrorList", err)
	}
	return list
}

func TestParseCommentsOnly(t *testing.T) {
	table := mustParse(t, "# header\n\n   \n\t# indented comment\n")
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}

func TestParseEmpty(t *testing.T) {
	table := mustParse(t, "")
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}

func TestParseBind(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		seq     string
		command string
	}{
		{"single chord", "bind ctrl+a : echo A", "ctrl+a", "echo A"},
		{"two chords", "bind ctrl+a b : echo AB", "ctrl+a b", "echo AB"},
		{"dash separator", "bind C-M-t : xterm", "ctrl+alt+t", "xterm"},
		{"no space before colon", "bind super+Return: xterm -e top", "super+Return", "xterm -e top"},
		{"inner whitespace kept", "bind a :  notify-send  'a   b'", "a", "notify-send  'a   b'"},
		{"trailing text kept", "bind b :\tprintf '%s ' x  ", "b", "printf '%s ' x  "},
		{"blank command", "bind c :   ", "c", ""},
		{"colon inside command", "bind F1 : echo a:b", "F1", "echo a:b"},
		{"no command", "bind shift-colon", "shift+colon", ""},
		{"leading indent", "   bind Escape : true", "Escape", "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := mustParse(t, tt.line+"\n")
			if table.Len() != 1 {
				t.Fatalf("Len() = %d, want 1", table.Len())
			}
			b := table.Bindings[0]
			want := chord.MustParseSequence(tt.seq)
			if !b.Sequence.Equal(want) {
				t.Errorf("Sequence = %s, want %s", b.Sequence, want)
			}
			if b.Action.Kind != RunCommand {
				t.Errorf("Kind = %v, want RunCommand", b.Action.Kind)
			}
			if b.Action.Command != tt.command {
				t.Errorf("Command = %q, want %q", b.Action.Command, tt.command)
			}
			if b.Line != 1 {
				t.Errorf("Line = %d, want 1", b.Line)
			}
		})
	}
}

func TestParseKeepsLineNumbersAndOrder(t *testing.T) {
	table := mustParse(t, "# keys\n\nbind a : one\nbind b : two\n\n# more\nbind c : three\n")
	wantLines := []int{3, 4, 7}
	if table.Len() != len(wantLines) {
		t.Fatalf("Len() = %d, want %d", table.Len(), len(wantLines))
	}
	for i, b := range table.Bindings {
		if b.Line != wantLines[i] {
			t.Errorf("Bindings[%d].Line = %d, want %d", i, b.Line, wantLines[i])
		}
	}
	if table.File != "test.conf" {
		t.Errorf("File = %q, want test.conf", table.File)
	}
}

func TestParseShiftedSymbolDistinctFromPhysicalKey(t *testing.T) {
	table := mustParse(t, "bind shift-colon : one\nbind semicolon : two\n")
	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	a, b := table.Bindings[0].Sequence[0], table.Bindings[1].Sequence[0]
	if a == b {
		t.Fatalf("shift-colon and semicolon parsed to the same chord %s", a)
	}
	if a.Key == b.Key {
		t.Errorf("key codes equal: %s", a.Key)
	}
	if !a.Mods.Has(chord.Shift) || b.Mods != 0 {
		t.Errorf("mods = %s / %s, want shift / none", a.Mods, b.Mods)
	}
}

func TestParseUnknownModifier(t *testing.T) {
	list := parseErrors(t, "# first\nbind foo+a : run\nbind ctrl+b : ok\n")
	if len(list) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(list), list)
	}
	e := list[0]
	if e.Line != 2 {
		t.Errorf("Line = %d, want 2", e.Line)
	}
	if e.Col != 5 || e.Len != 3 {
		t.Errorf("Col, Len = %d, %d, want 5, 3", e.Col, e.Len)
	}
	if !errors.Is(e, chord.ErrUnknownModifier) {
		t.Errorf("error = %v, want ErrUnknownModifier", e.Err)
	}
}

func TestParseUnknownModifierDoesNotStopLaterLines(t *testing.T) {
	list := parseErrors(t, "bind foo+a : run\nbind ctrl+nosuchkey : x\nbind a : ok\nfrob a\n")
	if len(list) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(list), list)
	}
	wantLines := []int{1, 2, 4}
	for i, e := range list {
		if e.Line != wantLines[i] {
			t.Errorf("errors[%d].Line = %d, want %d", i, e.Line, wantLines[i])
		}
	}
	if !errors.Is(list[1], keysym.ErrNoSuchKey) {
		t.Errorf("errors[1] = %v, want no such key", list[1].Err)
	}
	if !errors.Is(list[2], ErrSyntax) {
		t.Errorf("errors[2] = %v, want ErrSyntax", list[2].Err)
	}
}

func TestParseConflict(t *testing.T) {
	list := parseErrors(t, "bind ctrl+a b : first\nbind ctrl+a : short\nbind C-a b : second\n")
	if len(list) != 1 {
		t.Fatalf("got %d errors, want 1: %v", len(list), list)
	}
	e := list[0]
	if e.Line != 3 {
		t.Errorf("Line = %d, want 3", e.Line)
	}
	if !errors.Is(e, ErrConflict) {
		t.Errorf("error = %v, want ErrConflict", e.Err)
	}
	if !strings.Contains(e.Error(), "line 1") {
		t.Errorf("error %q does not cite line 1", e.Error())
	}
}

func TestParseSharedPrefixAllowed(t *testing.T) {
	table := mustParse(t, "bind ctrl+a : echo A\nbind ctrl+a b : echo AB\nbind ctrl+a c d : echo ACD\n")
	if table.Len() != 3 {
		t.Errorf("Len() = %d, want 3", table.Len())
	}
}

func TestParseMapUnsupported(t *testing.T) {
	list := parseErrors(t, "map ctrl+a : b\n")
	if len(list) != 1 || !errors.Is(list[0], ErrUnsupported) {
		t.Fatalf("errors = %v, want one ErrUnsupported", list)
	}
	if list[0].Col != 0 || list[0].Len != 3 {
		t.Errorf("Col, Len = %d, %d, want 0, 3", list[0].Col, list[0].Len)
	}
}

func TestParseBindWithoutSequence(t *testing.T) {
	for _, line := range []string{"bind", "bind : echo", "bind   "} {
		list := parseErrors(t, line+"\n")
		if len(list) != 1 || !errors.Is(list[0], ErrSyntax) {
			t.Errorf("Parse(%q) errors = %v, want one ErrSyntax", line, list)
		}
	}
}

func TestErrorListReport(t *testing.T) {
	list := parseErrors(t, "bind ctrl+nosuchkey : x\n")
	var buf bytes.Buffer
	list.Report(&buf)
	out := buf.String()

	if !strings.Contains(out, "test.conf:1:11") {
		t.Errorf("report missing location:\n%s", out)
	}
	if !strings.Contains(out, "bind ctrl+nosuchkey : x") {
		t.Errorf("report missing source line:\n%s", out)
	}
	caret := "     | " + strings.Repeat(" ", 10) + strings.Repeat("^", len("nosuchkey")) + "\n"
	if !strings.Contains(out, caret) {
		t.Errorf("report missing caret line %q:\n%s", caret, out)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chordd.conf")
	if err := os.WriteFile(path, []byte("bind super+Return : xterm\n"), 0600); err != nil {
		t.Fatal(err)
	}
	table, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if table.File != path || table.Len() != 1 {
		t.Errorf("ParseFile() = %+v", table)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.conf")); err == nil {
		t.Error("ParseFile() expected error for missing file")
	}
}
