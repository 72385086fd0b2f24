package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const yard = `Yard
[Tracks]
2.0-2.10
2.1-3.2
3.2-3.4
3.4-2.5
[Points]
2.5(<1)-3.4@842
2.1(2>)-3.2@843
[Signals]
2.10:<21:h@501
2.0:<31:h@502
3.3:<25:h@503
[Routes]
21-31
21-25
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yard.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCheck(t *testing.T) {
	type setup struct {
		name    string
		text    string
		invalid bool
		output  string
	}
	setups := []setup{
		{"valid", yard, false, "Yard: 2 points, 3 signals, 2 routes (0 invalid), 0 warnings"},
		{"missing-signal", yard + "21-99\n", true, "invalid: route 21-99"},
		{"warning", yard + "[Labels]\nnonsense\n", false, "warning: "},
	}
	for _, s := range setups {
		t.Run(s.name, func(t *testing.T) {
			out, err := run(t, "check", writeFile(t, s.text))
			if s.invalid != errors.Is(err, errInvalid) {
				t.Fatalf("err: %v\n%s", err, out)
			}
			if !strings.Contains(out, s.output) {
				t.Fatalf("output: %s", out)
			}
		})
	}
}

func TestCheckMissingFile(t *testing.T) {
	_, err := run(t, "check", filepath.Join(t.TempDir(), "none.txt"))
	if err == nil || errors.Is(err, errInvalid) {
		t.Fatalf("err: %v", err)
	}
}

func TestRoute(t *testing.T) {
	path := writeFile(t, yard)
	out, err := run(t, "route", path, "21", "25")
	if err != nil {
		t.Fatalf("route: %s", err)
	}
	for _, want := range []string{"declared 21-25: [1-]", "points: [1-]", "path: [2.10 "} {
		if !strings.Contains(out, want) {
			t.Fatalf("output lacks %q: %s", want, out)
		}
	}
	if _, err := run(t, "route", path, "31", "21"); !errors.Is(err, errInvalid) {
		t.Fatalf("route against the direction of travel: %v", err)
	}
	if _, err := run(t, "route", path, "21", "x"); err == nil {
		t.Fatalf("bad TO accepted")
	}
}

func TestJournal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	out, err := run(t, "journal", "--db", path)
	if err != nil {
		t.Fatalf("journal: %s", err)
	}
	if out != "" {
		t.Fatalf("empty journal printed %q", out)
	}
	if _, err := run(t, "journal"); err == nil {
		t.Fatalf("journal without --db accepted")
	}
}
