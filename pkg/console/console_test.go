package console

import (
	"bytes"
	"io"
	"strings"
	"testing"
)

type fakeOperator struct {
	reports, resets, mutes int
}

func (f *fakeOperator) Report(w io.Writer) error {
	f.reports++
	_, err := io.WriteString(w, "report\n")
	return err
}

func (f *fakeOperator) ResetDiagnostics() { f.resets++ }
func (f *fakeOperator) MuteHorn()         { f.mutes++ }

func TestConsole(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		quit    bool
		reports int
		resets  int
		mutes   int
		output  string
	}{
		{"quit", "QUIT\nP\n", true, 0, 0, 0, ""},
		{"every command", "P R\nm p\nquit", true, 2, 1, 1, "Diagnostics reset"},
		{"eof", "M M\n", false, 0, 0, 2, ""},
		{"unknown", "X\n", false, 0, 0, 0, `Unknown command "X"`},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			op := &fakeOperator{}
			var out bytes.Buffer
			quit, err := New(strings.NewReader(c.in), &out, op).Run()
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if quit != c.quit {
				t.Errorf("quit = %v, want %v", quit, c.quit)
			}
			if op.reports != c.reports || op.resets != c.resets || op.mutes != c.mutes {
				t.Errorf("calls = %+v, want %d/%d/%d", *op, c.reports, c.resets, c.mutes)
			}
			if !strings.Contains(out.String(), c.output) {
				t.Errorf("output %q missing %q", out.String(), c.output)
			}
		})
	}
}
