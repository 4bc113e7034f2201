// Package console reads operator commands from a terminal while the
// robot runs.
//
//	P     print the diagnostics table
//	R     reset the diagnostics
//	M     mute the horn
//	QUIT  shut the robot down
package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// Operator is what the console acts on.
type Operator interface {
	Report(io.Writer) error
	ResetDiagnostics()
	MuteHorn()
}

// Option changes features on the console.
type Option func(*Console)

// Console binds an input, an output and the robot they drive.
type Console struct {
	l   hclog.Logger
	in  io.Reader
	out io.Writer
	op  Operator
}

// New returns a console reading in and writing out.
func New(in io.Reader, out io.Writer, op Operator, opts ...Option) *Console {
	c := &Console{
		l:   hclog.NewNullLogger(),
		in:  in,
		out: out,
		op:  op,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// WithLogger sets the parent logger.
func WithLogger(l hclog.Logger) Option {
	return func(c *Console) { c.l = l.Named("console") }
}

// Run reads whitespace separated commands until QUIT or the end of
// the input.  It reports whether QUIT was read; a console whose input
// simply ends leaves the robot running.
func (c *Console) Run() (bool, error) {
	s := bufio.NewScanner(c.in)
	s.Split(bufio.ScanWords)
	for s.Scan() {
		switch strings.ToUpper(s.Text()) {
		case "P":
			if err := c.op.Report(c.out); err != nil {
				c.l.Warn("Could not print diagnostics", "error", err)
			}
		case "R":
			c.op.ResetDiagnostics()
			fmt.Fprintln(c.out, "Diagnostics reset")
		case "M":
			c.op.MuteHorn()
		case "QUIT":
			c.l.Info("Quit requested")
			return true, nil
		default:
			fmt.Fprintf(c.out, "Unknown command %q (P, R, M, QUIT)\n", s.Text())
		}
	}
	return false, s.Err()
}
