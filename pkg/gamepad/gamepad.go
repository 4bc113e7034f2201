// Package gamepad turns a USB gamepad into a stream of robot command
// words.
package gamepad

import (
	"errors"
	"sync"

	"github.com/0xcafed00d/joystick"
	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

var (
	// ErrNotBound is returned when reading a pad that has no
	// joystick behind it.
	ErrNotBound = errors.New("no joystick bound")
)

// Values abstracts over the joystick to the given values that
// are returned by a gamepad.
type Values struct {
	AxisLX           int
	AxisLY           int
	AxisRX           int
	AxisRY           int
	AxisLT           int
	AxisRT           int
	AxisDX           int
	AxisDY           int
	ButtonBack       bool
	ButtonStart      bool
	ButtonLogo       bool
	ButtonLeftStick  bool
	ButtonRightStick bool
	ButtonX          bool
	ButtonY          bool
	ButtonA          bool
	ButtonB          bool
	ButtonLShoulder  bool
	ButtonRShoulder  bool
}

// Pad handles the action of actually fetching data from one joystick
// and making it available to the rest of the system.
type Pad struct {
	l hclog.Logger

	id       int
	attempts uint64

	mu sync.Mutex
	js joystick.Joystick
}

// New sets up a pad for the joystick with the given id.  Nothing is
// opened until Bind.
func New(id int, opts ...Option) *Pad {
	p := &Pad{
		l:        hclog.NewNullLogger(),
		id:       id,
		attempts: 10,
	}

	for _, o := range opts {
		o(p)
	}
	return p
}

// Bind opens the joystick, retrying with backoff while it is not
// plugged in.
func (p *Pad) Bind() error {
	bindFunc := func() error {
		js, err := joystick.Open(p.id)
		if err != nil {
			p.l.Debug("Joystick not available", "jsid", p.id, "error", err)
			return err
		}
		p.mu.Lock()
		p.js = js
		p.mu.Unlock()
		p.l.Info("Successfully bound controller", "jsid", p.id, "name", js.Name(), "axes", js.AxisCount(), "buttons", js.ButtonCount())
		return nil
	}
	return backoff.Retry(bindFunc, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), p.attempts))
}

// Read polls the joystick.  A failed read releases the joystick so
// that the next Bind starts fresh.
func (p *Pad) Read() (Values, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.js == nil {
		return Values{}, ErrNotBound
	}
	st, err := p.js.Read()
	if err != nil {
		p.js.Close()
		p.js = nil
		return Values{}, err
	}
	p.l.Trace("Refreshed state", "jsid", p.id)
	return valuesFromState(st), nil
}

// Close releases the joystick.
func (p *Pad) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.js != nil {
		p.js.Close()
		p.js = nil
	}
}

func valuesFromState(jinfo joystick.State) Values {
	axis := func(i int) int {
		if i < len(jinfo.AxisData) {
			return jinfo.AxisData[i]
		}
		return 0
	}
	button := func(i uint32) bool {
		return (jinfo.Buttons & (1 << i)) != 0
	}

	return Values{
		AxisLX: axis(0),
		AxisLY: axis(1),

		AxisRX: axis(3),
		AxisRY: axis(4),

		AxisLT: axis(2),
		AxisRT: axis(5),

		AxisDX: axis(6),
		AxisDY: axis(7),

		ButtonBack:       button(6),
		ButtonStart:      button(7),
		ButtonLogo:       button(8),
		ButtonLeftStick:  button(9),
		ButtonRightStick: button(10),
		ButtonX:          button(2),
		ButtonY:          button(3),
		ButtonA:          button(0),
		ButtonB:          button(1),
		ButtonLShoulder:  button(4),
		ButtonRShoulder:  button(5),
	}
}
