// Package sim is an in-memory robot.  It records everything written to
// it and lets tests and the simulator script what the sensors see.
package sim

import (
	"errors"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/hw"
)

// ErrSensor is returned by the rangefinder while a fault is injected.
var ErrSensor = errors.New("simulated sensor fault")

// Option changes features on the board.
type Option func(*Board)

// Board implements hw.Board without any hardware.
type Board struct {
	l hclog.Logger

	mu       sync.Mutex
	duty     map[int]int
	levels   map[int]bool
	distance int
	fault    bool
	closed   bool
}

// New returns a board with every pin low, every channel at zero and
// an obstacle 1m away.
func New(opts ...Option) *Board {
	b := &Board{
		l:        hclog.NewNullLogger(),
		duty:     make(map[int]int),
		levels:   make(map[int]bool),
		distance: 1000,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// WithLogger sets the parent logger.
func WithLogger(l hclog.Logger) Option {
	return func(b *Board) { b.l = l.Named("sim") }
}

// PWM returns the board's modulator.
func (b *Board) PWM() hw.PWM { return pwm{b} }

// Output returns a pin that records its level.
func (b *Board) Output(n int) (hw.DigitalOutput, error) { return pin{b, n}, nil }

// Input returns a pin whose level is set with SetLevel.
func (b *Board) Input(n int) (hw.DigitalInput, error) { return pin{b, n}, nil }

// Rangefinder returns a sensor that reports the scripted distance.
func (b *Board) Rangefinder(int, int) (hw.Rangefinder, error) { return ranger{b}, nil }

// Close marks the board closed.
func (b *Board) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

// SetDistance scripts the next rangefinder readings.
func (b *Board) SetDistance(mm int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.distance = mm
}

// SetFault makes the rangefinder fail until cleared.
func (b *Board) SetFault(f bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fault = f
}

// SetLevel drives an input pin.
func (b *Board) SetLevel(n int, high bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.levels[n] = high
}

// Level returns the last level written to or set on a pin.
func (b *Board) Level(n int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels[n]
}

// Duty returns the last duty cycle written to a channel.
func (b *Board) Duty(ch int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.duty[ch]
}

type pwm struct{ b *Board }

func (p pwm) SetDutyCycle(ch, permille int) error {
	p.b.mu.Lock()
	defer p.b.mu.Unlock()
	p.b.duty[ch] = permille
	p.b.l.Trace("Duty cycle", "channel", ch, "permille", permille)
	return nil
}

type pin struct {
	b *Board
	n int
}

func (p pin) SetLevel(high bool) error {
	p.b.SetLevel(p.n, high)
	return nil
}

func (p pin) Level() (bool, error) {
	return p.b.Level(p.n), nil
}

type ranger struct{ b *Board }

func (r ranger) ReadDistanceMm() (int, error) {
	r.b.mu.Lock()
	defer r.b.mu.Unlock()
	if r.b.fault {
		return 0, ErrSensor
	}
	return r.b.distance, nil
}
