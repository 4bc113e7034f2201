// Package hw declares the hardware capabilities the robot's tasks are
// written against.  Register level access to GPIO and the PWM
// controller lives behind these interfaces in a backend: either the
// in-memory simulator or a microcontroller reached over a serial
// line.
package hw

import (
	"errors"
	"time"
)

// ErrTimeout is returned when an edge does not arrive in time.
var ErrTimeout = errors.New("timed out waiting for edge")

// Rangefinder measures the distance to the nearest obstacle.
type Rangefinder interface {
	ReadDistanceMm() (int, error)
}

// PWM drives a multi channel pulse width modulator.  Duty cycles are
// expressed in tenths of a percent, 0 to 1000.
type PWM interface {
	SetDutyCycle(channel, permille int) error
}

// DigitalOutput is a single output pin.
type DigitalOutput interface {
	SetLevel(high bool) error
}

// DigitalInput is a single input pin.
type DigitalInput interface {
	Level() (bool, error)
}

// Edge identifies a level transition.
type Edge int

// Transitions an EdgeWaiter can report.
const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
)

// EdgeResult describes a transition and when it was latched.
type EdgeResult struct {
	Edge Edge
	At   time.Time
}

// EdgeWaiter blocks until an input changes level.
type EdgeWaiter interface {
	WaitForEdge(timeout time.Duration) (EdgeResult, error)
}

// Board hands out the capabilities of one physical robot.
type Board interface {
	PWM() PWM
	Output(pin int) (DigitalOutput, error)
	Input(pin int) (DigitalInput, error)
	Rangefinder(trigPin, echoPin int) (Rangefinder, error)
	Close() error
}
