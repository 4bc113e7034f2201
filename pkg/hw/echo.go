package hw

import (
	"errors"
	"time"
)

const (
	triggerWidth = 10 * time.Microsecond
	riseTimeout  = 10 * time.Millisecond
	fallTimeout  = 11 * time.Millisecond

	// speedOfSound in mm per ms.
	speedOfSound = 343
)

// ErrNoEcho is returned when the echo pulse was not seen.
var ErrNoEcho = errors.New("no echo")

// EchoRangefinder measures distance with an ultrasonic sensor that
// answers a trigger pulse with an echo pulse whose width is the round
// trip time of the sound.
type EchoRangefinder struct {
	Trigger DigitalOutput
	Echo    EdgeWaiter
}

// ReadDistanceMm fires one measurement and converts the echo width to
// millimetres.
func (e *EchoRangefinder) ReadDistanceMm() (int, error) {
	if err := e.Trigger.SetLevel(true); err != nil {
		return 0, err
	}
	time.Sleep(triggerWidth)
	if err := e.Trigger.SetLevel(false); err != nil {
		return 0, err
	}

	rise, err := e.Echo.WaitForEdge(riseTimeout)
	if err != nil {
		return 0, err
	}
	fall, err := e.Echo.WaitForEdge(fallTimeout)
	if err != nil {
		return 0, err
	}
	if rise.Edge != EdgeRising || fall.Edge != EdgeFalling {
		return 0, ErrNoEcho
	}

	return EchoDistance(fall.At.Sub(rise.At)), nil
}

// EchoDistance converts an echo pulse width to a one way distance in
// millimetres.
func EchoDistance(width time.Duration) int {
	return int(speedOfSound * (float64(width.Nanoseconds()) / 2) / 1e6)
}
