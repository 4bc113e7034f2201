// Package command defines the 32 bit command words that flow through
// the robot's command queues and over the network.  The wire values
// are fixed; everything past a queue boundary works with the decoded
// variants instead of raw integers.
package command

import (
	"fmt"
	"strings"
)

// Drive class bitmaps.  Exactly one of these is set in a drive command.
const (
	SpeedBitmap    int32 = 0x40000000
	MotionBitmap   int32 = 0x20000000
	SteeringBitmap int32 = 0x10000000

	// PayloadMask selects the class specific argument.
	PayloadMask int32 = 0x00000FFF
)

// Direction is the payload of a motion command.  Diagonals are sums
// of the cardinal values.
type Direction int32

// Motion payloads.
const (
	Forward  Direction = 0x00000001
	Backward Direction = 0x00000002
	Left     Direction = 0x00000004
	Right    Direction = 0x00000008
	Stop     Direction = 0x00000010
)

// Speed and steering limits.
const (
	MinSpeed    = 0
	MaxSpeed    = 1000
	MaxSteering = 100

	steeringBias = 100
)

func (d Direction) String() string {
	names := []string{}
	for _, c := range []struct {
		d    Direction
		name string
	}{
		{Forward, "forward"},
		{Backward, "backward"},
		{Left, "left"},
		{Right, "right"},
		{Stop, "stop"},
	} {
		if d&c.d != 0 {
			names = append(names, c.name)
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("direction(%d)", int32(d))
	}
	return strings.Join(names, "+")
}

// Drive is a decoded command for the robot controller.  It is one of
// Motion, Speed, Steering or UnknownDrive.
type Drive interface {
	isDrive()
}

// Motion changes the wheel directions.
type Motion struct {
	Direction Direction
}

// Speed sets the commanded speed in permille.
type Speed struct {
	Value int
}

// Steering sets the steering offset.  The wire value is biased by 100
// so that Offset is already in the signed range.
type Steering struct {
	Offset int
}

// UnknownDrive carries a word whose class is not recognized.
type UnknownDrive struct {
	Raw int32
}

func (Motion) isDrive()       {}
func (Speed) isDrive()        {}
func (Steering) isDrive()     {}
func (UnknownDrive) isDrive() {}

// DecodeDrive splits a raw word into its class and payload.  The class
// is everything above the payload bits and must match one bitmap
// exactly.
func DecodeDrive(raw int32) Drive {
	payload := raw & PayloadMask
	switch raw - payload {
	case MotionBitmap:
		return Motion{Direction: Direction(payload)}
	case SpeedBitmap:
		return Speed{Value: int(payload)}
	case SteeringBitmap:
		return Steering{Offset: int(payload) - steeringBias}
	default:
		return UnknownDrive{Raw: raw}
	}
}

// EncodeMotion builds a motion command.
func EncodeMotion(d Direction) int32 {
	return MotionBitmap | (int32(d) & PayloadMask)
}

// EncodeSpeed builds a speed command.  Values that don't fit the
// payload are truncated to it, the receiver performs range checks.
func EncodeSpeed(v int) int32 {
	return SpeedBitmap | (int32(v) & PayloadMask)
}

// EncodeSteering builds a steering command from a signed offset.
func EncodeSteering(offset int) int32 {
	return SteeringBitmap | (int32(offset+steeringBias) & PayloadMask)
}
