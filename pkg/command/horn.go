package command

import (
	"time"
)

// Horn command words.
const (
	HornMute  int32 = 0x40000000
	HornSound int32 = 0x20000000
	HornPulse int32 = 0x10000000

	hornClassMask     int32 = -0x01000000 // 0xFF000000
	hornLengthMask    int32 = 0x00FFF000
	hornLengthShift         = 12
	hornPeriodMask    int32 = 0x00000FFF
	hornFieldMaxValue       = 0xFFF
)

// Standard backup alarm pulse used when the robot reverses.
const (
	BackupPulseLength = 300 * time.Millisecond
	BackupPulsePeriod = 600 * time.Millisecond
)

// Horn is a decoded horn command: Mute, Sound or Pulse.
type Horn interface {
	isHorn()
}

// Mute silences the horn.
type Mute struct{}

// Sound turns the horn on continuously.
type Sound struct{}

// Pulse sounds the horn for Length out of every Period.
type Pulse struct {
	Length time.Duration
	Period time.Duration
}

func (Mute) isHorn()  {}
func (Sound) isHorn() {}
func (Pulse) isHorn() {}

// DecodeHorn decodes a horn queue word.  Lengths and periods travel as
// milliseconds.
func DecodeHorn(raw int32) (Horn, bool) {
	switch {
	case raw == HornMute:
		return Mute{}, true
	case raw == HornSound:
		return Sound{}, true
	case raw&hornClassMask == HornPulse:
		return Pulse{
			Length: time.Duration((raw&hornLengthMask)>>hornLengthShift) * time.Millisecond,
			Period: time.Duration(raw&hornPeriodMask) * time.Millisecond,
		}, true
	}
	return nil, false
}

// EncodePulse builds a pulse command.  Both values are rounded down to
// whole milliseconds and clamped into their 12 bit fields.
func EncodePulse(length, period time.Duration) int32 {
	return HornPulse | (msField(length) << hornLengthShift) | msField(period)
}

// BackupAlarm is the pulse command sent on every reverse motion.
func BackupAlarm() int32 {
	return EncodePulse(BackupPulseLength, BackupPulsePeriod)
}

func msField(d time.Duration) int32 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}
	if ms > hornFieldMaxValue {
		return hornFieldMaxValue
	}
	return int32(ms)
}
