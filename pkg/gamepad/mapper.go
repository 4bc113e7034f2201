package gamepad

import (
	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/command"
)

const (
	axisMax = 32767

	// Deadzone is how far a stick must move before it counts.
	Deadzone = 8000

	speedStep    = 25
	steeringStep = 5
)

// Command is one word for one destination queue.
type Command struct {
	Dest int32
	Word int32
}

// Mapper turns successive gamepad readings into commands.  Only
// changes produce commands, so holding a stick still sends nothing.
//
// Left stick drives, the right trigger sets the speed and the right
// stick steers.  A sounds the horn, B mutes it and X pulses it.  The
// shoulders start and stop line sensing, Start and Back turn line
// following on and off.
type Mapper struct {
	primed    bool
	direction command.Direction
	speed     int
	steering  int
	buttons   Values
}

// Update returns the commands needed to bring the robot in line with
// v.  The first call always sends the current motion, speed and
// steering.
func (m *Mapper) Update(v Values) []Command {
	var out []Command

	if d := directionOf(v); !m.primed || d != m.direction {
		m.direction = d
		out = append(out, Command{cmdqueue.MotorQueue, command.EncodeMotion(d)})
	}
	if s := speedOf(v); !m.primed || abs(s-m.speed) >= speedStep || (s != m.speed && (s == 0 || s == command.MaxSpeed)) {
		m.speed = s
		out = append(out, Command{cmdqueue.MotorQueue, command.EncodeSpeed(s)})
	}
	if s := steeringOf(v); !m.primed || abs(s-m.steering) >= steeringStep || (s == 0 && m.steering != 0) {
		m.steering = s
		out = append(out, Command{cmdqueue.MotorQueue, command.EncodeSteering(s)})
	}

	for _, b := range []struct {
		now, was bool
		cmd      Command
	}{
		{v.ButtonA, m.buttons.ButtonA, Command{cmdqueue.HornQueue, command.HornSound}},
		{v.ButtonB, m.buttons.ButtonB, Command{cmdqueue.HornQueue, command.HornMute}},
		{v.ButtonX, m.buttons.ButtonX, Command{cmdqueue.HornQueue, command.BackupAlarm()}},
		{v.ButtonLShoulder, m.buttons.ButtonLShoulder, Command{cmdqueue.LineQueue, command.StartLineSensing}},
		{v.ButtonRShoulder, m.buttons.ButtonRShoulder, Command{cmdqueue.LineQueue, command.StopLineSensing}},
		{v.ButtonStart, m.buttons.ButtonStart, Command{cmdqueue.LineQueue, command.EnableLineFollowing}},
		{v.ButtonBack, m.buttons.ButtonBack, Command{cmdqueue.LineQueue, command.DisableLineFollowing}},
	} {
		if b.now && !b.was {
			out = append(out, b.cmd)
		}
	}

	m.buttons = v
	m.primed = true
	return out
}

// Stop returns the command that parks the robot and forgets the last
// motion so the next Update resends it.
func (m *Mapper) Stop() Command {
	m.direction = command.Stop
	m.primed = false
	return Command{cmdqueue.MotorQueue, command.EncodeMotion(command.Stop)}
}

func directionOf(v Values) command.Direction {
	var d command.Direction
	switch {
	case v.AxisLY < -Deadzone:
		d |= command.Forward
	case v.AxisLY > Deadzone:
		d |= command.Backward
	}
	switch {
	case v.AxisLX < -Deadzone:
		d |= command.Left
	case v.AxisLX > Deadzone:
		d |= command.Right
	}
	if d == 0 {
		return command.Stop
	}
	return d
}

// speedOf maps the right trigger, which rests at -axisMax, onto
// 0..MaxSpeed.
func speedOf(v Values) int {
	s := (v.AxisRT + axisMax) * command.MaxSpeed / (2 * axisMax)
	return clamp(s, command.MinSpeed, command.MaxSpeed)
}

func steeringOf(v Values) int {
	if abs(v.AxisRX) < Deadzone {
		return 0
	}
	return clamp(v.AxisRX*command.MaxSteering/axisMax, -command.MaxSteering, command.MaxSteering)
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
