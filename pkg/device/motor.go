package device

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/hw"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// Wheel rotation.
const (
	Reverse  = -1
	Stopped  = 0
	Forwards = 1
)

// MotorController drives one wheel through a pair of PWM channels, one
// for each direction of rotation.  The controller is the only writer
// of its channels.
type MotorController struct {
	*task.Periodic

	l        hclog.Logger
	pwm      hw.PWM
	fwd, rev int

	mu        sync.Mutex
	speed     int
	direction int
}

// NewMotorController builds a wheel task over the given channels.
func NewMotorController(reg *task.Registry, name string, period time.Duration, pwm hw.PWM, fwdChannel, revChannel int, opts ...Option) *MotorController {
	o := newOptions(opts)
	m := &MotorController{
		l:   o.l.Named("motor"),
		pwm: pwm,
		fwd: fwdChannel,
		rev: revChannel,
	}
	m.Periodic = task.NewPeriodic(reg, name, period, task.TickFunc(m.drive), o.taskOptions(task.WithStopHook(m.halt))...)
	return m
}

// SetSpeed sets the duty cycle, 0 to 1000.  Other values are ignored.
func (m *MotorController) SetSpeed(s int) {
	if s < command.MinSpeed || s > command.MaxSpeed {
		m.l.Debug("Ignoring speed", "motor", m.Name(), "speed", s)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = s
}

// SetDirection sets Reverse, Stopped or Forwards.  Other values are
// ignored.
func (m *MotorController) SetDirection(d int) {
	if d != Reverse && d != Stopped && d != Forwards {
		m.l.Debug("Ignoring direction", "motor", m.Name(), "direction", d)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.direction = d
}

// Speed returns the commanded speed.
func (m *MotorController) Speed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed
}

// Direction returns the commanded direction.
func (m *MotorController) Direction() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.direction
}

func (m *MotorController) drive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.write(m.direction, m.speed)
}

// halt runs once when the task is stopped and leaves the wheel
// unpowered.
func (m *MotorController) halt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.direction = Stopped
	m.write(Stopped, 0)
}

func (m *MotorController) write(dir, speed int) {
	fwd, rev := 0, 0
	switch dir {
	case Forwards:
		fwd = speed
	case Reverse:
		rev = speed
	}
	if err := m.pwm.SetDutyCycle(m.rev, rev); err != nil {
		m.l.Debug("Could not set duty cycle", "channel", m.rev, "error", err)
	}
	if err := m.pwm.SetDutyCycle(m.fwd, fwd); err != nil {
		m.l.Debug("Could not set duty cycle", "channel", m.fwd, "error", err)
	}
}
