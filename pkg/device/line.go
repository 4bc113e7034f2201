package device

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/hw"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// LineSensor watches three downward facing reflectance sensors.  When
// active it stops the robot on a crossing line, and with following
// enabled it steers the robot along the line by posting motion
// commands.
type LineSensor struct {
	*task.Periodic

	l    hclog.Logger
	ctrl *cmdqueue.Queue
	mcq  *cmdqueue.Queue

	left, center, right hw.DigitalInput

	active    atomic.Bool
	following atomic.Bool
}

// NewLineSensor builds the line sensor task.  Control words arrive on
// ctrl, motion commands are posted to mcq.  Sensing starts inactive.
func NewLineSensor(reg *task.Registry, name string, period time.Duration, ctrl, mcq *cmdqueue.Queue, left, center, right hw.DigitalInput, opts ...Option) *LineSensor {
	o := newOptions(opts)
	s := &LineSensor{
		l:      o.l.Named("line"),
		ctrl:   ctrl,
		mcq:    mcq,
		left:   left,
		center: center,
		right:  right,
	}
	s.Periodic = task.NewPeriodic(reg, name, period, task.TickFunc(s.tick), o.taskOptions()...)
	return s
}

// Active reports whether line sensing is on.
func (s *LineSensor) Active() bool { return s.active.Load() }

// Following reports whether line following is on.
func (s *LineSensor) Following() bool { return s.following.Load() }

func (s *LineSensor) tick() {
	if raw, ok := s.ctrl.TryDequeue(); ok {
		s.control(command.DecodeLine(raw))
	}
	if !s.active.Load() {
		return
	}

	l, errL := s.left.Level()
	c, errC := s.center.Level()
	r, errR := s.right.Level()
	if errL != nil || errC != nil || errR != nil {
		s.l.Trace("Could not read line sensors")
		return
	}

	if dir, ok := s.decide(l, c, r); ok {
		s.mcq.Enqueue(command.EncodeMotion(dir))
	}
}

func (s *LineSensor) control(c command.LineControl) {
	switch c {
	case command.LineStart:
		s.active.Store(true)
	case command.LineStop:
		s.active.Store(false)
	case command.LineFollowOn:
		s.following.Store(true)
	case command.LineFollowOff:
		s.following.Store(false)
	default:
		s.l.Debug("Ignoring line control word")
		return
	}
	s.l.Debug("Line sensing changed", "command", c)
}

func (s *LineSensor) decide(l, c, r bool) (command.Direction, bool) {
	if l && c && r {
		return command.Stop, true
	}
	if !s.following.Load() {
		return 0, false
	}
	switch {
	case !l && c && !r:
		return command.Forward, true
	case l && !r:
		return command.Left, true
	case !l && r:
		return command.Right, true
	case l && r:
		return command.Stop, true
	}
	return 0, false
}
