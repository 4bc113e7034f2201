package robot

import (
	"errors"
	"sync/atomic"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/device"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// InitialMotorSpeed is written to every wheel when the controller is
// built.
const InitialMotorSpeed = 500

// Motor is one wheel as seen by the controller.
type Motor interface {
	task.Lifecycle
	SetSpeed(int)
	SetDirection(int)
}

// Motors are the four wheels, named by side and axle.
type Motors struct {
	LF, LR, RF, RR Motor
}

func (m Motors) all() []Motor { return []Motor{m.LF, m.LR, m.RF, m.RR} }

func (m Motors) lifecycles() []task.Lifecycle {
	return []task.Lifecycle{m.LF, m.LR, m.RF, m.RR}
}

type motion struct {
	left, right int
	horn        int32
}

var motions = func() map[command.Direction]motion {
	const (
		F = device.Forwards
		R = device.Reverse
		S = device.Stopped
	)
	mute, backup := command.HornMute, command.BackupAlarm()
	return map[command.Direction]motion{
		command.Forward:                  {F, F, mute},
		command.Backward:                 {R, R, backup},
		command.Left:                     {R, F, mute},
		command.Right:                    {F, R, mute},
		command.Forward | command.Left:   {S, F, mute},
		command.Forward | command.Right:  {F, S, mute},
		command.Backward | command.Left:  {S, R, backup},
		command.Backward | command.Right: {R, S, backup},
		command.Stop:                     {S, S, mute},
	}
}()

// Controller drives the robot from the motion, speed and steering
// commands on its queue.  It owns the four wheel tasks: starting or
// stopping the controller starts or stops them too.
type Controller struct {
	*task.Task

	l      hclog.Logger
	q      *cmdqueue.Queue
	hq     *cmdqueue.Queue
	motors Motors

	// Written only by the controller's own thread.
	speed    atomic.Int32
	steering atomic.Int32

	afterSpeed func(int)
}

// NewController builds the controller.  Commands are taken from q,
// horn commands that accompany motions are posted to hq.  Stopping the
// controller closes q.
func NewController(reg *task.Registry, name string, q, hq *cmdqueue.Queue, m Motors, opts ...Option) *Controller {
	o := newOptions(opts)
	c := &Controller{
		l:      o.l.Named("controller"),
		q:      q,
		hq:     hq,
		motors: m,
	}
	for _, w := range m.all() {
		w.SetSpeed(InitialMotorSpeed)
	}
	c.Task = task.New(reg, name, task.RunnerFunc(c.next), o.taskOptions(
		task.WithChildren(m.lifecycles()...),
		task.WithStopHook(q.Close),
	)...)
	return c
}

// Speed returns the last accepted speed.
func (c *Controller) Speed() int { return int(c.speed.Load()) }

// Steering returns the last accepted steering offset.
func (c *Controller) Steering() int { return int(c.steering.Load()) }

func (c *Controller) next() {
	raw, err := c.q.Dequeue()
	if errors.Is(err, cmdqueue.ErrClosed) {
		c.Stop()
		return
	}
	c.handle(raw)
}

func (c *Controller) handle(raw int32) {
	switch cmd := command.DecodeDrive(raw).(type) {
	case command.Motion:
		c.move(cmd.Direction)
	case command.Speed:
		c.setSpeed(cmd.Value)
	case command.Steering:
		c.steer(cmd.Offset)
	default:
		c.l.Debug("Ignoring command", "command", raw)
	}
}

func (c *Controller) move(d command.Direction) {
	mv, ok := motions[d]
	if !ok {
		c.l.Debug("Ignoring motion", "direction", d)
		return
	}
	c.motors.LF.SetDirection(mv.left)
	c.motors.LR.SetDirection(mv.left)
	c.motors.RF.SetDirection(mv.right)
	c.motors.RR.SetDirection(mv.right)
	c.hq.Enqueue(mv.horn)
	c.l.Trace("Motion", "direction", d)
}

func (c *Controller) setSpeed(s int) {
	if s < command.MinSpeed || s > command.MaxSpeed {
		c.l.Debug("Ignoring speed", "speed", s)
		return
	}
	c.speed.Store(int32(s))
	c.applySpeed()
	if c.afterSpeed != nil {
		c.afterSpeed(s)
	}
}

func (c *Controller) steer(offset int) {
	if offset < -command.MaxSteering || offset > command.MaxSteering {
		c.l.Debug("Ignoring steering", "offset", offset)
		return
	}
	c.steering.Store(int32(offset))
	c.applySpeed()
}

// applySpeed slows the wheels on the inside of the turn in proportion
// to the steering offset.
func (c *Controller) applySpeed() {
	speed, steer := int(c.speed.Load()), int(c.steering.Load())
	left, right := speed, speed
	switch {
	case steer > 0:
		right = speed * (100 - steer) / 100
	case steer < 0:
		left = speed * (100 + steer) / 100
	}
	c.motors.LF.SetSpeed(left)
	c.motors.LR.SetSpeed(left)
	c.motors.RF.SetSpeed(right)
	c.motors.RR.SetSpeed(right)
}

// StoppingDistancePolicy maps a commanded speed to the minimum
// distance the collision sensor should enforce at that speed.
type StoppingDistancePolicy func(speed int) int

// CollisionSensingController is a Controller that keeps the collision
// sensor's threshold in step with the commanded speed.  Without a
// policy it behaves exactly like a Controller.
type CollisionSensingController struct {
	*Controller

	cs     *CollisionSensor
	policy StoppingDistancePolicy
}

// NewCollisionSensingController builds the controller around cs.
func NewCollisionSensingController(reg *task.Registry, name string, q, hq *cmdqueue.Queue, m Motors, cs *CollisionSensor, opts ...Option) *CollisionSensingController {
	o := newOptions(opts)
	c := &CollisionSensingController{
		Controller: NewController(reg, name, q, hq, m, opts...),
		cs:         cs,
		policy:     o.policy,
	}
	c.afterSpeed = c.adjustDistance
	return c
}

func (c *CollisionSensingController) adjustDistance(speed int) {
	if c.policy == nil || c.cs == nil {
		return
	}
	c.cs.SetMinimumAcceptableDistance(c.policy(speed))
}
