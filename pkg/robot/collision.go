package robot

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// DefaultMinimumDistance is the threshold a new collision sensor
// starts with, in mm.
const DefaultMinimumDistance = 100

// DistanceSource provides the latest distance reading.  ok is false
// when there is no usable reading, and seq changes only when a new
// valid reading arrives.
type DistanceSource interface {
	Reading() (mm int, seq uint64, ok bool)
}

// CollisionSensor stops the robot when an obstacle is closer than the
// minimum acceptable distance.  A single close reading is treated as
// noise: the robot is stopped and the horn sounded on the second
// consecutive violation, and the horn sounded once more on the third.
// Nothing further happens until a reading is back in range.  Failed
// reads and readings already acted on are skipped without changing the
// count.
type CollisionSensor struct {
	*task.Periodic

	l   hclog.Logger
	mcq *cmdqueue.Queue
	hq  *cmdqueue.Queue
	ds  DistanceSource

	mad        atomic.Int64
	violations atomic.Int64

	// last reading acted on; only touched by tick.
	seen uint64
}

// NewCollisionSensor builds the collision sensor task.  Stop commands
// go to mcq and horn commands to hq.
func NewCollisionSensor(reg *task.Registry, name string, period time.Duration, mcq, hq *cmdqueue.Queue, ds DistanceSource, opts ...Option) *CollisionSensor {
	o := newOptions(opts)
	c := &CollisionSensor{
		l:   o.l.Named("collision"),
		mcq: mcq,
		hq:  hq,
		ds:  ds,
	}
	c.mad.Store(DefaultMinimumDistance)
	c.Periodic = task.NewPeriodic(reg, name, period, task.TickFunc(c.tick), o.taskOptions()...)
	return c
}

// SetMinimumAcceptableDistance sets the threshold in mm.  Any value is
// accepted; a negative threshold can never be violated.
func (c *CollisionSensor) SetMinimumAcceptableDistance(mad int) {
	c.mad.Store(int64(mad))
	c.l.Debug("Minimum distance changed", "mm", mad)
}

// MinimumAcceptableDistance returns the threshold in mm.
func (c *CollisionSensor) MinimumAcceptableDistance() int { return int(c.mad.Load()) }

// ViolationCount returns the number of consecutive close readings.
func (c *CollisionSensor) ViolationCount() int { return int(c.violations.Load()) }

func (c *CollisionSensor) tick() {
	d, seq, ok := c.ds.Reading()
	if !ok || seq == c.seen {
		return
	}
	c.seen = seq

	if d >= int(c.mad.Load()) {
		c.violations.Store(0)
		return
	}

	switch c.violations.Add(1) {
	case 2:
		c.l.Info("Obstacle too close, stopping", "mm", d, "minimum", c.mad.Load())
		c.mcq.Enqueue(command.EncodeMotion(command.Stop))
		c.hq.Enqueue(command.HornSound)
	case 3:
		c.hq.Enqueue(command.HornSound)
	}
}
