// Package robot holds the tasks that decide what the robot does: the
// controller that turns commands into wheel motion, the collision
// sensor that stops the robot in front of obstacles, and the status
// manager that reports what the robot sees.
package robot

import (
	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/task"
)

// Option changes features on the robot's tasks.
type Option func(*options)

type options struct {
	l          hclog.Logger
	priority   int
	policy     StoppingDistancePolicy
	publishers []StatusPublisher
	robotID    string
}

func newOptions(opts []Option) options {
	o := options{
		l:        hclog.NewNullLogger(),
		priority: task.DefaultPriority,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (o options) taskOptions(extra ...task.Option) []task.Option {
	return append([]task.Option{
		task.WithLogger(o.l),
		task.WithPriority(o.priority),
	}, extra...)
}

// WithLogger sets the parent logger.
func WithLogger(l hclog.Logger) Option {
	return func(o *options) { o.l = l }
}

// WithPriority sets the priority the task starts at.
func WithPriority(p int) Option {
	return func(o *options) { o.priority = p }
}

// WithStoppingDistancePolicy sets how the collision sensing controller
// derives the minimum distance from the commanded speed.
func WithStoppingDistancePolicy(p StoppingDistancePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithStatusPublisher gives the status manager somewhere to publish
// its reports besides the network link.  It may be given more than
// once.
func WithStatusPublisher(p StatusPublisher) Option {
	return func(o *options) { o.publishers = append(o.publishers, p) }
}

// WithRobotID names the robot in published reports.
func WithRobotID(id string) Option {
	return func(o *options) { o.robotID = id }
}
