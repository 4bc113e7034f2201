// Package device contains the periodic tasks that own the robot's
// hardware: the rangefinder, the motors, the horn and the line
// sensors.  Each device is a task.Periodic and can be started,
// stopped and inspected like any other task.
package device

import (
	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/task"
)

// Option changes features on a device.
type Option func(*options)

type options struct {
	l        hclog.Logger
	priority int
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

// WithPriority sets the priority the device's task starts at.
func WithPriority(p int) Option {
	return func(o *options) { o.priority = p }
}
