package network

import (
	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/task"
)

// Feeder is fed every time a valid command arrives.
type Feeder interface {
	Feed()
}

// Option changes features on the network tasks and client.
type Option func(*options)

type options struct {
	l            hclog.Logger
	priority     int
	dog          Feeder
	bindAttempts uint64
}

func newOptions(opts []Option) options {
	o := options{
		l:            hclog.NewNullLogger(),
		priority:     task.DefaultPriority,
		bindAttempts: 5,
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

// WithLinkWatchdog feeds f on every accepted command.
func WithLinkWatchdog(f Feeder) Option {
	return func(o *options) { o.dog = f }
}

// WithBindAttempts sets how many times Listen retries a busy address.
func WithBindAttempts(n uint64) Option {
	return func(o *options) { o.bindAttempts = n }
}
