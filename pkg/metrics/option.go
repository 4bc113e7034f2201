package metrics

import (
	"time"

	"github.com/hashicorp/go-hclog"
)

// WithLogger provides a non-nil logger for the metrics instance to
// interact with.
func WithLogger(l hclog.Logger) Option {
	return func(m *Metrics) {
		m.l = l.Named("metrics")
	}
}

// WithZombieTimeout sets how long a robot may stay quiet before its
// metrics are flushed.
func WithZombieTimeout(d time.Duration) Option {
	return func(m *Metrics) {
		m.zombieAfter = d
	}
}
