package gamepad

import (
	"github.com/hashicorp/go-hclog"
)

// Option is used to enable variadic option passing to the pad.
type Option func(p *Pad)

// WithLogger sets the logging instance for the gamepad.
func WithLogger(l hclog.Logger) Option {
	return func(p *Pad) {
		p.l = l.Named("gamepad")
	}
}

// WithBindAttempts sets how many times Bind retries before giving up.
func WithBindAttempts(n uint64) Option {
	return func(p *Pad) {
		p.attempts = n
	}
}
