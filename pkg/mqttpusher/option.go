package mqttpusher

import (
	"github.com/hashicorp/go-hclog"
)

// Option enables variadic option passing to the pusher on startup.
type Option func(*Pusher) error

// WithLogger sets the logger for the pusher.
func WithLogger(l hclog.Logger) Option {
	return func(p *Pusher) error {
		p.l = l.Named("pusher")
		return nil
	}
}

// WithMQTTServer handles setting up the mqtt server address.
func WithMQTTServer(addr string) Option {
	return func(p *Pusher) error {
		p.addr = addr
		return nil
	}
}
