package mqttbridge

import (
	"github.com/hashicorp/go-hclog"
)

// Option enables variadic option passing to the bridge on startup.
type Option func(*Bridge) error

// Feeder is fed every time a valid command arrives.
type Feeder interface {
	Feed()
}

// WithLogger sets the logger for the bridge.
func WithLogger(l hclog.Logger) Option {
	return func(b *Bridge) error {
		b.l = l.Named("mqttbridge")
		return nil
	}
}

// WithBroker handles setting up the mqtt broker address.
func WithBroker(addr string) Option {
	return func(b *Bridge) error {
		b.addr = addr
		return nil
	}
}

// WithLinkWatchdog feeds f on every accepted command so that commands
// over MQTT keep the robot alive the same way the direct link does.
func WithLinkWatchdog(f Feeder) Option {
	return func(b *Bridge) error {
		b.feeder = f
		return nil
	}
}
