// Package stats is the ground side of the fleet's MQTT traffic.  It
// listens to every robot's status reports and turns them into
// prometheus metrics.
package stats

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/metrics"
	"github.com/rtbot-platform/rtbot/pkg/topic"
)

// Listener is a local client on the broker which handles the
// conversion from MQTT status messages to updating the metric
// registries for prometheus data.
type Listener struct {
	l hclog.Logger
	c mqtt.Client
	m *metrics.Metrics
}

// NewListener hands back a complete stats listener for external
// consumption.
func NewListener(l hclog.Logger, connect string, m *metrics.Metrics) *Listener {
	x := &Listener{l: l.Named("stats"), m: m}
	opts := mqtt.NewClientOptions().
		AddBroker(connect).
		SetAutoReconnect(true).
		SetClientID("monitor-" + uuid.NewString()[:8]).
		SetConnectRetry(true).
		SetConnectTimeout(time.Second).
		SetConnectRetryInterval(time.Second)
	x.c = mqtt.NewClient(opts)
	return x
}

// Listen connects and subscribes to the status of every robot.
func (x *Listener) Listen() error {
	if tok := x.c.Connect(); tok.Wait() && tok.Error() != nil {
		x.l.Error("Error connecting to broker", "error", tok.Error())
		return tok.Error()
	}
	x.l.Info("Connected to broker")

	callback := func(client mqtt.Client, message mqtt.Message) {
		x.handle(message.Topic(), message.Payload())
	}

	subFunc := func() error {
		if tok := x.c.Subscribe(topic.AllStatus, 1, callback); tok.Wait() && tok.Error() != nil {
			x.l.Warn("Error subscribing to topic", "error", tok.Error())
			return tok.Error()
		}
		return nil
	}
	if err := backoff.Retry(subFunc, backoff.NewExponentialBackOff()); err != nil {
		x.l.Error("Permanent error encountered while subscribing", "error", err)
		return err
	}
	x.l.Info("Subscribed to topics")
	return nil
}

// Close disconnects from the broker.
func (x *Listener) Close() {
	x.c.Disconnect(250)
}

func (x *Listener) handle(t string, payload []byte) {
	p, err := topic.Parse(t)
	if err != nil || p.Kind != topic.Status {
		return
	}
	x.l.Trace("Called back", "robot", p.Robot)
	x.m.ParseReport(p.Robot, payload)
}
