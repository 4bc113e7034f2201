// Package mqttbridge connects a robot to an MQTT broker.  Status
// reports go out on robot/<id>/status and raw command words come in on
// robot/<id>/cmd/<destination>, landing in the same queues as commands
// from the direct network link.
package mqttbridge

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/topic"
)

// ErrNotConnected is returned when publishing without a broker.
var ErrNotConnected = errors.New("not connected to broker")

// Bridge binds the client and the queues it feeds.
type Bridge struct {
	l hclog.Logger
	m mqtt.Client

	addr   string
	robot  string
	table  *cmdqueue.Table
	feeder Feeder
}

// New configures and returns a bridge.  The bridge is not connected
// until Connect is called.
func New(robotID string, table *cmdqueue.Table, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		l:     hclog.NewNullLogger(),
		addr:  "tcp://127.0.0.1:1883",
		robot: robotID,
		table: table,
	}

	for _, o := range opts {
		if err := o(b); err != nil {
			return nil, err
		}
	}

	copts := mqtt.NewClientOptions().
		AddBroker(b.addr).
		SetAutoReconnect(true).
		SetClientID(topic.ClientID(robotID)).
		SetConnectRetry(true).
		SetConnectTimeout(time.Second).
		SetConnectRetryInterval(time.Second).
		SetOnConnectHandler(func(mqtt.Client) { b.l.Info("Connected to broker", "broker", b.addr) }).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) { b.l.Warn("Lost broker", "error", err) })
	b.m = mqtt.NewClient(copts)
	return b, nil
}

// Connect allows for setting up the connection later, after the
// bridge is initialized.
func (b *Bridge) Connect() error {
	if tok := b.m.Connect(); tok.Wait() && tok.Error() != nil {
		b.l.Error("Error connecting to broker", "error", tok.Error())
		return tok.Error()
	}

	filter := topic.CommandFilter(b.robot)
	subFunc := func() error {
		if tok := b.m.Subscribe(filter, 1, b.onCommand); tok.Wait() && tok.Error() != nil {
			b.l.Warn("Error subscribing to topic", "error", tok.Error())
			return tok.Error()
		}
		b.l.Info("Subscribed to topics", "filter", filter)
		return nil
	}
	if err := backoff.Retry(subFunc, backoff.NewExponentialBackOff()); err != nil {
		b.l.Error("Permanent error encountered while subscribing", "error", err)
		return err
	}
	return nil
}

// PublishStatus sends a status report.  It never waits on the
// network, so the status task keeps its period even when the broker
// is slow.
func (b *Bridge) PublishStatus(r robot.Report) error {
	if !b.m.IsConnectionOpen() {
		return ErrNotConnected
	}
	if r.RobotID == "" {
		r.RobotID = b.robot
	}
	bytes, err := json.Marshal(r)
	if err != nil {
		return err
	}

	tok := b.m.Publish(topic.StatusFor(b.robot), 0, false, bytes)
	select {
	case <-tok.Done():
		return tok.Error()
	default:
		return nil
	}
}

// Disconnect closes the connection to the broker.
func (b *Bridge) Disconnect() {
	b.l.Info("Disconnecting")
	b.m.Disconnect(250)
}

func (b *Bridge) onCommand(c mqtt.Client, msg mqtt.Message) {
	b.handle(msg.Topic(), msg.Payload())
}

// handle applies the same acceptance rules as the direct link: the
// destination must name a queue and the payload must be one command
// word.  Anything else is dropped.
func (b *Bridge) handle(t string, payload []byte) bool {
	p, err := topic.Parse(t)
	if err != nil || p.Kind != topic.Command || p.Robot != b.robot {
		b.l.Debug("Dropping message", "topic", t)
		return false
	}
	word, err := topic.ParseCommandWord(payload)
	if err != nil {
		b.l.Debug("Dropping bad command word", "topic", t, "error", err)
		return false
	}
	q, err := b.table.Get(p.Dest)
	if err != nil {
		b.l.Debug("Dropping command", "topic", t, "error", err)
		return false
	}

	q.Enqueue(word)
	if b.feeder != nil {
		b.feeder.Feed()
	}
	b.l.Trace("Command", "destination", p.Dest, "message", word)
	return true
}
