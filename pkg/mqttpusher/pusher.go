// Package mqttpusher is the ground side of the MQTT command path.  It
// publishes command words to one robot's queues through a broker and
// keeps the latest status report that robot published.
package mqttpusher

import (
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/topic"
)

// Pusher connects to the broker and pushes commands out to a robot.
type Pusher struct {
	l hclog.Logger
	m mqtt.Client

	addr  string
	robot string

	rMutex sync.RWMutex
	last   *robot.Report
}

// New configures and returns a pusher aimed at one robot.  The pusher
// is not connected until Connect is called.
func New(robotID string, opts ...Option) (*Pusher, error) {
	p := &Pusher{
		l:     hclog.NewNullLogger(),
		addr:  "tcp://127.0.0.1:1883",
		robot: robotID,
	}

	for _, o := range opts {
		if err := o(p); err != nil {
			return nil, err
		}
	}

	copts := mqtt.NewClientOptions().
		AddBroker(p.addr).
		SetAutoReconnect(true).
		SetClientID("ground-" + uuid.NewString()[:8]).
		SetConnectRetry(true).
		SetConnectTimeout(time.Second).
		SetConnectRetryInterval(time.Second)
	p.m = mqtt.NewClient(copts)
	return p, nil
}

// Connect connects to the broker and subscribes to the robot's status.
func (p *Pusher) Connect() error {
	if tok := p.m.Connect(); tok.Wait() && tok.Error() != nil {
		p.l.Error("Error connecting to broker", "error", tok.Error())
		return tok.Error()
	}
	p.l.Info("Connected to broker", "broker", p.addr)

	subFunc := func() error {
		if tok := p.m.Subscribe(topic.StatusFor(p.robot), 1, p.updateStatus); tok.Wait() && tok.Error() != nil {
			p.l.Warn("Error subscribing to topic", "error", tok.Error())
			return tok.Error()
		}
		p.l.Info("Subscribed to status", "robot", p.robot)
		return nil
	}
	if err := backoff.Retry(subFunc, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)); err != nil {
		p.l.Error("Permanent error encountered while subscribing", "error", err)
		return err
	}
	return nil
}

// Send publishes one command word to a destination queue on the
// robot.  Words travel as 0x prefixed hex text.
func (p *Pusher) Send(dest, msg int32) error {
	payload := "0x" + strconv.FormatUint(uint64(uint32(msg)), 16)
	tok := p.m.Publish(topic.CommandFor(p.robot, int(dest)), 1, false, payload)
	tok.Wait()
	return tok.Error()
}

// LastReport returns the most recent status the robot published.
func (p *Pusher) LastReport() (robot.Report, bool) {
	p.rMutex.RLock()
	defer p.rMutex.RUnlock()
	if p.last == nil {
		return robot.Report{}, false
	}
	return *p.last, true
}

// Disconnect leaves the broker.
func (p *Pusher) Disconnect() {
	p.l.Info("Stopping...")
	p.m.Disconnect(250)
}

func (p *Pusher) updateStatus(c mqtt.Client, msg mqtt.Message) {
	p.updateFromPayload(msg.Payload())
}

func (p *Pusher) updateFromPayload(b []byte) {
	var r robot.Report
	if err := json.Unmarshal(b, &r); err != nil {
		p.l.Warn("Bad status report", "error", err)
		return
	}
	p.rMutex.Lock()
	p.last = &r
	p.rMutex.Unlock()
	p.l.Trace("Status", "robot", p.robot, "current", r.Current)
}
