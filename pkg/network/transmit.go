package network

import (
	"errors"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// Sender delivers a record to the ground station.
type Sender interface {
	Send(Message) error
}

// TransmissionManager sends queued records over the manager's
// connection.  Records queued while no ground station is connected are
// dropped.
type TransmissionManager struct {
	*task.Task

	l    hclog.Logger
	q    *cmdqueue.FIFO[Message]
	dest Sender
}

// NewTransmissionManager builds the transmit task.
func NewTransmissionManager(reg *task.Registry, name string, dest Sender, opts ...Option) *TransmissionManager {
	o := newOptions(opts)
	t := &TransmissionManager{
		l:    o.l.Named("transmit"),
		q:    cmdqueue.NewFIFO[Message](),
		dest: dest,
	}
	t.Task = task.New(reg, name, task.RunnerFunc(t.sendOne), o.taskOptions(task.WithStopHook(t.q.Close))...)
	return t
}

// EnqueueMessage queues a record for sending.  It never blocks.
func (t *TransmissionManager) EnqueueMessage(m Message) {
	t.q.Enqueue(m)
}

// Pending returns the number of records waiting to be sent.
func (t *TransmissionManager) Pending() int { return t.q.Len() }

func (t *TransmissionManager) sendOne() {
	m, err := t.q.Dequeue()
	if errors.Is(err, cmdqueue.ErrClosed) {
		t.Stop()
		return
	}

	switch err := t.dest.Send(m); {
	case errors.Is(err, ErrNotConnected):
		t.l.Trace("Dropping record, no ground station")
	case err != nil:
		t.l.Debug("Send failed", "error", err)
	}
}
