package cmdqueue

import (
	"errors"
	"fmt"
)

// Well known destinations on a robot.  Destinations are 1-based to
// match the network record.
const (
	MotorQueue = 1
	HornQueue  = 2
	LineQueue  = 3

	// NumberOfQueues is the size of the default table.
	NumberOfQueues = 3
)

// ErrNoSuchQueue is returned when a destination is outside the table.
var ErrNoSuchQueue = errors.New("no such command queue")

// Table owns the robot's queues for the life of the process.  Tasks
// hold the *Queue handles they were wired with but never close them;
// only the table's owner does.
type Table struct {
	queues []*Queue
}

// NewTable creates n empty queues.
func NewTable(n int) *Table {
	t := &Table{queues: make([]*Queue, n)}
	for i := range t.queues {
		t.queues[i] = New()
	}
	return t
}

// Get returns the queue for a 1-based destination.
func (t *Table) Get(dest int) (*Queue, error) {
	if dest < 1 || dest > len(t.queues) {
		return nil, fmt.Errorf("%w: destination %d", ErrNoSuchQueue, dest)
	}
	return t.queues[dest-1], nil
}

// MustGet is Get for wiring code where the destination is a constant.
func (t *Table) MustGet(dest int) *Queue {
	q, err := t.Get(dest)
	if err != nil {
		panic(err)
	}
	return q
}

// Len returns the number of queues in the table.
func (t *Table) Len() int { return len(t.queues) }

// Depths returns the current length of every queue, indexed by
// destination-1.
func (t *Table) Depths() []int {
	out := make([]int, len(t.queues))
	for i, q := range t.queues {
		out[i] = q.Len()
	}
	return out
}

// CloseAll closes every queue in the table.
func (t *Table) CloseAll() {
	for _, q := range t.queues {
		q.Close()
	}
}
