package eventstream

import (
	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// EventType is used to identify what type of event is crossing the
// wire.
type EventType uint8

const (
	// EventTypeUnknown is used as a zero value to ensure that this
	// always has to be set to something.
	EventTypeUnknown EventType = iota

	// EventTypeError is pushed across the wire in the event that the
	// system has encountered some kind of error that was
	// non-recoverable.
	EventTypeError

	// EventTypeLogLine is used to signify that the event in question
	// is a log line, which may be associated with one or more
	// other events.
	EventTypeLogLine

	// EventTypeDiagnostics carries a snapshot of every task's
	// timing and the depth of every command queue.
	EventTypeDiagnostics

	// EventTypeStatus carries a distance status report.
	EventTypeStatus
)

// EventError contains the underlying error that occured.
type EventError struct {
	Type  EventType
	Error string
}

// EventLogLine contains a message from a log.
type EventLogLine struct {
	Type    EventType
	Message string
}

// TaskTiming is one row of the diagnostics table.  Times are in
// microseconds.
type TaskTiming struct {
	Thread     int
	Name       string
	Priority   int
	Period     int64
	LastCPU    int64
	WCET       int64
	LastWall   int64
	WCWT       int64
	CPUUsage   float64
	Misses     uint64
	Iterations uint64
	Overrun    bool
	Foreign    bool
}

// EventDiagnostics contains the diagnostics table.
type EventDiagnostics struct {
	Type        EventType
	Tasks       []TaskTiming
	TotalCPU    float64
	QueueDepths []int
}

// EventStatus contains a status report.
type EventStatus struct {
	Type   EventType
	Report robot.Report
}

// TaskSource provides the diagnostics that get streamed.
type TaskSource interface {
	Snapshot() []task.Diagnostics
}

// QueueSource provides the depth of each command queue.
type QueueSource interface {
	Depths() []int
}

// Option changes features on the stream.
type Option func(*EventStream)

// WithLogger sets the parent logger.
func WithLogger(l hclog.Logger) Option {
	return func(es *EventStream) { es.l = l.Named("events") }
}

// WithMaxUndelivered sets how many events a subscriber may fall
// behind before it is disconnected.
func WithMaxUndelivered(n int) Option {
	return func(es *EventStream) { es.maxUndelivered = n }
}
