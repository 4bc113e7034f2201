package eventstream

import (
	"encoding/json"
	"time"

	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// PublishError pushes an error out into the event stream.
func (es *EventStream) PublishError(err error) {
	es.publishJSON(EventTypeError, EventError{
		Type:  EventTypeError,
		Error: err.Error(),
	})
}

// PublishLogLine pushes a log message into the event stream.
func (es *EventStream) PublishLogLine(msg string) {
	es.publishJSON(EventTypeLogLine, EventLogLine{
		Type:    EventTypeLogLine,
		Message: msg,
	})
}

// PublishDiagnostics pushes a diagnostics table into the event stream.
func (es *EventStream) PublishDiagnostics(ds []task.Diagnostics, depths []int) {
	e := EventDiagnostics{
		Type:        EventTypeDiagnostics,
		Tasks:       make([]TaskTiming, len(ds)),
		QueueDepths: depths,
	}
	for i, d := range ds {
		e.Tasks[i] = TaskTiming{
			Thread:     d.ThreadID,
			Name:       d.Name,
			Priority:   d.Priority,
			Period:     d.Period.Microseconds(),
			LastCPU:    d.LastCPU.Microseconds(),
			WCET:       d.WorstCPU.Microseconds(),
			LastWall:   d.LastWall.Microseconds(),
			WCWT:       d.WorstWall.Microseconds(),
			CPUUsage:   d.CPUUsage,
			Misses:     d.DeadlineMisses,
			Iterations: d.Iterations,
			Overrun:    d.Overrun,
			Foreign:    d.Foreign,
		}
		e.TotalCPU += d.CPUUsage
	}
	es.publishJSON(EventTypeDiagnostics, e)
}

// PublishStatus pushes a status report into the event stream.  It
// satisfies robot.StatusPublisher and never fails.
func (es *EventStream) PublishStatus(r robot.Report) error {
	es.publishJSON(EventTypeStatus, EventStatus{
		Type:   EventTypeStatus,
		Report: r,
	})
	return nil
}

// StartSampler publishes diagnostics every interval until Shutdown.
// Nothing is marshaled while no viewer wants diagnostics.
func (es *EventStream) StartSampler(tasks TaskSource, queues QueueSource, every time.Duration) {
	ticker := time.NewTicker(every)
	go func() {
		for {
			select {
			case <-es.stop:
				ticker.Stop()
				return
			case <-ticker.C:
				if !es.wanted(EventTypeDiagnostics) {
					continue
				}
				var depths []int
				if queues != nil {
					depths = queues.Depths()
				}
				es.PublishDiagnostics(tasks.Snapshot(), depths)
			}
		}
	}()
}

// Shutdown stops the sampler and disconnects every viewer.  Viewers
// arriving afterwards are turned away.
func (es *EventStream) Shutdown() {
	es.stopOnce.Do(func() {
		close(es.stop)
		es.closeSubscribers()
	})
}

func (es *EventStream) publishJSON(t EventType, e any) {
	if !es.wanted(t) {
		return
	}
	bytes, err := json.Marshal(e)
	if err != nil {
		es.l.Warn("Error marshaling event", "error", err)
		return
	}
	es.publish(t, bytes)
}
