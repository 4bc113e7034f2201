package robot

import (
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/device"
	"github.com/rtbot-platform/rtbot/pkg/network"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// ReportDestination is the ground station display that distance
// reports are addressed to.
const ReportDestination = 1

// MessageSender queues a record for the ground station.
type MessageSender interface {
	EnqueueMessage(network.Message)
}

// StatsSource hands out distance statistics and starts a new window.
type StatsSource interface {
	StatsAndReset() device.DistanceStats
}

// Report is one status period's worth of distance statistics.
type Report struct {
	RobotID    string    `json:"robot_id"`
	Time       time.Time `json:"time"`
	Current    int       `json:"current_mm"`
	Min        int       `json:"min_mm"`
	Max        int       `json:"max_mm"`
	Average    int       `json:"average_mm"`
	HasReading bool      `json:"has_reading"`
}

// StatusPublisher receives every report.
type StatusPublisher interface {
	PublishStatus(Report) error
}

// StatusManager periodically reports what the distance sensor has
// seen since the last report.
type StatusManager struct {
	*task.Periodic

	l   hclog.Logger
	tx  MessageSender
	ds  StatsSource
	pub []StatusPublisher
	id  string

	last atomic.Pointer[Report]
}

// NewStatusManager builds the status task.
func NewStatusManager(reg *task.Registry, name string, period time.Duration, tx MessageSender, ds StatsSource, opts ...Option) *StatusManager {
	o := newOptions(opts)
	s := &StatusManager{
		l:   o.l.Named("status"),
		tx:  tx,
		ds:  ds,
		pub: o.publishers,
		id:  o.robotID,
	}
	s.Periodic = task.NewPeriodic(reg, name, period, task.TickFunc(s.tick), o.taskOptions()...)
	return s
}

// LastReport returns the most recent report, if there has been one.
func (s *StatusManager) LastReport() (Report, bool) {
	r := s.last.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

func (s *StatusManager) tick() {
	st := s.ds.StatsAndReset()

	for _, v := range []struct {
		kind command.ReportKind
		mm   int
	}{
		{command.ReportCurrent, st.Current},
		{command.ReportMax, st.Max},
		{command.ReportMin, st.Min},
		{command.ReportAverage, st.Average},
	} {
		s.tx.EnqueueMessage(network.NewReport(ReportDestination, command.EncodeDistanceReport(v.kind, v.mm)))
	}

	r := Report{
		RobotID:    s.id,
		Time:       time.Now(),
		Current:    st.Current,
		Min:        st.Min,
		Max:        st.Max,
		Average:    st.Average,
		HasReading: st.HasReading,
	}
	s.last.Store(&r)

	for _, p := range s.pub {
		if err := p.PublishStatus(r); err != nil {
			s.l.Debug("Could not publish status", "error", err)
		}
	}
}
