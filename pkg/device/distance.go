package device

import (
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/hw"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

const (
	// MaxValidDistance is the furthest reading that is believed.
	MaxValidDistance = 2000

	resetMinDistance = 2500
)

// DistanceStats is a consistent view of the sensor's readings.
type DistanceStats struct {
	Current int
	Min     int
	Max     int
	Average int

	Reads      uint64
	ValidReads uint64

	// HasReading is false until the first valid reading.
	HasReading bool
}

// DistanceSensor samples a rangefinder once per period.  Readings
// outside 0..MaxValidDistance and failed reads are discarded.
type DistanceSensor struct {
	*task.Periodic

	l  hclog.Logger
	rf hw.Rangefinder

	mu      sync.Mutex
	stats   DistanceStats
	total   int64
	samples int64

	// seq counts valid readings and is never reset.  fresh is false
	// when the latest read failed or was out of range.
	seq   uint64
	fresh bool
}

// NewDistanceSensor builds the sensor task.
func NewDistanceSensor(reg *task.Registry, name string, period time.Duration, rf hw.Rangefinder, opts ...Option) *DistanceSensor {
	o := newOptions(opts)
	d := &DistanceSensor{
		l:  o.l.Named("distance"),
		rf: rf,
	}
	d.resetLocked()
	d.Periodic = task.NewPeriodic(reg, name, period, task.TickFunc(d.sample), o.taskOptions()...)
	return d
}

func (d *DistanceSensor) sample() {
	mm, err := d.rf.ReadDistanceMm()

	d.mu.Lock()
	defer d.mu.Unlock()

	d.stats.Reads++
	d.fresh = false
	if err != nil {
		d.l.Trace("Read failed", "error", err)
		return
	}
	if mm < 0 || mm > MaxValidDistance {
		d.l.Trace("Reading out of range", "mm", mm)
		return
	}

	d.stats.ValidReads++
	d.seq++
	d.fresh = true
	d.stats.Current = mm
	d.stats.HasReading = true
	d.total += int64(mm)
	d.samples++
	d.stats.Min = min(d.stats.Min, mm)
	d.stats.Max = max(d.stats.Max, mm)
}

// Reading returns the latest reading in mm and its sequence number.
// ok is false before the first valid reading and whenever the most
// recent read failed or was out of range; Stats().Current still holds
// the last good value.  seq grows by one per valid reading.
func (d *DistanceSensor) Reading() (mm int, seq uint64, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats.Current, d.seq, d.fresh
}

// Stats returns every statistic at once.
func (d *DistanceSensor) Stats() DistanceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	if d.samples > 0 {
		s.Average = int(d.total / d.samples)
	}
	return s
}

// ResetRanges starts a new min/max/average window.  The current
// reading is kept.
func (d *DistanceSensor) ResetRanges() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

// StatsAndReset returns the statistics and starts a new window
// atomically, so no reading falls between the two.
func (d *DistanceSensor) StatsAndReset() DistanceStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	s := d.stats
	if d.samples > 0 {
		s.Average = int(d.total / d.samples)
	}
	d.resetLocked()
	return s
}

func (d *DistanceSensor) resetLocked() {
	d.stats.Min = resetMinDistance
	d.stats.Max = 0
	d.stats.Reads = 0
	d.stats.ValidReads = 0
	d.total = 0
	d.samples = 0
}
