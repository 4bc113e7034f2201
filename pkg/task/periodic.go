package task

import (
	"time"
)

const (
	// MinPeriod is the shortest period a periodic task accepts.
	MinPeriod = 100 * time.Microsecond

	// DefaultPeriod is kept when a requested period is rejected at
	// construction.
	DefaultPeriod = 100 * time.Millisecond
)

// Ticker is the body of a periodic task.  Tick must not block for
// longer than a bounded amount of time, or the task's deadlines will
// slip.
type Ticker interface {
	Tick()
}

// TickFunc adapts a plain function to a Ticker.
type TickFunc func()

// Tick calls f.
func (f TickFunc) Tick() { f() }

// Periodic is a Task that calls a Ticker once per period and keeps
// timing statistics on every call.
type Periodic struct {
	*Task

	body Ticker

	// onSleep observes every inter-iteration sleep.
	onSleep func(time.Duration)
}

// NewPeriodic constructs and registers a periodic task.  A period
// shorter than MinPeriod is ignored and DefaultPeriod is used instead.
func NewPeriodic(reg *Registry, name string, period time.Duration, body Ticker, opts ...Option) *Periodic {
	p := &Periodic{body: body}
	p.Task = New(reg, name, RunnerFunc(p.iterate), opts...)
	p.Task.period.Store(int64(DefaultPeriod))
	p.SetPeriod(period)
	return p
}

// SetPeriod changes the period, taking effect on the next iteration.
// Periods shorter than MinPeriod are ignored.
func (p *Periodic) SetPeriod(d time.Duration) {
	if d < MinPeriod {
		p.l.Debug("Ignoring period below minimum", "task", p.name, "period", d)
		return
	}
	p.Task.period.Store(int64(d))
}

// Period returns the current period.
func (p *Periodic) Period() time.Duration {
	return time.Duration(p.Task.period.Load())
}

func (p *Periodic) iterate() {
	period := p.Period()

	wallStart := time.Now()
	cpuStart := threadCPU()
	p.body.Tick()
	cpu := threadCPU() - cpuStart
	wall := time.Since(wallStart)

	remaining := period - wall
	p.tm.record(cpu, wall, remaining < 0)
	if remaining <= 0 {
		p.l.Trace("Deadline missed", "task", p.name, "wall", wall, "period", period)
		return
	}
	p.sleep(remaining)
}

func (p *Periodic) sleep(d time.Duration) {
	if p.onSleep != nil {
		p.onSleep(d)
	}

	tmr := time.NewTimer(d)
	defer tmr.Stop()
	select {
	case <-tmr.C:
	case <-p.stop:
	}
}
