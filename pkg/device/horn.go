package device

import (
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/hw"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

type hornMode int

const (
	hornSilent hornMode = iota
	hornContinuous
	hornPulsing
)

func (m hornMode) String() string {
	switch m {
	case hornContinuous:
		return "sounding"
	case hornPulsing:
		return "pulsing"
	}
	return "silent"
}

// Horn sounds a buzzer as commanded on its queue.  At most one command
// is taken per period.
type Horn struct {
	*task.Periodic

	l   hclog.Logger
	q   *cmdqueue.Queue
	out hw.DigitalOutput

	// Only touched from the task's own thread.
	mode   hornMode
	length time.Duration
	cycle  time.Duration
	phase  time.Duration
}

// NewHorn builds the horn task.  The buzzer starts silent.
func NewHorn(reg *task.Registry, name string, period time.Duration, q *cmdqueue.Queue, out hw.DigitalOutput, opts ...Option) *Horn {
	o := newOptions(opts)
	h := &Horn{
		l:   o.l.Named("horn"),
		q:   q,
		out: out,
	}
	if err := out.SetLevel(false); err != nil {
		h.l.Warn("Could not silence buzzer", "error", err)
	}
	h.Periodic = task.NewPeriodic(reg, name, period, task.TickFunc(h.tick), o.taskOptions(task.WithExitHook(h.silence))...)
	return h
}

func (h *Horn) tick() {
	if raw, ok := h.q.TryDequeue(); ok {
		h.apply(raw)
	}

	on := false
	switch h.mode {
	case hornContinuous:
		on = true
	case hornPulsing:
		on = h.phase <= h.length
		h.phase = (h.phase + h.Period()) % h.cycle
	}
	if err := h.out.SetLevel(on); err != nil {
		h.l.Debug("Could not drive buzzer", "error", err)
	}
}

func (h *Horn) apply(raw int32) {
	cmd, ok := command.DecodeHorn(raw)
	if !ok {
		h.l.Debug("Ignoring horn command", "command", raw)
		return
	}

	switch c := cmd.(type) {
	case command.Mute:
		h.mode = hornSilent
	case command.Sound:
		h.mode = hornContinuous
	case command.Pulse:
		if c.Period <= 0 {
			h.mode = hornContinuous
			break
		}
		h.mode = hornPulsing
		h.length = c.Length
		h.cycle = c.Period
		h.phase = 0
	}
	h.l.Trace("Horn command", "mode", h.mode)
}

func (h *Horn) silence() {
	if err := h.out.SetLevel(false); err != nil {
		h.l.Debug("Could not silence buzzer", "error", err)
	}
}
