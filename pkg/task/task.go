// Package task runs the robot's work on dedicated OS threads.  A Task
// owns exactly one goroutine that is locked to its own thread for its
// entire life, so that the thread can be given a realtime priority and
// its CPU clock measured without interference from the Go scheduler.
package task

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	// DefaultPriority is used when no priority is specified.
	DefaultPriority = 1

	// MaxPriority is the highest priority SetPriority accepts.
	// Priorities above what the OS allows are clamped at start.
	MaxPriority = 99
)

// Runner is the body of a task.  Run is invoked repeatedly until the
// task is stopped, so it should return after each unit of work.
type Runner interface {
	Run()
}

// RunnerFunc adapts a plain function to a Runner.
type RunnerFunc func()

// Run calls f.
func (f RunnerFunc) Run() { f() }

// Lifecycle is implemented by everything that can be started, stopped
// and joined.  Composite tasks hold their children as Lifecycles.
type Lifecycle interface {
	Start()
	Stop()
	WaitForShutdown()
}

// Option changes features on a task.
type Option func(*Task)

// Task is a named unit of work on its own thread.
type Task struct {
	l    hclog.Logger
	name string
	body Runner

	priority  atomic.Int32
	period    atomic.Int64
	keepGoing atomic.Bool
	tid       atomic.Int64

	mu        sync.Mutex
	started   bool
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
	children  []Lifecycle
	stopHooks []func()
	exitHooks []func()

	tm timing
}

// New constructs a task and registers it.  The task does not run
// until Start is called.  A nil registry is allowed for tasks that
// should not appear in diagnostics.
func New(reg *Registry, name string, body Runner, opts ...Option) *Task {
	t := &Task{
		l:    hclog.NewNullLogger(),
		name: name,
		body: body,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	t.priority.Store(DefaultPriority)
	for _, o := range opts {
		o(t)
	}
	if reg != nil {
		reg.register(t)
	}
	return t
}

// Name returns the task's name.
func (t *Task) Name() string { return t.name }

// Start launches the task at its current priority.  Starting a task
// that has already been started does nothing.
func (t *Task) Start() {
	t.StartWithPriority(int(t.priority.Load()))
}

// StartWithPriority sets the priority and then starts the task.
// Children are started before the parent.
func (t *Task) StartWithPriority(p int) {
	t.SetPriority(p)

	t.mu.Lock()
	if t.started || t.stopRequested() {
		t.mu.Unlock()
		return
	}
	t.started = true
	t.keepGoing.Store(true)
	children := t.children
	t.mu.Unlock()

	for _, c := range children {
		c.Start()
	}

	ready := make(chan struct{})
	go t.loop(ready)
	<-ready
}

func (t *Task) loop(ready chan<- struct{}) {
	defer close(t.done)

	// The thread is never unlocked.  When this goroutine returns the
	// runtime discards the thread along with its realtime policy.
	lockThread()
	t.tid.Store(int64(threadID()))

	prio := int(t.priority.Load())
	if err := setRealtime(prio); err != nil {
		t.l.Warn("Could not apply realtime priority", "task", t.name, "priority", prio, "error", err)
	}
	t.l.Info("Task started", "task", t.name, "priority", prio, "thread", t.tid.Load())
	close(ready)

	for t.keepGoing.Load() {
		t.body.Run()
	}
	for _, h := range t.exitHooks {
		h()
	}
	t.l.Info("Task exited", "task", t.name)
}

// Stop requests the task to finish.  The current iteration of the
// body is never interrupted; blocked bodies are released by the stop
// hooks.  Stop cascades to the children and is safe to call more than
// once.
func (t *Task) Stop() {
	t.stopOnce.Do(func() {
		t.l.Debug("Stop requested", "task", t.name)

		t.mu.Lock()
		t.keepGoing.Store(false)
		close(t.stop)
		children := t.children
		hooks := t.stopHooks
		t.mu.Unlock()

		for _, c := range children {
			c.Stop()
		}
		for _, h := range hooks {
			h()
		}
	})
}

// WaitForShutdown blocks until the task and all its children have
// exited.  It returns immediately for a task that was never started.
func (t *Task) WaitForShutdown() {
	t.mu.Lock()
	started := t.started
	children := t.children
	t.mu.Unlock()

	if started {
		<-t.done
	}
	for _, c := range children {
		c.WaitForShutdown()
	}
}

// IsStarted reports whether Start has been called.
func (t *Task) IsStarted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// IsShutdown reports whether the task's thread has exited.
func (t *Task) IsShutdown() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// KeepGoing reports whether the task has not yet been asked to stop.
// Long running bodies may poll it.
func (t *Task) KeepGoing() bool { return t.keepGoing.Load() }

// Stopping is closed when Stop is called.
func (t *Task) Stopping() <-chan struct{} { return t.stop }

func (t *Task) stopRequested() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// SetPriority changes the priority used at the next start.  Values
// outside 0..MaxPriority are ignored.
func (t *Task) SetPriority(p int) {
	if p < 0 || p > MaxPriority {
		t.l.Debug("Ignoring out of range priority", "task", t.name, "priority", p)
		return
	}
	t.priority.Store(int32(p))
}

// Priority returns the configured priority.
func (t *Task) Priority() int { return int(t.priority.Load()) }

// ThreadID returns the OS thread id once the task is running, zero
// before that or where the platform has no thread ids.
func (t *Task) ThreadID() int { return int(t.tid.Load()) }

// Diagnostics returns a snapshot of the task's timing.
func (t *Task) Diagnostics() Diagnostics {
	d := t.tm.snapshot()
	d.ThreadID = t.ThreadID()
	d.Name = t.name
	d.Priority = t.Priority()
	d.Period = time.Duration(t.period.Load())
	d.Started = t.IsStarted()
	d.Shutdown = t.IsShutdown()
	if d.Period > 0 {
		d.CPUUsage = float64(d.WorstCPU) * 100 / float64(d.Period)
		d.Overrun = d.WorstWall > d.Period
	}
	return d
}

// ResetDiagnostics zeroes the timing counters.  Period and priority
// are left alone.
func (t *Task) ResetDiagnostics() { t.tm.reset() }

// WithLogger sets the parent logger.
func WithLogger(l hclog.Logger) Option {
	return func(t *Task) { t.l = l.Named("task") }
}

// WithPriority sets the initial priority.
func WithPriority(p int) Option {
	return func(t *Task) { t.SetPriority(p) }
}

// WithChildren makes the task a composite.  Children are started
// before and stopped, joined after the parent.
func WithChildren(c ...Lifecycle) Option {
	return func(t *Task) { t.children = append(t.children, c...) }
}

// WithStopHook registers a function that is called once when the task
// is stopped, after its children.  Hooks are how a task blocked on a
// queue gets released.
func WithStopHook(f func()) Option {
	return func(t *Task) { t.stopHooks = append(t.stopHooks, f) }
}

// WithExitHook registers a function that runs on the task's own thread
// after the body has returned for the last time.
func WithExitHook(f func()) Option {
	return func(t *Task) { t.exitHooks = append(t.exitHooks, f) }
}

type timing struct {
	sync.Mutex

	lastCPU, worstCPU   time.Duration
	lastWall, worstWall time.Duration
	misses, iterations  uint64
}

func (tm *timing) record(cpu, wall time.Duration, missed bool) {
	tm.Lock()
	defer tm.Unlock()

	tm.lastCPU = cpu
	tm.lastWall = wall
	tm.worstCPU = max(tm.worstCPU, cpu)
	tm.worstWall = max(tm.worstWall, wall)
	tm.iterations++
	if missed {
		tm.misses++
	}
}

func (tm *timing) reset() {
	tm.Lock()
	defer tm.Unlock()
	tm.lastCPU, tm.worstCPU = 0, 0
	tm.lastWall, tm.worstWall = 0, 0
	tm.misses, tm.iterations = 0, 0
}

func (tm *timing) snapshot() Diagnostics {
	tm.Lock()
	defer tm.Unlock()
	return Diagnostics{
		LastCPU:        tm.lastCPU,
		WorstCPU:       tm.worstCPU,
		LastWall:       tm.lastWall,
		WorstWall:      tm.worstWall,
		DeadlineMisses: tm.misses,
		Iterations:     tm.iterations,
	}
}
