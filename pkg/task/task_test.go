package task

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestTaskLifecycle(t *testing.T) {
	reg := NewRegistry()
	var runs atomic.Int64
	tk := New(reg, "spinner", RunnerFunc(func() {
		runs.Add(1)
		time.Sleep(time.Millisecond)
	}), WithPriority(0))

	if tk.IsStarted() || tk.IsShutdown() {
		t.Fatal("fresh task reports started or shutdown")
	}
	if reg.Len() != 1 {
		t.Fatalf("registry has %d entries, want 1", reg.Len())
	}

	tk.Start()
	tk.Start()
	waitFor(t, "body to run", func() bool { return runs.Load() > 3 })
	if !tk.IsStarted() {
		t.Fatal("IsStarted() = false after Start")
	}

	tk.Stop()
	tk.Stop()
	tk.WaitForShutdown()
	if !tk.IsShutdown() {
		t.Fatal("IsShutdown() = false after WaitForShutdown")
	}

	n := runs.Load()
	time.Sleep(10 * time.Millisecond)
	if runs.Load() != n {
		t.Fatal("body kept running after shutdown")
	}
}

func TestTaskWaitWithoutStart(t *testing.T) {
	tk := New(nil, "idle", RunnerFunc(func() {}))
	tk.WaitForShutdown()
	tk.Stop()
	tk.Start()
	if tk.IsStarted() {
		t.Fatal("task started after being stopped")
	}
}

func TestSetPriority(t *testing.T) {
	tk := New(nil, "prio", RunnerFunc(func() {}))
	if tk.Priority() != DefaultPriority {
		t.Fatalf("Priority() = %d, want %d", tk.Priority(), DefaultPriority)
	}

	cases := []struct {
		in, want int
	}{
		{54, 54},
		{0, 0},
		{99, 99},
		{100, 99},
		{-1, 99},
	}
	for _, c := range cases {
		tk.SetPriority(c.in)
		if tk.Priority() != c.want {
			t.Errorf("after SetPriority(%d) Priority() = %d, want %d", c.in, tk.Priority(), c.want)
		}
	}
}

func TestCompositeCascades(t *testing.T) {
	reg := NewRegistry()
	var order []string
	var mu sync.Mutex
	note := func(s string) {
		mu.Lock()
		order = append(order, s)
		mu.Unlock()
	}

	release := make(chan struct{})
	child := NewPeriodic(reg, "child", time.Millisecond, TickFunc(func() {}), WithPriority(0))
	parent := New(reg, "parent", RunnerFunc(func() { <-release }),
		WithPriority(0),
		WithChildren(child),
		WithStopHook(func() { note("hook"); close(release) }),
	)

	parent.Start()
	if !child.IsStarted() {
		t.Fatal("child not started by parent")
	}

	parent.Stop()
	note("stopped")
	parent.WaitForShutdown()

	if !child.IsShutdown() || !parent.IsShutdown() {
		t.Fatal("composite did not shut down")
	}
	if len(order) != 2 || order[0] != "hook" {
		t.Fatalf("stop hook order = %v", order)
	}
}

func TestPeriodicRejectsShortPeriod(t *testing.T) {
	p := NewPeriodic(nil, "fast", 50*time.Microsecond, TickFunc(func() {}))
	if p.Period() != DefaultPeriod {
		t.Fatalf("Period() = %v, want %v", p.Period(), DefaultPeriod)
	}
	p.SetPeriod(20 * time.Millisecond)
	p.SetPeriod(99 * time.Microsecond)
	if p.Period() != 20*time.Millisecond {
		t.Fatalf("Period() = %v, want 20ms", p.Period())
	}
	p.SetPeriod(MinPeriod)
	if p.Period() != MinPeriod {
		t.Fatalf("Period() = %v, want %v", p.Period(), MinPeriod)
	}
}

func TestPeriodicOverrun(t *testing.T) {
	const period = 10 * time.Millisecond

	var sleeps []time.Duration
	var mu sync.Mutex
	var ticks atomic.Int64
	p := NewPeriodic(nil, "slow", period, TickFunc(func() {
		ticks.Add(1)
		time.Sleep(3 * period)
	}), WithPriority(0))
	p.onSleep = func(d time.Duration) {
		mu.Lock()
		sleeps = append(sleeps, d)
		mu.Unlock()
	}

	p.Start()
	waitFor(t, "three ticks", func() bool { return ticks.Load() >= 3 })
	p.Stop()
	p.WaitForShutdown()

	d := p.Diagnostics()
	if d.WorstWall <= period {
		t.Fatalf("WorstWall = %v, want > %v", d.WorstWall, period)
	}
	if !d.Overrun {
		t.Fatal("Overrun not flagged")
	}
	if d.DeadlineMisses == 0 || d.DeadlineMisses != d.Iterations {
		t.Fatalf("DeadlineMisses = %d, Iterations = %d", d.DeadlineMisses, d.Iterations)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(sleeps) != 0 {
		t.Fatalf("overrunning task slept %v", sleeps)
	}
}

func TestPeriodicSleepsRemainder(t *testing.T) {
	const period = 20 * time.Millisecond

	sleeps := make(chan time.Duration, 64)
	p := NewPeriodic(nil, "steady", period, TickFunc(func() {}), WithPriority(0))
	p.onSleep = func(d time.Duration) {
		select {
		case sleeps <- d:
		default:
		}
	}

	p.Start()
	d := <-sleeps
	p.Stop()
	p.WaitForShutdown()

	if d <= 0 || d > period {
		t.Fatalf("slept %v, want within (0, %v]", d, period)
	}
	if diag := p.Diagnostics(); diag.DeadlineMisses != 0 {
		t.Fatalf("DeadlineMisses = %d on a fast body", diag.DeadlineMisses)
	}
}

func TestPeriodicStopInterruptsSleep(t *testing.T) {
	p := NewPeriodic(nil, "lazy", time.Hour, TickFunc(func() {}), WithPriority(0))
	p.Start()
	waitFor(t, "first tick", func() bool { return p.Diagnostics().Iterations == 1 })

	done := make(chan struct{})
	go func() {
		p.Stop()
		p.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not interrupt the inter-iteration sleep")
	}
}

func TestRegistryResetAndReport(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterThread("main", 1234, 0)
	p := NewPeriodic(reg, "ticker", 10*time.Millisecond, TickFunc(func() {}))
	p.tm.record(2*time.Millisecond, 15*time.Millisecond, true)

	snap := reg.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("Snapshot() has %d entries, want 2", len(snap))
	}
	d := snap[1]
	if d.CPUUsage != 20 {
		t.Errorf("CPUUsage = %v, want 20", d.CPUUsage)
	}
	if reg.TotalCPU() != 20 {
		t.Errorf("TotalCPU() = %v, want 20", reg.TotalCPU())
	}

	var buf bytes.Buffer
	if err := reg.Report(&buf); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	out := buf.String()
	for _, want := range []string{"Thread", "WCWT(us)", "main", "ticker", "15000**", "20.00%", "Total CPU Usage"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}

	reg.ResetAll()
	d = reg.Snapshot()[1]
	if d.WorstCPU != 0 || d.WorstWall != 0 || d.DeadlineMisses != 0 || d.Iterations != 0 {
		t.Fatalf("diagnostics not reset: %+v", d)
	}
	if d.Period != 10*time.Millisecond {
		t.Fatalf("ResetAll changed the period to %v", d.Period)
	}
}
