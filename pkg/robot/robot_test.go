package robot

import (
	"sync"
	"testing"
	"time"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/device"
	"github.com/rtbot-platform/rtbot/pkg/hw/sim"
	"github.com/rtbot-platform/rtbot/pkg/network"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// missing stands for a failed read in a script.
const missing = -1 << 16

type scriptedDistance struct {
	readings []int
	seq      uint64
}

func (s *scriptedDistance) Reading() (int, uint64, bool) {
	if len(s.readings) == 0 {
		return 0, s.seq, false
	}
	d := s.readings[0]
	s.readings = s.readings[1:]
	if d == missing {
		return 0, s.seq, false
	}
	s.seq++
	return d, s.seq, true
}

// heldDistance keeps returning one reading, as a sensor slower than
// its consumer does.
type heldDistance struct{ mm int }

func (h heldDistance) Reading() (int, uint64, bool) { return h.mm, 1, true }

func drain(q *cmdqueue.Queue) []int32 {
	var out []int32
	for {
		v, ok := q.TryDequeue()
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func TestCollisionSensor(t *testing.T) {
	stop := command.EncodeMotion(command.Stop)
	cases := []struct {
		name      string
		readings  []int
		wantMotor []int32
		wantHorn  []int32
		wantCount int
	}{
		{"two close readings", []int{300, 300, 50, 50}, []int32{stop}, []int32{command.HornSound}, 2},
		{"three close readings", []int{300, 300, 50, 50, 50}, []int32{stop}, []int32{command.HornSound, command.HornSound}, 3},
		{"many close readings", []int{50, 50, 50, 50, 50, 50}, []int32{stop}, []int32{command.HornSound, command.HornSound}, 6},
		{"single blip", []int{300, 50, 300, 50, 300}, nil, nil, 0},
		{"reset between violations", []int{50, 50, 300, 50, 50}, []int32{stop, stop}, []int32{command.HornSound, command.HornSound}, 2},
		{"threshold is inclusive", []int{100, 100, 100}, nil, nil, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			mcq, hq := cmdqueue.New(), cmdqueue.New()
			cs := NewCollisionSensor(nil, "collision", 100*time.Millisecond, mcq, hq, &scriptedDistance{readings: c.readings})
			cs.SetMinimumAcceptableDistance(100)
			for range c.readings {
				cs.tick()
			}

			if got := drain(mcq); !equal(got, c.wantMotor) {
				t.Errorf("motor queue = %x, want %x", got, c.wantMotor)
			}
			if got := drain(hq); !equal(got, c.wantHorn) {
				t.Errorf("horn queue = %x, want %x", got, c.wantHorn)
			}
			if cs.ViolationCount() != c.wantCount {
				t.Errorf("ViolationCount() = %d, want %d", cs.ViolationCount(), c.wantCount)
			}
		})
	}
}

func TestCollisionSensorSkipsMissingReadings(t *testing.T) {
	mcq, hq := cmdqueue.New(), cmdqueue.New()
	src := &scriptedDistance{readings: []int{50, missing, missing, 50}}
	cs := NewCollisionSensor(nil, "collision", 100*time.Millisecond, mcq, hq, src)
	cs.SetMinimumAcceptableDistance(250)

	cs.tick()
	cs.tick()
	cs.tick()
	if cs.ViolationCount() != 1 || mcq.HasItem() || hq.HasItem() {
		t.Fatalf("ViolationCount() = %d after one reading and two misses", cs.ViolationCount())
	}

	cs.tick()
	if cs.ViolationCount() != 2 || !equal(drain(mcq), []int32{command.EncodeMotion(command.Stop)}) {
		t.Fatalf("second close reading did not stop the robot, ViolationCount() = %d", cs.ViolationCount())
	}
}

func TestCollisionSensorCountsEachReadingOnce(t *testing.T) {
	mcq, hq := cmdqueue.New(), cmdqueue.New()
	cs := NewCollisionSensor(nil, "collision", 100*time.Millisecond, mcq, hq, heldDistance{mm: 50})
	cs.SetMinimumAcceptableDistance(100)
	for i := 0; i < 3; i++ {
		cs.tick()
	}
	if cs.ViolationCount() != 1 || mcq.HasItem() || hq.HasItem() {
		t.Fatalf("ViolationCount() = %d for a single reading", cs.ViolationCount())
	}
}

func TestCollisionSensorOnFaultingRangefinder(t *testing.T) {
	board := sim.New()
	board.SetFault(true)
	rf, err := board.Rangefinder(27, 22)
	if err != nil {
		t.Fatal(err)
	}
	ds := device.NewDistanceSensor(nil, "distance", 2*time.Millisecond, rf, device.WithPriority(0))
	mcq, hq := cmdqueue.New(), cmdqueue.New()
	cs := NewCollisionSensor(nil, "collision", 100*time.Millisecond, mcq, hq, ds)
	cs.SetMinimumAcceptableDistance(100)

	ds.Start()
	defer func() {
		ds.Stop()
		ds.WaitForShutdown()
	}()

	// afterReads waits until the sensor has sampled n more times.
	afterReads := func(n uint64, what string) {
		t.Helper()
		target := ds.Stats().Reads + n
		deadline := time.Now().Add(3 * time.Second)
		for ds.Stats().Reads < target {
			if time.Now().After(deadline) {
				t.Fatalf("timed out waiting for %s", what)
			}
			time.Sleep(time.Millisecond)
		}
	}

	afterReads(2, "failed reads")
	for i := 0; i < 3; i++ {
		cs.tick()
	}
	if cs.ViolationCount() != 0 || mcq.HasItem() || hq.HasItem() {
		t.Fatalf("ViolationCount() = %d with no valid reading", cs.ViolationCount())
	}

	board.SetDistance(50)
	board.SetFault(false)
	afterReads(2, "a close reading")
	cs.tick()
	if cs.ViolationCount() != 1 {
		t.Fatalf("ViolationCount() = %d after a close reading", cs.ViolationCount())
	}

	board.SetFault(true)
	afterReads(2, "failed reads")
	for i := 0; i < 3; i++ {
		cs.tick()
	}
	if cs.ViolationCount() != 1 || mcq.HasItem() || hq.HasItem() {
		t.Fatalf("failed reads changed the count to %d or queued commands", cs.ViolationCount())
	}
	if s := ds.Stats(); s.Current != 50 || !s.HasReading {
		t.Fatalf("Stats() lost the last good reading: %+v", s)
	}

	board.SetFault(false)
	afterReads(2, "a close reading")
	cs.tick()
	if cs.ViolationCount() != 2 || !equal(drain(hq), []int32{command.HornSound}) {
		t.Fatalf("ViolationCount() = %d, want 2 with the horn sounded", cs.ViolationCount())
	}
}

func TestCollisionSensorNegativeThreshold(t *testing.T) {
	mcq, hq := cmdqueue.New(), cmdqueue.New()
	cs := NewCollisionSensor(nil, "collision", 100*time.Millisecond, mcq, hq, &scriptedDistance{readings: []int{0, 0, 0}})
	cs.SetMinimumAcceptableDistance(-1)
	if cs.MinimumAcceptableDistance() != -1 {
		t.Fatalf("MinimumAcceptableDistance() = %d", cs.MinimumAcceptableDistance())
	}
	for i := 0; i < 3; i++ {
		cs.tick()
	}
	if mcq.HasItem() || hq.HasItem() {
		t.Fatal("negative threshold stopped the robot")
	}
}

func equal(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type fakeMotor struct {
	mu        sync.Mutex
	speed     int
	direction int
	started   bool
	stopped   bool
}

func (m *fakeMotor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
}

func (m *fakeMotor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *fakeMotor) WaitForShutdown() {}

func (m *fakeMotor) SetSpeed(s int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.speed = s
}

func (m *fakeMotor) SetDirection(d int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.direction = d
}

func (m *fakeMotor) state() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.speed, m.direction
}

type rig struct {
	q, hq  *cmdqueue.Queue
	lf, lr *fakeMotor
	rf, rr *fakeMotor
	c      *Controller
}

func newRig() *rig {
	r := &rig{
		q:  cmdqueue.New(),
		hq: cmdqueue.New(),
		lf: &fakeMotor{}, lr: &fakeMotor{}, rf: &fakeMotor{}, rr: &fakeMotor{},
	}
	r.c = NewController(nil, "controller", r.q, r.hq, r.motors(), WithPriority(0))
	return r
}

func (r *rig) motors() Motors { return Motors{LF: r.lf, LR: r.lr, RF: r.rf, RR: r.rr} }

func (r *rig) directions() [4]int {
	var out [4]int
	for i, m := range []*fakeMotor{r.lf, r.lr, r.rf, r.rr} {
		_, out[i] = m.state()
	}
	return out
}

func (r *rig) speeds() [4]int {
	var out [4]int
	for i, m := range []*fakeMotor{r.lf, r.lr, r.rf, r.rr} {
		out[i], _ = m.state()
	}
	return out
}

func TestControllerInitialSpeed(t *testing.T) {
	r := newRig()
	if got := r.speeds(); got != [4]int{500, 500, 500, 500} {
		t.Fatalf("initial wheel speeds = %v", got)
	}
	if r.c.Speed() != 0 || r.c.Steering() != 0 {
		t.Fatalf("initial controller state = %d/%d", r.c.Speed(), r.c.Steering())
	}
}

func TestControllerMotion(t *testing.T) {
	const (
		F = device.Forwards
		R = device.Reverse
		S = device.Stopped
	)
	pulse := command.BackupAlarm()

	cases := []struct {
		dir  command.Direction
		want [4]int
		horn int32
	}{
		{command.Forward, [4]int{F, F, F, F}, command.HornMute},
		{command.Backward, [4]int{R, R, R, R}, pulse},
		{command.Left, [4]int{R, R, F, F}, command.HornMute},
		{command.Right, [4]int{F, F, R, R}, command.HornMute},
		{command.Forward | command.Left, [4]int{S, S, F, F}, command.HornMute},
		{command.Forward | command.Right, [4]int{F, F, S, S}, command.HornMute},
		{command.Backward | command.Left, [4]int{S, S, R, R}, pulse},
		{command.Backward | command.Right, [4]int{R, R, S, S}, pulse},
		{command.Stop, [4]int{S, S, S, S}, command.HornMute},
	}

	for _, c := range cases {
		t.Run(c.dir.String(), func(t *testing.T) {
			r := newRig()
			r.c.handle(command.EncodeMotion(c.dir))
			if got := r.directions(); got != c.want {
				t.Errorf("directions = %v, want %v", got, c.want)
			}
			if got := drain(r.hq); len(got) != 1 || got[0] != c.horn {
				t.Errorf("horn = %x, want [%x]", got, c.horn)
			}
		})
	}
}

func TestControllerBackwardSoundsBackupAlarm(t *testing.T) {
	r := newRig()
	r.c.handle(command.MotionBitmap | int32(command.Backward))

	raw, ok := r.hq.TryDequeue()
	if !ok {
		t.Fatal("no horn command")
	}
	h, ok := command.DecodeHorn(raw)
	p, isPulse := h.(command.Pulse)
	if !ok || !isPulse {
		t.Fatalf("horn command 0x%08x is not a pulse", raw)
	}
	if p.Length.Microseconds() != 300000 || p.Period.Microseconds() != 600000 {
		t.Fatalf("pulse = %dus/%dus, want 300000us/600000us", p.Length.Microseconds(), p.Period.Microseconds())
	}
}

func TestControllerUnknownMotionIgnored(t *testing.T) {
	r := newRig()
	r.c.handle(command.EncodeMotion(command.Forward))
	drain(r.hq)
	r.c.handle(command.EncodeMotion(command.Left | command.Right))
	if got := r.directions(); got != [4]int{1, 1, 1, 1} {
		t.Fatalf("directions = %v after unknown motion", got)
	}
	if r.hq.HasItem() {
		t.Fatal("unknown motion sounded the horn")
	}
}

func TestControllerSpeedAndSteering(t *testing.T) {
	r := newRig()

	r.c.handle(command.EncodeSpeed(800))
	if got := r.speeds(); got != [4]int{800, 800, 800, 800} {
		t.Fatalf("speeds = %v", got)
	}

	r.c.handle(command.SpeedBitmap | 1200)
	if r.c.Speed() != 800 {
		t.Fatalf("Speed() = %d after out of range speed", r.c.Speed())
	}
	if got := r.speeds(); got != [4]int{800, 800, 800, 800} {
		t.Fatalf("speeds = %v after out of range speed", got)
	}

	r.c.handle(command.SteeringBitmap | 100)
	if got := r.speeds(); got != [4]int{800, 800, 800, 800} {
		t.Fatalf("centered steering speeds = %v", got)
	}

	r.c.handle(command.EncodeSteering(25))
	if got := r.speeds(); got != [4]int{800, 800, 600, 600} {
		t.Fatalf("right steering speeds = %v", got)
	}

	r.c.handle(command.EncodeSpeed(400))
	if got := r.speeds(); got != [4]int{400, 400, 300, 300} {
		t.Fatalf("speed under steering = %v", got)
	}

	r.c.handle(command.EncodeSteering(-100))
	if got := r.speeds(); got != [4]int{0, 0, 400, 400} {
		t.Fatalf("hard left speeds = %v", got)
	}

	r.c.handle(command.SteeringBitmap | 201)
	if r.c.Steering() != -100 {
		t.Fatalf("Steering() = %d after out of range steering", r.c.Steering())
	}
}

func TestControllerStopReleasesQueue(t *testing.T) {
	r := newRig()
	r.c.Start()

	r.q.Enqueue(command.EncodeMotion(command.Forward))
	deadline := time.Now().Add(time.Second)
	for r.directions() != [4]int{1, 1, 1, 1} {
		if time.Now().After(deadline) {
			t.Fatal("controller never handled FORWARD")
		}
		time.Sleep(time.Millisecond)
	}

	done := make(chan struct{})
	go func() {
		r.c.Stop()
		r.c.WaitForShutdown()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("controller blocked in Dequeue did not shut down")
	}

	if !r.q.Closed() {
		t.Fatal("input queue not closed by stop")
	}
	for i, m := range []*fakeMotor{r.lf, r.lr, r.rf, r.rr} {
		if !m.started || !m.stopped {
			t.Errorf("motor %d started=%v stopped=%v", i, m.started, m.stopped)
		}
	}
}

func TestCollisionSensingController(t *testing.T) {
	q, hq := cmdqueue.New(), cmdqueue.New()
	m := Motors{LF: &fakeMotor{}, LR: &fakeMotor{}, RF: &fakeMotor{}, RR: &fakeMotor{}}
	cs := NewCollisionSensor(nil, "collision", 100*time.Millisecond, q, hq, &scriptedDistance{})
	cs.SetMinimumAcceptableDistance(250)

	plain := NewCollisionSensingController(nil, "plain", q, hq, m, cs)
	plain.handle(command.EncodeSpeed(900))
	if cs.MinimumAcceptableDistance() != 250 || plain.Speed() != 900 {
		t.Fatalf("without a policy: distance %d, speed %d", cs.MinimumAcceptableDistance(), plain.Speed())
	}

	policy := func(speed int) int { return speed / 2 }
	c := NewCollisionSensingController(nil, "policy", q, hq, m, cs, WithStoppingDistancePolicy(policy))
	c.handle(command.EncodeSpeed(600))
	if cs.MinimumAcceptableDistance() != 300 {
		t.Fatalf("MinimumAcceptableDistance() = %d, want 300", cs.MinimumAcceptableDistance())
	}
	c.handle(command.SpeedBitmap | 2000)
	if cs.MinimumAcceptableDistance() != 300 {
		t.Fatalf("rejected speed changed the distance to %d", cs.MinimumAcceptableDistance())
	}
}

type sender struct{ msgs []network.Message }

func (s *sender) EnqueueMessage(m network.Message) { s.msgs = append(s.msgs, m) }

type stats struct{ s device.DistanceStats }

func (s stats) StatsAndReset() device.DistanceStats { return s.s }

type publisher struct{ reports []Report }

func (p *publisher) PublishStatus(r Report) error {
	p.reports = append(p.reports, r)
	return nil
}

func TestStatusManager(t *testing.T) {
	tx := &sender{}
	pub := &publisher{}
	src := stats{device.DistanceStats{Current: 320, Min: 120, Max: 900, Average: 410, HasReading: true}}
	sm := NewStatusManager(task.NewRegistry(), "status", 500*time.Millisecond, tx, src,
		WithStatusPublisher(pub), WithRobotID("r1"))

	if _, ok := sm.LastReport(); ok {
		t.Fatal("LastReport() ok before first tick")
	}
	sm.tick()

	want := []int32{
		command.EncodeDistanceReport(command.ReportCurrent, 320),
		command.EncodeDistanceReport(command.ReportMax, 900),
		command.EncodeDistanceReport(command.ReportMin, 120),
		command.EncodeDistanceReport(command.ReportAverage, 410),
	}
	if len(tx.msgs) != len(want) {
		t.Fatalf("sent %d messages, want %d", len(tx.msgs), len(want))
	}
	for i, m := range tx.msgs {
		if m.Destination != ReportDestination || m.Message != want[i] {
			t.Errorf("message %d = dest %d word 0x%08x, want dest 1 word 0x%08x", i, m.Destination, m.Message, want[i])
		}
		if m.Checksum != m.Message^m.Destination || !m.Valid() {
			t.Errorf("message %d checksum 0x%08x", i, m.Checksum)
		}
	}

	if len(pub.reports) != 1 || pub.reports[0].RobotID != "r1" || pub.reports[0].Max != 900 {
		t.Fatalf("published %+v", pub.reports)
	}
	if r, ok := sm.LastReport(); !ok || r.Average != 410 {
		t.Fatalf("LastReport() = %+v, %v", r, ok)
	}
}
