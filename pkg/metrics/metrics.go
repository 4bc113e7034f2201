package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// New returns an initialized instance of the metrics system.
func New(opts ...Option) *Metrics {
	x := &Metrics{
		l:           hclog.NewNullLogger(),
		r:           prometheus.NewRegistry(),
		stop:        make(chan struct{}),
		lastSeen:    &sync.Map{},
		zombieAfter: time.Second * 10,

		taskWCET: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "task",
			Name:      "wcet_seconds",
			Help:      "Worst case CPU time of a single iteration.",
		}, []string{"task"}),

		taskWCWT: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "task",
			Name:      "wcwt_seconds",
			Help:      "Worst case wall time of a single iteration.",
		}, []string{"task"}),

		taskCPU: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "task",
			Name:      "cpu_usage_percent",
			Help:      "Worst case CPU time as a percentage of the period.",
		}, []string{"task"}),

		taskMisses: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "task",
			Name:      "deadline_misses",
			Help:      "Iterations that ran past their period since the last reset.",
		}, []string{"task"}),

		taskIterations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "task",
			Name:      "iterations",
			Help:      "Iterations since the last reset.",
		}, []string{"task"}),

		taskPeriod: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "task",
			Name:      "period_seconds",
			Help:      "Configured period of a periodic task.",
		}, []string{"task"}),

		totalCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "task",
			Name:      "total_cpu_usage_percent",
			Help:      "Sum of the CPU usage of every periodic task.",
		}),

		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "queue",
			Name:      "depth",
			Help:      "Commands waiting in a queue.",
		}, []string{"queue"}),

		robotCurrent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "robot",
			Name:      "distance_current_mm",
			Help:      "Most recent valid distance reading.",
		}, []string{"robot"}),

		robotMin: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "robot",
			Name:      "distance_min_mm",
			Help:      "Shortest distance seen in the last status window.",
		}, []string{"robot"}),

		robotMax: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "robot",
			Name:      "distance_max_mm",
			Help:      "Longest distance seen in the last status window.",
		}, []string{"robot"}),

		robotAverage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "robot",
			Name:      "distance_average_mm",
			Help:      "Average of every valid distance reading.",
		}, []string{"robot"}),

		robotHasReading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "robot",
			Name:      "distance_valid",
			Help:      "Distance sensor has produced at least one valid reading.",
		}, []string{"robot"}),

		robotLastInteraction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rtbot",
			Subsystem: "robot",
			Name:      "last_interaction",
			Help:      "Timestamp of the last status report",
		}, []string{"robot"}),
	}

	x.r.MustRegister(x.taskWCET)
	x.r.MustRegister(x.taskWCWT)
	x.r.MustRegister(x.taskCPU)
	x.r.MustRegister(x.taskMisses)
	x.r.MustRegister(x.taskIterations)
	x.r.MustRegister(x.taskPeriod)
	x.r.MustRegister(x.totalCPU)
	x.r.MustRegister(x.queueDepth)
	x.r.MustRegister(x.robotCurrent)
	x.r.MustRegister(x.robotMin)
	x.r.MustRegister(x.robotMax)
	x.r.MustRegister(x.robotAverage)
	x.r.MustRegister(x.robotHasReading)
	x.r.MustRegister(x.robotLastInteraction)

	x.s = &http.Server{}

	for _, o := range opts {
		o(x)
	}

	return x
}

// Handler returns an http.Handler that serves the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.r, promhttp.HandlerOpts{Registry: m.r})
}

// BuiltinWebserver runs the metrics webserver when nothing else does.
func (m *Metrics) BuiltinWebserver(bind string) error {
	m.s.Addr = bind
	mux := &http.ServeMux{}
	mux.Handle("/metrics", m.Handler())
	m.s.Handler = mux
	go func() {
		<-m.stop
		m.s.Shutdown(context.Background())
	}()

	return m.s.ListenAndServe()
}

// Registry provides access to the registry that this instance
// manages.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.r
}

// ObserveTasks copies a diagnostics snapshot into the task gauges.
// Threads that are not run by the task package carry no timing and
// are skipped.
func (m *Metrics) ObserveTasks(ds []task.Diagnostics) {
	var total float64
	for _, d := range ds {
		if d.Foreign {
			continue
		}
		l := prometheus.Labels{"task": d.Name}
		m.taskWCET.With(l).Set(d.WorstCPU.Seconds())
		m.taskWCWT.With(l).Set(d.WorstWall.Seconds())
		m.taskCPU.With(l).Set(d.CPUUsage)
		m.taskMisses.With(l).Set(float64(d.DeadlineMisses))
		m.taskIterations.With(l).Set(float64(d.Iterations))
		m.taskPeriod.With(l).Set(d.Period.Seconds())
		total += d.CPUUsage
	}
	m.totalCPU.Set(total)
}

// ObserveQueues records the depth of each command queue.  Depths are
// in destination order, starting at destination 1.
func (m *Metrics) ObserveQueues(depths []int) {
	for i, d := range depths {
		m.queueDepth.With(prometheus.Labels{"queue": QueueName(i + 1)}).Set(float64(d))
	}
}

// QueueName returns the label used for a destination's queue.
func QueueName(dest int) string {
	switch dest {
	case cmdqueue.MotorQueue:
		return "motor"
	case cmdqueue.HornQueue:
		return "horn"
	case cmdqueue.LineQueue:
		return "line"
	default:
		return strconv.Itoa(dest)
	}
}

// StartSampler copies task diagnostics and queue depths into the
// registry every interval until Shutdown.  Either source may be nil.
func (m *Metrics) StartSampler(tasks TaskSource, queues QueueSource, every time.Duration) {
	sample := func() {
		if tasks != nil {
			m.ObserveTasks(tasks.Snapshot())
		}
		if queues != nil {
			m.ObserveQueues(queues.Depths())
		}
	}
	sample()

	sampleTicker := time.NewTicker(every)
	go func() {
		for {
			select {
			case <-m.stop:
				sampleTicker.Stop()
				return
			case <-sampleTicker.C:
				sample()
			}
		}
	}()
}

// DeleteZombieRobot removes metrics associated with a zombie robot
// that is no longer reporting.
func (m *Metrics) DeleteZombieRobot(id string) {
	l := prometheus.Labels{"robot": id}

	m.robotCurrent.Delete(l)
	m.robotMin.Delete(l)
	m.robotMax.Delete(l)
	m.robotAverage.Delete(l)
	m.robotHasReading.Delete(l)
	m.robotLastInteraction.Delete(l)
	m.lastSeen.Delete(id)
}

// MQTTCallback is called by the embedded broker for every status
// report published on robot/<id>/status.
func (m *Metrics) MQTTCallback(cl *mqtt.Client, sub packets.Subscription, pk packets.Packet) {
	parts := strings.Split(pk.TopicName, "/")
	if len(parts) < 2 {
		return
	}
	m.l.Trace("Called back", "robot", parts[1])
	m.ParseReport(parts[1], pk.Payload)
}

// StartFlusher clears the stats for robots that have gone quiet,
// ensuring that robots don't stick around as zombies in the system if
// they've disconnected.
func (m *Metrics) StartFlusher() {
	flushTicker := time.NewTicker(m.zombieAfter)

	go func() {
		for {
			select {
			case <-m.stop:
				flushTicker.Stop()
				return
			case <-flushTicker.C:
				m.flush(time.Now())
			}
		}
	}()
}

func (m *Metrics) flush(now time.Time) {
	var zombies []string
	m.lastSeen.Range(func(id, seen any) bool {
		if now.Sub(seen.(time.Time)) > m.zombieAfter {
			zombies = append(zombies, id.(string))
		}
		return true
	})
	for _, id := range zombies {
		m.l.Debug("Flushing quiet robot", "robot", id)
		m.DeleteZombieRobot(id)
	}
}

// Shutdown stops the flusher, the sampler and the builtin webserver.
func (m *Metrics) Shutdown() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// ParseReport directly parses a status report from a buffer.  An
// empty id falls back to the id carried in the report.
func (m *Metrics) ParseReport(id string, data []byte) error {
	var r robot.Report
	if err := json.Unmarshal(data, &r); err != nil {
		m.l.Warn("Bad status report", "robot", id, "error", err)
		return err
	}
	if id == "" {
		id = r.RobotID
	}
	m.ObserveReport(id, r)
	return nil
}

// ObserveReport records a status report that has already been
// decoded.
func (m *Metrics) ObserveReport(id string, r robot.Report) {
	l := prometheus.Labels{"robot": id}

	m.robotHasReading.With(l).Set(fCast(r.HasReading))
	if r.HasReading {
		m.robotCurrent.With(l).Set(float64(r.Current))
		m.robotMin.With(l).Set(float64(r.Min))
		m.robotMax.With(l).Set(float64(r.Max))
		m.robotAverage.With(l).Set(float64(r.Average))
	}

	m.robotLastInteraction.With(l).SetToCurrentTime()
	m.lastSeen.Store(id, time.Now())
}

func fCast(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
