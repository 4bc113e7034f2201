package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rtbot-platform/rtbot/pkg/task"
)

// Metrics binds the registry as well as the metrics collection.
type Metrics struct {
	l hclog.Logger
	r *prometheus.Registry
	s *http.Server

	taskWCET       *prometheus.GaugeVec
	taskWCWT       *prometheus.GaugeVec
	taskCPU        *prometheus.GaugeVec
	taskMisses     *prometheus.GaugeVec
	taskIterations *prometheus.GaugeVec
	taskPeriod     *prometheus.GaugeVec
	totalCPU       prometheus.Gauge

	queueDepth *prometheus.GaugeVec

	robotCurrent         *prometheus.GaugeVec
	robotMin             *prometheus.GaugeVec
	robotMax             *prometheus.GaugeVec
	robotAverage         *prometheus.GaugeVec
	robotHasReading      *prometheus.GaugeVec
	robotLastInteraction *prometheus.GaugeVec

	lastSeen    *sync.Map
	zombieAfter time.Duration

	stop     chan struct{}
	stopOnce sync.Once
}

// TaskSource provides the diagnostics that get exported per task.
type TaskSource interface {
	Snapshot() []task.Diagnostics
}

// QueueSource provides the depth of each command queue, in
// destination order.
type QueueSource interface {
	Depths() []int
}

// Option provides a configuration framework to setup the metrics
// package.
type Option func(m *Metrics)
