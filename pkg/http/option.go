package http

import (
	"net/http"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
)

// Option enables variadic option passing to the server on startup.
type Option func(*Server) error

// WithPrometheusRegistry sets the Prometheus registry for the server
func WithPrometheusRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) error {
		s.reg = reg
		return nil
	}
}

// WithLogger sets the logger for the server.
func WithLogger(l hclog.Logger) Option {
	return func(s *Server) error {
		s.l = l.Named("web")
		return nil
	}
}

// WithTaskRegistry provides the tasks to report on.
func WithTaskRegistry(r TaskRegistry) Option {
	return func(s *Server) error {
		s.tasks = r
		return nil
	}
}

// WithQueues provides the command queues that the API can inspect and
// feed.
func WithQueues(t *cmdqueue.Table) Option {
	return func(s *Server) error {
		s.queues = t
		return nil
	}
}

// WithStatusSource provides the latest status report.
func WithStatusSource(ss StatusSource) Option {
	return func(s *Server) error {
		s.status = ss
		return nil
	}
}

// WithEventStream mounts a websocket event stream on /events.
func WithEventStream(h http.HandlerFunc) Option {
	return func(s *Server) error {
		s.events = h
		return nil
	}
}

// WithStartupWG allows a waitgroup to be passed in so the server can
// notify when its finished startup tasks.
func WithStartupWG(w *sync.WaitGroup) Option {
	return func(s *Server) error {
		w.Add(1)
		s.swg = w
		return nil
	}
}
