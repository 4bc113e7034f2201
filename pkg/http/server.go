// Package http serves the robot's diagnostics API: the task table,
// queue depths, the last status report, prometheus metrics and a
// websocket event stream.
package http

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// TaskRegistry is the view of the task registry that the API needs.
type TaskRegistry interface {
	Snapshot() []task.Diagnostics
	ResetAll()
	TotalCPU() float64
	Report(io.Writer) error
}

// StatusSource hands out the most recent status report.
type StatusSource interface {
	LastReport() (robot.Report, bool)
}

// Server manages the HTTP serving components
type Server struct {
	r   chi.Router
	n   *http.Server
	l   hclog.Logger
	reg *prometheus.Registry
	swg *sync.WaitGroup

	tasks  TaskRegistry
	queues *cmdqueue.Table
	status StatusSource
	events http.HandlerFunc
}

// NewServer returns a server with every route whose backing component
// was provided.
func NewServer(opts ...Option) (*Server, error) {
	x := new(Server)
	x.r = chi.NewRouter()
	x.n = &http.Server{}
	x.l = hclog.NewNullLogger()

	for _, o := range opts {
		if err := o(x); err != nil {
			return nil, err
		}
	}

	x.r.Use(middleware.Recoverer)

	if x.reg != nil {
		x.r.Handle("/metrics", promhttp.HandlerFor(x.reg, promhttp.HandlerOpts{Registry: x.reg}))
	}
	if x.events != nil {
		x.r.Get("/events", x.events)
	}

	x.r.Route("/tasks", func(r chi.Router) {
		r.Get("/", x.listTasks)
		r.Get("/report", x.taskReport)
		r.Post("/reset", x.resetTasks)
	})

	x.r.Route("/queues", func(r chi.Router) {
		r.Get("/", x.queueDepths)
		r.Post("/{dest}", x.enqueueCommand)
	})
	x.r.Post("/horn/mute", x.muteHorn)

	x.r.Get("/status", x.lastStatus)

	return x, nil
}

// Handler exposes the router for tests and for embedding.
func (s *Server) Handler() http.Handler { return s.r }

// Serve binds and serves http on the bound socket.  An error will be
// returned if the server cannot initialize.
func (s *Server) Serve(bind string) error {
	s.l.Info("HTTP is starting", "bind", bind)
	s.n.Addr = bind
	s.n.Handler = s.r
	if s.swg != nil {
		s.swg.Done()
	}
	return s.n.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.l.Info("Stopping...")
	return s.n.Shutdown(ctx)
}
