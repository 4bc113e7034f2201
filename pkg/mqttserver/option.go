package mqttserver

import (
	"sync"

	"github.com/hashicorp/go-hclog"
)

// Option enables variadic option passing to the server on startup.
type Option func(*Server) error

// WithLogger sets the logger for the server.
func WithLogger(l hclog.Logger) Option {
	return func(s *Server) error {
		s.l = l.Named("mqtt")
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

// WithStopHook registers a function to run before the broker closes.
func WithStopHook(h StopHook) Option {
	return func(s *Server) error {
		s.stopHooks = append(s.stopHooks, h)
		return nil
	}
}
