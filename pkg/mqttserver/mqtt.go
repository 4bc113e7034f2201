// Package mqttserver is an embedded broker for a small fleet of
// robots and the ground tools that watch and drive them.
package mqttserver

import (
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/listeners"
)

// StopHook is a function to be called when the MQTT server shuts
// down.
type StopHook func()

// Server binds the server's methods
type Server struct {
	l hclog.Logger
	s *mqtt.Server

	swg *sync.WaitGroup

	stopHooks []StopHook
	subID     int
}

// NewServer returns a broker that is ready to Serve.
func NewServer(opts ...Option) (*Server, error) {
	x := Server{
		l: hclog.NewNullLogger(),
		s: mqtt.New(&mqtt.Options{InlineClient: true}),
	}

	for _, o := range opts {
		if err := o(&x); err != nil {
			return nil, err
		}
	}
	if err := x.s.AddHook(newHook(x.l), nil); err != nil {
		return nil, err
	}
	return &x, nil
}

// Serve binds the listener and starts serving mqtt on it.  An error
// will be returned if the server cannot initialize.  Serving continues
// in the background until Shutdown.
func (s *Server) Serve(bind string) error {
	s.l.Info("MQTT is starting", "bind", bind)
	l := listeners.NewTCP(listeners.Config{
		ID:      "tcp",
		Address: bind,
	})
	if err := s.s.AddListener(l); err != nil {
		return err
	}

	if err := s.s.Serve(); err != nil {
		return err
	}
	if s.swg != nil {
		s.swg.Done()
	}
	return nil
}

// Subscribe attaches an in-process handler to a topic filter.  This
// is how the broker feeds its own metrics without a network client.
func (s *Server) Subscribe(filter string, handler mqtt.InlineSubFn) error {
	s.subID++
	return s.s.Subscribe(filter, s.subID, handler)
}

// Publish sends a message from the broker itself.
func (s *Server) Publish(topic string, payload []byte) error {
	return s.s.Publish(topic, payload, false, 1)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.l.Info("Stopping...")
	for _, hook := range s.stopHooks {
		hook()
	}
	return s.s.Close()
}
