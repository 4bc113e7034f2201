// Package eventstream pushes live diagnostics and status reports to
// websocket subscribers.
package eventstream

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/coder/websocket"
)

// Subscriber fan-out follows the coder/websocket chat example:
// https://github.com/coder/websocket/blob/master/internal/examples/chat/chat.go

const writeTimeout = 5 * time.Second

// eventNames maps the ?events= query values onto event types.
var eventNames = map[string]EventType{
	"error":       EventTypeError,
	"log":         EventTypeLogLine,
	"diagnostics": EventTypeDiagnostics,
	"status":      EventTypeStatus,
}

// EventStream fans robot events out to every connected viewer.
type EventStream struct {
	l hclog.Logger

	maxUndelivered int

	subscribersMutex sync.Mutex
	subscribers      map[*subscriber]struct{}

	stop     chan struct{}
	stopOnce sync.Once
}

// New returns an event stream with no subscribers.
func New(opts ...Option) *EventStream {
	es := &EventStream{
		l:              hclog.NewNullLogger(),
		maxUndelivered: 16,
		subscribers:    make(map[*subscriber]struct{}),
		stop:           make(chan struct{}),
	}
	for _, o := range opts {
		o(es)
	}
	return es
}

// subscriber is one viewer.  A nil filter takes every event type.
// Events queue on msgs; a viewer that lets the queue fill is
// dropped rather than slowing the robot's tasks down.
type subscriber struct {
	msgs   chan []byte
	filter map[EventType]bool
	cancel context.CancelCauseFunc
}

var (
	errTooSlow  = errors.New("viewer fell too far behind")
	errStopping = errors.New("event stream shutting down")
)

func (s *subscriber) wants(t EventType) bool {
	return s.filter == nil || s.filter[t]
}

// parseFilter reads a comma separated ?events= list.  An empty list
// means everything.
func parseFilter(q string) (map[EventType]bool, error) {
	if q == "" {
		return nil, nil
	}
	f := make(map[EventType]bool)
	for _, name := range strings.Split(q, ",") {
		t, ok := eventNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, errors.New("unknown event type " + name)
		}
		f[t] = true
	}
	return f, nil
}

// Subscribers returns how many viewers are connected.
func (es *EventStream) Subscribers() int {
	es.subscribersMutex.Lock()
	defer es.subscribersMutex.Unlock()
	return len(es.subscribers)
}

// wanted reports whether any viewer takes events of type t.
func (es *EventStream) wanted(t EventType) bool {
	es.subscribersMutex.Lock()
	defer es.subscribersMutex.Unlock()
	for s := range es.subscribers {
		if s.wants(t) {
			return true
		}
	}
	return false
}

// Handler upgrades the request to a websocket and streams events
// until the viewer leaves or the stream shuts down.  The optional
// events query parameter narrows what is sent, for example
// /events?events=status,error.
func (es *EventStream) Handler(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query().Get("events"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = es.serve(w, r, filter)
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, errStopping),
		websocket.CloseStatus(err) == websocket.StatusNormalClosure,
		websocket.CloseStatus(err) == websocket.StatusGoingAway:
	default:
		es.l.Warn("Event viewer dropped", "remote", r.RemoteAddr, "error", err)
	}
}

func (es *EventStream) serve(w http.ResponseWriter, r *http.Request, filter map[EventType]bool) error {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	// Registered before the handshake completes so that nothing
	// published after the viewer's dial returns is missed.
	s := &subscriber{
		msgs:   make(chan []byte, es.maxUndelivered),
		filter: filter,
		cancel: cancel,
	}
	if !es.addSubscriber(s) {
		http.Error(w, errStopping.Error(), http.StatusServiceUnavailable)
		return errStopping
	}
	defer es.deleteSubscriber(s)

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		return err
	}
	defer c.CloseNow()
	ctx = c.CloseRead(ctx)

	es.l.Debug("Event viewer connected", "remote", r.RemoteAddr)

	for {
		select {
		case msg := <-s.msgs:
			wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Write(wctx, websocket.MessageText, msg)
			wcancel()
			if err != nil {
				return err
			}
		case <-ctx.Done():
			cause := context.Cause(ctx)
			switch {
			case errors.Is(cause, errTooSlow):
				c.Close(websocket.StatusPolicyViolation, cause.Error())
			case errors.Is(cause, errStopping):
				c.Close(websocket.StatusGoingAway, cause.Error())
			}
			return cause
		}
	}
}

// publish queues msg for every viewer that wants type t.  It never
// blocks the publishing task.
func (es *EventStream) publish(t EventType, msg []byte) {
	es.subscribersMutex.Lock()
	defer es.subscribersMutex.Unlock()

	for s := range es.subscribers {
		if !s.wants(t) {
			continue
		}
		select {
		case s.msgs <- msg:
		default:
			s.cancel(errTooSlow)
		}
	}
}

// addSubscriber registers s unless the stream is shutting down.
func (es *EventStream) addSubscriber(s *subscriber) bool {
	es.subscribersMutex.Lock()
	defer es.subscribersMutex.Unlock()
	select {
	case <-es.stop:
		return false
	default:
	}
	es.subscribers[s] = struct{}{}
	return true
}

func (es *EventStream) deleteSubscriber(s *subscriber) {
	es.subscribersMutex.Lock()
	delete(es.subscribers, s)
	es.subscribersMutex.Unlock()
}

// closeSubscribers tells every viewer the stream is going away.
func (es *EventStream) closeSubscribers() {
	es.subscribersMutex.Lock()
	defer es.subscribersMutex.Unlock()
	for s := range es.subscribers {
		s.cancel(errStopping)
	}
}
