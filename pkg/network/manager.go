package network

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// ErrNotConnected is returned by Send while no client is connected.
var ErrNotConnected = errors.New("no client connected")

// Manager accepts one ground station at a time and routes the
// commands it sends to the queue table.
type Manager struct {
	*task.Task

	l     hclog.Logger
	addr  string
	table *cmdqueue.Table
	dog   Feeder
	tries uint64

	mu   sync.Mutex
	ln   net.Listener
	conn net.Conn
	wmu  sync.Mutex
}

// NewManager builds the reception task.  Listen must be called before
// the task is started.
func NewManager(reg *task.Registry, name, addr string, table *cmdqueue.Table, opts ...Option) *Manager {
	o := newOptions(opts)
	m := &Manager{
		l:     o.l.Named("network"),
		addr:  addr,
		table: table,
		dog:   o.dog,
		tries: o.bindAttempts,
	}
	m.Task = task.New(reg, name, task.RunnerFunc(m.serveOne), o.taskOptions(task.WithStopHook(m.hangUp))...)
	return m
}

// Listen binds the listening socket, retrying while the address is
// still held by a previous run.
func (m *Manager) Listen() error {
	var ln net.Listener
	bindFunc := func() error {
		l, err := net.Listen("tcp", m.addr)
		if err != nil {
			m.l.Warn("Could not bind", "address", m.addr, "error", err)
			return err
		}
		ln = l
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), m.tries)
	if err := backoff.Retry(bindFunc, bo); err != nil {
		return fmt.Errorf("listen on %s: %w", m.addr, err)
	}

	m.mu.Lock()
	m.ln = ln
	m.mu.Unlock()
	m.l.Info("Listening for ground station", "address", ln.Addr())
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (m *Manager) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ln == nil {
		return nil
	}
	return m.ln.Addr()
}

// Connected reports whether a ground station is connected.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Send writes one record to the connected ground station.
func (m *Manager) Send(msg Message) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	m.wmu.Lock()
	defer m.wmu.Unlock()
	return WriteMessage(conn, msg)
}

func (m *Manager) serveOne() {
	m.mu.Lock()
	ln := m.ln
	m.mu.Unlock()
	if ln == nil {
		m.l.Error("Network manager started without a listener")
		m.Stop()
		return
	}

	conn, err := ln.Accept()
	if err != nil {
		if m.KeepGoing() {
			m.l.Warn("Accept failed", "error", err)
			time.Sleep(100 * time.Millisecond)
		}
		return
	}

	m.mu.Lock()
	if !m.KeepGoing() {
		m.mu.Unlock()
		conn.Close()
		return
	}
	m.conn = conn
	m.mu.Unlock()
	m.l.Info("Ground station connected", "remote", conn.RemoteAddr())

	defer func() {
		m.mu.Lock()
		m.conn = nil
		m.mu.Unlock()
		conn.Close()
		m.l.Info("Ground station disconnected", "remote", conn.RemoteAddr())
	}()

	for m.KeepGoing() {
		msg, err := ReadMessage(conn)
		if err != nil {
			m.l.Debug("Read ended", "error", err)
			return
		}
		m.dispatch(msg)
	}
}

// dispatch routes a record to its queue.  Records that fail the
// checksum, are not commands, or are addressed to a queue that does
// not exist are dropped.
func (m *Manager) dispatch(msg Message) bool {
	if !msg.Valid() {
		m.l.Debug("Dropping record with bad checksum", "id", msg.ID)
		return false
	}
	if msg.Type != CommandType {
		m.l.Debug("Dropping record of unknown type", "id", msg.ID, "type", msg.Type)
		return false
	}
	q, err := m.table.Get(int(msg.Destination))
	if err != nil {
		m.l.Debug("Dropping record", "id", msg.ID, "error", err)
		return false
	}

	q.Enqueue(msg.Message)
	if m.dog != nil {
		m.dog.Feed()
	}
	m.l.Trace("Command received", "id", msg.ID, "destination", msg.Destination, "command", msg.Message)
	return true
}

// hangUp unblocks Accept and Read so the task can see it was stopped.
func (m *Manager) hangUp() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ln != nil {
		m.ln.Close()
	}
	if m.conn != nil {
		m.conn.Close()
	}
}
