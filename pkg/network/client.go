package network

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Client is the ground station side of the link.
type Client struct {
	l    hclog.Logger
	conn net.Conn

	wmu sync.Mutex
	seq int32
}

// Dial connects to a robot.
func Dial(ctx context.Context, addr string, opts ...Option) (*Client, error) {
	o := newOptions(opts)

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	c := &Client{
		l:    o.l.Named("client"),
		conn: conn,
	}
	c.l.Info("Connected to robot", "address", addr)
	return c, nil
}

// Send sends a command word to a destination queue on the robot.
// Every record carries the next sequence number and the current time.
func (c *Client) Send(dest, msg int32) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	m := NewCommand(c.seq, time.Now(), dest, msg)
	c.seq++
	c.l.Trace("Sending", "id", m.ID, "destination", dest, "command", msg)
	return WriteMessage(c.conn, m)
}

// Receive returns the next record with a valid checksum.  Corrupt
// records are skipped.
func (c *Client) Receive() (Message, error) {
	for {
		m, err := ReadMessage(c.conn)
		if err != nil {
			return Message{}, err
		}
		if m.Valid() {
			return m, nil
		}
		c.l.Debug("Skipping corrupt record")
	}
}

// Close hangs up.
func (c *Client) Close() error {
	return c.conn.Close()
}
