package gamepad

import (
	"context"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Source is something that produces gamepad readings and can be
// reattached when it goes away.
type Source interface {
	Read() (Values, error)
	Bind() error
}

// Sender delivers one command word to a destination on the robot.
type Sender interface {
	Send(dest, msg int32) error
}

// Driver polls a gamepad and forwards the resulting commands.
type Driver struct {
	l     hclog.Logger
	src   Source
	tx    Sender
	every time.Duration

	m Mapper
}

// NewDriver returns a driver that polls src every interval.
func NewDriver(l hclog.Logger, src Source, tx Sender, every time.Duration) *Driver {
	return &Driver{
		l:     l.Named("driver"),
		src:   src,
		tx:    tx,
		every: every,
	}
}

// Run drives until the context is cancelled, the gamepad cannot be
// rebound or the robot stops accepting commands.  The robot is told to
// stop whenever the gamepad is lost and when Run returns.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.every)
	defer ticker.Stop()
	defer d.park()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		v, err := d.src.Read()
		if err != nil {
			d.l.Warn("Lost gamepad", "error", err)
			d.park()
			if err := d.src.Bind(); err != nil {
				d.l.Error("Could not rebind gamepad", "error", err)
				return err
			}
			continue
		}

		for _, c := range d.m.Update(v) {
			d.l.Debug("Sending", "destination", c.Dest, "message", c.Word)
			if err := d.tx.Send(c.Dest, c.Word); err != nil {
				return err
			}
		}
	}
}

func (d *Driver) park() {
	c := d.m.Stop()
	if err := d.tx.Send(c.Dest, c.Word); err != nil {
		d.l.Debug("Could not park robot", "error", err)
	}
}
