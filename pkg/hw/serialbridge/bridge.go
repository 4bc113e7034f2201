// Package serialbridge talks to a microcontroller that owns the
// robot's PWM controller, GPIO pins and rangefinder.  The link is a
// newline delimited text protocol: every request line is answered by
// exactly one line, either "OK", "OK <value>" or "ERR <reason>".
//
//	PWM <channel> <permille>
//	OUT <pin> <0|1>
//	IN <pin>
//	RANGE <trig> <echo>
package serialbridge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"go.bug.st/serial"

	"github.com/rtbot-platform/rtbot/pkg/hw"
)

// ErrRemote is wrapped around every ERR answer from the controller.
var ErrRemote = errors.New("controller error")

// Option changes features on the bridge.
type Option func(*Bridge)

// Bridge implements hw.Board over a serial line.
type Bridge struct {
	l hclog.Logger

	mu   sync.Mutex
	port io.ReadWriteCloser
	r    *bufio.Reader

	timeout  time.Duration
	attempts uint64
}

// Open opens the serial device, retrying with backoff while the
// device is absent, which is common right after the controller resets.
func Open(device string, baud int, opts ...Option) (*Bridge, error) {
	b := &Bridge{
		l:        hclog.NewNullLogger(),
		timeout:  100 * time.Millisecond,
		attempts: 5,
	}
	for _, o := range opts {
		o(b)
	}

	var port serial.Port
	openFunc := func() error {
		p, err := serial.Open(device, &serial.Mode{BaudRate: baud})
		if err != nil {
			b.l.Warn("Could not open serial device", "device", device, "error", err)
			return err
		}
		port = p
		return nil
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), b.attempts)
	if err := backoff.Retry(openFunc, bo); err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	if err := port.SetReadTimeout(b.timeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}
	b.l.Info("Serial bridge open", "device", device, "baud", baud)

	b.attach(port)
	return b, nil
}

// New wraps an already open stream.
func New(rw io.ReadWriteCloser, opts ...Option) *Bridge {
	b := &Bridge{
		l:       hclog.NewNullLogger(),
		timeout: 100 * time.Millisecond,
	}
	for _, o := range opts {
		o(b)
	}
	b.attach(rw)
	return b
}

func (b *Bridge) attach(rw io.ReadWriteCloser) {
	b.port = rw
	b.r = bufio.NewReader(rw)
}

// WithLogger sets the parent logger.
func WithLogger(l hclog.Logger) Option {
	return func(b *Bridge) { b.l = l.Named("serialbridge") }
}

// WithReadTimeout bounds how long a request waits for its answer.
func WithReadTimeout(d time.Duration) Option {
	return func(b *Bridge) { b.timeout = d }
}

// WithOpenAttempts sets how many times Open retries.
func WithOpenAttempts(n uint64) Option {
	return func(b *Bridge) { b.attempts = n }
}

// PWM returns the remote modulator.
func (b *Bridge) PWM() hw.PWM { return pwm{b} }

// Output returns a remote output pin.
func (b *Bridge) Output(n int) (hw.DigitalOutput, error) { return pin{b, n}, nil }

// Input returns a remote input pin.
func (b *Bridge) Input(n int) (hw.DigitalInput, error) { return pin{b, n}, nil }

// Rangefinder returns a sensor measured by the controller, which does
// the echo timing itself.
func (b *Bridge) Rangefinder(trig, echo int) (hw.Rangefinder, error) {
	return ranger{b, trig, echo}, nil
}

// Close closes the serial port.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.port.Close()
}

// call sends one request and returns the value of the answer, if any.
func (b *Bridge) call(format string, args ...any) (string, error) {
	req := fmt.Sprintf(format, args...)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := io.WriteString(b.port, req+"\n"); err != nil {
		return "", fmt.Errorf("write %q: %w", req, err)
	}
	line, err := b.r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read answer to %q: %w", req, err)
	}
	b.l.Trace("Exchange", "request", req, "answer", strings.TrimSpace(line))
	return parseAnswer(line)
}

func parseAnswer(line string) (string, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "OK":
		return "", nil
	case strings.HasPrefix(line, "OK "):
		return strings.TrimPrefix(line, "OK "), nil
	case strings.HasPrefix(line, "ERR"):
		return "", fmt.Errorf("%w: %s", ErrRemote, strings.TrimSpace(strings.TrimPrefix(line, "ERR")))
	}
	return "", fmt.Errorf("malformed answer %q", line)
}

type pwm struct{ b *Bridge }

func (p pwm) SetDutyCycle(ch, permille int) error {
	_, err := p.b.call("PWM %d %d", ch, permille)
	return err
}

type pin struct {
	b *Bridge
	n int
}

func (p pin) SetLevel(high bool) error {
	v := 0
	if high {
		v = 1
	}
	_, err := p.b.call("OUT %d %d", p.n, v)
	return err
}

func (p pin) Level() (bool, error) {
	v, err := p.b.call("IN %d", p.n)
	if err != nil {
		return false, err
	}
	return v == "1", nil
}

type ranger struct {
	b          *Bridge
	trig, echo int
}

func (r ranger) ReadDistanceMm() (int, error) {
	v, err := r.b.call("RANGE %d %d", r.trig, r.echo)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(v)
}
