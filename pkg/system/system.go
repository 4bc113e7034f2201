// Package system assembles a running robot out of its tasks and the
// services around them, in the shape the config describes.
package system

import (
	"context"
	"errors"
	"io"
	nethttp "net/http"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/config"
	"github.com/rtbot-platform/rtbot/pkg/device"
	"github.com/rtbot-platform/rtbot/pkg/eventstream"
	"github.com/rtbot-platform/rtbot/pkg/http"
	"github.com/rtbot-platform/rtbot/pkg/hw"
	"github.com/rtbot-platform/rtbot/pkg/hw/serialbridge"
	"github.com/rtbot-platform/rtbot/pkg/hw/sim"
	"github.com/rtbot-platform/rtbot/pkg/metrics"
	"github.com/rtbot-platform/rtbot/pkg/mqttbridge"
	"github.com/rtbot-platform/rtbot/pkg/mqttserver"
	"github.com/rtbot-platform/rtbot/pkg/network"
	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/task"
	"github.com/rtbot-platform/rtbot/pkg/topic"
	"github.com/rtbot-platform/rtbot/pkg/watchdog"
)

// New validates the config and builds every task.  Nothing runs until
// Start is called.
func New(cfg config.Config, opts ...Option) (*Robot, error) {
	r := &Robot{
		l:   hclog.NewNullLogger(),
		cfg: cfg,
	}
	for _, o := range opts {
		o(r)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if r.reg == nil {
		r.reg = task.NewRegistry()
	}
	r.table = cmdqueue.NewTable(cmdqueue.NumberOfQueues)

	if r.board == nil {
		b, err := openBoard(r.l, cfg.Hardware)
		if err != nil {
			r.l.Error("Could not open hardware", "backend", cfg.Hardware.Backend, "error", err)
			return nil, err
		}
		r.board = b
	}

	if err := r.buildDevices(); err != nil {
		r.board.Close()
		return nil, err
	}
	if err := r.buildServices(); err != nil {
		r.board.Close()
		return nil, err
	}
	r.buildRobot()
	if err := r.buildWeb(); err != nil {
		r.board.Close()
		return nil, err
	}
	return r, nil
}

func openBoard(l hclog.Logger, hc config.HardwareConfig) (hw.Board, error) {
	switch hc.Backend {
	case "serial":
		b, err := serialbridge.Open(hc.Port, hc.Baud,
			serialbridge.WithLogger(l),
			serialbridge.WithOpenAttempts(hc.OpenAttempts),
		)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return sim.New(sim.WithLogger(l)), nil
	}
}

func (r *Robot) buildDevices() error {
	rates := r.cfg.Tasks
	b := r.cfg.Board

	devOpts := func(tr config.TaskRate) []device.Option {
		return []device.Option{device.WithLogger(r.l), device.WithPriority(tr.Priority)}
	}
	wheel := func(name string, ch config.WheelChannels) *device.MotorController {
		return device.NewMotorController(r.reg, name, rates.Motor.Period, r.board.PWM(), ch.Forward, ch.Reverse, devOpts(rates.Motor)...)
	}
	r.Motors = robot.Motors{
		LF: wheel("motor-lf", b.LeftFront),
		LR: wheel("motor-lr", b.LeftRear),
		RF: wheel("motor-rf", b.RightFront),
		RR: wheel("motor-rr", b.RightRear),
	}

	rf, err := r.board.Rangefinder(b.RangeTrigger, b.RangeEcho)
	if err != nil {
		r.l.Error("Could not set up rangefinder", "error", err)
		return err
	}
	r.Distance = device.NewDistanceSensor(r.reg, "distance", rates.Distance.Period, rf, devOpts(rates.Distance)...)

	buzzer, err := r.board.Output(b.Horn)
	if err != nil {
		r.l.Error("Could not set up horn", "pin", b.Horn, "error", err)
		return err
	}
	r.Horn = device.NewHorn(r.reg, "horn", rates.Horn.Period, r.table.MustGet(cmdqueue.HornQueue), buzzer, devOpts(rates.Horn)...)

	var line [3]hw.DigitalInput
	for i, pin := range []int{b.LineLeft, b.LineCenter, b.LineRight} {
		in, err := r.board.Input(pin)
		if err != nil {
			r.l.Error("Could not set up line sensor", "pin", pin, "error", err)
			return err
		}
		line[i] = in
	}
	r.Line = device.NewLineSensor(r.reg, "line", rates.Line.Period,
		r.table.MustGet(cmdqueue.LineQueue), r.table.MustGet(cmdqueue.MotorQueue),
		line[0], line[1], line[2], devOpts(rates.Line)...)
	return nil
}

func (r *Robot) buildServices() error {
	var err error

	r.metrics = metrics.New(metrics.WithLogger(r.l))

	if r.cfg.HTTP.Bind != "" {
		r.events = eventstream.New(eventstream.WithLogger(r.l))
	}

	if r.cfg.MQTT.Broker != "" {
		r.bridge, err = mqttbridge.New(r.cfg.RobotID, r.table,
			mqttbridge.WithLogger(r.l),
			mqttbridge.WithBroker(r.cfg.MQTT.Broker),
			mqttbridge.WithLinkWatchdog(r),
		)
		if err != nil {
			r.l.Error("Error during bridge initialization", "error", err)
			return err
		}
	}

	if r.cfg.MQTT.Embedded != "" {
		r.broker, err = mqttserver.NewServer(mqttserver.WithLogger(r.l))
		if err != nil {
			r.l.Error("Error during broker initialization", "error", err)
			return err
		}
	}
	return nil
}

func (r *Robot) buildRobot() {
	rates := r.cfg.Tasks
	motorQ := r.table.MustGet(cmdqueue.MotorQueue)
	hornQ := r.table.MustGet(cmdqueue.HornQueue)

	r.Collision = robot.NewCollisionSensor(r.reg, "collision", rates.Collision.Period, motorQ, hornQ, r.Distance,
		robot.WithLogger(r.l),
		robot.WithPriority(rates.Collision.Priority),
	)
	r.Collision.SetMinimumAcceptableDistance(r.cfg.Collision.MinimumDistance)

	r.Controller = robot.NewCollisionSensingController(r.reg, "controller", motorQ, hornQ, r.Motors, r.Collision,
		robot.WithLogger(r.l),
		robot.WithPriority(rates.Controller.Priority),
		robot.WithStoppingDistancePolicy(r.cfg.Collision.Policy()),
	)

	r.Net = network.NewManager(r.reg, "network", r.cfg.Network.Listen, r.table,
		network.WithLogger(r.l),
		network.WithPriority(rates.Receive.Priority),
		network.WithLinkWatchdog(r),
		network.WithBindAttempts(r.cfg.Network.BindAttempts),
	)
	r.Tx = network.NewTransmissionManager(r.reg, "transmit", r.Net,
		network.WithLogger(r.l),
		network.WithPriority(rates.Transmit.Priority),
	)

	statusOpts := []robot.Option{
		robot.WithLogger(r.l),
		robot.WithPriority(rates.Status.Priority),
		robot.WithRobotID(r.cfg.RobotID),
	}
	if r.bridge != nil {
		statusOpts = append(statusOpts, robot.WithStatusPublisher(r.bridge))
	}
	if r.events != nil {
		statusOpts = append(statusOpts, robot.WithStatusPublisher(r.events))
	}
	r.Status = robot.NewStatusManager(r.reg, "status", rates.Status.Period, r.Tx, r.Distance, statusOpts...)
}

func (r *Robot) buildWeb() error {
	if r.cfg.HTTP.Bind == "" {
		return nil
	}
	var err error
	r.web, err = http.NewServer(
		http.WithLogger(r.l),
		http.WithPrometheusRegistry(r.metrics.Registry()),
		http.WithTaskRegistry(r.reg),
		http.WithQueues(r.table),
		http.WithStatusSource(r.Status),
		http.WithEventStream(r.events.Handler),
	)
	if err != nil {
		r.l.Error("Error during webserver initialization", "error", err)
	}
	return err
}

// shutdownOrder lists the tasks in the order they are stopped and
// then joined.
func (r *Robot) shutdownOrder() []task.Lifecycle {
	return []task.Lifecycle{
		r.Line,
		r.Collision,
		r.Distance,
		r.Horn,
		r.Controller,
		r.Status,
		r.Tx,
		r.Net,
	}
}

// Start binds the command link, starts every task and then the
// optional services.  Starting twice does nothing.
func (r *Robot) Start() error {
	if r.started {
		return nil
	}
	if err := r.Net.Listen(); err != nil {
		r.l.Error("Could not bind command link", "address", r.cfg.Network.Listen, "error", err)
		return err
	}
	r.started = true

	if r.cfg.Network.LinkTimeout > 0 {
		r.dogMu.Lock()
		r.dog = watchdog.New(
			watchdog.WithName("link"),
			watchdog.WithFoodDuration(r.cfg.Network.LinkTimeout),
			watchdog.WithHandFunction(r.linkLost),
			watchdog.WithLogger(r.l),
		)
		r.dogMu.Unlock()
	}

	order := r.shutdownOrder()
	for i := len(order) - 1; i >= 0; i-- {
		order[i].Start()
	}
	r.l.Info("Robot started", "tasks", r.reg.Len(), "link", r.Net.Addr())

	return r.startServices()
}

func (r *Robot) startServices() error {
	if r.broker != nil {
		if err := r.broker.Serve(r.cfg.MQTT.Embedded); err != nil {
			r.l.Error("Error setting up local broker", "error", err)
			return err
		}
		if err := r.broker.Subscribe(topic.AllStatus, r.metrics.MQTTCallback); err != nil {
			r.l.Error("Could not subscribe to status reports", "error", err)
			return err
		}
		r.metrics.StartFlusher()
	}

	if r.bridge != nil {
		go func() {
			if err := r.bridge.Connect(); err != nil {
				r.l.Error("Error connecting to broker", "error", err)
			}
		}()
	}

	if r.web != nil {
		every := r.cfg.HTTP.SampleInterval
		r.metrics.StartSampler(r.reg, r.table, every)
		r.events.StartSampler(r.reg, r.table, every)
		go func() {
			if err := r.web.Serve(r.cfg.HTTP.Bind); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
				r.l.Error("Error serving HTTP", "error", err)
				r.events.PublishError(err)
			}
		}()
	}
	return nil
}

// Shutdown stops every task in order, waits for each of them in the
// same order, then tears down the services and the board.
func (r *Robot) Shutdown(ctx context.Context) {
	if r.stopped {
		return
	}
	r.stopped = true
	r.l.Info("Shutting down")

	r.dogMu.Lock()
	if r.dog != nil {
		r.dog.Stop()
	}
	r.dogMu.Unlock()

	order := r.shutdownOrder()
	for _, t := range order {
		t.Stop()
	}
	for _, t := range order {
		t.WaitForShutdown()
	}

	if r.web != nil {
		if err := r.web.Shutdown(ctx); err != nil {
			r.l.Warn("Error stopping webserver", "error", err)
		}
		r.events.Shutdown()
	}
	if r.bridge != nil {
		r.bridge.Disconnect()
	}
	if r.broker != nil {
		if err := r.broker.Shutdown(); err != nil {
			r.l.Warn("Error stopping broker", "error", err)
		}
	}
	r.metrics.Shutdown()
	r.table.CloseAll()

	if err := r.board.Close(); err != nil {
		r.l.Warn("Error closing hardware", "error", err)
	}
	r.l.Info("Goodbye")
}

// Feed keeps the link watchdog from biting.  It is called for every
// command accepted from the network link or the MQTT bridge.
func (r *Robot) Feed() {
	r.dogMu.Lock()
	defer r.dogMu.Unlock()
	if r.dog != nil {
		r.dog.Feed()
	}
}

func (r *Robot) linkLost() {
	r.l.Warn("No command within link timeout, stopping", "timeout", r.cfg.Network.LinkTimeout)
	r.table.MustGet(cmdqueue.MotorQueue).Enqueue(command.EncodeMotion(command.Stop))
	if r.events != nil {
		r.events.PublishLogLine("command link lost, robot stopped")
	}
}

// Registry returns the registry every task is entered in.
func (r *Robot) Registry() *task.Registry { return r.reg }

// Queues returns the command queue table.
func (r *Robot) Queues() *cmdqueue.Table { return r.table }

// Metrics returns the robot's metrics, which also collect the status
// reports of other robots when the embedded broker is running.
func (r *Robot) Metrics() *metrics.Metrics { return r.metrics }

// Report writes the diagnostics table.
func (r *Robot) Report(w io.Writer) error { return r.reg.Report(w) }

// ResetDiagnostics zeroes the timing of every task.
func (r *Robot) ResetDiagnostics() { r.reg.ResetAll() }

// MuteHorn queues a mute for the horn.
func (r *Robot) MuteHorn() { r.table.MustGet(cmdqueue.HornQueue).Enqueue(command.HornMute) }
