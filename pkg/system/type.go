package system

import (
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/config"
	"github.com/rtbot-platform/rtbot/pkg/device"
	"github.com/rtbot-platform/rtbot/pkg/eventstream"
	"github.com/rtbot-platform/rtbot/pkg/http"
	"github.com/rtbot-platform/rtbot/pkg/hw"
	"github.com/rtbot-platform/rtbot/pkg/metrics"
	"github.com/rtbot-platform/rtbot/pkg/mqttbridge"
	"github.com/rtbot-platform/rtbot/pkg/mqttserver"
	"github.com/rtbot-platform/rtbot/pkg/network"
	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/task"
	"github.com/rtbot-platform/rtbot/pkg/watchdog"
)

// Robot binds every task and service that makes up one running robot.
// The tasks are exported so that callers can inspect them; everything
// else is reached through Robot's methods.
type Robot struct {
	l   hclog.Logger
	cfg config.Config

	reg   *task.Registry
	table *cmdqueue.Table
	board hw.Board

	Motors     robot.Motors
	Distance   *device.DistanceSensor
	Horn       *device.Horn
	Line       *device.LineSensor
	Collision  *robot.CollisionSensor
	Controller *robot.CollisionSensingController
	Status     *robot.StatusManager
	Tx         *network.TransmissionManager
	Net        *network.Manager

	dogMu sync.Mutex
	dog   *watchdog.Dog

	metrics *metrics.Metrics
	events  *eventstream.EventStream
	bridge  *mqttbridge.Bridge
	broker  *mqttserver.Server
	web     *http.Server

	started bool
	stopped bool
}

// Option changes features on the robot.
type Option func(*Robot)
