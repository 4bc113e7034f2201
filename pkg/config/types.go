// Package config contains a convenient structure to pass around
// configuration data.
package config

import (
	"time"
)

// Config is everything needed to bring up one robot.
type Config struct {
	RobotID   string          `yaml:"robot_id"`
	Network   NetworkConfig   `yaml:"network"`
	Tasks     TaskRates       `yaml:"tasks"`
	Board     BoardConfig     `yaml:"board"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Collision CollisionConfig `yaml:"collision"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// NetworkConfig controls the direct command link.
type NetworkConfig struct {
	Listen       string `yaml:"listen"`
	BindAttempts uint64 `yaml:"bind_attempts"`

	// LinkTimeout stops the robot when no command has arrived for
	// this long.  Zero disables the link watchdog.
	LinkTimeout time.Duration `yaml:"link_timeout"`
}

// TaskRate is the period and priority of one task.  Period is
// ignored for tasks that are not periodic.
type TaskRate struct {
	Period   time.Duration `yaml:"period,omitempty"`
	Priority int           `yaml:"priority"`
}

// TaskRates holds the rate of every task on the robot.
type TaskRates struct {
	Distance   TaskRate `yaml:"distance"`
	Collision  TaskRate `yaml:"collision"`
	Motor      TaskRate `yaml:"motor"`
	Horn       TaskRate `yaml:"horn"`
	Line       TaskRate `yaml:"line"`
	Status     TaskRate `yaml:"status"`
	Controller TaskRate `yaml:"controller"`
	Receive    TaskRate `yaml:"receive"`
	Transmit   TaskRate `yaml:"transmit"`
}

// WheelChannels are the PWM channels that drive one wheel.
type WheelChannels struct {
	Forward int `yaml:"forward"`
	Reverse int `yaml:"reverse"`
}

// BoardConfig maps the robot's parts onto PWM channels and GPIO pins.
type BoardConfig struct {
	LeftFront  WheelChannels `yaml:"left_front"`
	LeftRear   WheelChannels `yaml:"left_rear"`
	RightFront WheelChannels `yaml:"right_front"`
	RightRear  WheelChannels `yaml:"right_rear"`

	Horn         int `yaml:"horn"`
	RangeTrigger int `yaml:"range_trigger"`
	RangeEcho    int `yaml:"range_echo"`
	LineLeft     int `yaml:"line_left"`
	LineCenter   int `yaml:"line_center"`
	LineRight    int `yaml:"line_right"`
}

// HardwareConfig selects how the board is reached.
type HardwareConfig struct {
	// Backend is either "sim" or "serial".
	Backend      string `yaml:"backend"`
	Port         string `yaml:"port,omitempty"`
	Baud         int    `yaml:"baud,omitempty"`
	OpenAttempts uint64 `yaml:"open_attempts,omitempty"`
}

// CollisionConfig tunes obstacle avoidance.
type CollisionConfig struct {
	// MinimumDistance is in millimeters.  A negative value
	// disables collision stops.
	MinimumDistance int `yaml:"minimum_distance"`

	// StoppingDistance, when set, replaces the fixed minimum with
	// one that grows with the commanded speed.
	StoppingDistance *StoppingDistance `yaml:"stopping_distance,omitempty"`
}

// StoppingDistance is a linear model of how far the robot travels
// before it stops: Base millimeters at rest plus PerFullSpeed
// millimeters at full speed.
type StoppingDistance struct {
	Base         int `yaml:"base"`
	PerFullSpeed int `yaml:"per_full_speed"`
}

// MQTTConfig connects the robot to a fleet broker.  An empty Broker
// disables the bridge.
type MQTTConfig struct {
	Broker string `yaml:"broker,omitempty"`

	// Embedded runs a broker inside the robot process on this
	// address.
	Embedded string `yaml:"embedded,omitempty"`
}

// HTTPConfig controls the diagnostics API.  An empty Bind disables
// it.
type HTTPConfig struct {
	Bind           string        `yaml:"bind,omitempty"`
	SampleInterval time.Duration `yaml:"sample_interval,omitempty"`
}
