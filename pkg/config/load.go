package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

const (
	defconfPath = "rtbot.yaml"

	// NumberOfGPIOPins bounds every pin number.
	NumberOfGPIOPins = 28

	// NumberOfPWMChannels bounds every PWM channel.
	NumberOfPWMChannels = 16
)

// Path returns where the config lives: $RTBOT_CONFIG if set, else
// rtbot.yaml in the working directory.
func Path() string {
	if p := os.Getenv("RTBOT_CONFIG"); p != "" {
		return p
	}
	return defconfPath
}

// Default returns the configuration of the stock robot.
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			Listen:       ":9090",
			BindAttempts: 5,
		},
		Tasks: TaskRates{
			Distance:   TaskRate{Period: 75 * time.Millisecond, Priority: 54},
			Collision:  TaskRate{Period: 100 * time.Millisecond, Priority: 10},
			Motor:      TaskRate{Period: 20 * time.Millisecond, Priority: 10},
			Horn:       TaskRate{Period: 125 * time.Millisecond, Priority: 10},
			Line:       TaskRate{Period: 40 * time.Millisecond, Priority: 10},
			Status:     TaskRate{Period: 500 * time.Millisecond, Priority: 10},
			Controller: TaskRate{Priority: 9},
			Receive:    TaskRate{Priority: 23},
			Transmit:   TaskRate{Priority: 11},
		},
		Board: BoardConfig{
			LeftFront:  WheelChannels{Forward: 0, Reverse: 1},
			LeftRear:   WheelChannels{Forward: 3, Reverse: 2},
			RightFront: WheelChannels{Forward: 4, Reverse: 5},
			RightRear:  WheelChannels{Forward: 6, Reverse: 7},

			Horn:         17,
			RangeTrigger: 27,
			RangeEcho:    22,
			LineLeft:     14,
			LineCenter:   15,
			LineRight:    23,
		},
		Hardware: HardwareConfig{
			Backend:      "sim",
			Baud:         115200,
			OpenAttempts: 5,
		},
		Collision: CollisionConfig{
			MinimumDistance: 250,
		},
		HTTP: HTTPConfig{
			SampleInterval: time.Second,
		},
	}
}

// Load reads in a config from the path on disk.  Anything the file
// leaves out keeps its default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Validate checks the config for values that the robot would refuse
// at runtime, so that they are caught before any hardware is touched.
func (c *Config) Validate() error {
	var errs []error

	if c.Network.Listen == "" {
		errs = append(errs, errors.New("network.listen is required"))
	}
	if c.Network.LinkTimeout < 0 {
		errs = append(errs, errors.New("network.link_timeout must not be negative"))
	}

	for name, r := range map[string]TaskRate{
		"distance":  c.Tasks.Distance,
		"collision": c.Tasks.Collision,
		"motor":     c.Tasks.Motor,
		"horn":      c.Tasks.Horn,
		"line":      c.Tasks.Line,
		"status":    c.Tasks.Status,
	} {
		if r.Period < task.MinPeriod {
			errs = append(errs, fmt.Errorf("tasks.%s.period %v is below %v", name, r.Period, task.MinPeriod))
		}
	}
	for name, r := range map[string]TaskRate{
		"distance":   c.Tasks.Distance,
		"collision":  c.Tasks.Collision,
		"motor":      c.Tasks.Motor,
		"horn":       c.Tasks.Horn,
		"line":       c.Tasks.Line,
		"status":     c.Tasks.Status,
		"controller": c.Tasks.Controller,
		"receive":    c.Tasks.Receive,
		"transmit":   c.Tasks.Transmit,
	} {
		if r.Priority < 0 || r.Priority > task.MaxPriority {
			errs = append(errs, fmt.Errorf("tasks.%s.priority %d is outside 0..%d", name, r.Priority, task.MaxPriority))
		}
	}

	for name, w := range map[string]WheelChannels{
		"left_front":  c.Board.LeftFront,
		"left_rear":   c.Board.LeftRear,
		"right_front": c.Board.RightFront,
		"right_rear":  c.Board.RightRear,
	} {
		for _, ch := range []int{w.Forward, w.Reverse} {
			if ch < 0 || ch >= NumberOfPWMChannels {
				errs = append(errs, fmt.Errorf("board.%s channel %d is outside 0..%d", name, ch, NumberOfPWMChannels-1))
			}
		}
	}
	for name, pin := range map[string]int{
		"horn":          c.Board.Horn,
		"range_trigger": c.Board.RangeTrigger,
		"range_echo":    c.Board.RangeEcho,
		"line_left":     c.Board.LineLeft,
		"line_center":   c.Board.LineCenter,
		"line_right":    c.Board.LineRight,
	} {
		if pin < 0 || pin >= NumberOfGPIOPins {
			errs = append(errs, fmt.Errorf("board.%s pin %d is outside 0..%d", name, pin, NumberOfGPIOPins-1))
		}
	}

	switch c.Hardware.Backend {
	case "sim":
	case "serial":
		if c.Hardware.Port == "" {
			errs = append(errs, errors.New("hardware.port is required for the serial backend"))
		}
		if c.Hardware.Baud <= 0 {
			errs = append(errs, errors.New("hardware.baud must be positive"))
		}
	default:
		errs = append(errs, fmt.Errorf("hardware.backend %q is not sim or serial", c.Hardware.Backend))
	}

	if sd := c.Collision.StoppingDistance; sd != nil && (sd.Base < 0 || sd.PerFullSpeed < 0) {
		errs = append(errs, errors.New("collision.stopping_distance values must not be negative"))
	}

	if c.HTTP.Bind != "" && c.HTTP.SampleInterval <= 0 {
		errs = append(errs, errors.New("http.sample_interval must be positive"))
	}

	return errors.Join(errs...)
}

// Policy returns the stopping distance policy the config describes,
// or nil to keep the fixed minimum distance.
func (c CollisionConfig) Policy() robot.StoppingDistancePolicy {
	sd := c.StoppingDistance
	if sd == nil {
		return nil
	}
	base, per := sd.Base, sd.PerFullSpeed
	return func(speed int) int {
		return base + speed*per/1000
	}
}
