package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtbot.yaml")
	doc := `
robot_id: r1
network:
  listen: ":9191"
  link_timeout: 2s
tasks:
  distance:
    period: 50ms
    priority: 60
collision:
  minimum_distance: 300
  stopping_distance:
    base: 100
    per_full_speed: 400
`
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.RobotID != "r1" || cfg.Network.Listen != ":9191" || cfg.Network.LinkTimeout != 2*time.Second {
		t.Fatalf("network = %+v", cfg.Network)
	}
	if cfg.Tasks.Distance != (TaskRate{Period: 50 * time.Millisecond, Priority: 60}) {
		t.Fatalf("distance rate = %+v", cfg.Tasks.Distance)
	}
	if cfg.Tasks.Horn.Period != 125*time.Millisecond {
		t.Fatalf("horn period = %v, want the default", cfg.Tasks.Horn.Period)
	}
	if cfg.Board.RangeEcho != 22 {
		t.Fatalf("range echo = %d, want the default", cfg.Board.RangeEcho)
	}

	p := cfg.Collision.Policy()
	if p == nil {
		t.Fatal("Policy() = nil with a stopping distance configured")
	}
	for _, c := range []struct{ speed, want int }{{0, 100}, {500, 300}, {1000, 500}} {
		if got := p(c.speed); got != c.want {
			t.Errorf("policy(%d) = %d, want %d", c.speed, got, c.want)
		}
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rtbot.yaml")
	cfg := Default()
	cfg.RobotID = "saved"
	cfg.Hardware = HardwareConfig{Backend: "serial", Port: "/dev/ttyACM0", Baud: 57600}
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.RobotID != "saved" || got.Hardware.Port != "/dev/ttyACM0" || got.Tasks.Status.Period != 500*time.Millisecond {
		t.Fatalf("reloaded %+v", got)
	}
	if got.Collision.Policy() != nil {
		t.Fatal("Policy() != nil without a stopping distance")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"short period", func(c *Config) { c.Tasks.Horn.Period = 10 * time.Microsecond }, "tasks.horn.period"},
		{"priority", func(c *Config) { c.Tasks.Receive.Priority = 120 }, "tasks.receive.priority"},
		{"channel", func(c *Config) { c.Board.RightRear.Reverse = 16 }, "board.right_rear"},
		{"pin", func(c *Config) { c.Board.LineCenter = -1 }, "board.line_center"},
		{"backend", func(c *Config) { c.Hardware.Backend = "gpio" }, "hardware.backend"},
		{"serial port", func(c *Config) { c.Hardware.Backend = "serial" }, "hardware.port"},
		{"listen", func(c *Config) { c.Network.Listen = "" }, "network.listen"},
		{"stopping", func(c *Config) { c.Collision.StoppingDistance = &StoppingDistance{Base: -1} }, "stopping_distance"},
	}
	for _, c := range cases {
		cfg := Default()
		c.mutate(cfg)
		err := cfg.Validate()
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Errorf("%s: Validate() = %v, want mention of %q", c.name, err, c.want)
		}
	}

	cfg := Default()
	cfg.Collision.MinimumDistance = -1
	if err := cfg.Validate(); err != nil {
		t.Fatalf("negative minimum distance rejected: %v", err)
	}
}

func TestPath(t *testing.T) {
	t.Setenv("RTBOT_CONFIG", "/etc/rtbot.yaml")
	if Path() != "/etc/rtbot.yaml" {
		t.Fatalf("Path() = %q", Path())
	}
	t.Setenv("RTBOT_CONFIG", "")
	if Path() != defconfPath {
		t.Fatalf("Path() = %q", Path())
	}
}
