package topic

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		want    Parsed
		wantErr bool
	}{
		{"robot/r1/status", Parsed{Robot: "r1", Kind: Status}, false},
		{"robot/r1/cmd/2", Parsed{Robot: "r1", Kind: Command, Dest: 2}, false},
		{"robot/r1/cmd/x", Parsed{}, true},
		{"robot/r1/cmd", Parsed{}, true},
		{"robot//status", Parsed{}, true},
		{"robot/r1/status/extra", Parsed{}, true},
		{"fleet/r1/status", Parsed{}, true},
		{"robot/r1/gamepad", Parsed{}, true},
	}
	for _, c := range cases {
		got, err := Parse(c.in)
		if c.wantErr {
			if !errors.Is(err, ErrNotRobotTopic) {
				t.Errorf("Parse(%q) error = %v, want ErrNotRobotTopic", c.in, err)
			}
			continue
		}
		if err != nil || got != c.want {
			t.Errorf("Parse(%q) = %+v, %v, want %+v", c.in, got, err, c.want)
		}
	}
}

func TestBuilders(t *testing.T) {
	if got := StatusFor("r1"); got != "robot/r1/status" {
		t.Errorf("StatusFor = %q", got)
	}
	if got := CommandFor("r1", 3); got != "robot/r1/cmd/3" {
		t.Errorf("CommandFor = %q", got)
	}
	if got := CommandFilter("r1"); got != "robot/r1/cmd/+" {
		t.Errorf("CommandFilter = %q", got)
	}
}

func TestParseCommandWord(t *testing.T) {
	cases := []struct {
		in      string
		want    int32
		wantErr bool
	}{
		{"0x20000001", 0x20000001, false},
		{"16", 16, false},
		{" 0x40000000\n", 0x40000000, false},
		{"0x80000000", -1 << 31, false},
		{"-5", -5, false},
		{"0x100000000", 0, true},
		{"horn", 0, true},
	}
	for _, c := range cases {
		got, err := ParseCommandWord([]byte(c.in))
		if (err != nil) != c.wantErr {
			t.Errorf("ParseCommandWord(%q) error = %v", c.in, err)
			continue
		}
		if !c.wantErr && got != c.want {
			t.Errorf("ParseCommandWord(%q) = %#x, want %#x", c.in, got, c.want)
		}
	}
}

func TestClientID(t *testing.T) {
	if r, ok := RobotFromClientID(ClientID("r9")); !ok || r != "r9" {
		t.Fatalf("RobotFromClientID(ClientID(r9)) = %q, %v", r, ok)
	}
	for _, id := range []string{"rtbot-", "monitor", "drive-1"} {
		if _, ok := RobotFromClientID(id); ok {
			t.Errorf("RobotFromClientID(%q) claimed a robot", id)
		}
	}
}
