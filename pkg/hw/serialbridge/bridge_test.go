package serialbridge

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
)

// controller answers requests the way the firmware does.
func controller(t *testing.T, conn net.Conn, seen chan<- string) {
	t.Helper()
	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		seen <- line

		var answer string
		switch {
		case strings.HasPrefix(line, "PWM"), strings.HasPrefix(line, "OUT"):
			answer = "OK"
		case line == "IN 14":
			answer = "OK 1"
		case strings.HasPrefix(line, "IN"):
			answer = "OK 0"
		case line == "RANGE 27 22":
			answer = "OK 412"
		default:
			answer = "ERR unknown command"
		}
		conn.Write([]byte(answer + "\n"))
	}
}

func TestBridge(t *testing.T) {
	local, remote := net.Pipe()
	seen := make(chan string, 16)
	go controller(t, remote, seen)

	b := New(local)
	defer b.Close()

	if err := b.PWM().SetDutyCycle(4, 500); err != nil {
		t.Fatalf("SetDutyCycle() error = %v", err)
	}
	if got := <-seen; got != "PWM 4 500" {
		t.Fatalf("request = %q, want %q", got, "PWM 4 500")
	}

	out, _ := b.Output(17)
	if err := out.SetLevel(true); err != nil {
		t.Fatalf("SetLevel() error = %v", err)
	}
	if got := <-seen; got != "OUT 17 1" {
		t.Fatalf("request = %q", got)
	}

	in, _ := b.Input(14)
	if lvl, err := in.Level(); err != nil || !lvl {
		t.Fatalf("Level() = %v, %v", lvl, err)
	}
	<-seen

	rf, _ := b.Rangefinder(27, 22)
	if mm, err := rf.ReadDistanceMm(); err != nil || mm != 412 {
		t.Fatalf("ReadDistanceMm() = %d, %v", mm, err)
	}
	<-seen

	rf, _ = b.Rangefinder(1, 2)
	if _, err := rf.ReadDistanceMm(); !errors.Is(err, ErrRemote) {
		t.Fatalf("ReadDistanceMm() error = %v, want ErrRemote", err)
	}
}

func TestParseAnswer(t *testing.T) {
	cases := []struct {
		line    string
		want    string
		wantErr bool
	}{
		{"OK\n", "", false},
		{"OK 12\r\n", "12", false},
		{"ERR busy\n", "", true},
		{"garbage\n", "", true},
	}
	for _, c := range cases {
		got, err := parseAnswer(c.line)
		if got != c.want || (err != nil) != c.wantErr {
			t.Errorf("parseAnswer(%q) = %q, %v", c.line, got, err)
		}
	}
}
