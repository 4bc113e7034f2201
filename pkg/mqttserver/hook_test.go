package mqttserver

import (
	"testing"
	"time"

	"github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
)

func TestAllowed(t *testing.T) {
	cases := []struct {
		name   string
		client string
		remote string
		topic  string
		write  bool
		want   bool
	}{
		{"local anything", "x", "127.0.0.1:5000", "anything/at/all", true, true},
		{"bad remote", "x", "nonsense", "robot/r1/status", false, false},
		{"read status", "monitor", "10.0.0.5:1", "robot/+/status", false, true},
		{"read outside tree", "monitor", "10.0.0.5:1", "sys/secret", false, false},
		{"robot own status", "rtbot-r1", "10.0.0.7:1", "robot/r1/status", true, true},
		{"robot other status", "rtbot-r1", "10.0.0.7:1", "robot/r2/status", true, false},
		{"robot sends command", "rtbot-r1", "10.0.0.7:1", "robot/r2/cmd/1", true, false},
		{"operator command", "drive", "10.0.0.5:1", "robot/r2/cmd/1", true, true},
		{"operator fakes status", "drive", "10.0.0.5:1", "robot/r2/status", true, false},
		{"operator bad dest", "drive", "10.0.0.5:1", "robot/r2/cmd/x", true, false},
	}
	for _, c := range cases {
		if got := allowed(c.client, c.remote, c.topic, c.write); got != c.want {
			t.Errorf("%s: allowed = %v, want %v", c.name, got, c.want)
		}
	}
}

func TestInlineDelivery(t *testing.T) {
	s, err := NewServer()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Serve("127.0.0.1:0"); err != nil {
		t.Fatal(err)
	}
	defer s.Shutdown()

	got := make(chan string, 1)
	err = s.Subscribe("robot/+/status", func(cl *mqtt.Client, sub packets.Subscription, pk packets.Packet) {
		got <- pk.TopicName + " " + string(pk.Payload)
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Publish("robot/r1/status", []byte("{}")); err != nil {
		t.Fatal(err)
	}

	select {
	case m := <-got:
		if m != "robot/r1/status {}" {
			t.Fatalf("delivered %q", m)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("inline subscriber never called")
	}
}
