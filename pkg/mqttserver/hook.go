package mqttserver

import (
	"net"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"

	"github.com/rtbot-platform/rtbot/pkg/topic"
)

// RobotHook handles all the custom logic for a fleet of robots.
type RobotHook struct {
	mqtt.HookBase

	l hclog.Logger
}

func newHook(l hclog.Logger) *RobotHook {
	rh := new(RobotHook)
	rh.l = l
	return rh
}

// Provides flags which methods the server will invoke this hook for.
// Adding or removing methods in this file requires updating this
// value!
func (rh *RobotHook) Provides(b byte) bool {
	provides := map[byte]struct{}{
		mqtt.OnACLCheck:            struct{}{},
		mqtt.OnConnectAuthenticate: struct{}{},
		mqtt.OnConnect:             struct{}{},
		mqtt.OnDisconnect:          struct{}{},
		mqtt.OnSessionEstablished:  struct{}{},
		mqtt.OnStarted:             struct{}{},
		mqtt.OnSubscribed:          struct{}{},
	}
	_, ok := provides[b]
	return ok
}

// ID identifies this hook in the listing.
func (rh *RobotHook) ID() string {
	return "RobotHook"
}

// OnStarted happens after the listeners are bound and the server is
// ready to process connections.
func (rh *RobotHook) OnStarted() {
	rh.l.Info("Ready for connections")
}

// OnSessionEstablished happens after a client is completely connected
// and ready to send and receive data.
func (rh *RobotHook) OnSessionEstablished(cl *mqtt.Client, pk packets.Packet) {
	if id, ok := topic.RobotFromClientID(cl.ID); ok {
		rh.l.Info("Robot Connected", "client", cl.ID, "robot", id, "remote", cl.Net.Remote)
		return
	}
	rh.l.Info("Client Connected", "client", cl.ID, "remote", cl.Net.Remote)
}

// OnConnect fires when a client connects, and we use this to forcibly
// clear all state for clients connecting to the server.
func (rh *RobotHook) OnConnect(cl *mqtt.Client, pk packets.Packet) error {
	rh.l.Debug("Client Connect", "client", cl.ID)
	cl.ClearInflights()
	return nil
}

// OnDisconnect fires when a client is disconnected for any reason.
func (rh *RobotHook) OnDisconnect(cl *mqtt.Client, err error, expire bool) {
	rh.l.Info("Client Disconnected", "client", cl.ID, "expired", expire)
}

// OnConnectAuthenticate allows anyone to connect, but what they can
// then do is pretty heavily limited by the OnACLCheck below.
func (rh *RobotHook) OnConnectAuthenticate(cl *mqtt.Client, pk packets.Packet) bool {
	return true
}

// OnACLCheck gets called to work out if a client should be allowed to
// do things or not.
func (rh *RobotHook) OnACLCheck(cl *mqtt.Client, t string, write bool) bool {
	if cl.Net.Inline {
		return true
	}
	ok := allowed(cl.ID, cl.Net.Remote, t, write)
	if !ok {
		rh.l.Debug("Denied", "client", cl.ID, "topic", t, "write", write)
	}
	return ok
}

// allowed is the fleet's access policy.  Clients on the broker's own
// host may do anything.  Everyone else may read anything under robot/.
// A robot may only write its own status, and only clients that are
// not robots may write commands, so that one robot can never drive
// another.
func allowed(clientID, remote, t string, write bool) bool {
	host, _, err := net.SplitHostPort(remote)
	if err != nil {
		return false
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}

	if !write {
		return strings.HasPrefix(t, "robot/")
	}

	p, err := topic.Parse(t)
	if err != nil {
		return false
	}
	if robot, isRobot := topic.RobotFromClientID(clientID); isRobot {
		return p.Kind == topic.Status && p.Robot == robot
	}
	return p.Kind == topic.Command
}

// OnSubscribed logs subscriptions as they come in for a given client.
// Useful for debugging and normally a noop.
func (rh *RobotHook) OnSubscribed(cl *mqtt.Client, pk packets.Packet, reasonCodes []byte) {
	s := cl.State.Subscriptions.GetAll()
	subs := []string{}
	for k := range s {
		subs = append(subs, k)
	}
	rh.l.Debug("Subscribed", "client", cl.ID, "subscriptions", subs)
}
