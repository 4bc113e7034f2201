// Package topic names the MQTT topics that robots and ground tools
// share.  Every robot owns the subtree robot/<id>/.
package topic

import (
	"errors"
	"path"
	"strconv"
	"strings"
)

const (
	// Status carries a robot's JSON status reports.
	Status = "status"

	// Command carries raw command words, one subtopic per
	// destination queue.
	Command = "cmd"
)

// ErrNotRobotTopic is returned for topics outside the robot tree.
var ErrNotRobotTopic = errors.New("not a robot topic")

// StatusFor returns the status topic of a robot.
func StatusFor(id string) string { return path.Join("robot", id, Status) }

// CommandFor returns the command topic for a destination queue on a
// robot.
func CommandFor(id string, dest int) string {
	return path.Join("robot", id, Command, strconv.Itoa(dest))
}

// CommandFilter subscribes to every destination of a robot.
func CommandFilter(id string) string { return path.Join("robot", id, Command, "+") }

// AllStatus subscribes to the status of every robot.
const AllStatus = "robot/+/" + Status

// Parsed is a robot topic split into its parts.  Dest is only set for
// command topics.
type Parsed struct {
	Robot string
	Kind  string
	Dest  int
}

// Parse splits a robot topic.
func Parse(t string) (Parsed, error) {
	parts := strings.Split(t, "/")
	if len(parts) < 3 || parts[0] != "robot" || parts[1] == "" {
		return Parsed{}, ErrNotRobotTopic
	}
	p := Parsed{Robot: parts[1], Kind: parts[2]}
	switch {
	case p.Kind == Status && len(parts) == 3:
		return p, nil
	case p.Kind == Command && len(parts) == 4:
		d, err := strconv.Atoi(parts[3])
		if err != nil {
			return Parsed{}, ErrNotRobotTopic
		}
		p.Dest = d
		return p, nil
	}
	return Parsed{}, ErrNotRobotTopic
}

// ParseCommandWord reads a command payload.  Words may be written in
// decimal or with a 0x prefix, and anything that fits in 32 bits is
// accepted so that words with the top bit set can be sent unsigned.
func ParseCommandWord(b []byte) (int32, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(string(b)), 0, 64)
	if err != nil {
		return 0, err
	}
	if v < -1<<31 || v > 1<<32-1 {
		return 0, strconv.ErrRange
	}
	return int32(uint32(v)), nil
}

// RobotClientPrefix starts the MQTT client id of every robot.
const RobotClientPrefix = "rtbot-"

// ClientID returns the MQTT client id a robot connects with.
func ClientID(robot string) string { return RobotClientPrefix + robot }

// RobotFromClientID returns the robot a client id belongs to, if it
// belongs to one.
func RobotFromClientID(id string) (string, bool) {
	r, ok := strings.CutPrefix(id, RobotClientPrefix)
	return r, ok && r != ""
}
