package command

// Line sensor control words.
const (
	StartLineSensing     int32 = 0x40000000
	StopLineSensing      int32 = 0x20000000
	EnableLineFollowing  int32 = 0x04000000
	DisableLineFollowing int32 = 0x02000000
)

// LineControl is a decoded line sensor control command.
type LineControl int

// Known line sensor controls.
const (
	LineUnknown LineControl = iota
	LineStart
	LineStop
	LineFollowOn
	LineFollowOff
)

// DecodeLine maps a control queue word to a LineControl.
func DecodeLine(raw int32) LineControl {
	switch raw {
	case StartLineSensing:
		return LineStart
	case StopLineSensing:
		return LineStop
	case EnableLineFollowing:
		return LineFollowOn
	case DisableLineFollowing:
		return LineFollowOff
	}
	return LineUnknown
}

func (lc LineControl) String() string {
	switch lc {
	case LineStart:
		return "start"
	case LineStop:
		return "stop"
	case LineFollowOn:
		return "follow-on"
	case LineFollowOff:
		return "follow-off"
	}
	return "unknown"
}
