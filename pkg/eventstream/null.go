package eventstream

import (
	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// NullStream doesn't publish events anywhere and is mostly for
// testing or non-server CLI cmdlets.
type NullStream struct{}

// NewNullStreamer hands back a null stream instance that discards
// everything.
func NewNullStreamer() *NullStream {
	return new(NullStream)
}

// PublishError discards all errors.
func (ns *NullStream) PublishError(_ error) {}

// PublishLogLine discards all log lines.
func (ns *NullStream) PublishLogLine(_ string) {}

// PublishDiagnostics discards all diagnostics.
func (ns *NullStream) PublishDiagnostics(_ []task.Diagnostics, _ []int) {}

// PublishStatus discards all reports.
func (ns *NullStream) PublishStatus(_ robot.Report) error { return nil }
