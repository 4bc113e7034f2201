package system

import (
	"github.com/hashicorp/go-hclog"

	"github.com/rtbot-platform/rtbot/pkg/hw"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

// WithLogger configures the parent logging interface.
func WithLogger(l hclog.Logger) Option {
	return func(r *Robot) { r.l = l.Named("robot") }
}

// WithBoard supplies an already open board in place of the one the
// hardware section of the config describes.
func WithBoard(b hw.Board) Option {
	return func(r *Robot) { r.board = b }
}

// WithRegistry supplies the registry the tasks are entered in, usually
// because the caller has already registered its own thread there.
func WithRegistry(reg *task.Registry) Option {
	return func(r *Robot) { r.reg = reg }
}
