//go:build !linux

package task

import (
	"errors"
	"runtime"
	"time"
)

var errNoRealtime = errors.New("realtime scheduling is only supported on linux")

func lockThread() { runtime.LockOSThread() }

func threadID() int { return 0 }

// CurrentThreadID returns zero on platforms without thread ids.
func CurrentThreadID() int { return 0 }

func setRealtime(prio int) error {
	if prio <= 0 {
		return nil
	}
	return errNoRealtime
}

// threadCPU has no per-thread clock to read here, so CPU figures stay
// at zero and only wall time is meaningful.
func threadCPU() time.Duration { return 0 }
