//go:build linux

package task

import (
	"runtime"
	"time"

	"golang.org/x/sys/unix"
)

// maxFIFOPriority is sched_get_priority_max(SCHED_FIFO) on Linux.
const maxFIFOPriority = 99

func lockThread() { runtime.LockOSThread() }

func threadID() int { return unix.Gettid() }

// CurrentThreadID returns the OS id of the calling thread.
func CurrentThreadID() int { return unix.Gettid() }

// setRealtime moves the calling thread into SCHED_FIFO.  Priority 0 is
// not a FIFO priority and leaves the thread in the normal class.
func setRealtime(prio int) error {
	if prio <= 0 {
		return nil
	}
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: uint32(min(prio, maxFIFOPriority)),
	}
	return unix.SchedSetAttr(0, &attr, 0)
}

// threadCPU is the CPU time consumed so far by the calling thread.
func threadCPU() time.Duration {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_THREAD_CPUTIME_ID, &ts); err != nil {
		return 0
	}
	return time.Duration(ts.Nano())
}
