//go:build linux

package buzzer

import (
	"runtime"

	"golang.org/x/sys/unix"
)

// toneNice is the niceness requested for the thread running a software
// tone. Needs CAP_SYS_NICE; without it the thread keeps its priority.
const toneNice = -10

// lockToneThread pins the calling goroutine to its OS thread and tries to
// raise that thread's priority. The returned func undoes both.
func lockToneThread() func() {
	runtime.LockOSThread()
	tid := unix.Gettid()

	// The raw syscall returns 20-nice.
	raw, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err != nil {
		return runtime.UnlockOSThread
	}
	prevNice := 20 - raw
	if prevNice <= toneNice || unix.Setpriority(unix.PRIO_PROCESS, tid, toneNice) != nil {
		return runtime.UnlockOSThread
	}
	return func() {
		_ = unix.Setpriority(unix.PRIO_PROCESS, tid, prevNice)
		runtime.UnlockOSThread()
	}
}
