//go:build !linux

package buzzer

import "runtime"

func lockToneThread() func() {
	runtime.LockOSThread()
	return runtime.UnlockOSThread
}
