//go:build linux

package locktimer

import "golang.org/x/sys/unix"

// monotonicNanos reads CLOCK_MONOTONIC directly. The runtime clock is only
// used if the syscall is refused (seccomp profiles have been seen doing it).
func monotonicNanos() int64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts); err != nil {
		return nanotime()
	}
	return ts.Nano()
}
