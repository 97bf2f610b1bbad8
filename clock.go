package locktimer

import (
	"time"
	_ "unsafe" // go:linkname
)

// Clock is a monotonic, high-resolution tick counter. Ticks must never go
// backwards and must not follow wall-clock adjustments.
type Clock interface {
	// Ticks returns the current counter value.
	Ticks() int64
	// Frequency returns the number of ticks per second.
	Frequency() int64
}

// DefaultClock reads the operating system's monotonic clock in nanoseconds.
var DefaultClock Clock = monotonicClock{}

type monotonicClock struct{}

func (monotonicClock) Ticks() int64     { return monotonicNanos() }
func (monotonicClock) Frequency() int64 { return int64(time.Second) }

// nanotime is the runtime's monotonic clock, the same source time.Now uses
// for its monotonic reading.
//
//go:linkname nanotime runtime.nanotime
func nanotime() int64

// ticksPerMillisecond is the filter threshold and the divisor used to
// normalize ticks in the log file.
func ticksPerMillisecond(c Clock) int64 {
	if tpm := c.Frequency() / 1000; tpm > 0 {
		return tpm
	}
	return 1
}

// ticksToDuration converts a tick delta without overflowing for long
// deltas on high-frequency clocks.
func ticksToDuration(ticks, freq int64) time.Duration {
	if freq == int64(time.Second) {
		return time.Duration(ticks)
	}
	sec := ticks / freq
	rem := ticks % freq
	return time.Duration(sec)*time.Second + time.Duration(rem)*time.Second/time.Duration(freq)
}
