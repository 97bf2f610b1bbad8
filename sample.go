package locktimer

import (
	"fmt"
	"strings"
	"time"
)

// Sample is the persisted outcome of one timed acquisition. It carries the
// identity hash of the locked target but never the target itself, so a
// queued sample does not keep the locked object alive.
type Sample struct {
	TimeStart     time.Time // wall clock at Acquire
	GoroutineID   uint64
	GoroutineName string
	Label         string
	LockHash      uint32
	LockTaken     bool

	// Raw monotonic ticks, see Clock.
	PreEnter  int64
	PostEnter int64
	PreExit   int64
	PostExit  int64
}

// EnterTicks is the time spent waiting for the lock.
func (s Sample) EnterTicks() int64 { return s.PostEnter - s.PreEnter }

// InsideTicks is the time from obtaining the lock until the release completed.
func (s Sample) InsideTicks() int64 { return s.PostExit - s.PostEnter }

// GrandTicks is the whole acquisition, from the first timestamp to the last.
func (s Sample) GrandTicks() int64 { return s.PostExit - s.PreEnter }

func (s Sample) String() string {
	return fmt.Sprintf("%s lock %08x taken=%t by goroutine %d (%s): enter=%d inside=%d grand=%d ticks",
		s.Label, s.LockHash, s.LockTaken, s.GoroutineID, s.GoroutineName,
		s.EnterTicks(), s.InsideTicks(), s.GrandTicks())
}

// Observer receives every sample that passed the duration filter, on the
// releasing goroutine and after the lock was released. Implementations must
// be fast and safe for concurrent use.
type Observer interface {
	OnSample(Sample)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Sample)

// OnSample calls f(s).
func (f ObserverFunc) OnSample(s Sample) { f(s) }

// OverflowPolicy decides what a producer does when the sample queue is full.
type OverflowPolicy int

const (
	// OverflowDrop discards the new sample and counts it.
	OverflowDrop OverflowPolicy = iota
	// OverflowBlock wakes the flush loop and sleeps with growing backoff
	// until there is room or the sink is closed. The wait happens
	// after the real lock was released.
	OverflowBlock
)

// stringer for OverflowPolicy
func (p OverflowPolicy) String() string {
	switch p {
	case OverflowDrop:
		return "drop"
	case OverflowBlock:
		return "block"
	}
	return fmt.Sprintf("OverflowPolicy(%d)", int(p))
}

// ParseOverflowPolicy accepts "drop" and "block", case-insensitively.
// An empty string selects OverflowDrop.
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return OverflowDrop, nil
	case "block":
		return OverflowBlock, nil
	}
	return OverflowDrop, fmt.Errorf("%w: unknown overflow policy %q", ErrInvalidConfig, s)
}
