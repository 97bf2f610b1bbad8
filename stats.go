package locktimer

import (
	"sync/atomic"
	"time"
)

// labelStats tracks forwarded samples for one label
type labelStats struct {
	totalAcquired atomic.Int64
	totalNotTaken atomic.Int64
	totalWaitTime atomic.Int64 // in ticks
	maxWaitTime   atomic.Int64 // in ticks
	totalTimeHeld atomic.Int64 // in ticks
	maxTimeHeld   atomic.Int64 // in ticks
}

// LabelStats summarizes the samples of one label that passed the
// one millisecond filter.
type LabelStats struct {
	Acquired  int64 // samples recorded
	NotTaken  int64 // samples whose Lock panicked
	TotalWait time.Duration
	MaxWait   time.Duration
	TotalHeld time.Duration
	MaxHeld   time.Duration
}

// AverageWait returns TotalWait / Acquired.
func (s LabelStats) AverageWait() time.Duration {
	if s.Acquired == 0 {
		return 0
	}
	return s.TotalWait / time.Duration(s.Acquired)
}

// AverageHeld returns TotalHeld / Acquired.
func (s LabelStats) AverageHeld() time.Duration {
	if s.Acquired == 0 {
		return 0
	}
	return s.TotalHeld / time.Duration(s.Acquired)
}

func (c *Controller) getOrCreateStats(label string) *labelStats {
	c.statsMu.RLock()
	stats, exists := c.labelStats[label]
	c.statsMu.RUnlock()
	if exists {
		return stats
	}

	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	if stats, exists = c.labelStats[label]; !exists {
		stats = &labelStats{}
		c.labelStats[label] = stats
	}
	return stats
}

func (c *Controller) recordStats(s Sample) {
	stats := c.getOrCreateStats(s.Label)
	stats.totalAcquired.Add(1)
	if !s.LockTaken {
		stats.totalNotTaken.Add(1)
	}
	wait, held := s.EnterTicks(), s.InsideTicks()
	stats.totalWaitTime.Add(wait)
	stats.totalTimeHeld.Add(held)
	storeMax(&stats.maxWaitTime, wait)
	storeMax(&stats.maxTimeHeld, held)
}

// storeMax raises a to v unless it already holds a larger value
func storeMax(a *atomic.Int64, v int64) {
	for {
		current := a.Load()
		if v <= current {
			return
		}
		if a.CompareAndSwap(current, v) {
			return
		}
	}
}

// Stats returns statistics for all labels seen so far.
func (c *Controller) Stats() map[string]LabelStats {
	c.statsMu.RLock()
	defer c.statsMu.RUnlock()

	freq := c.clock.Frequency()
	out := make(map[string]LabelStats, len(c.labelStats))
	for label, s := range c.labelStats {
		out[label] = LabelStats{
			Acquired:  s.totalAcquired.Load(),
			NotTaken:  s.totalNotTaken.Load(),
			TotalWait: ticksToDuration(s.totalWaitTime.Load(), freq),
			MaxWait:   ticksToDuration(s.maxWaitTime.Load(), freq),
			TotalHeld: ticksToDuration(s.totalTimeHeld.Load(), freq),
			MaxHeld:   ticksToDuration(s.maxTimeHeld.Load(), freq),
		}
	}
	return out
}

// ResetStats forgets all label statistics.
func (c *Controller) ResetStats() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.labelStats = make(map[string]*labelStats)
}
