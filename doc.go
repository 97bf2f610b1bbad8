/*
Package locktimer provides a timed replacement for taking an exclusive lock.
Every acquisition is measured (wait, hold and total time), acquisitions of one
millisecond or less are discarded, and the rest are appended as CSV rows to a
log file by a background flush loop.

Key Features:
  - Blocking and panic behavior identical to calling Lock/Unlock directly
  - Monotonic tick timestamps, wall clock captured once per acquisition
  - Sub-millisecond noise filtered before anything is queued
  - Bounded multi-producer queue, file I/O only on the flush loop
  - Per-label statistics, observers and prometheus metrics

Basic Usage:

	ctl, err := locktimer.New(locktimer.Config{
		Enabled:       true,
		FlushInterval: 10 * time.Second,
		LogDir:        "/var/log/myapp",
		QueueCapacity: locktimer.DefaultQueueCapacity,
	})
	if err != nil {
		return err
	}
	defer ctl.Close()

	g := ctl.Acquire("cache refresh", &cache.mu)
	defer g.Release()
	// ... critical section ...

A nil target makes Acquire and Release no-ops, which suits call sites that
lock only optionally. Mutex wraps a sync.Mutex for code that wants a plain
sync.Locker.

Log Format:
Each enable creates LockTimer-Verbose-<timestamp>.log under the log directory,
starting with the header

	TimeStart,ThreadId,ThreadName,LockName,LockHash,LockTaken,EnterTotal,InsideTotal,GrandTotal,PreEnter,PostEnter,PreExit,PostExit

followed by one row per sample. ThreadId is the goroutine id, ThreadName the
name set with SetGoroutineName (or the id), LockHash a hex identity of the
locked object, and all remaining columns are whole milliseconds.
*/
package locktimer
