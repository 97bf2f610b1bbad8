package locktimer

import "sync"

// Mutex is a drop-in replacement for sync.Mutex that times every
// Lock/Unlock pair. The zero value is an unlocked mutex reporting to the
// Default controller under the label "unspecified".
//
// Example:
//
//	var mu locktimer.Mutex
//	mu.LockLabel("refresh")
//	// ... critical section ...
//	mu.Unlock()
type Mutex struct {
	mu    sync.Mutex
	ctl   *Controller // nil means Default()
	label string
	guard *Guard // protected by mu
}

// NewMutex creates a mutex reporting to ctl under label.
func NewMutex(ctl *Controller, label string) *Mutex {
	return &Mutex{ctl: ctl, label: label}
}

var _ sync.Locker = (*Mutex)(nil)

// Lock acquires the mutex under its own label.
func (m *Mutex) Lock() {
	label := m.label
	if label == "" {
		label = "unspecified"
	}
	m.LockLabel(label)
}

// LockLabel acquires the mutex and records the acquisition under label.
func (m *Mutex) LockLabel(label string) {
	ctl := m.ctl
	if ctl == nil {
		ctl = Default()
	}
	g := ctl.Acquire(label, &m.mu)
	m.guard = g
}

// Unlock releases the mutex. Like sync.Mutex it is a run-time error if m is
// not locked.
func (m *Mutex) Unlock() {
	g := m.guard
	if g == nil {
		m.mu.Unlock() // fails the same way sync.Mutex does
		return
	}
	m.guard = nil
	g.Release()
}
