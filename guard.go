// Copyright (c) 2024 Christoph C. Cemper
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package locktimer

import (
	"fmt"
	"hash/fnv"
	"reflect"
	"sync"
	"time"
)

// Guard is one timed entry into a critical section. It is created locked by
// Controller.Acquire and must be released exactly once, normally with defer:
//
//	g := ctl.Acquire("cache", &cache.mu)
//	defer g.Release()
//
// A Guard must not be shared between goroutines.
type Guard struct {
	ctl    *Controller
	target sync.Locker

	label         string
	lockHash      uint32
	goroutineID   uint64
	goroutineName string
	timeStart     time.Time

	preEnter  int64
	postEnter int64
	preExit   int64
	postExit  int64

	acquired bool
	released bool
}

// noopGuard is handed out for nil targets. Its Release returns immediately
// because target is nil, so sharing it is safe.
var noopGuard = &Guard{}

// Acquire locks target and starts timing. It blocks exactly like
// target.Lock(). A nil target (or a typed nil pointer) yields a guard whose
// Release does nothing and which produces no sample.
//
// If target.Lock() panics, the guard is released without unlocking, its
// sample is forwarded with LockTaken=false if it passes the filter, and the
// panic continues.
func (c *Controller) Acquire(label string, target sync.Locker) *Guard {
	if isNilLocker(target) {
		return noopGuard
	}
	id := GoroutineID()
	g := &Guard{
		ctl:           c,
		target:        target,
		label:         label,
		lockHash:      lockHash(target),
		goroutineID:   id,
		goroutineName: goroutineName(id),
		timeStart:     c.now(),
	}
	g.preEnter = c.clock.Ticks()
	g.enter()
	return g
}

// Acquire locks target through the Default controller.
func Acquire(label string, target sync.Locker) *Guard {
	return Default().Acquire(label, target)
}

func (g *Guard) enter() {
	defer func() {
		if g.acquired {
			return
		}
		r := recover()
		g.postEnter = g.ctl.clock.Ticks()
		g.Release()
		if r != nil {
			panic(r)
		}
		// r == nil means runtime.Goexit inside Lock; let it continue
	}()
	g.target.Lock()
	g.acquired = true
	g.postEnter = g.ctl.clock.Ticks()
}

// Release unlocks the target if it was locked and hands the sample to the
// controller when the whole acquisition took longer than one millisecond.
// Calls after the first one do nothing.
func (g *Guard) Release() {
	if g.target == nil || g.released {
		return
	}
	g.released = true
	c := g.ctl

	g.preExit = c.clock.Ticks()
	if g.acquired {
		g.target.Unlock()
	}
	g.postExit = c.clock.Ticks()

	if g.postExit-g.preEnter <= c.ticksPerMs {
		c.metrics.filtered.Inc()
		return
	}
	c.forward(g.sample())
}

// Acquired reports whether the underlying lock was obtained.
func (g *Guard) Acquired() bool { return g.acquired }

// sample copies what the log needs. The target itself is left behind.
func (g *Guard) sample() Sample {
	return Sample{
		TimeStart:     g.timeStart,
		GoroutineID:   g.goroutineID,
		GoroutineName: g.goroutineName,
		Label:         g.label,
		LockHash:      g.lockHash,
		LockTaken:     g.acquired,
		PreEnter:      g.preEnter,
		PostEnter:     g.postEnter,
		PreExit:       g.preExit,
		PostExit:      g.postExit,
	}
}

func isNilLocker(l sync.Locker) bool {
	if l == nil {
		return true
	}
	v := reflect.ValueOf(l)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// lockHash identifies a target by its address. The garbage collector does
// not move heap objects, so the hash is stable for the target's lifetime.
// Non-pointer lockers are identified by their type only.
func lockHash(l sync.Locker) uint32 {
	v := reflect.ValueOf(l)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice, reflect.UnsafePointer:
		return fnv32a(uint64(v.Pointer()))
	}
	h := fnv.New32a()
	fmt.Fprintf(h, "%T", l)
	return h.Sum32()
}

// fnv32a is FNV-1a over the little-endian bytes of v.
func fnv32a(v uint64) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for i := 0; i < 8; i++ {
		h ^= uint32(byte(v >> (8 * i)))
		h *= prime32
	}
	return h
}
