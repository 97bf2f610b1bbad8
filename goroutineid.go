package locktimer

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"
)

var (
	goroutinePrefix = []byte("goroutine ")

	// Pool of reusable buffers for the stack header read by GoroutineID.
	// Uses pointer to slice to prevent copying and reduce allocations
	bufferPool = sync.Pool{
		New: func() interface{} {
			b := make([]byte, 64)
			return &b
		},
	}

	// Human readable names for goroutines, keyed by goroutine id.
	// Written by SetGoroutineName, read on every timed acquisition.
	nameStore struct {
		sync.RWMutex
		names map[uint64]string
	}
)

func init() {
	nameStore.names = make(map[uint64]string, 64)
}

// GoroutineID returns the id of the calling goroutine as printed in the
// first line of its stack trace ("goroutine 42 [running]:").
// Returns 0 if the header cannot be parsed.
func GoroutineID() uint64 {
	bp := bufferPool.Get().(*[]byte)
	defer bufferPool.Put(bp)

	buf := *bp
	n := runtime.Stack(buf, false)
	return parseGoroutineID(buf[:n])
}

func parseGoroutineID(header []byte) uint64 {
	b := bytes.TrimPrefix(header, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

// SetGoroutineName labels the calling goroutine. The label shows up in the
// ThreadName column of every sample the goroutine produces until
// ClearGoroutineName is called.
func SetGoroutineName(name string) {
	id := GoroutineID()
	nameStore.Lock()
	nameStore.names[id] = name
	nameStore.Unlock()
}

// ClearGoroutineName removes the label of the calling goroutine.
func ClearGoroutineName() {
	id := GoroutineID()
	nameStore.Lock()
	delete(nameStore.names, id)
	nameStore.Unlock()
}

// goroutineName returns the label set for id, falling back to the id itself.
func goroutineName(id uint64) string {
	nameStore.RLock()
	name, ok := nameStore.names[id]
	nameStore.RUnlock()
	if ok {
		return name
	}
	return strconv.FormatUint(id, 10)
}

// CleanupGoroutineNames drops labels of goroutines that no longer exist.
// Goroutine ids are never reused by the runtime, so a label left behind by an
// exited goroutine is only a leak, never a mislabel.
func CleanupGoroutineNames() {
	// Large buffer for complete stack dump of all goroutines
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	if n == len(buf) {
		// truncated dump, live goroutines may be missing from it
		return
	}

	alive := make(map[uint64]struct{}, 64)
	for _, line := range bytes.Split(buf[:n], []byte("\n")) {
		if bytes.HasPrefix(line, goroutinePrefix) {
			alive[parseGoroutineID(line)] = struct{}{}
		}
	}

	nameStore.Lock()
	defer nameStore.Unlock()
	for id := range nameStore.names {
		if _, ok := alive[id]; !ok {
			delete(nameStore.names, id)
		}
	}
}

// GetStoredGoroutineCount returns number of stored names for monitoring
func GetStoredGoroutineCount() int {
	nameStore.RLock()
	defer nameStore.RUnlock()
	return len(nameStore.names)
}

// ForceCleanup removes all names for testing/reset purposes
func ForceCleanup() {
	nameStore.Lock()
	defer nameStore.Unlock()
	nameStore.names = make(map[uint64]string, 64)
}
