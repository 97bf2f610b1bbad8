// registry.go keeps track of all running flush loops
package locktimer

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	// Global registry of all running batch sinks
	globalRegistry = &registry{
		sinks: make(map[*batchSink]struct{}),
	}
)

type registry struct {
	sync.RWMutex
	sinks map[*batchSink]struct{}
}

// register adds a sink whose flush loop is about to start
func (r *registry) register(s *batchSink) {
	r.Lock()
	defer r.Unlock()
	r.sinks[s] = struct{}{}
}

// unregister removes a sink whose flush loop has exited
func (r *registry) unregister(s *batchSink) {
	r.Lock()
	defer r.Unlock()
	delete(r.sinks, s)
}

// getAllSinks returns the running sinks sorted by log path
func (r *registry) getAllSinks() []*batchSink {
	r.RLock()
	defer r.RUnlock()

	sinks := make([]*batchSink, 0, len(r.sinks))
	for s := range r.sinks {
		sinks = append(sinks, s)
	}

	// Sort by path for consistent output
	sort.Slice(sinks, func(i, j int) bool {
		return sinks[i].path < sinks[j].path
	})

	return sinks
}

// ActiveFlushLoops returns the log paths of all running flush loops.
func ActiveFlushLoops() []string {
	sinks := globalRegistry.getAllSinks()
	paths := make([]string, len(sinks))
	for i, s := range sinks {
		paths[i] = s.path
	}
	return paths
}

// Shutdown signals every running flush loop to exit without draining its
// queue. Samples still queued are lost. It exists for deterministic test
// teardown; controllers should be stopped with Close or SetEnabled(false),
// which drain first.
func Shutdown() {
	for _, s := range globalRegistry.getAllSinks() {
		s.shutdown()
	}
}

// DumpFlushLoops describes every running flush loop, one per line.
func DumpFlushLoops() string {
	var output strings.Builder
	sinks := globalRegistry.getAllSinks()

	output.WriteString(fmt.Sprintf("=== locktimer flush loops: %d ===\n", len(sinks)))
	for _, s := range sinks {
		output.WriteString(fmt.Sprintf("• %s: queued %d, capacity %d, overflow %s\n",
			s.path, s.queue.len(), s.queue.capacity, s.overflow))
	}
	return output.String()
}
