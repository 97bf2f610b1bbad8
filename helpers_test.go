package locktimer

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// scriptClock returns its ticks in order and then keeps returning the last one.
type scriptClock struct {
	mu    sync.Mutex
	ticks []int64
	calls int
}

func (c *scriptClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.calls
	c.calls++
	if i >= len(c.ticks) {
		return c.ticks[len(c.ticks)-1]
	}
	return c.ticks[i]
}

func (c *scriptClock) Frequency() int64 { return int64(time.Second) }

func (c *scriptClock) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// stepClock advances by step on every read.
type stepClock struct {
	now  atomic.Int64
	step int64
}

func (c *stepClock) Ticks() int64     { return c.now.Add(c.step) }
func (c *stepClock) Frequency() int64 { return int64(time.Second) }

// captureSink records everything written to it.
type captureSink struct {
	mu      sync.Mutex
	samples []Sample
}

func (s *captureSink) Write(smp Sample) {
	s.mu.Lock()
	s.samples = append(s.samples, smp)
	s.mu.Unlock()
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) Samples() []Sample {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Sample(nil), s.samples...)
}

// countingLocker counts calls and optionally panics in Lock.
type countingLocker struct {
	mu       sync.Mutex
	locks    atomic.Int32
	unlocks  atomic.Int32
	panicMsg string
}

func (l *countingLocker) Lock() {
	l.locks.Add(1)
	if l.panicMsg != "" {
		panic(l.panicMsg)
	}
	l.mu.Lock()
}

func (l *countingLocker) Unlock() {
	l.unlocks.Add(1)
	l.mu.Unlock()
}

func testConfig(t *testing.T) Config {
	cfg := DefaultConfig()
	cfg.LogDir = t.TempDir()
	cfg.FlushInterval = time.Hour
	return cfg
}

func newTestController(t *testing.T, cfg Config, opts ...Option) *Controller {
	t.Helper()
	opts = append([]Option{WithLogger(zerolog.Nop())}, opts...)
	ctl, err := New(cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { ctl.Close() })
	return ctl
}

// withCapture replaces the controller's sink with a captureSink.
func withCapture(ctl *Controller) *captureSink {
	cs := &captureSink{}
	ctl.sink.Store(&sinkRef{cs})
	return cs
}

// testSample builds a sample spanning the given milliseconds on a
// nanosecond clock.
func testSample(label string, preEnter, postEnter, preExit, postExit int64) Sample {
	ms := int64(time.Millisecond)
	return Sample{
		TimeStart:     time.Date(2024, 11, 5, 14, 30, 15, 123456000, time.Local),
		GoroutineID:   GoroutineID(),
		GoroutineName: "worker",
		Label:         label,
		LockHash:      0xbeef,
		LockTaken:     true,
		PreEnter:      preEnter * ms,
		PostEnter:     postEnter * ms,
		PreExit:       preExit * ms,
		PostExit:      postExit * ms,
	}
}

// readLog returns the header and data rows of a log file.
func readLog(t *testing.T, path string) ([]string, [][]string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 13
	records, err := r.ReadAll()
	require.NoError(t, err)
	require.NotEmpty(t, records, "log file has no header")
	return records[0], records[1:]
}

func countRows(t *testing.T, path string) int {
	_, rows := readLog(t, path)
	return len(rows)
}

func logFiles(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "LockTimer-Verbose-*.log"))
	require.NoError(t, err)
	return matches
}
