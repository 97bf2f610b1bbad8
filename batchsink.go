package locktimer

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const maxFileNameAttempts = 100

type batchSinkConfig struct {
	dir        string
	capacity   int
	overflow   OverflowPolicy
	ticksPerMs int64
	interval   func() time.Duration // re-read every cycle
	now        func() time.Time
	log        zerolog.Logger
	metrics    *metrics
}

// batchSink queues samples and appends them to its own log file from a
// single flush loop goroutine.
type batchSink struct {
	path       string
	queue      *sampleQueue
	overflow   OverflowPolicy
	ticksPerMs int64
	interval   func() time.Duration
	log        zerolog.Logger
	metrics    *metrics
	warn       *rate.Limiter

	closed    atomic.Bool
	closeMu   sync.RWMutex  // shared by Write around check and push
	stop      chan struct{} // exit without draining
	drain     chan struct{} // drain once, then exit
	full      chan struct{} // a blocked producer waits for room
	done      chan struct{}
	stopOnce  sync.Once
	drainOnce sync.Once

	row []byte // flush loop scratch buffer
}

// newBatchSink creates the log file, writes the header and starts the
// flush loop.
func newBatchSink(cfg batchSinkConfig) (*batchSink, error) {
	queue, err := newSampleQueue(cfg.capacity)
	if err != nil {
		return nil, err
	}
	path, err := createLogFile(cfg.dir, cfg.now())
	if err != nil {
		return nil, err
	}
	s := &batchSink{
		path:       path,
		queue:      queue,
		overflow:   cfg.overflow,
		ticksPerMs: cfg.ticksPerMs,
		interval:   cfg.interval,
		log:        cfg.log.With().Str("path", path).Logger(),
		metrics:    cfg.metrics,
		warn:       rate.NewLimiter(rate.Every(10*time.Second), 1),
		stop:       make(chan struct{}),
		drain:      make(chan struct{}),
		full:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	globalRegistry.register(s)
	go s.run()
	return s, nil
}

// createLogFile picks a fresh name under dir and writes the header to it.
func createLogFile(dir string, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create log directory: %w", err)
	}
	for attempt := 0; attempt < maxFileNameAttempts; attempt++ {
		path := filepath.Join(dir, logFileName(now, attempt))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create log file: %w", err)
		}
		_, err = f.WriteString(Header)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return "", fmt.Errorf("write log header: %w", err)
		}
		return path, nil
	}
	return "", fmt.Errorf("create log file: no free name in %s", dir)
}

// Write enqueues s. The sample is already detached from the locked target.
func (s *batchSink) Write(smp Sample) {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed.Load() {
		return
	}
	if s.queue.push(smp.GoroutineID, &smp) {
		s.metrics.queueDepth.Inc()
		return
	}
	if s.overflow == OverflowBlock {
		s.wakeLoop()
		if s.queue.pushWait(smp.GoroutineID, &smp, s.closed.Load) {
			s.metrics.queueDepth.Inc()
		}
		return
	}
	s.metrics.dropped.Inc()
	if s.warn.Allow() {
		s.log.Warn().Str("label", smp.Label).Int("capacity", s.queue.capacity).
			Msg("sample queue full, dropping samples")
	}
}

// wakeLoop asks the flush loop to drain before its interval is up.
func (s *batchSink) wakeLoop() {
	select {
	case s.full <- struct{}{}:
	default:
	}
}

// Close stops accepting samples, lets the loop write what is queued and
// waits for it to exit.
func (s *batchSink) Close() error {
	s.closed.Store(true)
	// wait for writers that passed the closed check; their samples belong
	// to the final drain
	s.closeMu.Lock()
	s.closeMu.Unlock()

	s.drainOnce.Do(func() { close(s.drain) })
	<-s.done
	return nil
}

// shutdown makes the loop exit at its next wake without draining.
func (s *batchSink) shutdown() {
	s.closed.Store(true)
	s.stopOnce.Do(func() { close(s.stop) })
}

// stopped reports whether the sink no longer accepts samples.
func (s *batchSink) stopped() bool {
	return s.closed.Load()
}

// run is the flush loop.
func (s *batchSink) run() {
	defer close(s.done)
	defer globalRegistry.unregister(s)

	timer := time.NewTimer(s.interval())
	defer timer.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-s.drain:
			s.flush()
			return
		case <-s.full:
		case <-timer.C:
		}

		if s.queue.len() > 0 {
			s.flush()
		}
		timer.Reset(s.interval())
	}
}

// flush appends a snapshot of the queue to the log file. The file is only
// open for the duration of one batch, and is recreated with a fresh header if
// it was removed or truncated meanwhile. If it cannot be opened the samples
// stay queued; a write failure loses the batch.
func (s *batchSink) flush() {
	start := time.Now()

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		s.flushFailed("open", err, 0)
		return
	}

	w := bufio.NewWriter(f)
	if fi, err := f.Stat(); err == nil && fi.Size() == 0 {
		s.log.Warn().Msg("log file was removed or truncated, writing a new header")
		_, _ = w.WriteString(Header)
	}
	n := s.queue.drain(func(smp *Sample) {
		s.row = appendRow(s.row[:0], smp, s.ticksPerMs)
		// bufio keeps the first error, checked by Flush
		_, _ = w.Write(s.row)
	})
	s.metrics.queueDepth.Sub(float64(n))

	err = w.Flush()
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		s.flushFailed("write", err, n)
		return
	}

	s.metrics.rowsWritten.Add(float64(n))
	s.metrics.flushDuration.Observe(time.Since(start).Seconds())
	s.log.Debug().Int("rows", n).Dur("took", time.Since(start)).Msg("flushed samples")
}

func (s *batchSink) flushFailed(op string, err error, lost int) {
	s.metrics.flushErrors.Inc()
	ev := s.log.Debug()
	if PrintOncef("%s %s", op, s.path) {
		ev = s.log.Error()
	}
	ev.Err(err).Str("op", op).Int("lost", lost).Msg("flushing lock samples failed")
}
