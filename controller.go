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
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// Controller owns the configuration and the active sink. Guards obtained
// from it forward their samples to whatever sink is active when they are
// released.
//
// All methods are safe for concurrent use. Configuration changes propagate
// to producers eventually, not atomically with the call.
type Controller struct {
	clock      Clock
	ticksPerMs int64
	now        func() time.Time
	log        zerolog.Logger
	metrics    *metrics

	sink          atomic.Pointer[sinkRef]
	flushInterval atomic.Int64
	observers     atomic.Pointer[[]Observer]

	// Serializes configuration writers and sink swaps.
	mu            sync.Mutex
	logDir        string
	queueCapacity int
	overflow      OverflowPolicy
	closed        bool

	statsMu    sync.RWMutex
	labelStats map[string]*labelStats
}

// Option customizes a Controller.
type Option func(*Controller)

// WithClock replaces DefaultClock.
func WithClock(c Clock) Option {
	return func(ctl *Controller) { ctl.clock = c }
}

// WithLogger sets the logger used for sink lifecycle and I/O failures.
func WithLogger(l zerolog.Logger) Option {
	return func(ctl *Controller) { ctl.log = l }
}

// WithRegisterer registers the controller's metrics on reg.
// Only one controller may use a given registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(ctl *Controller) { ctl.metrics = newMetrics(reg) }
}

// withNow replaces the wall clock used for TimeStart and file names.
func withNow(now func() time.Time) Option {
	return func(ctl *Controller) { ctl.now = now }
}

// New creates a controller. If cfg.Enabled is set the log file is created
// before New returns.
func New(cfg Config, opts ...Option) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		clock:      DefaultClock,
		now:        time.Now,
		log:        zerolog.New(os.Stderr).With().Timestamp().Str("component", "locktimer").Logger(),
		labelStats: make(map[string]*labelStats),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = newMetrics(nil)
	}
	c.ticksPerMs = ticksPerMillisecond(c.clock)
	c.sink.Store(&sinkRef{disabledSink{}})
	c.flushInterval.Store(int64(cfg.FlushInterval))
	c.logDir = cfg.LogDir
	c.queueCapacity = cfg.QueueCapacity
	c.overflow = cfg.Overflow

	if err := c.SetEnabled(cfg.Enabled); err != nil {
		return nil, err
	}
	return c, nil
}

var (
	defaultOnce       sync.Once
	defaultController *Controller
)

// Default returns the process-wide controller, created on first use from
// ConfigFromEnv with metrics on the default prometheus registry. Configure
// it before the first Acquire to avoid losing early samples.
func Default() *Controller {
	defaultOnce.Do(func() {
		ctl, err := New(ConfigFromEnv(), WithRegisterer(prometheus.DefaultRegisterer))
		if err != nil {
			// the failed attempt may have registered the metrics already
			ctl, _ = New(DefaultConfig())
			ctl.log.Error().Err(err).Msg("lock timing disabled, environment configuration rejected")
		}
		defaultController = ctl
	})
	return defaultController
}

// SetEnabled switches between the batched file writer and the no-op sink.
//
// Enabling while enabled does nothing. Enabling creates a new log file and
// flush loop. Disabling first stops new samples from reaching the old sink,
// then waits until its flush loop wrote what was queued and exited.
func (c *Controller) SetEnabled(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if on && c.closed {
		return ErrClosed
	}
	current, running := c.sink.Load().Sink.(*batchSink)
	if running && current.stopped() {
		// halted by Shutdown
		running = false
	}

	if !on {
		if current == nil {
			return nil
		}
		c.sink.Store(&sinkRef{disabledSink{}})
		c.log.Info().Str("path", current.path).Msg("lock timing disabled")
		return current.Close()
	}
	if running {
		return nil
	}

	s, err := newBatchSink(batchSinkConfig{
		dir:        c.logDir,
		capacity:   c.queueCapacity,
		overflow:   c.overflow,
		ticksPerMs: c.ticksPerMs,
		interval:   c.FlushInterval,
		now:        c.now,
		log:        c.log,
		metrics:    c.metrics,
	})
	if err != nil {
		return fmt.Errorf("enable lock timing: %w", err)
	}
	c.sink.Store(&sinkRef{s})
	if current != nil {
		current.Close()
	}
	c.log.Info().Str("path", s.path).Dur("interval", c.FlushInterval()).Msg("lock timing enabled")
	return nil
}

// Enabled reports whether samples currently reach a log file.
func (c *Controller) Enabled() bool {
	s, ok := c.sink.Load().Sink.(*batchSink)
	return ok && !s.stopped()
}

// LogPath returns the file of the active sink, or "" while disabled.
func (c *Controller) LogPath() string {
	if s, ok := c.sink.Load().Sink.(*batchSink); ok {
		return s.path
	}
	return ""
}

// SetFlushInterval takes effect at the flush loop's next sleep.
func (c *Controller) SetFlushInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: flush interval must be positive, got %v", ErrInvalidConfig, d)
	}
	c.flushInterval.Store(int64(d))
	return nil
}

// FlushInterval returns the configured flush interval.
func (c *Controller) FlushInterval() time.Duration {
	return time.Duration(c.flushInterval.Load())
}

// SetLogDir sets the directory for log files created by later enables.
func (c *Controller) SetLogDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("%w: empty log directory", ErrInvalidConfig)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logDir = dir
	return nil
}

// LogDir returns the configured log directory.
func (c *Controller) LogDir() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.logDir
}

// Config returns the current configuration.
func (c *Controller) Config() Config {
	enabled := c.Enabled()
	c.mu.Lock()
	defer c.mu.Unlock()
	return Config{
		Enabled:       enabled,
		FlushInterval: c.FlushInterval(),
		LogDir:        c.logDir,
		QueueCapacity: c.queueCapacity,
		Overflow:      c.overflow,
	}
}

// Apply validates cfg and applies all of it. Directory, capacity and
// overflow changes affect the next sink; an already enabled sink keeps its
// file.
func (c *Controller) Apply(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	c.logDir = cfg.LogDir
	c.queueCapacity = cfg.QueueCapacity
	c.overflow = cfg.Overflow
	c.mu.Unlock()
	c.flushInterval.Store(int64(cfg.FlushInterval))
	return c.SetEnabled(cfg.Enabled)
}

// AddObserver registers o for every sample that passes the filter.
func (c *Controller) AddObserver(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var next []Observer
	if cur := c.observers.Load(); cur != nil {
		next = append(next, *cur...)
	}
	next = append(next, o)
	c.observers.Store(&next)
}

// Close disables logging with a final drain. The controller keeps timing
// acquisitions afterwards but can no longer be enabled.
func (c *Controller) Close() error {
	err := c.SetEnabled(false)
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return err
}

// forward publishes a sample that passed the duration filter.
func (c *Controller) forward(s Sample) {
	c.metrics.forwarded.Inc()
	c.recordStats(s)
	if obs := c.observers.Load(); obs != nil {
		for _, o := range *obs {
			o.OnSample(s)
		}
	}
	c.sink.Load().Write(s)
}
