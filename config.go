package locktimer

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultFlushInterval is how long the flush loop sleeps between batches.
	DefaultFlushInterval = 10 * time.Second
	// DefaultQueueCapacity bounds the number of samples waiting to be written.
	DefaultQueueCapacity = 1 << 16
)

// Environment variables read by ConfigFromEnv.
const (
	EnvEnabled       = "LOCKTIMER_ENABLED"
	EnvFlushInterval = "LOCKTIMER_FLUSH_INTERVAL"
	EnvLogDir        = "LOCKTIMER_LOG_DIR"
	EnvQueueCapacity = "LOCKTIMER_QUEUE_CAPACITY"
)

// Config is the configuration of a Controller.
type Config struct {
	// Enabled selects the batched file writer instead of the no-op sink.
	Enabled bool
	// FlushInterval is re-read by the flush loop before every sleep.
	FlushInterval time.Duration
	// LogDir receives the log files. The file name is derived when logging
	// gets enabled, so changing LogDir affects the next enable only.
	LogDir string
	// QueueCapacity bounds the samples waiting to be written, shared by all
	// goroutines. It is rounded up to a power of two. QueueCapacity and
	// Overflow apply to sinks created after the change.
	QueueCapacity int
	Overflow      OverflowPolicy
}

// DefaultConfig returns the configuration used when nothing is set:
// disabled, 10s interval, the platform temp directory.
func DefaultConfig() Config {
	return Config{
		FlushInterval: DefaultFlushInterval,
		LogDir:        os.TempDir(),
		QueueCapacity: DefaultQueueCapacity,
		Overflow:      OverflowDrop,
	}
}

// Validate reports the first value that cannot be applied.
func (c Config) Validate() error {
	if c.FlushInterval <= 0 {
		return fmt.Errorf("%w: flush interval must be positive, got %v", ErrInvalidConfig, c.FlushInterval)
	}
	if c.LogDir == "" {
		return fmt.Errorf("%w: empty log directory", ErrInvalidConfig)
	}
	if c.QueueCapacity <= 0 {
		return fmt.Errorf("%w: queue capacity must be positive, got %d", ErrInvalidConfig, c.QueueCapacity)
	}
	if c.Overflow != OverflowDrop && c.Overflow != OverflowBlock {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, c.Overflow)
	}
	return nil
}

// ConfigFromEnv returns DefaultConfig overridden by the LOCKTIMER_*
// environment variables. Unparsable values are ignored.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	if v, err := strconv.ParseBool(os.Getenv(EnvEnabled)); err == nil {
		cfg.Enabled = v
	}
	cfg.FlushInterval = GetDurationEnvOrDefault(EnvFlushInterval, cfg.FlushInterval)
	if v := os.Getenv(EnvLogDir); v != "" {
		cfg.LogDir = v
	}
	if v, err := strconv.Atoi(os.Getenv(EnvQueueCapacity)); err == nil && v > 0 {
		cfg.QueueCapacity = v
	}
	return cfg
}

// fileConfig is the YAML layout of a configuration file:
//
//	enabled: true
//	flush_interval: 500ms
//	log_dir: /var/log/myapp
//	queue_capacity: 65536
//	overflow: drop
type fileConfig struct {
	Enabled       *bool  `yaml:"enabled"`
	FlushInterval string `yaml:"flush_interval"`
	LogDir        string `yaml:"log_dir"`
	QueueCapacity int    `yaml:"queue_capacity"`
	Overflow      string `yaml:"overflow"`
}

// ParseConfig decodes YAML on top of DefaultConfig. Absent keys keep their
// defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if fc.Enabled != nil {
		cfg.Enabled = *fc.Enabled
	}
	if fc.FlushInterval != "" {
		d, err := ParseDuration(fc.FlushInterval)
		if err != nil {
			return cfg, fmt.Errorf("%w: flush_interval: %v", ErrInvalidConfig, err)
		}
		cfg.FlushInterval = d
	}
	if fc.LogDir != "" {
		cfg.LogDir = fc.LogDir
	}
	if fc.QueueCapacity != 0 {
		cfg.QueueCapacity = fc.QueueCapacity
	}
	policy, err := ParseOverflowPolicy(fc.Overflow)
	if err != nil {
		return cfg, err
	}
	cfg.Overflow = policy
	return cfg, cfg.Validate()
}

// LoadConfigFile reads and parses a YAML configuration file.
func LoadConfigFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}
