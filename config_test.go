package locktimer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, 10*time.Second, cfg.FlushInterval)
	assert.Equal(t, os.TempDir(), cfg.LogDir)
	assert.Equal(t, DefaultQueueCapacity, cfg.QueueCapacity)
	assert.Equal(t, OverflowDrop, cfg.Overflow)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "zero interval", mutate: func(c *Config) { c.FlushInterval = 0 }},
		{name: "negative interval", mutate: func(c *Config) { c.FlushInterval = -time.Second }},
		{name: "empty dir", mutate: func(c *Config) { c.LogDir = "" }},
		{name: "zero capacity", mutate: func(c *Config) { c.QueueCapacity = 0 }},
		{name: "unknown overflow", mutate: func(c *Config) { c.Overflow = OverflowPolicy(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

			_, err := New(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
enabled: true
flush_interval: 1d
log_dir: /var/log/locks
queue_capacity: 128
overflow: Block
`))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Enabled:       true,
		FlushInterval: 24 * time.Hour,
		LogDir:        "/var/log/locks",
		QueueCapacity: 128,
		Overflow:      OverflowBlock,
	}, cfg)
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("flush_interval: 250ms\n"))
	require.NoError(t, err)

	want := DefaultConfig()
	want.FlushInterval = 250 * time.Millisecond
	assert.Equal(t, want, cfg)
}

func TestParseConfigErrors(t *testing.T) {
	for name, doc := range map[string]string{
		"not yaml":       "enabled: [",
		"bad duration":   "flush_interval: soon",
		"bad overflow":   "overflow: oldest",
		"bad enabled":    "enabled: maybe",
		"negative queue": "queue_capacity: -1",
		"zero interval":  "flush_interval: 0s",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "locktimer.yaml")
	require.NoError(t, os.WriteFile(path, []byte("enabled: false\nflush_interval: 2s\n"), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.FlushInterval)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvEnabled, "true")
	t.Setenv(EnvFlushInterval, "1.5d")
	t.Setenv(EnvLogDir, dir)
	t.Setenv(EnvQueueCapacity, "512")

	cfg := ConfigFromEnv()
	assert.True(t, cfg.Enabled)
	assert.Equal(t, 36*time.Hour, cfg.FlushInterval)
	assert.Equal(t, dir, cfg.LogDir)
	assert.Equal(t, 512, cfg.QueueCapacity)
}

func TestConfigFromEnvIgnoresGarbage(t *testing.T) {
	t.Setenv(EnvEnabled, "perhaps")
	t.Setenv(EnvFlushInterval, "later")
	t.Setenv(EnvLogDir, "")
	t.Setenv(EnvQueueCapacity, "-3")

	assert.Equal(t, DefaultConfig(), ConfigFromEnv())
}

func TestControllerApply(t *testing.T) {
	ctl := newTestController(t, testConfig(t))

	next := testConfig(t)
	next.Enabled = true
	next.FlushInterval = 3 * time.Second
	next.QueueCapacity = 256
	next.Overflow = OverflowBlock
	require.NoError(t, ctl.Apply(next))

	got := ctl.Config()
	assert.Equal(t, next, got)
	assert.True(t, ctl.Enabled())
	assert.Equal(t, next.LogDir, filepath.Dir(ctl.LogPath()))

	bad := next
	bad.FlushInterval = 0
	assert.ErrorIs(t, ctl.Apply(bad), ErrInvalidConfig)
	assert.Equal(t, next, ctl.Config(), "rejected config must not be applied partially")
}

func TestControllerSetters(t *testing.T) {
	ctl := newTestController(t, testConfig(t))

	assert.ErrorIs(t, ctl.SetFlushInterval(0), ErrInvalidConfig)
	require.NoError(t, ctl.SetFlushInterval(time.Minute))
	assert.Equal(t, time.Minute, ctl.FlushInterval())

	assert.ErrorIs(t, ctl.SetLogDir(""), ErrInvalidConfig)
	dir := t.TempDir()
	require.NoError(t, ctl.SetLogDir(dir))
	assert.Equal(t, dir, ctl.LogDir())

	require.NoError(t, ctl.SetEnabled(true))
	assert.Equal(t, dir, filepath.Dir(ctl.LogPath()))
}

func TestClosedControllerCannotEnable(t *testing.T) {
	ctl := newTestController(t, testConfig(t))
	require.NoError(t, ctl.Close())
	assert.ErrorIs(t, ctl.SetEnabled(true), ErrClosed)
	assert.NoError(t, ctl.SetEnabled(false))
}

func TestParseOverflowPolicy(t *testing.T) {
	for in, want := range map[string]OverflowPolicy{"": OverflowDrop, "drop": OverflowDrop, " BLOCK ": OverflowBlock} {
		got, err := ParseOverflowPolicy(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseOverflowPolicy("drop-oldest")
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, "OverflowPolicy(9)", OverflowPolicy(9).String())
}
