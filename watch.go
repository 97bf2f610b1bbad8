package locktimer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// WatchConfigFile applies the YAML file at path and re-applies it whenever
// it changes, until ctx is done. The directory is watched rather than the
// file so that editors replacing the file atomically are picked up.
//
// A file that fails to load or validate is logged and ignored; the previous
// configuration stays in effect.
func (c *Controller) WatchConfigFile(ctx context.Context, path string) error {
	cfg, err := LoadConfigFile(path)
	if err != nil {
		return err
	}
	if err := c.Apply(cfg); err != nil {
		return fmt.Errorf("apply %s: %w", path, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("watch config: %w", err)
	}

	target := filepath.Clean(path)
	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				c.reloadConfig(path)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				c.log.Warn().Err(err).Str("config", path).Msg("config watcher error")
			}
		}
	}()
	return nil
}

func (c *Controller) reloadConfig(path string) {
	data, err := os.ReadFile(path)
	if err == nil && len(data) == 0 {
		// truncated by a writer that is not done yet
		return
	}
	var cfg Config
	if err == nil {
		cfg, err = ParseConfig(data)
	}
	if err == nil {
		err = c.Apply(cfg)
	}
	if err != nil {
		c.log.Warn().Err(err).Str("config", path).Msg("config reload rejected")
		return
	}
	c.log.Info().Str("config", path).Bool("enabled", cfg.Enabled).
		Dur("interval", cfg.FlushInterval).Msg("config reloaded")
}
