package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes and passes the result to onChange.
// The parent directory is watched so editor rename-over-write saves are seen.
// Invalid files are logged and skipped. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(Config)) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}
	log.Info().Str("path", abs).Msg("config.watch.started")

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			cfg, err := Load(abs)
			if err != nil {
				log.Warn().Err(err).Str("path", abs).Msg("config.watch.reload failed")
				continue
			}
			log.Info().Str("path", abs).Int("tokens", len(cfg.Tokens)).Msg("config.watch.reloaded")
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("config.watch.error")
		}
	}
}
