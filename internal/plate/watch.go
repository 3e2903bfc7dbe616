package plate

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 300 * time.Millisecond

// Watch reloads path into the registry whenever it is written or recreated,
// until ctx is done. The parent directory is watched so editors that replace
// the file on save are picked up too.
func (r *Registry) Watch(ctx context.Context, path string, log zerolog.Logger) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create layout watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	target := filepath.Clean(path)
	go func() {
		defer w.Close()

		var pending time.Time
		ticker := time.NewTicker(reloadDebounce / 2)
		defer ticker.Stop()

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
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
					pending = time.Now()
				}
			case <-ticker.C:
				if pending.IsZero() || time.Since(pending) < reloadDebounce {
					continue
				}
				pending = time.Time{}
				if err := r.LoadFile(path); err != nil {
					log.Warn().Err(err).Str("path", path).Msg("layout reload failed, keeping previous layouts")
					continue
				}
				log.Info().Str("path", path).Strs("layouts", r.Names()).Msg("plate layouts reloaded")
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("layout watcher error")
			}
		}
	}()

	return nil
}
