package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/mushtruk/framegate"
)

// DefaultDebounce is how long Watch waits after the last file event before
// reloading, so an editor's burst of writes produces one reload.
const DefaultDebounce = 200 * time.Millisecond

// Watch reloads path whenever it changes and passes each valid result to
// onChange. Invalid files are logged and skipped; the caller keeps its
// previous config. Watch blocks until ctx is done.
//
// The parent directory is watched rather than the file itself, since
// editors and config management tools often replace files by rename.
func Watch(ctx context.Context, path string, logger framegate.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = framegate.NoOpLogger{}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(DefaultDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			logger.DebugContext(ctx, "config file changed", "path", abs, "op", event.Op.String())
			timer.Reset(DefaultDebounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "config watcher error", "error", err)

		case <-timer.C:
			cfg, err := Load(path)
			if err != nil {
				logger.WarnContext(ctx, "config reload rejected, keeping previous", "path", abs, "error", err)
				continue
			}
			logger.InfoContext(ctx, "config reloaded", "path", abs)
			onChange(cfg)
		}
	}
}
