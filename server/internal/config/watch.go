package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadSettle is how long the file must stay quiet before it is reloaded.
// A single save often produces several events (truncate, write, chmod).
const reloadSettle = 100 * time.Millisecond

// Watch monitors path and calls onChange with the newly loaded Config after
// each save. It runs until ctx is cancelled.
//
// A reload that fails (e.g. invalid YAML) is logged and onChange is not
// called, so the previous config stays active.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(path); err != nil {
		return fmt.Errorf("config: watch %q: %w", path, err)
	}
	slog.Info("config: watching for changes", "path", path)

	settle := time.NewTimer(reloadSettle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			// Atomic saves replace the file, which shows up as Create.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				settle.Reset(reloadSettle)
			}

		case <-settle.C:
			if cfg, err := Load(path); err != nil {
				slog.Error("config: reload failed, keeping previous config", "path", path, "err", err)
			} else {
				slog.Info("config: reloaded", "path", path)
				onChange(cfg)
			}
			// The inode may have changed; watching a path twice is a no-op.
			_ = watcher.Add(path)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("config: watcher error", "err", err)
		}
	}
}
