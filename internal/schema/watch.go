package schema

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchFile watches the schema file and logs a warning when it changes on
// disk. The loaded schema stays immutable for the process lifetime; the
// warning tells operators a restart is needed for the change to apply.
// Runs until ctx is cancelled.
func WatchFile(ctx context.Context, path string, logger *zap.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
					logger.Warn("schema file changed on disk; restart required to apply",
						zap.String("path", path),
						zap.String("op", ev.Op.String()),
					)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if err != nil {
					logger.Debug("schema watcher error", zap.Error(err))
				}
			}
		}
	}()
	return nil
}
