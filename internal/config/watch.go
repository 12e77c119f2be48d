package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
)

// WatchForChanges watches path and logs a warning whenever it changes
// on disk. This gateway does not hot-reload: its executors are bound
// to a fixed agent registry at startup, and swapping that registry
// mid-flight would change task-executor identity out from under
// in-flight tasks. fsnotify here only surfaces the operational signal
// that a restart is needed — the teacher's own config hot-reload
// machinery is not carried over (see DESIGN.md).
func WatchForChanges(path string, logger *slog.Logger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Rename) {
					logger.Warn("config file changed on disk; restart the gateway to apply it", "path", path, "op", event.Op.String())
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", "error", err)
			}
		}
	}()

	return watcher, nil
}
