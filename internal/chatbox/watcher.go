package chatbox

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounce absorbs editor write bursts (atomic saves show up as several
// events) before reloading.
const debounce = 500 * time.Millisecond

// watchConfig reloads the persisted config when its backing file changes, so
// edits made by the desktop shell or by hand take effect without a restart.
func (c *Chatbox) watchConfig(ctx context.Context, path string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Error("Failed to create config watcher", "error", err)
		return
	}
	defer watcher.Close()

	// Watch the containing directory, not the file itself: on a first run
	// the config file does not exist yet, and atomic saves replace it, which
	// would silently drop a file-level watch.
	path = filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		slog.Warn("Could not watch chatbox config directory", "path", path, "error", err)
		return
	}
	slog.Debug("Watching chatbox config", "path", path)

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				if err := c.loadConfig(ctx); err != nil {
					slog.Error("Failed to reload chatbox config", "error", err)
					return
				}
				slog.Info("Chatbox config reloaded from disk")
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("Config watcher error", "error", err)
		}
	}
}
