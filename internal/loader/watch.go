package loader

import (
	"context"
	"path/filepath"
	"time"

	"github.com/conneroisu/girouette/internal/watcher"
)

// Notify handles a change notification for one file. Hooked paths are
// reloaded; new paths the scanner matches are loaded for the first time;
// anything else is ignored. Removed files only get logged since the route
// cache never drops entries.
func (l *Autoloader) Notify(ctx context.Context, path string, eventType watcher.EventType) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	l.metrics.WatchEvent(eventType.String())

	if eventType.Gone() {
		if l.Seen(path) {
			l.logger.Info(ctx, "Controller file removed, its routes stay registered", "path", path)
		}
		return nil
	}

	if !l.Hooked(path) && !(l.hotReload() && l.scanner.Match(path)) {
		l.logger.Debug(ctx, "Ignoring change", "path", path, "event", eventType.String())
		return nil
	}

	_, err = l.LoadModule(ctx, path)
	return err
}

func (l *Autoloader) hotReload() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hot
}

// Watch starts watching the scanner root and reloads controller files as
// they change. The returned watcher must be stopped by the caller.
func (l *Autoloader) Watch(ctx context.Context, debounce time.Duration) (*watcher.FileWatcher, error) {
	l.mu.Lock()
	l.hot = true
	l.mu.Unlock()

	fw, err := watcher.NewFileWatcher(debounce, l.logger)
	if err != nil {
		return nil, err
	}

	fw.AddFilter(watcher.NoHiddenFilter)
	fw.AddFilter(watcher.NoGitFilter)
	fw.AddFilter(watcher.NoVendorFilter)
	fw.AddFilter(l.scanner.Match)
	fw.AddHandler(func(ctx context.Context, events []watcher.ChangeEvent) error {
		for _, ev := range events {
			// Per-file failures are already logged by LoadModule.
			_ = l.Notify(ctx, ev.Path, ev.Type)
		}
		return nil
	})

	if err := fw.AddRecursive(l.scanner.Root); err != nil {
		_ = fw.Stop()
		return nil, err
	}
	if err := fw.Start(ctx); err != nil {
		_ = fw.Stop()
		return nil, err
	}

	l.logger.Info(ctx, "Watching controllers", "root", l.scanner.Root, "debounce", debounce.String())
	return fw, nil
}
