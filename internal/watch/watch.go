// Package watch drives deck sync passes from filesystem notifications.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period after the last event before a pass runs.
const DefaultDebounce = 200 * time.Millisecond

// Syncer is the subset of the deck service the watcher drives.
type Syncer interface {
	SyncPath(ctx context.Context, path string) error
	IsDependency(path string) bool
	Dependencies() []string
}

// Watch subscribes to the directories holding every dependency of svc and
// runs a sync pass for each changed dependency once events have been quiet
// for debounce. The watch list is refreshed after each pass so files that
// join a hierarchy are picked up. It returns when ctx is cancelled.
func Watch(ctx context.Context, svc Syncer, debounce time.Duration, logger *slog.Logger) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	refresh(w, svc, logger)
	logger.Info("watcher: started", slog.Int("dirs", len(w.WatchList())))

	pending := make(map[string]struct{})
	var timer *time.Timer
	var fire <-chan time.Time

	schedule := func() {
		if timer == nil {
			timer = time.NewTimer(debounce)
			fire = timer.C
		} else {
			timer.Reset(debounce)
		}
	}

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			logger.Info("watcher: stopped")
			return nil

		case <-fire:
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			slices.Sort(paths)
			for _, p := range paths {
				logger.Debug("watcher: sync", slog.String("path", p))
				if err := svc.SyncPath(ctx, p); err != nil {
					logger.Warn("watcher: sync failed",
						slog.String("path", p),
						slog.String("error", err.Error()))
				}
			}
			refresh(w, svc, logger)

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod {
				continue
			}
			path := filepath.Clean(ev.Name)
			if !svc.IsDependency(path) {
				continue
			}
			pending[path] = struct{}{}
			schedule()

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

// refresh makes the watch list match the directories of svc's current
// dependencies.
func refresh(w *fsnotify.Watcher, svc Syncer, logger *slog.Logger) {
	want := make(map[string]struct{})
	for _, p := range svc.Dependencies() {
		want[filepath.Dir(p)] = struct{}{}
	}
	for _, dir := range w.WatchList() {
		if _, ok := want[dir]; ok {
			delete(want, dir)
			continue
		}
		if err := w.Remove(dir); err != nil {
			logger.Debug("watcher: remove dir failed", slog.String("path", dir), slog.String("error", err.Error()))
		}
	}
	for dir := range want {
		if err := w.Add(dir); err != nil {
			logger.Warn("watcher: add dir failed",
				slog.String("path", dir),
				slog.String("error", err.Error()))
			continue
		}
		logger.Debug("watcher: watching dir", slog.String("path", dir))
	}
}
