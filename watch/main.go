// Package watch reloads the station when one of its files changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
)

type ReloadFunc func(ctx context.Context) error

type Watcher struct {
	files    map[string]struct{}
	debounce time.Duration
	reload   ReloadFunc
	w        *fsnotify.Watcher
}

// New watches the directories of paths. Editors often replace a file instead of writing it, so
// the directory is watched and events are filtered by name.
func New(paths []string, debounce time.Duration, reload ReloadFunc) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	w := &Watcher{
		files:    map[string]struct{}{},
		debounce: debounce,
		reload:   reload,
		w:        fw,
	}
	dirs := map[string]struct{}{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	for _, dir := range maps.Keys(dirs) {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return w, nil
}

// Run calls reload once changes have settled for the debounce window, until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.w.Close()
	var timer *time.Timer
	var timerC <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.w.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			timer, timerC = nil, nil
			zap.S().Infow("station files changed, reloading")
			if err := w.reload(ctx); err != nil {
				zap.S().Warnw("reload failed", "err", err)
			}
		case err, ok := <-w.w.Errors:
			if !ok {
				return nil
			}
			zap.S().Warnw("watch", "err", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	abs, err := filepath.Abs(ev.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}
