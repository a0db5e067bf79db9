// Package watch triggers reloads when model artifacts or treatment logs change on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce groups bursts of writes (editors, copies) into one reload.
const DefaultDebounce = 500 * time.Millisecond

// Target is a watched path and the reload it triggers.
type Target struct {
	Name   string
	Path   string
	Reload func(ctx context.Context) error
}

// Watcher fires each target's Reload after its path settles.
type Watcher struct {
	fs       *fsnotify.Watcher
	targets  []Target
	debounce time.Duration
	logger   *zap.Logger

	mu     sync.Mutex
	timers map[int]*time.Timer
	wg     sync.WaitGroup
}

// New creates a watcher over targets. Files are watched through their parent
// directory so atomic renames are seen.
func New(targets []Target, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}

	w := &Watcher{
		fs:       fsw,
		targets:  targets,
		debounce: debounce,
		logger:   logger.Named("watch"),
		timers:   map[int]*time.Timer{},
	}
	added := map[string]bool{}
	for _, t := range targets {
		dir := watchDir(t.Path)
		if added[dir] {
			continue
		}
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watching %s: %w", dir, err)
		}
		added[dir] = true
	}
	return w, nil
}

func watchDir(path string) string {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Clean(path)
	}
	return filepath.Dir(filepath.Clean(path))
}

// matches reports whether an event on name concerns target t.
func matches(t Target, name string) bool {
	path := filepath.Clean(t.Path)
	name = filepath.Clean(name)
	if name == path {
		return true
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return filepath.Dir(name) == path
	}
	return false
}

// Run processes events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()
	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.wg.Wait()
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			for i, t := range w.targets {
				if matches(t, ev.Name) {
					w.schedule(ctx, i)
				}
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule(ctx context.Context, i int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[i]; ok && t.Stop() {
		t.Reset(w.debounce)
		return
	}

	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.timers[i] == timer {
			delete(w.timers, i)
		}
		w.mu.Unlock()

		target := w.targets[i]
		if err := target.Reload(ctx); err != nil {
			w.logger.Error("reload failed", zap.String("target", target.Name), zap.Error(err))
			return
		}
		w.logger.Info("reloaded", zap.String("target", target.Name), zap.String("path", target.Path))
	})
	w.timers[i] = timer
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i, t := range w.timers {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.timers, i)
	}
}
