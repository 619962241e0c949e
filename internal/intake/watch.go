package intake

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Change is a debounced file event.
type Change struct {
	Path    string
	Removed bool
}

// Watcher reports changes to eligible files under a directory tree.
type Watcher struct {
	root     string
	pattern  string
	allowed  []string
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher watches root recursively. pattern is matched against paths
// relative to root; empty matches everything.
func NewWatcher(root, pattern string, allowed []string, debounce time.Duration) *Watcher {
	if pattern == "" {
		pattern = "**"
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		root:     root,
		pattern:  pattern,
		allowed:  allowed,
		debounce: debounce,
		logger:   slog.Default().With("component", "intake-watcher"),
	}
}

// Run blocks until ctx is done, calling fn once per path after its events
// have been quiet for the debounce interval. fn runs on the Run goroutine.
func (w *Watcher) Run(ctx context.Context, fn func(Change)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addTree(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching for changes", "root", w.root, "pattern", w.pattern)

	pending := make(map[string]Change)
	timers := make(map[string]*time.Timer)
	fire := make(chan string, 64)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) && isDir(ev.Name) {
				if err := w.addTree(fw, ev.Name); err != nil {
					w.logger.Warn("watching new directory failed", "path", ev.Name, "error", err)
				}
				continue
			}
			change, ok := w.classify(ev)
			if !ok {
				continue
			}
			pending[change.Path] = change
			if t, exists := timers[change.Path]; exists {
				t.Reset(w.debounce)
				continue
			}
			path := change.Path
			timers[path] = time.AfterFunc(w.debounce, func() {
				select {
				case fire <- path:
				case <-ctx.Done():
				}
			})

		case path := <-fire:
			change, ok := pending[path]
			delete(pending, path)
			delete(timers, path)
			if ok {
				fn(change)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

// classify maps a raw event to a Change. Chmod-only events, directories,
// hidden files and paths outside the pattern are dropped. Sidecar edits are
// reported as changes to the document they describe.
func (w *Watcher) classify(ev fsnotify.Event) (Change, bool) {
	path := ev.Name
	if doc, ok := SidecarOwner(path); ok {
		if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
			path = doc
		} else {
			return Change{}, false
		}
	}
	if !Eligible(path, w.allowed) || !w.matches(path) {
		return Change{}, false
	}

	switch {
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		return Change{Path: path, Removed: true}, true
	case ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write):
		if isDir(path) {
			return Change{}, false
		}
		return Change{Path: path}, true
	}
	return Change{}, false
}

func (w *Watcher) matches(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	ok, err := doublestar.PathMatch(w.pattern, rel)
	return err == nil && ok
}

func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
