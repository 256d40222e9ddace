// Package watcher implements `slnstrip watch`: it follows a single solution
// file with fsnotify and strips it whenever the generator rewrites it.
package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/slnstrip/slnstrip/pkg/logger"
)

// FileWatcher reports settled changes to one target file. The directory
// holding the target may not exist yet; the nearest existing ancestor is
// watched and directories are added as they are created.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	target   string
	settling time.Duration
	logger   logger.Logger

	changes chan string

	mu      sync.Mutex
	timer   *time.Timer
	watched map[string]bool
}

// NewFileWatcher creates a watcher for target
func NewFileWatcher(target string, settling time.Duration, log logger.Logger) (*FileWatcher, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", target, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	if log == nil {
		log = logger.Discard()
	}

	return &FileWatcher{
		watcher:  w,
		target:   abs,
		settling: settling,
		logger:   log.WithComponent("watcher"),
		changes:  make(chan string, 1),
		watched:  make(map[string]bool),
	}, nil
}

// Target returns the absolute path being watched
func (f *FileWatcher) Target() string {
	return f.target
}

// Changes delivers the target path after each settled burst of events.
// Bursts that arrive while a change is still pending are coalesced.
func (f *FileWatcher) Changes() <-chan string {
	return f.changes
}

// Close releases the fsnotify watcher
func (f *FileWatcher) Close() error {
	f.mu.Lock()
	if f.timer != nil {
		f.timer.Stop()
	}
	f.mu.Unlock()
	return f.watcher.Close()
}

// Run processes fsnotify events until ctx is done
func (f *FileWatcher) Run(ctx context.Context) error {
	if err := f.watchNearest(); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-f.watcher.Events:
			if !ok {
				return nil
			}
			f.handleEvent(event)

		case err, ok := <-f.watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Error(fmt.Sprintf("Watcher error: %v", err))
		}
	}
}

// watchNearest watches the target directory, or its nearest existing
// ancestor, together with that directory's parent so that its removal is seen.
func (f *FileWatcher) watchNearest() error {
	for {
		dir, err := f.nearestDir()
		if err != nil {
			return err
		}
		if parent := filepath.Dir(dir); parent != dir {
			if err := f.watch(parent); err != nil {
				f.logger.Debug(err.Error())
			}
		}
		if err := f.watch(dir); err != nil {
			return err
		}

		// A directory leading to the target may have appeared before the watch was in place
		next, err := f.nearestDir()
		if err != nil || next == dir {
			break
		}
	}

	if _, err := os.Stat(f.target); err == nil {
		f.schedule()
	}
	return nil
}

func (f *FileWatcher) nearestDir() (string, error) {
	dir := filepath.Dir(f.target)
	for {
		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no existing directory above %s", f.target)
		}
		dir = parent
	}
}

func (f *FileWatcher) watch(dir string) error {
	f.mu.Lock()
	if f.watched[dir] {
		f.mu.Unlock()
		return nil
	}
	f.watched[dir] = true
	f.mu.Unlock()

	if err := f.watcher.Add(dir); err != nil {
		f.mu.Lock()
		delete(f.watched, dir)
		f.mu.Unlock()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	f.logger.Debug(fmt.Sprintf("Watching directory: %s", dir))
	return nil
}

// forget drops dir and every watched directory below it. fsnotify has
// already dropped the watches of removed directories, so Remove errors are
// expected.
func (f *FileWatcher) forget(dir string) {
	f.mu.Lock()
	var gone []string
	for path := range f.watched {
		if path == dir || isAncestor(dir, path) {
			gone = append(gone, path)
			delete(f.watched, path)
		}
	}
	f.mu.Unlock()

	for _, path := range gone {
		f.watcher.Remove(path)
		f.logger.Debug(fmt.Sprintf("Stopped watching directory: %s", path))
	}
}

func (f *FileWatcher) isWatched(dir string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.watched[dir]
}

func (f *FileWatcher) handleEvent(event fsnotify.Event) {
	name := filepath.Clean(event.Name)

	if name != f.target && event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		if f.isWatched(name) || isAncestor(name, f.target) {
			f.forget(name)
			if err := f.watchNearest(); err != nil {
				f.logger.Warn(err.Error())
			}
		}
		return
	}

	if event.Op&fsnotify.Create == fsnotify.Create && name != f.target {
		if info, err := os.Stat(name); err == nil && info.IsDir() && isAncestor(name, f.target) {
			if err := f.watchNearest(); err != nil {
				f.logger.Warn(err.Error())
			}
		}
		return
	}

	if name != f.target {
		return
	}
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	f.schedule()
}

// schedule restarts the settling timer; only the last event of a burst fires
func (f *FileWatcher) schedule() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.timer != nil {
		f.timer.Stop()
	}
	f.timer = time.AfterFunc(f.settling, func() {
		select {
		case f.changes <- f.target:
		default:
		}
	})
}

func isAncestor(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
