// Package watcher reports batched file changes under watched directories.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeHandler receives one debounced batch, at most one event per path.
type ChangeHandler func(events []Event)

// Config contains watcher configuration
type Config struct {
	Enabled        bool     `json:"enabled" mapstructure:"enabled"`
	DebounceMs     int      `json:"debounceMs" mapstructure:"debounceMs"`
	Include        []string `json:"include" mapstructure:"include"`
	IgnorePatterns []string `json:"ignorePatterns" mapstructure:"ignorePatterns"`
}

// DefaultConfig returns the default watcher configuration
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		DebounceMs: 250,
		Include:    []string{"*.ts", "*.tsx", "*.md"},
		IgnorePatterns: []string{
			"*.tmp",
			"*.swp",
			"*~",
			".#*",
			"node_modules/**",
			".git/**",
		},
	}
}

// Watcher watches directories with fsnotify and emits debounced batches.
type Watcher struct {
	config  Config
	logger  *slog.Logger
	handler ChangeHandler
	fsw     *fsnotify.Watcher
	batch   *BatchDebouncer

	mu   sync.RWMutex
	dirs map[string]bool
}

// New creates a watcher. Call Add for each directory, then Run.
func New(config Config, logger *slog.Logger, handler ChangeHandler) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if config.DebounceMs <= 0 {
		config.DebounceMs = DefaultConfig().DebounceMs
	}
	w := &Watcher{
		config:  config,
		logger:  logger,
		handler: handler,
		fsw:     fsw,
		dirs:    make(map[string]bool),
	}
	w.batch = NewBatchDebouncer(time.Duration(config.DebounceMs)*time.Millisecond, w.emit)
	return w, nil
}

// Add watches dir and its subdirectories. Ignored directories are skipped.
func (w *Watcher) Add(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.IsIgnored(path+"/") {
			return filepath.SkipDir
		}
		w.mu.Lock()
		defer w.mu.Unlock()
		if w.dirs[path] {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.dirs[path] = true
		return nil
	})
}

// Run processes events until ctx is done. Pending events are flushed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()
	if !w.config.Enabled {
		w.logger.Info("File watcher is disabled")
		<-ctx.Done()
		return nil
	}
	defer w.batch.Flush()

	w.logger.Info("Starting file watcher", "debounceMs", w.config.DebounceMs, "dirs", len(w.Watched()))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("File watcher stopped")
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", "error", err.Error())
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	typ, ok := eventType(ev.Op)
	if !ok {
		return
	}
	if typ == EventCreate {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.Add(ev.Name); err != nil {
				w.logger.Warn("Failed to watch new directory", "path", ev.Name, "error", err.Error())
			}
			return
		}
	}
	if w.IsIgnored(ev.Name) || !w.IsIncluded(ev.Name) {
		return
	}
	w.batch.Add(Event{Type: typ, Path: ev.Name, Timestamp: time.Now()})
}

func (w *Watcher) emit(events []Event) {
	w.logger.Debug("File changes detected", "eventCount", len(events))
	if w.handler != nil {
		w.handler(events)
	}
}

func eventType(op fsnotify.Op) (EventType, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return EventCreate, true
	case op.Has(fsnotify.Write):
		return EventModify, true
	case op.Has(fsnotify.Remove):
		return EventDelete, true
	case op.Has(fsnotify.Rename):
		return EventRename, true
	}
	return 0, false
}

// IsIncluded reports whether the file name matches an include pattern. An
// empty include list matches everything.
func (w *Watcher) IsIncluded(path string) bool {
	if len(w.config.Include) == 0 {
		return true
	}
	base := filepath.Base(path)
	for _, pattern := range w.config.Include {
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// IsIgnored checks if a path matches ignore patterns
func (w *Watcher) IsIgnored(path string) bool {
	slashed := filepath.ToSlash(path)
	for _, pattern := range w.config.IgnorePatterns {
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}

		// "dir/**" matches any path with dir as a component
		if prefix, ok := strings.CutSuffix(pattern, "/**"); ok {
			if strings.HasPrefix(slashed, prefix+"/") || strings.Contains(slashed, "/"+prefix+"/") {
				return true
			}
		}
	}
	return false
}

// Watched returns the watched directories, sorted
func (w *Watcher) Watched() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	dirs := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		dirs = append(dirs, d)
	}
	sort.Strings(dirs)
	return dirs
}

// Stats returns watcher statistics
func (w *Watcher) Stats() map[string]interface{} {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return map[string]interface{}{
		"enabled":        w.config.Enabled,
		"watchedDirs":    len(w.dirs),
		"debounceMs":     w.config.DebounceMs,
		"pendingEvents":  w.batch.EventCount(),
		"ignorePatterns": len(w.config.IgnorePatterns),
	}
}
