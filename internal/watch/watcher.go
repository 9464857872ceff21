// Package watch implements the polling directory watcher described in the
// specification's Watcher component.
//
// A network share is the source directory, so OS-level filesystem
// notification APIs are unreliable there — the watcher only ever polls,
// the way the teacher's FileWatcher falls back to a ticker when fsnotify
// is unavailable. This package makes that fallback path the only path.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventKind is the kind of change observed for a path.
type EventKind string

const (
	Created  EventKind = "created"
	Modified EventKind = "modified"
	Existing EventKind = "existing"
)

// Event is a single observed filesystem change.
type Event struct {
	Path       string
	Kind       EventKind
	ObservedAt time.Time
}

// FilePattern is the glob PokerGFX exports are matched against, by
// basename only.
const FilePattern = "PGFX_live_data_export GameID=*.json"

// DefaultPollInterval is how often the watcher re-scans the directory.
const DefaultPollInterval = 2 * time.Second

type fileState struct {
	modTime time.Time
	size    int64
}

// Watcher polls a single, non-recursive directory for files matching
// FilePattern and emits Created/Modified/Existing events.
type Watcher struct {
	dir          string
	pollInterval time.Duration
	logger       *zap.Logger
	onEvent      func(Event)

	mu    sync.Mutex
	known map[string]fileState

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Watcher over dir. onEvent is invoked on the watcher's own
// polling goroutine for every create/modify/existing event — callers that
// need to hand off to another scheduler (e.g. a Debouncer) must do so
// without blocking this goroutine.
func New(dir string, pollInterval time.Duration, logger *zap.Logger, onEvent func(Event)) *Watcher {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Watcher{
		dir:          dir,
		pollInterval: pollInterval,
		logger:       logger,
		onEvent:      onEvent,
		known:        make(map[string]fileState),
	}
}

// Start performs the initial scan (emitting Existing for every matching
// file already present) and then begins polling on a background goroutine.
// Start returns once the initial scan has completed.
func (w *Watcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})

	w.scan(true)

	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.scan(false)
			}
		}
	}()
}

// Stop halts polling. It blocks until the polling goroutine has exited or
// 5 seconds elapse, whichever comes first, and is safe to call more than
// once.
func (w *Watcher) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	select {
	case <-w.done:
	case <-time.After(5 * time.Second):
		if w.logger != nil {
			w.logger.Warn("watcher did not stop within 5s")
		}
	}
}

// scan lists the directory once and diffs against previously known file
// state. initial marks whether this is the startup scan, whose matches are
// reported as Existing rather than Created.
func (w *Watcher) scan(initial bool) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if w.logger != nil {
			w.logger.Warn("poll cycle: readdir failed", zap.String("dir", w.dir), zap.Error(err))
		}
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	seen := make(map[string]struct{}, len(entries))

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if ok, _ := filepath.Match(FilePattern, name); !ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			if w.logger != nil {
				w.logger.Warn("poll cycle: stat failed", zap.String("file", name), zap.Error(err))
			}
			continue
		}

		path := filepath.Join(w.dir, name)
		seen[path] = struct{}{}

		prev, known := w.known[path]
		cur := fileState{modTime: info.ModTime(), size: info.Size()}
		w.known[path] = cur

		switch {
		case !known:
			kind := Created
			if initial {
				kind = Existing
			}
			w.emit(Event{Path: path, Kind: kind, ObservedAt: time.Now()})

		case cur.modTime != prev.modTime || cur.size != prev.size:
			w.emit(Event{Path: path, Kind: Modified, ObservedAt: time.Now()})
		}
	}

	for path := range w.known {
		if _, ok := seen[path]; !ok {
			delete(w.known, path)
		}
	}
}

func (w *Watcher) emit(e Event) {
	if w.onEvent != nil {
		w.onEvent(e)
	}
}
