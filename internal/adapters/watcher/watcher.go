// Package watcher reloads shapefile layers when their files change on disk.
package watcher

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jobrunner/meridian/internal/ports/output"
)

// Event is a settled change of one shapefile. Path always names the .shp
// file, also when only a companion file changed.
type Event struct {
	Path      string
	Operation Operation
}

// Operation represents the type of file operation.
type Operation int

// File operation types.
const (
	OpCreate Operation = iota
	OpModify
	OpDelete
)

// String returns the string representation of the operation.
func (o Operation) String() string {
	switch o {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Handler is called when a relevant file event occurs.
type Handler func(ctx context.Context, event Event) error

// Config holds watcher configuration.
type Config struct {
	Paths []string
	// Quiet is how long a file set must stay untouched before its event
	// is delivered. Copying a shapefile touches several files in a row.
	Quiet time.Duration
}

// fileSet collects the raw events of one shapefile until it settles.
type fileSet struct {
	timer   *time.Timer
	created bool
	removed bool
}

// Watcher watches directory trees for shapefile changes. Events of one file
// set are coalesced and handlers run one at a time in delivery order.
type Watcher struct {
	fs      *fsnotify.Watcher
	handler Handler
	logger  *slog.Logger
	roots   []string
	quiet   time.Duration

	mu      sync.Mutex
	sets    map[string]*fileSet
	settled chan Event
	done    chan struct{}
	stop    sync.Once
}

// New creates a new file watcher.
func New(cfg Config, handler Handler, logger *slog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if cfg.Quiet <= 0 {
		cfg.Quiet = 500 * time.Millisecond
	}

	return &Watcher{
		fs:      fsw,
		handler: handler,
		logger:  logger,
		roots:   cfg.Paths,
		quiet:   cfg.Quiet,
		sets:    make(map[string]*fileSet),
		settled: make(chan Event, 16),
		done:    make(chan struct{}),
	}, nil
}

// Start watches the configured roots and their subdirectories until ctx is
// done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	for _, root := range w.roots {
		abs, err := filepath.Abs(root)
		if err != nil {
			w.logger.Warn("invalid watch path", "path", root, "error", err)
			continue
		}
		w.watchTree(abs)
	}

	go w.receive(ctx)
	go w.deliver(ctx)
	return nil
}

// Stop stops the watcher. Pending file sets are dropped.
func (w *Watcher) Stop() error {
	w.stop.Do(func() {
		close(w.done)
		w.mu.Lock()
		for key, set := range w.sets {
			set.timer.Stop()
			delete(w.sets, key)
		}
		w.mu.Unlock()
	})
	return w.fs.Close()
}

// watchTree adds dir and every directory below it. fsnotify does not watch
// recursively.
func (w *Watcher) watchTree(dir string) {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			w.logger.Warn("cannot walk watch path", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fs.Add(path); err != nil {
			w.logger.Warn("failed to watch directory", "path", path, "error", err)
			return nil
		}
		w.logger.Debug("watching directory", "path", path)
		return nil
	})
	if err != nil {
		w.logger.Warn("failed to watch tree", "path", dir, "error", err)
		return
	}
	w.logger.Info("watching shapefiles", "path", dir)
}

// receive reads raw fsnotify events.
func (w *Watcher) receive(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					w.watchTree(ev.Name)
					continue
				}
			}
			w.touch(ev)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

// touch records ev on its file set and restarts the quiet period.
func (w *Watcher) touch(ev fsnotify.Event) {
	shp, ok := output.ShapefileKey(ev.Name)
	if !ok {
		return
	}
	w.logger.Debug("file event", "path", ev.Name, "op", ev.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()

	set, exists := w.sets[shp]
	if !exists {
		set = &fileSet{}
		set.timer = time.AfterFunc(w.quiet, func() { w.settle(shp) })
		w.sets[shp] = set
	} else {
		set.timer.Reset(w.quiet)
	}

	switch classify(ev.Op) {
	case OpCreate:
		set.created = true
	case OpDelete:
		set.removed = true
	}
}

// settle turns a quiet file set into an event based on what is on disk now.
func (w *Watcher) settle(shp string) {
	w.mu.Lock()
	set, ok := w.sets[shp]
	delete(w.sets, shp)
	w.mu.Unlock()
	if !ok {
		return
	}

	op, ok := resolve(set, presence(shp))
	if !ok {
		w.logger.Debug("shapefile incomplete, waiting", "path", shp)
		return
	}

	select {
	case w.settled <- Event{Path: shp, Operation: op}:
	case <-w.done:
	}
}

// deliver runs the handler for settled events in order.
func (w *Watcher) deliver(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev := <-w.settled:
			w.logger.Info("processing file event", "path", ev.Path, "operation", ev.Operation.String())
			if err := w.handler(ctx, ev); err != nil {
				w.logger.Error("handler error",
					"path", ev.Path,
					"operation", ev.Operation.String(),
					"error", err,
				)
			}
		}
	}
}

// fileState tells which members of a file set exist.
type fileState struct {
	main     bool
	complete bool // main and every required sibling
}

func presence(shp string) fileState {
	st := fileState{main: exists(shp)}
	st.complete = st.main
	for _, sib := range output.Siblings {
		if sib.Required && !exists(output.SiblingKey(shp, sib.Ext)) {
			st.complete = false
		}
	}
	return st
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

// resolve decides the event for a settled file set. A set whose .shp is gone
// is deleted, but only when a removal was seen, so stray companion files
// never unload anything. A complete set is created when any member was
// created during the quiet period (this covers delete and recreate),
// otherwise modified. An incomplete set yields no event.
func resolve(set *fileSet, st fileState) (Operation, bool) {
	switch {
	case !st.main:
		return OpDelete, set.removed
	case !st.complete:
		return 0, false
	case set.created:
		return OpCreate, true
	default:
		return OpModify, true
	}
}

// classify converts fsnotify.Op to an Operation. A rename is the old name
// going away.
func classify(op fsnotify.Op) Operation {
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return OpDelete
	case op.Has(fsnotify.Create):
		return OpCreate
	default:
		return OpModify
	}
}
