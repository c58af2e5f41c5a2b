// Package watcher reports test log files that were created or rewritten in a
// directory, once they have been quiet for a debounce period.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/newhook/testrun/internal/logging"
)

// Config configures a Watcher.
type Config struct {
	// Dir is the directory to watch. Subdirectories are not watched.
	Dir string
	// Patterns are file name globs matched against the base name.
	Patterns []string
	// DebounceDur is how long a file must be unchanged before it is reported.
	DebounceDur time.Duration
	// IncludeExisting reports matching files already present at Start.
	IncludeExisting bool
}

// DefaultConfig returns the default configuration for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		Patterns:    []string{"*.log", "*.txt"},
		DebounceDur: 500 * time.Millisecond,
	}
}

// Event reports a settled log file.
type Event struct {
	Path string
	Time time.Time
}

// Watcher watches one directory for log files.
type Watcher struct {
	cfg    Config
	fsw    *fsnotify.Watcher
	events chan Event

	mu      sync.Mutex
	timers  map[string]*pending
	started bool
	stopped bool

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// pending is the debounce timer of one path. A timer that already fired is
// replaced rather than reset, and fire ignores timers that are no longer current.
type pending struct {
	timer *time.Timer
}

// New creates a watcher for cfg.Dir. Call Start to begin receiving events.
func New(cfg Config) (*Watcher, error) {
	info, err := os.Stat(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to stat watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Dir)
	}
	if len(cfg.Patterns) == 0 {
		cfg.Patterns = DefaultConfig(cfg.Dir).Patterns
	}
	for _, p := range cfg.Patterns {
		if _, err := filepath.Match(p, ""); err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
	}
	if cfg.DebounceDur <= 0 {
		cfg.DebounceDur = DefaultConfig(cfg.Dir).DebounceDur
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsw.Add(cfg.Dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", cfg.Dir, err)
	}

	return &Watcher{
		cfg:    cfg,
		fsw:    fsw,
		events: make(chan Event, 16),
		timers: make(map[string]*pending),
		done:   make(chan struct{}),
	}, nil
}

// Events returns the channel of settled files. It is never closed.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start begins processing file system events.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	if w.stopped {
		w.mu.Unlock()
		return fmt.Errorf("watcher stopped")
	}
	w.started = true
	w.mu.Unlock()

	if w.cfg.IncludeExisting {
		entries, err := os.ReadDir(w.cfg.Dir)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", w.cfg.Dir, err)
		}
		for _, e := range entries {
			if !e.IsDir() && w.matches(e.Name()) {
				w.schedule(filepath.Join(w.cfg.Dir, e.Name()))
			}
		}
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops the watcher and discards pending events. It is safe to call
// more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		w.stopped = true
		for path, p := range w.timers {
			p.timer.Stop()
			delete(w.timers, path)
		}
		w.mu.Unlock()

		close(w.done)
		err = w.fsw.Close()
		w.wg.Wait()
	})
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.Warn("file watcher error", "dir", w.cfg.Dir, "error", err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !w.matches(filepath.Base(ev.Name)) {
		return
	}
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(ev.Name)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		w.cancel(ev.Name)
	}
}

func (w *Watcher) matches(name string) bool {
	for _, p := range w.cfg.Patterns {
		if ok, _ := filepath.Match(p, name); ok {
			return true
		}
	}
	return false
}

// schedule (re)starts the debounce timer for path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if p, ok := w.timers[path]; ok && p.timer.Stop() {
		p.timer.Reset(w.cfg.DebounceDur)
		return
	}
	p := &pending{}
	p.timer = time.AfterFunc(w.cfg.DebounceDur, func() { w.fire(path, p) })
	w.timers[path] = p
}

func (w *Watcher) cancel(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if p, ok := w.timers[path]; ok {
		p.timer.Stop()
		delete(w.timers, path)
	}
}

func (w *Watcher) fire(path string, p *pending) {
	w.mu.Lock()
	if w.stopped || w.timers[path] != p {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	w.mu.Unlock()

	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return
	}

	logging.Debug("log file settled", "path", path)
	select {
	case w.events <- Event{Path: path, Time: time.Now()}:
	case <-w.done:
	}
}
