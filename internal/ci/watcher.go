package ci

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/goliatone/go-cms-ci/internal/logging"
	"github.com/goliatone/go-cms-ci/pkg/interfaces"
)

const defaultDebounce = 300 * time.Millisecond

// Watcher reports edits made to repository files outside the repository,
// such as a checkout or a hand edit. Writes the repository makes itself
// match their records and are not reported.
type Watcher struct {
	repo     *Repository
	logger   interfaces.Logger
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]time.Time
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	subsMu sync.Mutex
	subs   map[uint64]chan Drift
	nextID uint64
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets how long a file must stay quiet before it is inspected.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(logger interfaces.Logger) WatcherOption {
	return func(w *Watcher) { w.logger = logging.Ensure(logger) }
}

// NewWatcher returns a watcher over the files of repo.
func NewWatcher(repo *Repository, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		repo:     repo,
		logger:   repo.logger,
		debounce: defaultDebounce,
		pending:  map[string]time.Time{},
		subs:     map[uint64]chan Drift{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Subscribe returns a channel receiving drifts until ctx is done. The
// subscription holds a goroutine until then, so callers must cancel ctx.
// Slow subscribers miss drifts rather than block the watcher.
func (w *Watcher) Subscribe(ctx context.Context) <-chan Drift {
	ch := make(chan Drift, 16)
	if err := ctx.Err(); err != nil {
		close(ch)
		return ch
	}
	w.subsMu.Lock()
	id := w.nextID
	w.nextID++
	w.subs[id] = ch
	w.subsMu.Unlock()

	go func() {
		<-ctx.Done()
		w.subsMu.Lock()
		delete(w.subs, id)
		close(ch)
		w.subsMu.Unlock()
	}()
	return ch
}

func (w *Watcher) broadcast(drift Drift) {
	w.subsMu.Lock()
	defer w.subsMu.Unlock()
	for _, ch := range w.subs {
		select {
		case ch <- drift:
		default:
		}
	}
}

// Start watches the repository directory tree. It returns once the
// directories are registered; events are handled in the background until
// Stop is called or ctx is done. A watcher whose ctx ended can be started
// again.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}
	root := w.repo.files.Root()
	if err := os.MkdirAll(root, 0o755); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addTree(fw, root); err != nil {
		fw.Close()
		return err
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.run(ctx, fw, w.stopCh, w.doneCh)

	w.logger.Info("ci.watcher.started", "root", root)
	return nil
}

// Stop ends the watch and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	doneCh := w.doneCh
	w.mu.Unlock()

	<-doneCh
	return nil
}

// Running reports whether the event loop is active.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) run(ctx context.Context, fw *fsnotify.Watcher, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		w.mu.Lock()
		if w.doneCh == doneCh {
			w.running = false
		}
		w.mu.Unlock()
		if err := fw.Close(); err != nil {
			w.logger.Warn("ci.watcher.close_failed", "error", err)
		}
		close(doneCh)
	}()

	ticker := time.NewTicker(w.debounce / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Error("ci.watcher.error", "error", err)
		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handle(fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addTree(fw, event.Name); err != nil {
				w.logger.Warn("ci.watcher.add_failed", "path", event.Name, "error", err)
			}
			return
		}
	}
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if !IsUnitFile(event.Name) {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// flush inspects the files that stayed quiet for the debounce window.
func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var ready []string
	w.mu.Lock()
	for name, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, name)
			delete(w.pending, name)
		}
	}
	w.mu.Unlock()

	for _, name := range ready {
		location, ok := w.repo.files.Location(name)
		if !ok {
			continue
		}
		drift, err := w.repo.Inspect(ctx, location)
		if err != nil {
			w.logger.Error("ci.watcher.inspect_failed", "location", location, "error", err)
			continue
		}
		if drift == nil {
			continue
		}
		w.logger.Info("ci.watcher.drift", "location", drift.Location, "kind", string(drift.Kind))
		w.broadcast(*drift)
	}
}

func addTree(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return fw.Add(p)
	})
}
