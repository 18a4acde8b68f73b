package retrieval

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// Watcher rebuilds an Index when corpus files change. Bursts of events are
// collapsed into one rebuild after a quiet period.
type Watcher struct {
	index    *Index
	pattern  string
	debounce time.Duration
	logger   *slog.Logger

	fsw  *fsnotify.Watcher
	wg   sync.WaitGroup
	stop chan struct{}
	once sync.Once

	// rebuilt receives the result of every rebuild when non-nil.
	rebuilt chan<- error
}

// NewWatcher creates a watcher for index. Start begins watching.
func NewWatcher(index *Index, cfg *Config, logger *slog.Logger) *Watcher {
	return &Watcher{
		index:    index,
		pattern:  cfg.Pattern,
		debounce: cfg.DebounceDuration(),
		logger:   logger.With("system", "corpus-watcher"),
		stop:     make(chan struct{}),
	}
}

// Start registers the corpus directory tree, creating the root when
// missing, and processes events until ctx is cancelled or Close is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := os.MkdirAll(w.index.Dir(), 0o755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	if err := w.addTree(fsw, w.index.Dir()); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(ctx)
	}()

	w.logger.Info("watching corpus", "dir", w.index.Dir(), "debounce", w.debounce)
	return nil
}

// Close stops the event loop and releases the OS watch handles.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		w.wg.Wait()
		if w.fsw != nil {
			err = w.fsw.Close()
		}
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
		case <-fire:
			fire = nil
			err := w.index.Build(ctx)
			if err != nil {
				w.logger.ErrorContext(ctx, "corpus rebuild failed", "error", err)
			}
			if w.rebuilt != nil {
				select {
				case w.rebuilt <- err:
				default:
				}
			}
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(w.fsw, ev.Name); err != nil {
				w.logger.Warn("watch new directory failed", "dir", ev.Name, "error", err)
			}
			return true
		}
	}
	if ev.Has(fsnotify.Chmod) && !ev.Has(fsnotify.Write) {
		return false
	}

	rel, err := filepath.Rel(w.index.Dir(), ev.Name)
	if err != nil {
		return false
	}
	ok, _ := doublestar.Match(w.pattern, filepath.ToSlash(rel))
	return ok
}

func (w *Watcher) addTree(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if err := fsw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
		}
		return nil
	})
}
