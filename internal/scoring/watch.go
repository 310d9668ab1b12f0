package scoring

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

const reloadDebounce = 250 * time.Millisecond

// Watcher keeps scoring tables loaded from a file and reloads them when the
// file changes, so weights can be tuned against a running process. Tables()
// is lock-free; a reload swaps the pointer.
type Watcher struct {
	path    string
	logger  *slog.Logger
	watcher *fsnotify.Watcher
	current atomic.Pointer[Tables]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher loads tables from path and starts watching for changes.
// It watches the parent directory rather than the file: editors replace
// files on save, which would orphan a direct file watch.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("resolve tables path: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch tables directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		path:    abs,
		logger:  logger,
		watcher: fw,
		ctx:     ctx,
		cancel:  cancel,
	}
	w.current.Store(LoadOrDefault(afero.NewOsFs(), abs, logger))

	w.wg.Add(1)
	go w.eventLoop()

	return w, nil
}

// Tables returns the currently loaded scoring tables.
func (w *Watcher) Tables() *Tables {
	return w.current.Load()
}

// Stop stops watching and releases the fsnotify handle.
func (w *Watcher) Stop() {
	w.cancel()
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	var pending *time.Timer
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			// Editors fire several events per save; coalesce them
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(reloadDebounce, w.reload)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("scoring tables watch error", "error", err)

		case <-w.ctx.Done():
			if pending != nil {
				pending.Stop()
			}
			return
		}
	}
}

func (w *Watcher) reload() {
	tables, err := Load(afero.NewOsFs(), w.path)
	if err != nil {
		w.logger.Warn("keeping previous scoring tables", "path", w.path, "error", err)
		return
	}
	w.current.Store(tables)
	w.logger.Info("reloaded scoring tables", "path", w.path, "version", tables.Version, "threshold", tables.Threshold)
}
