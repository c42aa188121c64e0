package sync

import (
	"context"
	"fmt"
	"path/filepath"
	stdsync "sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceInterval batches rapid cache-file rewrites into one reload.
const debounceInterval = 200 * time.Millisecond

// CacheWatcher watches the fast-cache file for writes made by other
// marxiv processes and triggers a durable reload when one lands. The
// in-process broadcast never crosses process boundaries; without the
// watcher, separate processes converge only on their next independent
// durable read. The watcher makes that convergence event-driven.
type CacheWatcher struct {
	facade  *Facade
	watcher *fsnotify.Watcher

	mu      stdsync.Mutex
	running bool
	wg      stdsync.WaitGroup
	done    chan struct{}
}

// NewCacheWatcher creates a watcher for the facade's fast-cache file.
// Start it with Start; it does nothing until then.
func NewCacheWatcher(f *Facade) (*CacheWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	return &CacheWatcher{
		facade:  f,
		watcher: w,
		done:    make(chan struct{}),
	}, nil
}

// Start begins watching. The parent directory is watched rather than the
// file itself so rewrites via rename are observed too.
func (w *CacheWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}

	dir := filepath.Dir(w.facade.cache.Path())
	if err := w.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch cache directory %s: %w", dir, err)
	}

	w.running = true
	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop stops watching and blocks until the event loop has exited.
func (w *CacheWatcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	w.wg.Wait()
	return nil
}

// loop debounces cache-file events and reloads from the durable store.
func (w *CacheWatcher) loop() {
	defer w.wg.Done()

	target := w.facade.cache.Path()
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceInterval)
				timerC = timer.C
			} else {
				timer.Reset(debounceInterval)
			}

		case <-timerC:
			timer = nil
			timerC = nil
			ctx, cancel := context.WithTimeout(context.Background(), defaultWriteTimeout)
			w.facade.Load(ctx)
			cancel()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.facade.logger.Printf("Cache watcher error: %v", err)
		}
	}
}
