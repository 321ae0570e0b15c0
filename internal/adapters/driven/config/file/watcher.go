package file

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/lexcheck/internal/core/ports/driven"
	"github.com/custodia-labs/lexcheck/internal/logger"
)

// DefaultReloadDebounce groups the bursts of events editors emit on save.
const DefaultReloadDebounce = 200 * time.Millisecond

// PromptWatcher reloads a prompt store when files in its directory change.
type PromptWatcher struct {
	store    driven.PromptStore
	dir      string
	debounce time.Duration
	log      *logger.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}
	once    sync.Once

	mu      sync.Mutex
	reloads int
}

// NewPromptWatcher creates a watcher for dir. It does nothing until Start.
func NewPromptWatcher(store driven.PromptStore, dir string, debounce time.Duration, log *logger.Logger) *PromptWatcher {
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}
	return &PromptWatcher{
		store:    store,
		dir:      dir,
		debounce: debounce,
		log:      log.With("prompts"),
		done:     make(chan struct{}),
	}
}

// Start begins watching. The watcher stops when ctx is done or Close is called.
func (w *PromptWatcher) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create prompt watcher: %w", err)
	}
	if err := watcher.Add(w.dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.watcher = watcher

	go w.loop(ctx)
	return nil
}

// Close stops the watcher. Safe to call more than once.
func (w *PromptWatcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return err
}

// Reloads returns how many times the store has been reloaded.
func (w *PromptWatcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

func (w *PromptWatcher) loop(ctx context.Context) {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			_ = w.Close()
			return

		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isPromptEvent(event) {
				continue
			}
			w.log.Debug("prompt file changed: %s (%s)", filepath.Base(event.Name), event.Op)
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case <-timer.C:
			pending = false
			w.store.Reload()
			w.mu.Lock()
			w.reloads++
			w.mu.Unlock()
			w.log.Info("prompts reloaded from %s", w.dir)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("prompt watcher: %v", err)
		}
	}
}

func isPromptEvent(event fsnotify.Event) bool {
	if !strings.HasSuffix(event.Name, ".txt") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
