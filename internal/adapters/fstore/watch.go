package fstore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/SscSPs/sledge/internal/platform/logging"
	"github.com/fsnotify/fsnotify"
)

// DebounceDelay is how long Watch waits for a burst of file events to settle.
const DebounceDelay = 100 * time.Millisecond

// Change names an entity whose file was written, renamed or removed.
type Change struct {
	// Kind is "journal" or "ledger".
	Kind string
	ID   string
}

// Watch reports entity files changed by any process until ctx is done. Events are debounced
// and each changed entity is reported once per burst.
func (s *Store) Watch(ctx context.Context, onChange func([]Change)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting watcher: %w", err)
	}
	dirs := map[string]string{
		filepath.Join(s.root, journalsDir): "journal",
		filepath.Join(s.root, ledgersDir):  "ledger",
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			_ = watcher.Close()
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}
	s.runWatcher(ctx, watcher, dirs, onChange)
	return nil
}

func (s *Store) runWatcher(ctx context.Context, watcher *fsnotify.Watcher, dirs map[string]string, onChange func([]Change)) {
	logger := logging.FromContext(ctx)

	var (
		mu            sync.Mutex
		pending       = map[Change]bool{}
		debounceTimer *time.Timer
	)
	defer func() {
		mu.Lock()
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		mu.Unlock()
		_ = watcher.Close()
	}()

	flush := func() {
		mu.Lock()
		changes := make([]Change, 0, len(pending))
		for c := range pending {
			changes = append(changes, c)
		}
		pending = map[Change]bool{}
		mu.Unlock()

		if len(changes) == 0 || ctx.Err() != nil {
			return
		}
		sort.Slice(changes, func(i, j int) bool {
			if changes[i].Kind != changes[j].Kind {
				return changes[i].Kind < changes[j].Kind
			}
			return changes[i].ID < changes[j].ID
		})
		onChange(changes)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Remove and Rename are how the atomic writes of other handles show up
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			change, ok := changeFor(dirs, event.Name)
			if !ok {
				continue
			}

			mu.Lock()
			pending[change] = true
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(DebounceDelay, flush)
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("File watcher error", slog.String("path", s.root), slog.String("error", err.Error()))
		}
	}
}

func changeFor(dirs map[string]string, path string) (Change, bool) {
	kind, ok := dirs[filepath.Dir(path)]
	if !ok {
		return Change{}, false
	}
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") {
		return Change{}, false
	}
	id, err := url.PathUnescape(name)
	if err != nil {
		return Change{}, false
	}
	return Change{Kind: kind, ID: id}, true
}
