package watchfolder

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"dvrmanager/internal/logging"
)

// Run watches the recording folder until the context is cancelled. An
// initial scan primes files that existed before startup. Filesystem events
// trigger early scans; the poll ticker catches anything inotify missed and
// drives the stability countdown for quiet files.
func (t *Tracker) Run(ctx context.Context) error {
	logger := logging.WithContext(ctx, t.logger)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := t.watchTree(watcher); err != nil {
		return err
	}

	if err := t.Scan(ctx); err != nil {
		logger.Warn("initial scan failed", logging.Error(err))
	}

	poll := time.Duration(t.cfg.Tracker.PollInterval) * time.Second
	if poll <= 0 {
		poll = 10 * time.Second
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	// Batch bursts of events into a single scan.
	var debounce <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := t.Scan(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("scan failed", logging.Error(err))
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				// New subdirectories need their own watch.
				_ = t.watchTree(watcher)
			}
			debounce = time.After(time.Second)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", logging.Error(err))
		case <-debounce:
			debounce = nil
			if err := t.Scan(ctx); err != nil && ctx.Err() == nil {
				logger.Warn("scan failed", logging.Error(err))
			}
		}
	}
}

// watchTree registers the watch directory and every subdirectory. inotify
// watches are not recursive, and recorders commonly write into per-channel
// subfolders.
func (t *Tracker) watchTree(watcher *fsnotify.Watcher) error {
	return filepath.WalkDir(t.cfg.Paths.WatchDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !entry.IsDir() {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
