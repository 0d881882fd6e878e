package profile

import (
	"context"
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatchOptions configures Watch.
type WatchOptions struct {
	// Debounce is how long the source tree must stay quiet before a
	// regeneration is triggered. Zero means 500ms.
	Debounce time.Duration
}

const defaultDebounce = 500 * time.Millisecond

// Watch generates the profile tree rooted at root, then watches root's
// source directory and regenerates the whole tree whenever it changes,
// until ctx is canceled. Bursts of filesystem events are coalesced into a
// single regeneration per quiet period.
//
// Regeneration failures are logged and watching continues; Watch only
// returns on watcher failure or context cancellation.
func Watch(ctx context.Context, root *RootProfile, opts WatchOptions) error {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, root.TopDir()); err != nil {
		return err
	}

	if err := root.GenerateAll(); err != nil {
		return err
	}

	logger := root.logger
	logger.Info("watching for changes", zap.Duration("debounce", debounce))

	// The timer is armed by events and drained on regeneration, so one
	// quiet period after a burst triggers exactly one rebuild.
	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			logger.Debug("source changed",
				zap.String("path", event.Name),
				zap.String("op", event.Op.String()),
			)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watching %s: %w", root.TopDir(), err)

		case <-timer.C:
			if err := root.GenerateAll(); err != nil {
				logger.Error("regeneration failed", zap.Error(err))
			}
			// New directories may have appeared since the last pass.
			if err := watchTree(watcher, root.TopDir()); err != nil {
				return err
			}
		}
	}
}

// watchTree registers a directory and everything beneath it with the
// watcher. fsnotify does not watch recursively on its own.
func watchTree(watcher *fsnotify.Watcher, topDir string) error {
	if err := watcher.Add(topDir); err != nil {
		return fmt.Errorf("watching %s: %w", topDir, err)
	}
	return Scan(topDir, DirFirst, func(rel string, entry *Entry) error {
		if !entry.IsDir() {
			return nil
		}
		if err := watcher.Add(entry.Path()); err != nil {
			return fmt.Errorf("watching %s: %w", rel, err)
		}
		return nil
	})
}
