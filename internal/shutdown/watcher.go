// Package shutdown wires process-level termination: OS signals and an
// optional sentinel-file watch, both cancelling a single context the rest
// of the process treats as its lifetime.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Context returns a context cancelled on SIGINT/SIGTERM or, if
// sentinelPath is non-empty, on that file's creation. The returned stop
// func releases the signal notification and watcher; callers should defer
// it alongside the context's own cancellation.
func Context(sentinelPath string, log *zap.SugaredLogger) (ctx context.Context, stop func()) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCtx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCtx.Done()
		if sigCtx.Err() != nil && ctx.Err() == nil {
			log.Infow("shutdown: signal received")
		}
		cancel()
	}()

	var watcher *fsnotify.Watcher
	if sentinelPath != "" {
		var err error
		watcher, err = newSentinelWatcher(sentinelPath, cancel, log)
		if err != nil {
			log.Warnw("shutdown: sentinel watch disabled", "path", sentinelPath, "error", err)
			watcher = nil
		}
	}

	stop = func() {
		stopSignals()
		if watcher != nil {
			_ = watcher.Close()
		}
		cancel()
	}
	return ctx, stop
}

// newSentinelWatcher watches the directory containing sentinelPath (since
// fsnotify needs an existing path to watch, and the sentinel file itself
// may not exist yet) and calls cancel the moment that exact file appears.
func newSentinelWatcher(sentinelPath string, cancel context.CancelFunc, log *zap.SugaredLogger) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(sentinelPath)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	if _, err := os.Stat(sentinelPath); err == nil {
		log.Infow("shutdown: sentinel file already present at startup", "path", sentinelPath)
		cancel()
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name == sentinelPath && (event.Op&(fsnotify.Create|fsnotify.Write) != 0) {
					log.Infow("shutdown: sentinel file observed", "path", sentinelPath)
					cancel()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Warnw("shutdown: sentinel watcher error", "error", err)
			}
		}
	}()

	return watcher, nil
}
