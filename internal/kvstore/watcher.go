package kvstore

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ChangeCallback is called with the key of a collection blob that was
// rewritten on disk by another process.
type ChangeCallback func(key string)

// debounceWindow coalesces the burst of fsnotify events one atomic blob
// write produces into a single callback per key.
const debounceWindow = 200 * time.Millisecond

// Watch starts an fsnotify watcher on the data directory and invokes cb for
// each changed key until ctx is cancelled. It is the cross-process change
// notification: another instance writing a collection triggers a reload in
// this one.
func Watch(ctx context.Context, dir string, logger *slog.Logger, cb ChangeCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return err
	}

	logger.Info("watcher: started", slog.String("dir", dir))

	pending := make(map[string]*time.Timer)
	fired := make(chan string, 64)

	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case key := <-fired:
			delete(pending, key)
			logger.Debug("watcher: changed", slog.String("key", key))
			if cb != nil {
				cb(key)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, blobExt) || strings.HasPrefix(name, ".") {
				continue
			}
			key := strings.TrimSuffix(name, blobExt)
			if t, ok := pending[key]; ok {
				t.Reset(debounceWindow)
				continue
			}
			pending[key] = time.AfterFunc(debounceWindow, func() {
				select {
				case fired <- key:
				case <-ctx.Done():
				}
			})

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}
