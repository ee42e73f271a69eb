// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package vault

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// TamperEventOp classifies what happened to a file under the storage
// directory.
type TamperEventOp string

const (
	TamperWrite  TamperEventOp = "WRITE"
	TamperRemove TamperEventOp = "REMOVE"
	TamperRename TamperEventOp = "RENAME"
)

// TamperEvent reports that a watched file in the storage directory — the
// keyfile, the database or its WAL/SHM sidecars, or meta.json — was
// written, chmodded, removed, or renamed. Events are not filtered by
// origin: changes made through this Engine itself are reported too.
// This is advisory only: the engine already detects a corrupted or
// removed store the next time it opens or seals, via Verify. Watch lets
// a long-running process notice sooner, without polling.
type TamperEvent struct {
	Path string
	Op   TamperEventOp
	Time time.Time
}

// Watch starts an fsnotify watch on the storage directory and returns a
// channel of TamperEvent. The channel is closed, and the underlying
// watcher released, when ctx is cancelled. Events are limited to the
// files this engine itself writes or could be expected to disturb
// (.keyfile, meta.json, store.db and its -wal/-shm files): other files
// someone drops in the directory are ignored.
func (e *Engine) Watch(ctx context.Context) (<-chan TamperEvent, error) {
	e.mu.Lock()
	dirPath := e.dirPath
	closed := e.closed
	e.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, &InitializationError{Reason: "starting filesystem watcher", Cause: err}
	}
	if err := watcher.Add(dirPath); err != nil {
		watcher.Close()
		return nil, &InitializationError{Reason: "watching storage directory", Cause: err}
	}

	out := make(chan TamperEvent, 8)
	go func() {
		defer watcher.Close()
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				op, relevant := classify(ev)
				if !relevant || !watchedName(ev.Name) {
					continue
				}
				select {
				case out <- TamperEvent{Path: ev.Name, Op: op, Time: time.Now()}:
				default:
					// Drop on a full channel; a slow consumer shouldn't
					// block fsnotify's event loop.
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			}
		}
	}()

	return out, nil
}

func classify(ev fsnotify.Event) (TamperEventOp, bool) {
	switch {
	case ev.Op&fsnotify.Write == fsnotify.Write || ev.Op&fsnotify.Chmod == fsnotify.Chmod:
		return TamperWrite, true
	case ev.Op&fsnotify.Remove == fsnotify.Remove:
		return TamperRemove, true
	case ev.Op&fsnotify.Rename == fsnotify.Rename:
		return TamperRename, true
	default:
		return "", false
	}
}

func watchedName(path string) bool {
	for _, suffix := range []string{keyfileName, metaName, dbName, dbName + "-wal", dbName + "-shm"} {
		if hasSuffixPath(path, suffix) {
			return true
		}
	}
	return false
}

func hasSuffixPath(path, suffix string) bool {
	if len(path) < len(suffix) {
		return false
	}
	return path[len(path)-len(suffix):] == suffix
}
