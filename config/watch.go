// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package config

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// watchDebounce coalesces bursts of filesystem events, such as an editor
// writing and then renaming a temporary file, into a single callback.
const watchDebounce = 250 * time.Millisecond

// A Watcher monitors a configuration file and invokes a callback after the
// file changes.
type Watcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}
	wg   sync.WaitGroup
}

// Watch begins monitoring path and calls fn after each change. The parent
// directory is watched rather than the file itself, since editors and
// provisioning tools typically replace the file wholesale. Call Stop to
// release the watcher; a callback that has already fired may still complete.
func Watch(path string, log zerolog.Logger, fn func()) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config watch: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watch: %w", err)
	}
	if err := fsw.Add(filepath.Dir(abs)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config watch: %w", err)
	}

	w := &Watcher{fsw: fsw, done: make(chan struct{})}
	w.wg.Add(1)
	go w.run(abs, log, fn)
	return w, nil
}

// Stop releases the watcher and waits for its event loop to exit.
func (w *Watcher) Stop() {
	close(w.done)
	w.fsw.Close()
	w.wg.Wait()
}

func (w *Watcher) run(path string, log zerolog.Logger, fn func()) {
	defer w.wg.Done()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-w.done:
			return
		case evt, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != path {
				continue
			}
			if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) && !evt.Has(fsnotify.Rename) {
				continue
			}
			log.Debug().Str("path", path).Str("op", evt.Op.String()).Msg("config file changed")
			if timer == nil {
				timer = time.AfterFunc(watchDebounce, fn)
			} else {
				timer.Reset(watchDebounce)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("config watch error")
		}
	}
}
