// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package databuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 300 * time.Millisecond

// watchSet maps a watched directory to the file names of interest in it. A
// nil name set means every file in the directory.
type watchSet map[string]map[string]bool

func (w watchSet) matches(path string) bool {
	names, ok := w[filepath.Dir(path)]
	if !ok {
		return false
	}
	base := filepath.Base(path)
	// Word keeps "~$name.docx" owner files next to open documents.
	if strings.HasPrefix(base, "~$") || strings.HasPrefix(base, ".") {
		return false
	}
	return names == nil || names[base]
}

// Watch runs a build immediately, then again after every change to the
// variant's watch paths until ctx is cancelled. Changes are debounced and
// builds never overlap. Build failures are logged, not returned.
func (o *Orchestrator) Watch(ctx context.Context) error {
	if len(o.variant.Watch) == 0 {
		return fmt.Errorf("variant %q has no watch paths", o.cfg.Variant)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	defer watcher.Close()

	set, err := o.addWatches(watcher)
	if err != nil {
		return err
	}

	o.logger.Info("watching for changes", slog.Any("paths", o.variant.Watch))
	_, _ = o.Run(ctx)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op == fsnotify.Chmod || !set.matches(ev.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(o.debounce)
			} else {
				timer.Reset(o.debounce)
			}
			fire = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("watch error", slog.Any("error", err))
		case <-fire:
			fire = nil
			o.logger.Info("change detected; rebuilding")
			_, _ = o.Run(ctx)
		}
	}
}

func (o *Orchestrator) addWatches(watcher *fsnotify.Watcher) (watchSet, error) {
	set := watchSet{}
	for _, p := range o.variant.Watch {
		abs := filepath.Clean(o.resolve(p))
		info, err := os.Stat(abs)
		switch {
		case err == nil && info.IsDir():
			set[abs] = nil
		case err == nil || os.IsNotExist(err):
			// Watch the parent so a file that is replaced or created later
			// still triggers a build.
			dir := filepath.Dir(abs)
			if names, ok := set[dir]; !ok {
				set[dir] = map[string]bool{filepath.Base(abs): true}
			} else if names != nil {
				names[filepath.Base(abs)] = true
			}
		default:
			return nil, fmt.Errorf("watch %s: %w", abs, err)
		}
	}
	for dir := range set {
		if err := watcher.Add(dir); err != nil {
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	return set, nil
}
