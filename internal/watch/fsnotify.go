package watch

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/ter/internal/logfields"
)

const eventBuffer = 256

// WatchFS watches roots recursively and delivers their changes as Events.
// Directories for which skipDir returns true are not watched; directories
// created later are added as they appear. Missing roots are skipped with a
// warning. The returned channel is closed once ctx is cancelled.
func WatchFS(ctx context.Context, roots []string, skipDir func(string) bool, logger *slog.Logger) (<-chan Event, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if skipDir == nil {
		skipDir = func(string) bool { return false }
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: new watcher: %w", err)
	}

	for _, root := range roots {
		info, statErr := os.Stat(root)
		if statErr != nil || !info.IsDir() {
			logger.Warn("watcher: root not watched", logfields.Root(root), logfields.Error(statErr))
			continue
		}
		if err := addDirsRecursive(w, root, skipDir); err != nil {
			w.Close()
			return nil, fmt.Errorf("watch: add %s: %w", root, err)
		}
	}

	out := make(chan Event, eventBuffer)
	go func() {
		defer close(out)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Has(fsnotify.Create) {
					if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() && !skipDir(ev.Name) {
						if addErr := addDirsRecursive(w, ev.Name, skipDir); addErr != nil {
							logger.Warn("watcher: add new dir failed", logfields.Path(ev.Name), logfields.Error(addErr))
						} else {
							logger.Debug("watcher: watching new dir", logfields.Path(ev.Name))
						}
					}
				}
				select {
				case out <- Event{Kind: kindOf(ev.Op), Paths: []string{ev.Name}}:
				case <-ctx.Done():
					return
				}

			case watchErr, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher: error", logfields.Error(watchErr))
			}
		}
	}()
	return out, nil
}

func kindOf(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Create):
		return KindCreate
	case op.Has(fsnotify.Write):
		return KindModify
	case op.Has(fsnotify.Remove):
		return KindRemove
	case op.Has(fsnotify.Rename):
		return KindRename
	case op.Has(fsnotify.Chmod):
		return KindMetadata
	}
	return KindOther
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func addDirsRecursive(w *fsnotify.Watcher, root string, skipDir func(string) bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDir(path) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}
