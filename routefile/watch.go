package routefile

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch loads the table at path, passes it to fn and reloads it every time
// the file is written or created, a rename into place included. A failed
// load is passed to fn as an error and the watch continues. Watch blocks
// until ctx is done and returns nil then, or returns the error that
// stopped the watcher. fn owns every table it receives and should Close the
// one it replaces.
func Watch(ctx context.Context, path string, reg *Registry, fn func(*Table, error), opts ...Option) error {
	o := buildOptions(opts)

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("routefile: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("routefile: creating watcher: %w", err)
	}
	defer w.Close()

	// editors replace files by rename, which drops a watch on the file
	// itself, so the directory is watched instead
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("routefile: watching %s: %w", filepath.Dir(abs), err)
	}

	fn(Load(abs, reg, opts...))

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			o.logger.Info("reloading routes", "path", abs, "op", ev.Op.String())
			fn(Load(abs, reg, opts...))

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			o.logger.Warn("route watcher error", "path", abs, "error", err)
		}
	}
}
