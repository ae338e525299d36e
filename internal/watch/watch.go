// Package watch notices when another process modifies a file we own.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// File watches path until ctx is done.
//
// After each event touching path, inSync is asked whether the file still holds
// what its owner last read or wrote. notify is called once when it stops being
// in sync, and again only after it was back in sync in between.
//
// The parent directory is watched rather than the file, since the owner
// replaces the file by renaming a new one over it.
func File(ctx context.Context, path string, inSync func() (bool, error), notify func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	go func() {
		defer func() { _ = w.Close() }()
		warned := false
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				same, err := inSync()
				if err != nil {
					slog.WarnContext(ctx, "Failed to check watched file", "path", abs, "err", err)
					continue
				}
				if same {
					warned = false
					continue
				}
				if !warned {
					warned = true
					notify()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.WarnContext(ctx, "Error watching file", "path", abs, "err", err)
			}
		}
	}()
	return nil
}
