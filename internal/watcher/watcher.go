// Package watcher turns file creation events in the images folder into
// processing passes.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/starford/vaultsnap/internal/apperr"
	"github.com/starford/vaultsnap/internal/models"
	"github.com/starford/vaultsnap/internal/processor"
)

// Handler runs one pass for a new image.
type Handler interface {
	Handle(ctx context.Context, path string) (*models.Processed, error)
}

// Option configures Watch.
type Option func(*options)

type options struct {
	settle time.Duration
}

// WithSettle delays each pass so the writer can finish the file.
func WithSettle(d time.Duration) Option {
	return func(o *options) { o.settle = d }
}

// IsImage reports whether path has an image MIME type by extension.
func IsImage(path string) bool {
	return strings.HasPrefix(mime.TypeByExtension(strings.ToLower(filepath.Ext(path))), "image/")
}

// Watch watches dir (not recursively) and calls h for every created image
// until ctx is cancelled. Passes run one at a time on the watcher goroutine.
func Watch(ctx context.Context, dir string, h Handler, logger *slog.Logger, opts ...Option) error {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watcher: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watcher: %s is not a directory", dir)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watcher: add %s: %w", dir, err)
	}

	logger.Info("watcher: started", slog.String("folder", dir))

	for {
		select {
		case <-ctx.Done():
			logger.Info("watcher: stopped")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&fsnotify.Create == 0 || !IsImage(ev.Name) {
				continue
			}
			if fi, statErr := os.Stat(ev.Name); statErr != nil || fi.IsDir() {
				continue
			}
			if o.settle > 0 {
				select {
				case <-ctx.Done():
					logger.Info("watcher: stopped")
					return nil
				case <-time.After(o.settle):
				}
			}
			dispatch(ctx, h, ev.Name, logger)

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Error("watcher: error", slog.String("error", watchErr.Error()))
		}
	}
}

func dispatch(ctx context.Context, h Handler, path string, logger *slog.Logger) {
	_, err := h.Handle(ctx, path)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrCooldown), errors.Is(err, processor.ErrOwnFile):
		logger.Debug("watcher: event skipped", slog.String("path", path), slog.String("reason", err.Error()))
	default:
		logger.Warn("watcher: pass failed", slog.String("path", path), slog.String("error", err.Error()))
	}
}
