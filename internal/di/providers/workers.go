package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/listenupapp/photoshelf/internal/config"
	"github.com/listenupapp/photoshelf/internal/library"
	"github.com/listenupapp/photoshelf/internal/logger"
	"github.com/listenupapp/photoshelf/internal/media/images"
	"github.com/listenupapp/photoshelf/internal/ratelimit"
	"github.com/listenupapp/photoshelf/internal/watcher"
)

// FileWatcherHandle wraps the file watcher with shutdown capability.
// Watcher is nil when watching is disabled.
type FileWatcherHandle struct {
	*watcher.Watcher
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *FileWatcherHandle) Shutdown() error {
	if h.Watcher == nil {
		return nil
	}
	h.cancel()
	return h.Watcher.Stop()
}

// ProvideFileWatcher provides the watcher on the photo store.
func ProvideFileWatcher(i do.Injector) (*FileWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	lib := do.MustInvoke[*library.Library](i)

	if !cfg.Library.WatchEnabled {
		log.Info("File watcher disabled by configuration")
		return &FileWatcherHandle{}, nil
	}

	w, err := watcher.New(log.Logger, watcher.Options{
		Extensions:   []string{images.Ext},
		IgnoreHidden: true,
	})
	if err != nil {
		return nil, err
	}

	if err := w.Watch(lib.Sources().Root()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		if err := w.Start(ctx); err != nil {
			log.Error("File watcher error", "error", err)
		}
	}()

	go lib.Follow(ctx, w)

	log.Info("File watcher started", "path", lib.Sources().Root())

	return &FileWatcherHandle{
		Watcher: w,
		cancel:  cancel,
	}, nil
}

// ImportLimiterHandle wraps the upload rate limiter with shutdown capability.
type ImportLimiterHandle struct {
	*ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *ImportLimiterHandle) Shutdown() error {
	h.Stop()
	return nil
}

// ProvideImportLimiter provides the per-client upload rate limiter.
func ProvideImportLimiter(i do.Injector) (*ImportLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)

	limiter := ratelimit.PerInterval(cfg.Import.RatePerMinute, time.Minute, cfg.Import.Burst)
	return &ImportLimiterHandle{KeyedRateLimiter: limiter}, nil
}
