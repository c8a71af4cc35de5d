package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/photoshelf/internal/catalog"
	"github.com/listenupapp/photoshelf/internal/config"
	"github.com/listenupapp/photoshelf/internal/library"
	"github.com/listenupapp/photoshelf/internal/logger"
	"github.com/listenupapp/photoshelf/internal/thumbnail"
)

// ProvideGraph provides the session's photo/tag graph.
func ProvideGraph(_ do.Injector) (*catalog.Graph, error) {
	return catalog.NewGraph(), nil
}

// ProvideThumbnailCache provides the thumbnail cache over the image stores.
func ProvideThumbnailCache(i do.Injector) (*thumbnail.Cache, error) {
	cfg := do.MustInvoke[*config.Config](i)
	storages := do.MustInvoke[*ImageStorages](i)
	log := do.MustInvoke[*logger.Logger](i)

	return thumbnail.New(storages.Photos, storages.Thumbnails, thumbnail.Options{
		Width:   cfg.Thumbnail.Width,
		Height:  cfg.Thumbnail.Height,
		Quality: cfg.Thumbnail.Quality,
	}, log.Logger), nil
}

// ProvideLibrary provides the library that keeps graph and stores in sync.
func ProvideLibrary(i do.Injector) (*library.Library, error) {
	cfg := do.MustInvoke[*config.Config](i)
	graph := do.MustInvoke[*catalog.Graph](i)
	cache := do.MustInvoke[*thumbnail.Cache](i)
	storages := do.MustInvoke[*ImageStorages](i)
	log := do.MustInvoke[*logger.Logger](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	lib := library.New(graph, cache, storages.Photos, storages.Thumbnails, log.Logger, library.Options{
		Workers:       cfg.Library.ScanWorkers,
		ImportQuality: cfg.Import.Quality,
	})
	lib.SetEmitter(sseHandle.Manager)

	return lib, nil
}

// RunInitialScan discovers the photos already on disk.
// Should be called after all dependencies are wired.
func RunInitialScan(ctx context.Context, i do.Injector) {
	lib := do.MustInvoke[*library.Library](i)
	log := do.MustInvoke[*logger.Logger](i)

	log.Info("Running initial scan", "path", lib.Sources().Root())
	if _, err := lib.Discover(ctx); err != nil {
		log.Error("Initial scan failed", "error", err)
	}
}
