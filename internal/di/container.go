// Package di provides dependency injection configuration for the Photoshelf server.
package di

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/photoshelf/internal/api"
	"github.com/listenupapp/photoshelf/internal/catalog"
	"github.com/listenupapp/photoshelf/internal/config"
	"github.com/listenupapp/photoshelf/internal/di/providers"
	"github.com/listenupapp/photoshelf/internal/library"
	"github.com/listenupapp/photoshelf/internal/logger"
	"github.com/listenupapp/photoshelf/internal/thumbnail"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer(flags config.Flags) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.ProvideValue(injector, flags)
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideSSEManager)

	// Storage layer
	do.Provide(injector, providers.ProvideImageStorages)

	// Library layer
	do.Provide(injector, providers.ProvideGraph)
	do.Provide(injector, providers.ProvideThumbnailCache)
	do.Provide(injector, providers.ProvideLibrary)

	// Workers
	do.Provide(injector, providers.ProvideFileWatcher)
	do.Provide(injector, providers.ProvideImportLimiter)

	// Server
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Library resolves the library and everything beneath it without starting
// any background work. Command-line tools use this.
func Library(injector do.Injector) (*library.Library, error) {
	return do.Invoke[*library.Library](injector)
}

// Bootstrap initializes all services, scans the library and starts serving.
func Bootstrap(ctx context.Context, injector *do.RootScope) error {
	// Surface configuration errors before anything panics.
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}

	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.ImageStorages](injector)
	_ = do.MustInvoke[*catalog.Graph](injector)
	_ = do.MustInvoke[*thumbnail.Cache](injector)
	_ = do.MustInvoke[*library.Library](injector)

	// Scan before accepting requests so listings start complete.
	providers.RunInitialScan(ctx, injector)

	// Workers
	_ = do.MustInvoke[*providers.FileWatcherHandle](injector)
	_ = do.MustInvoke[*providers.ImportLimiterHandle](injector)

	// Server
	_ = do.MustInvoke[*api.Server](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
