// Package providers contains dependency injection providers for the Photoshelf server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/photoshelf/internal/config"
	"github.com/listenupapp/photoshelf/internal/logger"
)

// ProvideConfig provides the application configuration.
// Command-line overrides are registered as a config.Flags value.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	flags, err := do.Invoke[config.Flags](i)
	if err != nil {
		flags = config.Flags{}
	}
	return config.Load(flags)
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Photoshelf",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"photos_path", cfg.Library.PhotosPath,
		"thumbnails_path", cfg.Library.ThumbnailsPath,
	)

	return log, nil
}
