package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/listenupapp/photoshelf/internal/config"
	"github.com/listenupapp/photoshelf/internal/logger"
	"github.com/listenupapp/photoshelf/internal/media/images"
)

// ImageStorages groups the source and thumbnail stores.
type ImageStorages struct {
	Photos     *images.Storage
	Thumbnails *images.Storage
}

// ProvideImageStorages provides both image stores.
func ProvideImageStorages(i do.Injector) (*ImageStorages, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	photos, err := images.NewStorage(cfg.Library.PhotosPath)
	if err != nil {
		return nil, fmt.Errorf("photo storage: %w", err)
	}

	thumbnails, err := images.NewStorage(cfg.Library.ThumbnailsPath)
	if err != nil {
		return nil, fmt.Errorf("thumbnail storage: %w", err)
	}

	log.Info("Image storages initialized",
		"photos", photos.Root(),
		"thumbnails", thumbnails.Root(),
	)

	return &ImageStorages{
		Photos:     photos,
		Thumbnails: thumbnails,
	}, nil
}
