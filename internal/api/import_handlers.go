package api

import (
	"bytes"
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/listenupapp/photoshelf/internal/errors"
)

func (s *Server) registerImportRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "importPhoto",
		Method:        http.MethodPost,
		Path:          "/api/v1/imports",
		Summary:       "Import photo",
		Description:   "Stores an uploaded image (JPEG, PNG, GIF or WebP) as a new photo and generates its thumbnail",
		Tags:          []string{"Photos"},
		DefaultStatus: http.StatusCreated,
		MaxBodyBytes:  s.opts.MaxUploadBytes,
		Middlewares:   huma.Middlewares{s.importRateLimit},
	}, s.handleImportPhoto)
}

// === DTOs ===

// ImportPhotoInput carries the raw image upload.
type ImportPhotoInput struct {
	Name    string `query:"name" maxLength:"255" doc:"Name hint; the stem becomes the photo name"`
	RawBody []byte
}

// === Handlers ===

func (s *Server) handleImportPhoto(ctx context.Context, input *ImportPhotoInput) (*PhotoOutput, error) {
	if len(input.RawBody) == 0 {
		return nil, domainerrors.Validation("request body is empty")
	}

	p, err := s.library().ImportReader(ctx, input.Name, bytes.NewReader(input.RawBody))
	if err != nil {
		return nil, err
	}

	return &PhotoOutput{Body: toPhotoResponse(p)}, nil
}
