package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/photoshelf/internal/catalog"
	"github.com/listenupapp/photoshelf/internal/sse"
)

func (s *Server) registerPhotoRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listPhotos",
		Method:      http.MethodGet,
		Path:        "/api/v1/photos",
		Summary:     "List photos",
		Description: "Returns all photos sorted by name, optionally only those carrying a tag",
		Tags:        []string{"Photos"},
	}, s.handleListPhotos)

	huma.Register(s.api, huma.Operation{
		OperationID: "getPhoto",
		Method:      http.MethodGet,
		Path:        "/api/v1/photos/{name}",
		Summary:     "Get photo",
		Description: "Returns a photo by name",
		Tags:        []string{"Photos"},
	}, s.handleGetPhoto)

	huma.Register(s.api, huma.Operation{
		OperationID: "updatePhoto",
		Method:      http.MethodPatch,
		Path:        "/api/v1/photos/{name}",
		Summary:     "Update photo",
		Description: "Sets or clears the photo description",
		Tags:        []string{"Photos"},
	}, s.handleUpdatePhoto)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deletePhoto",
		Method:        http.MethodDelete,
		Path:          "/api/v1/photos/{name}",
		Summary:       "Delete photo",
		Description:   "Deletes the photo, its source image and its thumbnail",
		Tags:          []string{"Photos"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeletePhoto)

	huma.Register(s.api, huma.Operation{
		OperationID: "regenerateThumbnail",
		Method:      http.MethodPost,
		Path:        "/api/v1/photos/{name}/thumbnail",
		Summary:     "Regenerate thumbnail",
		Description: "Regenerates the thumbnail from the source image and overwrites the stored artifact",
		Tags:        []string{"Photos"},
	}, s.handleRegenerateThumbnail)
}

// === DTOs ===

// ListPhotosInput contains parameters for listing photos.
type ListPhotosInput struct {
	Tag string `query:"tag" maxLength:"64" doc:"Only photos carrying this tag"`
}

// ListPhotosResponse contains a list of photos.
type ListPhotosResponse struct {
	Photos []PhotoResponse `json:"photos" doc:"Photos sorted by name"`
	Total  int             `json:"total" doc:"Number of photos returned"`
}

// ListPhotosOutput wraps the list photos response for Huma.
type ListPhotosOutput struct {
	Body ListPhotosResponse
}

// PhotoInput identifies a photo by path.
type PhotoInput struct {
	Name string `path:"name" maxLength:"255" doc:"Photo name"`
}

// PhotoOutput wraps the photo response for Huma.
type PhotoOutput struct {
	Body PhotoResponse
}

// UpdatePhotoRequest is the request body for updating a photo.
type UpdatePhotoRequest struct {
	Description *string `json:"description" nullable:"true" maxLength:"2000" doc:"New description; null clears it"`
}

// UpdatePhotoInput wraps the update photo request for Huma.
type UpdatePhotoInput struct {
	Name string `path:"name" maxLength:"255" doc:"Photo name"`
	Body UpdatePhotoRequest
}

// === Handlers ===

func (s *Server) handleListPhotos(_ context.Context, input *ListPhotosInput) (*ListPhotosOutput, error) {
	graph := s.library().Graph()

	var photos []*catalog.Photo
	if input.Tag != "" {
		t, err := catalog.ParseTag(input.Tag)
		if err != nil {
			return nil, err
		}
		photos = graph.PhotosOf(t)
	} else {
		photos = graph.Photos()
	}

	return &ListPhotosOutput{
		Body: ListPhotosResponse{
			Photos: toPhotoResponses(photos),
			Total:  len(photos),
		},
	}, nil
}

func (s *Server) handleGetPhoto(_ context.Context, input *PhotoInput) (*PhotoOutput, error) {
	p, err := s.findPhoto(input.Name)
	if err != nil {
		return nil, err
	}
	return &PhotoOutput{Body: toPhotoResponse(p)}, nil
}

func (s *Server) handleUpdatePhoto(_ context.Context, input *UpdatePhotoInput) (*PhotoOutput, error) {
	p, err := s.findPhoto(input.Name)
	if err != nil {
		return nil, err
	}

	before, had := p.Description()
	if input.Body.Description != nil {
		p.SetDescription(*input.Body.Description)
	} else {
		p.ClearDescription()
	}
	if after, has := p.Description(); after != before || has != had {
		s.emit(sse.NewPhotoUpdatedEvent(p.Name()))
	}

	return &PhotoOutput{Body: toPhotoResponse(p)}, nil
}

func (s *Server) handleDeletePhoto(ctx context.Context, input *PhotoInput) (*struct{}, error) {
	if err := s.library().Remove(ctx, input.Name); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleRegenerateThumbnail(ctx context.Context, input *PhotoInput) (*PhotoOutput, error) {
	p, err := s.findPhoto(input.Name)
	if err != nil {
		return nil, err
	}

	if _, ok := s.library().Cache().Generate(ctx, p); !ok {
		s.logger.Warn("thumbnail regeneration failed", "photo", p.Name())
	} else {
		state, _ := p.ThumbnailState()
		s.emit(sse.NewThumbnailUpdatedEvent(p.Name(), state.String()))
	}

	return &PhotoOutput{Body: toPhotoResponse(p)}, nil
}
