package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/photoshelf/internal/catalog"
	"github.com/listenupapp/photoshelf/internal/sse"
)

func (s *Server) registerTagRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listTags",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags",
		Summary:     "List tags",
		Description: "Returns every tag applied to at least one photo, with its photo count",
		Tags:        []string{"Tags"},
	}, s.handleListTags)

	huma.Register(s.api, huma.Operation{
		OperationID: "getTagPhotos",
		Method:      http.MethodGet,
		Path:        "/api/v1/tags/{tag}/photos",
		Summary:     "Get tag photos",
		Description: "Returns the photos carrying a tag",
		Tags:        []string{"Tags"},
	}, s.handleGetTagPhotos)

	huma.Register(s.api, huma.Operation{
		OperationID: "addPhotoTag",
		Method:      http.MethodPut,
		Path:        "/api/v1/photos/{name}/tags/{tag}",
		Summary:     "Tag photo",
		Description: "Applies a tag to a photo. Applying a tag twice has no effect.",
		Tags:        []string{"Tags"},
	}, s.handleAddPhotoTag)

	huma.Register(s.api, huma.Operation{
		OperationID: "removePhotoTag",
		Method:      http.MethodDelete,
		Path:        "/api/v1/photos/{name}/tags/{tag}",
		Summary:     "Untag photo",
		Description: "Removes a tag from a photo. Removing an absent tag has no effect.",
		Tags:        []string{"Tags"},
	}, s.handleRemovePhotoTag)
}

// === DTOs ===

// TagResponse contains tag data in API responses.
type TagResponse struct {
	Name   string `json:"name" doc:"Tag name"`
	Photos int    `json:"photos" doc:"Number of photos carrying the tag"`
}

// ListTagsResponse contains a list of tags.
type ListTagsResponse struct {
	Tags []TagResponse `json:"tags" doc:"Tags sorted by name"`
}

// ListTagsOutput wraps the list tags response for Huma.
type ListTagsOutput struct {
	Body ListTagsResponse
}

// TagInput identifies a tag by path.
type TagInput struct {
	Tag string `path:"tag" maxLength:"256" doc:"Tag name"`
}

// PhotoTagInput identifies a photo and a tag by path.
type PhotoTagInput struct {
	Name string `path:"name" maxLength:"255" doc:"Photo name"`
	Tag  string `path:"tag" maxLength:"256" doc:"Tag name"`
}

// === Handlers ===

func (s *Server) handleListTags(_ context.Context, _ *struct{}) (*ListTagsOutput, error) {
	counts := s.library().Graph().Tags()

	tags := make([]TagResponse, len(counts))
	for i, c := range counts {
		tags[i] = TagResponse{Name: c.Tag.Name(), Photos: c.Photos}
	}

	return &ListTagsOutput{Body: ListTagsResponse{Tags: tags}}, nil
}

func (s *Server) handleGetTagPhotos(_ context.Context, input *TagInput) (*ListPhotosOutput, error) {
	t, err := catalog.ParseTag(input.Tag)
	if err != nil {
		return nil, err
	}

	photos := s.library().Graph().PhotosOf(t)
	return &ListPhotosOutput{
		Body: ListPhotosResponse{
			Photos: toPhotoResponses(photos),
			Total:  len(photos),
		},
	}, nil
}

func (s *Server) handleAddPhotoTag(_ context.Context, input *PhotoTagInput) (*PhotoOutput, error) {
	p, t, err := s.photoAndTag(input)
	if err != nil {
		return nil, err
	}

	if s.library().Graph().AddTag(p, t) {
		s.logger.Debug("tag added", "photo", p.Name(), "tag", t.Name())
		s.emit(sse.NewTagAppliedEvent(p.Name(), t.Name()))
	}

	return &PhotoOutput{Body: toPhotoResponse(p)}, nil
}

func (s *Server) handleRemovePhotoTag(_ context.Context, input *PhotoTagInput) (*PhotoOutput, error) {
	p, t, err := s.photoAndTag(input)
	if err != nil {
		return nil, err
	}

	if s.library().Graph().RemoveTag(p, t) {
		s.logger.Debug("tag removed", "photo", p.Name(), "tag", t.Name())
		s.emit(sse.NewTagRemovedEvent(p.Name(), t.Name()))
	}

	return &PhotoOutput{Body: toPhotoResponse(p)}, nil
}

func (s *Server) photoAndTag(input *PhotoTagInput) (*catalog.Photo, catalog.Tag, error) {
	p, err := s.findPhoto(input.Name)
	if err != nil {
		return nil, catalog.Tag{}, err
	}
	t, err := catalog.ParseTag(input.Tag)
	if err != nil {
		return nil, catalog.Tag{}, err
	}
	return p, t, nil
}
