package api

import (
	"net/url"
	"time"

	"github.com/listenupapp/photoshelf/internal/catalog"
	domainerrors "github.com/listenupapp/photoshelf/internal/errors"
)

// PhotoResponse contains photo data in API responses.
type PhotoResponse struct {
	Name           string    `json:"name" doc:"Photo identity"`
	DateAdded      time.Time `json:"date_added" doc:"When the photo joined this session"`
	Description    *string   `json:"description" doc:"Free text description, null when unset"`
	Tags           []string  `json:"tags" doc:"Tag names, sorted"`
	BlurHash       string    `json:"blur_hash,omitempty" doc:"BlurHash of the thumbnail"`
	ThumbnailState string    `json:"thumbnail_state" enum:"unloaded,loaded,failed" doc:"Thumbnail slot state"`
	ThumbnailURL   string    `json:"thumbnail_url" doc:"Thumbnail JPEG location"`
	ImageURL       string    `json:"image_url" doc:"Source JPEG location"`
}

// findPhoto returns the photo named name or a not-found domain error.
func (s *Server) findPhoto(name string) (*catalog.Photo, error) {
	p, ok := s.library().Graph().Photo(name)
	if !ok {
		return nil, domainerrors.NotFoundf("photo %q not found", name)
	}
	return p, nil
}

func toPhotoResponse(p *catalog.Photo) PhotoResponse {
	tags := p.Tags()
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name()
	}

	var desc *string
	if d, ok := p.Description(); ok {
		desc = &d
	}

	state, _ := p.ThumbnailState()
	escaped := url.PathEscape(p.Name())

	return PhotoResponse{
		Name:           p.Name(),
		DateAdded:      p.DateAdded(),
		Description:    desc,
		Tags:           names,
		BlurHash:       p.BlurHash(),
		ThumbnailState: state.String(),
		ThumbnailURL:   "/thumbnails/" + escaped,
		ImageURL:       "/photos/" + escaped,
	}
}

func toPhotoResponses(photos []*catalog.Photo) []PhotoResponse {
	out := make([]PhotoResponse, len(photos))
	for i, p := range photos {
		out[i] = toPhotoResponse(p)
	}
	return out
}
