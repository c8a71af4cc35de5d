package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/listenupapp/photoshelf/internal/catalog"
	"github.com/listenupapp/photoshelf/internal/http/response"
	"github.com/listenupapp/photoshelf/internal/media/images"
)

func (s *Server) registerImageRoutes() {
	// Image routes use chi directly for streaming, not huma.
	s.router.Get("/thumbnails/{name}", s.handleServeThumbnail)
	s.router.Get("/photos/{name}", s.handleServePhoto)
}

// handleServeThumbnail streams the photo's thumbnail JPEG, materializing it on
// first request. A photo whose thumbnail cannot be produced yields 404; the
// placeholder is the client's concern.
func (s *Server) handleServeThumbnail(w http.ResponseWriter, r *http.Request) {
	p, ok := s.photoFromPath(w, r)
	if !ok {
		return
	}

	img, ok := s.library().Cache().Materialize(r.Context(), p)
	if !ok {
		response.NotFound(w, "thumbnail not available", s.logger)
		return
	}

	thumbs := s.library().Thumbnails()
	if thumbs.Exists(p.Name()) && !s.library().Cache().PersistFailed(p.Name()) {
		s.serveStored(w, r, thumbs, p.Name())
		return
	}

	// Held in memory but not persisted; encode it on the fly.
	var buf bytes.Buffer
	if err := images.EncodeJPEG(&buf, img, s.library().Cache().Options().Quality); err != nil {
		s.logger.Error("failed to encode thumbnail", "photo", p.Name(), "error", err)
		response.InternalError(w, "internal server error", s.logger)
		return
	}
	writeJPEG(w, buf.Bytes(), "")
}

// handleServePhoto streams the photo's source JPEG.
func (s *Server) handleServePhoto(w http.ResponseWriter, r *http.Request) {
	p, ok := s.photoFromPath(w, r)
	if !ok {
		return
	}
	s.serveStored(w, r, s.library().Sources(), p.Name())
}

func (s *Server) photoFromPath(w http.ResponseWriter, r *http.Request) (*catalog.Photo, bool) {
	name := strings.TrimSuffix(chi.URLParam(r, "name"), images.Ext)
	if name == "" {
		response.BadRequest(w, "name required", s.logger)
		return nil, false
	}

	p, ok := s.library().Graph().Photo(name)
	if !ok {
		response.NotFound(w, "photo not found", s.logger)
		return nil, false
	}
	return p, true
}

// serveStored writes a stored JPEG with an ETag so clients can revalidate cheaply.
func (s *Server) serveStored(w http.ResponseWriter, r *http.Request, store *images.Storage, id string) {
	hash, err := store.Hash(id)
	if err != nil {
		response.NotFound(w, "image not found", s.logger)
		return
	}

	etag := `"` + hash + `"`
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	data, err := store.Get(id)
	if err != nil {
		response.NotFound(w, "image not found", s.logger)
		return
	}

	writeJPEG(w, data, etag)
}

func writeJPEG(w http.ResponseWriter, data []byte, etag string) {
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", CacheNoStore)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if etag != "" {
		w.Header().Set("ETag", etag)
	}
	w.Write(data) //nolint:errcheck // client went away
}
