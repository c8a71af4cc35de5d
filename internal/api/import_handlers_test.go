package api

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/photoshelf/internal/errors"
	"github.com/listenupapp/photoshelf/internal/ratelimit"
)

func TestImportPhoto(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/imports?name=doggo.png", "Content-Type: image/png", bytes.NewReader(pngBytes(t, 80, 60)))
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	photo := decodeEnvelope[PhotoResponse](t, resp).Data
	assert.Equal(t, "doggo", photo.Name)
	assert.Equal(t, "loaded", photo.ThumbnailState)
	assert.NotEmpty(t, photo.BlurHash)

	assert.True(t, ts.lib.Sources().Exists("doggo"))
	assert.True(t, ts.lib.Thumbnails().Exists("doggo"))

	t.Run("name collision gets a suffix", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/imports?name=doggo.png", "Content-Type: image/png", bytes.NewReader(pngBytes(t, 80, 60)))
		require.Equal(t, http.StatusCreated, resp.Code)

		name := decodeEnvelope[PhotoResponse](t, resp).Data.Name
		assert.NotEqual(t, "doggo", name)
		assert.True(t, strings.HasPrefix(name, "doggo-"), name)
		assert.Equal(t, 2, ts.lib.Graph().Len())
	})
}

func TestImportPhoto_Rejected(t *testing.T) {
	ts := setupTestServer(t)

	t.Run("empty body", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/imports?name=empty", "Content-Type: image/png", bytes.NewReader(nil))
		require.Contains(t, []int{http.StatusBadRequest, http.StatusUnprocessableEntity}, resp.Code)
		assert.Equal(t, string(domainerrors.CodeValidation), decodeError(t, resp).Code)
	})

	t.Run("not an image", func(t *testing.T) {
		resp := ts.api.Post("/api/v1/imports?name=notes", "Content-Type: image/png", strings.NewReader("definitely not a picture"))
		require.Equal(t, http.StatusUnsupportedMediaType, resp.Code)
		assert.Equal(t, string(domainerrors.CodeUnsupported), decodeError(t, resp).Code)
	})

	assert.Equal(t, 0, ts.lib.Graph().Len())
	names, err := ts.lib.Sources().List()
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestImportPhoto_RateLimited(t *testing.T) {
	ts := setupTestServer(t, func(s *Services, _ *Options) {
		s.ImportLimiter = ratelimit.New(0.001, 1)
		t.Cleanup(s.ImportLimiter.Stop)
	})

	resp := ts.api.Post("/api/v1/imports?name=first", "Content-Type: image/png", bytes.NewReader(pngBytes(t, 16, 16)))
	require.Equal(t, http.StatusCreated, resp.Code)

	resp = ts.api.Post("/api/v1/imports?name=second", "Content-Type: image/png", bytes.NewReader(pngBytes(t, 16, 16)))
	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	assert.Equal(t, "60", resp.Header().Get("Retry-After"))
	assert.Equal(t, string(domainerrors.CodeTooManyRequests), decodeError(t, resp).Code)

	_, ok := ts.lib.Graph().Photo("second")
	assert.False(t, ok)
}

func TestClientIP(t *testing.T) {
	assert.Equal(t, "192.0.2.1", clientIP("192.0.2.1:1234"))
	assert.Equal(t, "::1", clientIP("[::1]:8080"))
	assert.Equal(t, "10.0.0.7", clientIP("10.0.0.7"))
}
