package api

import (
	"github.com/listenupapp/photoshelf/internal/library"
	"github.com/listenupapp/photoshelf/internal/ratelimit"
	"github.com/listenupapp/photoshelf/internal/sse"
)

// Services groups the components used by the API server.
type Services struct {
	Library       *library.Library
	ImportLimiter *ratelimit.KeyedRateLimiter // per-client upload limiter; nil disables limiting
	Events        *sse.Manager                // change feed; nil disables /api/v1/events
}

// Options configures the HTTP surface.
type Options struct {
	// AllowedOrigins lists CORS origins. Empty means any origin.
	AllowedOrigins []string
	// MaxUploadBytes caps import request bodies.
	MaxUploadBytes int64
}

func (o *Options) setDefaults() {
	if len(o.AllowedOrigins) == 0 {
		o.AllowedOrigins = []string{"*"}
	}
	if o.MaxUploadBytes <= 0 {
		o.MaxUploadBytes = DefaultMaxUploadSize
	}
}
