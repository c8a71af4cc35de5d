package api

// Version is reported in the OpenAPI document and the health check.
const Version = "1.0.0"

// API limits and constants.
const (
	// DefaultMaxUploadSize is the upload limit when none is configured (32 MB).
	DefaultMaxUploadSize = 32 << 20
)

// CacheNoStore makes clients revalidate images; thumbnails can be regenerated in place.
const CacheNoStore = "no-cache"
