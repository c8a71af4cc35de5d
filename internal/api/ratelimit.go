package api

import (
	"net"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

// importRateLimit rejects uploads with 429 once a client exhausts its bucket.
// Clients are keyed by IP; RealIP has already applied forwarding headers.
func (s *Server) importRateLimit(ctx huma.Context, next func(huma.Context)) {
	limiter := s.services.ImportLimiter
	if limiter == nil {
		next(ctx)
		return
	}

	key := clientIP(ctx.RemoteAddr())
	if !limiter.Allow(key) {
		s.logger.Warn("rate limit exceeded",
			"ip", key,
			"path", ctx.URL().Path,
		)
		ctx.SetHeader("Retry-After", "60")
		if err := huma.WriteErr(s.api, ctx, http.StatusTooManyRequests, "Too many uploads. Please try again later."); err != nil {
			s.logger.Error("failed to write rate limit response", "error", err)
		}
		return
	}

	next(ctx)
}

// clientIP strips the port from a remote address.
func clientIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
