package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/photoshelf/internal/thumbnail"
)

func (s *Server) registerHealthRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "healthCheck",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Description: "Returns server health status with component checks",
		Tags:        []string{"Health"},
	}, s.handleHealthCheck)
}

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy or unhealthy"`
	Version    string                     `json:"version" doc:"Server version"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
	Photos     int                        `json:"photos" doc:"Photos in the session"`
	Tags       int                        `json:"tags" doc:"Distinct tags in use"`
	Thumbnails thumbnail.Stats            `json:"thumbnails" doc:"Thumbnail cache counters"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(_ context.Context, _ *struct{}) (*HealthOutput, error) {
	lib := s.library()
	components := map[string]ComponentHealth{
		"photos":     checkDirectory(lib.Sources().Root()),
		"thumbnails": checkDirectory(lib.Thumbnails().Root()),
	}

	overall := "healthy"
	for _, c := range components {
		if c.Status != "healthy" {
			overall = "unhealthy"
		}
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:     overall,
			Version:    Version,
			Components: components,
			Photos:     lib.Graph().Len(),
			Tags:       len(lib.Graph().Tags()),
			Thumbnails: lib.Cache().Stats(),
		},
	}, nil
}

// checkDirectory verifies a store directory is still present.
func checkDirectory(path string) ComponentHealth {
	start := time.Now()
	info, err := os.Stat(path)
	latency := time.Since(start).String()

	switch {
	case err != nil:
		return ComponentHealth{Status: "unhealthy", Latency: latency, Message: err.Error()}
	case !info.IsDir():
		return ComponentHealth{Status: "unhealthy", Latency: latency, Message: fmt.Sprintf("%s is not a directory", path)}
	default:
		return ComponentHealth{Status: "healthy", Latency: latency}
	}
}
