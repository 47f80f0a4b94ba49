package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/sse"
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

// Component statuses.
const (
	healthHealthy   = "healthy"
	healthDegraded  = "degraded"
	healthUnhealthy = "unhealthy"
)

// ComponentHealth describes the health of a single component.
type ComponentHealth struct {
	Status  string `json:"status" doc:"Component status: healthy, degraded, or unhealthy"`
	Latency string `json:"latency,omitempty" doc:"Response time for this component"`
	Message string `json:"message,omitempty" doc:"Additional status information"`
}

// HealthResponse contains health check data in API responses.
type HealthResponse struct {
	Status     string                     `json:"status" doc:"Overall status: healthy, degraded, or unhealthy"`
	Components map[string]ComponentHealth `json:"components" doc:"Individual component statuses"`
	Remote     ConnectivityResponse       `json:"remote" doc:"Current connectivity verdict"`
}

// HealthOutput wraps the health response for Huma.
type HealthOutput struct {
	Body HealthResponse
}

func (s *Server) handleHealthCheck(ctx context.Context, _ *struct{}) (*HealthOutput, error) {
	components := map[string]ComponentHealth{
		"cache":  s.checkCache(ctx),
		"remote": s.checkRemote(),
		"search": s.checkSearchIndex(),
		"sse":    s.checkSSEManager(),
	}

	overall := healthHealthy
	for _, c := range components {
		switch c.Status {
		case healthUnhealthy:
			overall = healthUnhealthy
		case healthDegraded:
			if overall == healthHealthy {
				overall = healthDegraded
			}
		}
	}

	resp := HealthResponse{Status: overall, Components: components}
	if s.monitor != nil {
		resp.Remote = toConnectivityResponse(s.monitor.Last())
	}
	return &HealthOutput{Body: resp}, nil
}

// checkCache verifies the local cache answers reads and reports its quota use.
func (s *Server) checkCache(ctx context.Context) ComponentHealth {
	if s.cache == nil {
		return ComponentHealth{Status: healthDegraded, Message: "cache not configured"}
	}

	start := time.Now()
	_, err := s.cache.Get(ctx, "_health", "probe")
	latency := time.Since(start)

	if err != nil && !domainerrors.IsCacheMiss(err) {
		return ComponentHealth{
			Status:  healthUnhealthy,
			Latency: latency.String(),
			Message: "cache read failed",
		}
	}

	used, limit := s.cache.Usage()
	c := ComponentHealth{Status: healthHealthy, Latency: latency.String()}
	if limit > 0 {
		c.Message = fmt.Sprintf("%d of %d bytes used", used, limit)
		if used >= limit {
			c.Status = healthDegraded
		}
	}
	return c
}

// checkRemote reports the last verdict without probing. An unreachable
// remote only degrades the service, reads and writes fall back locally.
func (s *Server) checkRemote() ComponentHealth {
	if s.monitor == nil {
		return ComponentHealth{Status: healthDegraded, Message: "connectivity monitor not configured"}
	}

	v := s.monitor.Last()
	c := ComponentHealth{Status: healthDegraded, Message: string(v.Status)}
	if v.Connected() {
		c.Status = healthHealthy
	}
	if v.Message != "" {
		c.Message = string(v.Status) + ": " + v.Message
	}
	return c
}

// checkSearchIndex verifies the Bleve index is accessible.
func (s *Server) checkSearchIndex() ComponentHealth {
	if s.services == nil || s.services.Search == nil {
		return ComponentHealth{Status: healthDegraded, Message: "search service not configured"}
	}

	start := time.Now()
	docCount, err := s.services.Search.DocumentCount()
	latency := time.Since(start)

	if err != nil {
		return ComponentHealth{
			Status:  healthUnhealthy,
			Latency: latency.String(),
			Message: "search index unreachable",
		}
	}
	if docCount == 0 {
		return ComponentHealth{
			Status:  healthDegraded,
			Latency: latency.String(),
			Message: "search index empty",
		}
	}
	return ComponentHealth{Status: healthHealthy, Latency: latency.String()}
}

func (s *Server) checkSSEManager() ComponentHealth {
	if s.sseManager == nil {
		return ComponentHealth{Status: healthDegraded, Message: "SSE manager not configured"}
	}
	return ComponentHealth{Status: healthHealthy, Message: formatSSEStatus(s.sseManager.Stats())}
}

func formatSSEStatus(stats sse.Stats) string {
	var msg string
	switch stats.Subscribers {
	case 0:
		msg = "no subscribers"
	case 1:
		msg = "1 subscriber"
	default:
		msg = fmt.Sprintf("%d subscribers", stats.Subscribers)
	}
	if stats.Dropped > 0 {
		msg += fmt.Sprintf(", %d events dropped", stats.Dropped)
	}
	return msg
}

// toConnectivityResponse converts a verdict to its API form.
func toConnectivityResponse(v connectivity.Verdict) ConnectivityResponse {
	return ConnectivityResponse{
		Status:    string(v.Status),
		Connected: v.Connected(),
		Message:   v.Message,
		CheckedAt: v.CheckedAt,
	}
}
