package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerConnectivityRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getConnectivity",
		Method:      http.MethodGet,
		Path:        "/api/v1/connectivity",
		Summary:     "Get connectivity",
		Description: "Returns the current verdict about the remote data service, re-probing when stale",
		Tags:        []string{"Connectivity"},
	}, s.handleGetConnectivity)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkConnectivity",
		Method:      http.MethodPost,
		Path:        "/api/v1/connectivity/check",
		Summary:     "Check connectivity",
		Description: "Probes the remote now, bypassing the cached verdict",
		Tags:        []string{"Connectivity"},
	}, s.handleCheckConnectivity)

	huma.Register(s.api, huma.Operation{
		OperationID: "reportOnline",
		Method:      http.MethodPost,
		Path:        "/api/v1/connectivity/online",
		Summary:     "Report host online",
		Description: "Tells the server the host network is back; the remote is re-probed in the background",
		Tags:        []string{"Connectivity"},
	}, s.handleReportOnline)

	huma.Register(s.api, huma.Operation{
		OperationID: "reportOffline",
		Method:      http.MethodPost,
		Path:        "/api/v1/connectivity/offline",
		Summary:     "Report host offline",
		Description: "Tells the server the host network is gone; the verdict becomes unreachable immediately",
		Tags:        []string{"Connectivity"},
	}, s.handleReportOffline)
}

// === DTOs ===

// ConnectivityResponse contains a connectivity verdict.
type ConnectivityResponse struct {
	Status    string    `json:"status" enum:"unknown,connected,unreachable,schema_missing" doc:"Verdict status"`
	Connected bool      `json:"connected" doc:"Whether remote operations are attempted"`
	Message   string    `json:"message,omitempty" doc:"Reason for a non-connected verdict"`
	CheckedAt time.Time `json:"checked_at" doc:"When the verdict was reached"`
}

// ConnectivityOutput wraps the connectivity response for Huma.
type ConnectivityOutput struct {
	Body ConnectivityResponse
}

// === Handlers ===

func (s *Server) handleGetConnectivity(ctx context.Context, _ *struct{}) (*ConnectivityOutput, error) {
	return &ConnectivityOutput{Body: toConnectivityResponse(s.monitor.Verdict(ctx))}, nil
}

func (s *Server) handleCheckConnectivity(ctx context.Context, _ *struct{}) (*ConnectivityOutput, error) {
	return &ConnectivityOutput{Body: toConnectivityResponse(s.monitor.Check(ctx))}, nil
}

func (s *Server) handleReportOnline(_ context.Context, _ *struct{}) (*ConnectivityOutput, error) {
	s.monitor.SetOnline(true)
	return &ConnectivityOutput{Body: toConnectivityResponse(s.monitor.Last())}, nil
}

func (s *Server) handleReportOffline(_ context.Context, _ *struct{}) (*ConnectivityOutput, error) {
	s.monitor.SetOnline(false)
	return &ConnectivityOutput{Body: toConnectivityResponse(s.monitor.Last())}, nil
}
