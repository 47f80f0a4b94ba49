package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (s *Server) registerSyncRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "reconcile",
		Method:      http.MethodPost,
		Path:        "/api/v1/sync/reconcile",
		Summary:     "Reconcile",
		Description: "Pushes locally pending writes to the remote if it is connected",
		Tags:        []string{"Sync"},
	}, s.handleReconcile)

	huma.Register(s.api, huma.Operation{
		OperationID: "syncStatus",
		Method:      http.MethodGet,
		Path:        "/api/v1/sync/status",
		Summary:     "Sync status",
		Description: "Returns the verdict, pending writes and local collection sizes",
		Tags:        []string{"Sync"},
	}, s.handleSyncStatus)
}

// === DTOs ===

// ReconcileResponse summarizes a reconcile pass.
type ReconcileResponse struct {
	Remote    ConnectivityResponse `json:"remote" doc:"Verdict at the start of the pass"`
	Pushed    int                  `json:"pushed" doc:"Values written to the remote"`
	Failed    int                  `json:"failed" doc:"Values the remote rejected this pass"`
	Dropped   int                  `json:"dropped" doc:"Pending markers without a local value"`
	Remaining int                  `json:"remaining" doc:"Values still pending"`
}

// ReconcileOutput wraps the reconcile report for Huma.
type ReconcileOutput struct {
	Body ReconcileResponse
}

// SyncStatusResponse describes the local store.
type SyncStatusResponse struct {
	Remote      ConnectivityResponse `json:"remote" doc:"Current verdict"`
	Collections map[string]int       `json:"collections" doc:"Cached values per collection"`
	Pending     int                  `json:"pending" doc:"Writes not yet on the remote"`
	CacheUsed   int64                `json:"cache_used_bytes" doc:"Bytes held by the local cache"`
	CacheLimit  int64                `json:"cache_limit_bytes" doc:"Local cache quota, 0 for none"`
}

// SyncStatusOutput wraps the sync status for Huma.
type SyncStatusOutput struct {
	Body SyncStatusResponse
}

// === Handlers ===

func (s *Server) handleReconcile(ctx context.Context, _ *struct{}) (*ReconcileOutput, error) {
	report, err := s.services.Sync.Reconcile(ctx)
	if err != nil {
		return nil, err
	}
	return &ReconcileOutput{Body: ReconcileResponse{
		Remote:    toConnectivityResponse(report.Verdict),
		Pushed:    report.Pushed,
		Failed:    report.Failed,
		Dropped:   report.Dropped,
		Remaining: report.Remaining,
	}}, nil
}

func (s *Server) handleSyncStatus(ctx context.Context, _ *struct{}) (*SyncStatusOutput, error) {
	status, err := s.services.Sync.Status(ctx)
	if err != nil {
		return nil, err
	}
	return &SyncStatusOutput{Body: SyncStatusResponse{
		Remote:      toConnectivityResponse(status.Verdict),
		Collections: status.Collections,
		Pending:     status.Pending,
		CacheUsed:   status.CacheUsed,
		CacheLimit:  status.CacheLimit,
	}}, nil
}
