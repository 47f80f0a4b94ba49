package service

import (
	"context"
	"log/slog"

	"github.com/sleepwell/sleepwell-server/internal/cache"
	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	"github.com/sleepwell/sleepwell-server/internal/sync"
)

// SyncStatus is an overview of the local store and its convergence with the
// remote.
type SyncStatus struct {
	Verdict     connectivity.Verdict `json:"verdict"`
	Collections map[string]int       `json:"collections"`
	Pending     int                  `json:"pending"`
	CacheUsed   int64                `json:"cache_used_bytes"`
	CacheLimit  int64                `json:"cache_limit_bytes"`
}

// SyncService exposes reconciliation and the state of the local cache.
type SyncService struct {
	coord  *sync.Coordinator
	cache  *cache.Store
	logger *slog.Logger
}

// NewSyncService creates a new sync service.
func NewSyncService(coord *sync.Coordinator, store *cache.Store, logger *slog.Logger) *SyncService {
	return &SyncService{
		coord:  coord,
		cache:  store,
		logger: logger,
	}
}

// Status returns the current verdict with pending and per-collection counts.
func (s *SyncService) Status(ctx context.Context) (*SyncStatus, error) {
	pending, err := s.coord.PendingCount(ctx)
	if err != nil {
		return nil, err
	}

	counts, err := s.cache.CountByCollection(ctx)
	if err != nil {
		return nil, err
	}
	delete(counts, sync.PendingCollection)

	used, limit := s.cache.Usage()

	return &SyncStatus{
		Verdict:     s.coord.Verdict(ctx),
		Collections: counts,
		Pending:     pending,
		CacheUsed:   used,
		CacheLimit:  limit,
	}, nil
}

// Reconcile pushes pending local writes to the remote.
func (s *SyncService) Reconcile(ctx context.Context) (sync.Report, error) {
	report, err := s.coord.Reconcile(ctx)
	if err != nil {
		return report, err
	}
	s.logger.Info("reconcile requested",
		"pushed", report.Pushed,
		"remaining", report.Remaining,
		"status", report.Verdict.Status)
	return report, nil
}
