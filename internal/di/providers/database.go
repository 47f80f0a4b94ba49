package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/sleepwell/sleepwell-server/internal/cache"
	"github.com/sleepwell/sleepwell-server/internal/config"
	"github.com/sleepwell/sleepwell-server/internal/logger"
	"github.com/sleepwell/sleepwell-server/internal/sse"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// CacheHandle wraps the local cache with shutdown capability.
type CacheHandle struct {
	*cache.Store
}

// Shutdown implements do.Shutdownable.
func (h *CacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideCache provides the local cache.
func ProvideCache(i do.Injector) (*CacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	store, err := cache.Open(cache.Options{
		Path:     cfg.Cache.Path,
		InMemory: cfg.Cache.InMemory,
		MaxBytes: cfg.Cache.MaxBytes,
		Logger:   log.Component("cache"),
	})
	if err != nil {
		return nil, err
	}

	return &CacheHandle{Store: store}, nil
}
