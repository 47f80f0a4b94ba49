package providers

import (
	"context"
	"fmt"

	"github.com/samber/do/v2"

	"github.com/sleepwell/sleepwell-server/internal/config"
	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	"github.com/sleepwell/sleepwell-server/internal/logger"
	"github.com/sleepwell/sleepwell-server/internal/remote"
	"github.com/sleepwell/sleepwell-server/internal/remote/postgrest"
	"github.com/sleepwell/sleepwell-server/internal/remote/sqldb"
	"github.com/sleepwell/sleepwell-server/internal/sync"
)

// RemoteHandle holds the unguarded remote gateway.
type RemoteHandle struct {
	remote.Gateway
	close func() error
}

// Shutdown implements do.Shutdownable.
func (h *RemoteHandle) Shutdown() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// ProvideRemote provides the gateway selected by Remote.Kind.
func ProvideRemote(i do.Injector) (*RemoteHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	switch cfg.Remote.Kind {
	case config.RemotePostgREST:
		client := postgrest.New(postgrest.Options{
			URL:     cfg.Remote.URL,
			APIKey:  cfg.Remote.APIKey,
			Timeout: cfg.Remote.Timeout,
			Logger:  log.Component("postgrest"),
		})
		log.Info("Remote data service configured", "kind", cfg.Remote.Kind, "url", cfg.Remote.URL)
		return &RemoteHandle{Gateway: client}, nil

	case config.RemoteSQL:
		gw, err := sqldb.Open(sqldb.Options{
			Driver: cfg.Remote.Driver,
			DSN:    cfg.Remote.DSN,
			Debug:  cfg.Logger.Level == "debug",
			Logger: log.Component("sqldb"),
		})
		if err != nil {
			return nil, err
		}
		return &RemoteHandle{Gateway: gw, close: gw.Close}, nil

	default:
		return nil, fmt.Errorf("unknown remote kind %q", cfg.Remote.Kind)
	}
}

// MonitorHandle wraps the connectivity monitor and its probe loop.
type MonitorHandle struct {
	*connectivity.Monitor
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *MonitorHandle) Shutdown() error {
	h.cancel()
	return nil
}

// ProvideMonitor provides the connectivity monitor and starts its probe loop.
func ProvideMonitor(i do.Injector) (*MonitorHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	remoteHandle := do.MustInvoke[*RemoteHandle](i)

	monitor := connectivity.NewMonitor(remoteHandle.Gateway, connectivity.Options{
		MinRefresh:   cfg.Connectivity.MinRefresh,
		Interval:     cfg.Connectivity.ProbeInterval,
		ProbeTimeout: cfg.Remote.Timeout,
		Logger:       log.Component("connectivity"),
	})

	ctx, cancel := context.WithCancel(context.Background())
	go monitor.Run(ctx)

	return &MonitorHandle{Monitor: monitor, cancel: cancel}, nil
}

// ProvideCoordinator provides the sync coordinator over the guarded gateway.
func ProvideCoordinator(i do.Injector) (*sync.Coordinator, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	remoteHandle := do.MustInvoke[*RemoteHandle](i)
	monitorHandle := do.MustInvoke[*MonitorHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)

	guarded := remote.Guard(remoteHandle.Gateway, monitorHandle.Monitor, cfg.Remote.Timeout, log.Component("remote"))

	return sync.NewCoordinator(cacheHandle.Store, guarded, monitorHandle.Monitor, sseHandle.Manager, log.Component("sync")), nil
}
