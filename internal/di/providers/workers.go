package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/sleepwell/sleepwell-server/internal/config"
	"github.com/sleepwell/sleepwell-server/internal/connectivity"
	"github.com/sleepwell/sleepwell-server/internal/logger"
	"github.com/sleepwell/sleepwell-server/internal/sse"
	"github.com/sleepwell/sleepwell-server/internal/sync"
)

// ConnectivityWatcher forwards verdict changes to SSE clients and, when
// enabled, reconciles pending writes once the remote is back.
type ConnectivityWatcher struct {
	unsubscribe []func()
}

// Shutdown implements do.Shutdownable.
func (w *ConnectivityWatcher) Shutdown() error {
	for _, fn := range w.unsubscribe {
		fn()
	}
	return nil
}

// ProvideConnectivityWatcher subscribes to the connectivity monitor.
func ProvideConnectivityWatcher(i do.Injector) (*ConnectivityWatcher, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	monitorHandle := do.MustInvoke[*MonitorHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	coord := do.MustInvoke[*sync.Coordinator](i)

	w := &ConnectivityWatcher{}

	w.unsubscribe = append(w.unsubscribe, monitorHandle.Subscribe(func(prev, next connectivity.Verdict) {
		log.Info("Remote connectivity changed",
			"from", prev.Status,
			"to", next.Status,
			"message", next.Message,
		)
		sseHandle.Emit(sse.NewConnectivityChangedEvent(prev, next))
	}))

	if cfg.Connectivity.ReconcileOnOnline {
		w.unsubscribe = append(w.unsubscribe, monitorHandle.Subscribe(coord.OnVerdictChange))
	}

	// Reach a first verdict without holding up startup.
	go monitorHandle.Check(context.Background())

	return w, nil
}
