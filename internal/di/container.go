// Package di provides dependency injection configuration for the SleepWell server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/sleepwell/sleepwell-server/internal/config"
	"github.com/sleepwell/sleepwell-server/internal/di/providers"
	"github.com/sleepwell/sleepwell-server/internal/logger"
	"github.com/sleepwell/sleepwell-server/internal/service"
	"github.com/sleepwell/sleepwell-server/internal/sync"
	"github.com/sleepwell/sleepwell-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideValidator)

	// Local storage and events
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideCache)

	// Remote data service
	do.Provide(injector, providers.ProvideRemote)
	do.Provide(injector, providers.ProvideMonitor)
	do.Provide(injector, providers.ProvideCoordinator)

	// Search layer
	do.Provide(injector, providers.ProvideSearchIndex)
	do.Provide(injector, providers.ProvideSearchService)

	// Business services
	do.Provide(injector, providers.ProvideCatalogService)
	do.Provide(injector, providers.ProvideProfileService)
	do.Provide(injector, providers.ProvideMeasurementService)
	do.Provide(injector, providers.ProvideChatService)
	do.Provide(injector, providers.ProvideCartService)
	do.Provide(injector, providers.ProvideSyncService)

	// Workers
	do.Provide(injector, providers.ProvideConnectivityWatcher)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services and returns handles for lifecycle management.
// This triggers lazy initialization of all core services.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.CacheHandle](injector)
	_ = do.MustInvoke[*providers.RemoteHandle](injector)
	_ = do.MustInvoke[*providers.MonitorHandle](injector)
	_ = do.MustInvoke[*sync.Coordinator](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)
	_ = do.MustInvoke[*service.SearchService](injector)

	// Business services
	_ = do.MustInvoke[*service.CatalogService](injector)
	_ = do.MustInvoke[*service.ProfileService](injector)
	_ = do.MustInvoke[*service.MeasurementService](injector)
	_ = do.MustInvoke[*service.ChatService](injector)
	_ = do.MustInvoke[*service.CartService](injector)
	_ = do.MustInvoke[*service.SyncService](injector)

	// Workers
	_ = do.MustInvoke[*providers.ConnectivityWatcher](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	providers.PrepareCatalog(injector)

	return nil
}
