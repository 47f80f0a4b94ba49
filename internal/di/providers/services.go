package providers

import (
	"github.com/samber/do/v2"

	"github.com/sleepwell/sleepwell-server/internal/logger"
	"github.com/sleepwell/sleepwell-server/internal/service"
	"github.com/sleepwell/sleepwell-server/internal/sync"
	"github.com/sleepwell/sleepwell-server/internal/validation"
)

// ProvideValidator provides the struct validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideCatalogService provides the catalog service.
func ProvideCatalogService(i do.Injector) (*service.CatalogService, error) {
	coord := do.MustInvoke[*sync.Coordinator](i)
	v := do.MustInvoke[*validation.Validator](i)
	searchService := do.MustInvoke[*service.SearchService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCatalogService(coord, v, searchService, sseHandle.Manager, log.Component("catalog")), nil
}

// ProvideProfileService provides the profile service.
func ProvideProfileService(i do.Injector) (*service.ProfileService, error) {
	coord := do.MustInvoke[*sync.Coordinator](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProfileService(coord, v, log.Component("profiles")), nil
}

// ProvideMeasurementService provides the measurement service.
func ProvideMeasurementService(i do.Injector) (*service.MeasurementService, error) {
	coord := do.MustInvoke[*sync.Coordinator](i)
	v := do.MustInvoke[*validation.Validator](i)
	profiles := do.MustInvoke[*service.ProfileService](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewMeasurementService(coord, v, profiles, sseHandle.Manager, log.Component("measurements")), nil
}

// ProvideChatService provides the chat history service.
func ProvideChatService(i do.Injector) (*service.ChatService, error) {
	coord := do.MustInvoke[*sync.Coordinator](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewChatService(coord, v, log.Component("chat")), nil
}

// ProvideCartService provides the cart service.
func ProvideCartService(i do.Injector) (*service.CartService, error) {
	coord := do.MustInvoke[*sync.Coordinator](i)
	v := do.MustInvoke[*validation.Validator](i)
	catalog := do.MustInvoke[*service.CatalogService](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewCartService(coord, v, catalog, log.Component("carts")), nil
}

// ProvideSyncService provides the sync service.
func ProvideSyncService(i do.Injector) (*service.SyncService, error) {
	coord := do.MustInvoke[*sync.Coordinator](i)
	cacheHandle := do.MustInvoke[*CacheHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSyncService(coord, cacheHandle.Store, log.Component("sync")), nil
}
