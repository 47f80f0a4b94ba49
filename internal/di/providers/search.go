package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/sleepwell/sleepwell-server/internal/config"
	"github.com/sleepwell/sleepwell-server/internal/logger"
	"github.com/sleepwell/sleepwell-server/internal/search"
	"github.com/sleepwell/sleepwell-server/internal/service"
)

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve search index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	index, err := search.NewSearchIndex(search.Options{
		DataPath: cfg.Search.Path,
		InMemory: cfg.Cache.InMemory,
		Logger:   log.Logger,
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// ProvideSearchService provides the search service.
func ProvideSearchService(i do.Injector) (*service.SearchService, error) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewSearchService(indexHandle.SearchIndex, log.Logger), nil
}

// PrepareCatalog seeds the template catalog when enabled and rebuilds the
// search index in the background. Neither step blocks startup; a remote that
// is down only postpones seeding to the next start.
func PrepareCatalog(i do.Injector) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	catalog := do.MustInvoke[*service.CatalogService](i)
	searchService := do.MustInvoke[*service.SearchService](i)

	go func() {
		ctx := context.Background()

		if cfg.Catalog.SeedTemplates {
			report, err := catalog.Seed(ctx)
			if err != nil {
				log.Warn("Template catalog not seeded", "error", err)
			} else if report.Products+report.Brands+report.Reviews == 0 {
				log.Debug("Catalog already populated, seeding skipped")
			}
		}

		if err := catalog.Reindex(ctx); err != nil {
			log.Error("Initial search reindex failed", "error", err)
			return
		}
		count, _ := searchService.DocumentCount()
		log.Info("Initial search reindex completed", "documents", count)
	}()
}
