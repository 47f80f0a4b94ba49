package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	"github.com/sleepwell/sleepwell-server/internal/search"
)

// SearchService keeps the catalog search index current and runs queries
// against it. A nil index disables search: writes become no-ops and queries
// return empty results.
type SearchService struct {
	index  *search.SearchIndex
	logger *slog.Logger
}

// NewSearchService creates a new search service.
func NewSearchService(index *search.SearchIndex, logger *slog.Logger) *SearchService {
	return &SearchService{
		index:  index,
		logger: logger,
	}
}

// Search runs a catalog query.
func (s *SearchService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if s.index == nil {
		return &search.SearchResult{Query: params.Query, Hits: []search.SearchHit{}}, nil
	}
	return s.index.Search(ctx, params)
}

// IndexProduct indexes a single product.
// Call this when a product is created or updated.
func (s *SearchService) IndexProduct(p *domain.Product, brandName string) error {
	if s.index == nil {
		return nil
	}
	if err := s.index.IndexDocument(search.ProductToSearchDocument(p, brandName)); err != nil {
		return fmt.Errorf("index product: %w", err)
	}
	s.logger.Debug("indexed product", "id", p.ID, "name", p.Name)
	return nil
}

// IndexBrand indexes a single brand.
func (s *SearchService) IndexBrand(b *domain.Brand) error {
	if s.index == nil {
		return nil
	}
	if err := s.index.IndexDocument(search.BrandToSearchDocument(b)); err != nil {
		return fmt.Errorf("index brand: %w", err)
	}
	s.logger.Debug("indexed brand", "id", b.ID, "name", b.Name)
	return nil
}

// DeleteProduct removes a product from the index.
func (s *SearchService) DeleteProduct(productID int64) error {
	if s.index == nil {
		return nil
	}
	return s.index.DeleteDocument(search.ProductDocID(productID))
}

// DocumentCount returns the number of indexed documents.
func (s *SearchService) DocumentCount() (uint64, error) {
	if s.index == nil {
		return 0, nil
	}
	return s.index.DocumentCount()
}

// ReindexAll rebuilds the index from scratch with the given catalog.
func (s *SearchService) ReindexAll(products []*domain.Product, brands []*domain.Brand) error {
	if s.index == nil {
		return nil
	}

	s.logger.Info("starting full reindex")

	if err := s.index.Rebuild(); err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}

	names := make(map[string]string, len(brands))
	docs := make([]*search.SearchDocument, 0, len(products)+len(brands))
	for _, b := range brands {
		names[b.ID] = b.Name
		docs = append(docs, search.BrandToSearchDocument(b))
	}
	for _, p := range products {
		docs = append(docs, search.ProductToSearchDocument(p, names[p.BrandID]))
	}

	if len(docs) > 0 {
		if err := s.index.IndexDocuments(docs); err != nil {
			return fmt.Errorf("index catalog: %w", err)
		}
	}

	total, _ := s.index.DocumentCount()
	s.logger.Info("full reindex complete",
		"products", len(products),
		"brands", len(brands),
		"total_documents", total)

	return nil
}
