package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	stdsync "sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/id"
	"github.com/sleepwell/sleepwell-server/internal/remote"
	"github.com/sleepwell/sleepwell-server/internal/sse"
	"github.com/sleepwell/sleepwell-server/internal/sync"
	"github.com/sleepwell/sleepwell-server/internal/validation"
)

// DefaultRelatedLimit is the number of related products returned when the
// caller does not ask for a specific count.
const DefaultRelatedLimit = 3

// CatalogService manages products, brands and reviews.
type CatalogService struct {
	products  *sync.Repository[domain.Product]
	brands    *sync.Repository[domain.Brand]
	reviews   *sync.Repository[domain.Review]
	validator *validation.Validator
	search    *SearchService
	events    EventEmitter
	logger    *slog.Logger

	// Serializes max+1 id allocation within this process.
	idMu stdsync.Mutex
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(coord *sync.Coordinator, validator *validation.Validator, search *SearchService, events EventEmitter, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		products:  newProductRepository(coord, validator),
		brands:    newBrandRepository(coord, validator),
		reviews:   newReviewRepository(coord, validator),
		validator: validator,
		search:    search,
		events:    emitterOrNoop(events),
		logger:    logger,
	}
}

// Catalog is a full snapshot of products, brands and reviews.
type Catalog struct {
	Products []*domain.Product
	Brands   []*domain.Brand
	Reviews  []*domain.Review
}

// LoadCatalog reads the three catalog collections in parallel. Brand product
// counts are derived from the products.
func (s *CatalogService) LoadCatalog(ctx context.Context) (*Catalog, sync.Outcome, error) {
	var cat Catalog
	var productOut, brandOut, revOut sync.Outcome

	byID := remote.Filter{}.Order("id", false)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		cat.Products, productOut, err = s.products.List(gctx, byID)
		return err
	})
	g.Go(func() error {
		var err error
		cat.Brands, brandOut, err = s.brands.List(gctx, byID)
		return err
	})
	g.Go(func() error {
		var err error
		cat.Reviews, revOut, err = s.reviews.List(gctx, byID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, combine(productOut, brandOut, revOut), fmt.Errorf("load catalog: %w", err)
	}

	countProducts(cat.Brands, cat.Products)
	return &cat, combine(productOut, brandOut, revOut), nil
}

// SeedReport lists how many template entities Seed wrote per collection.
type SeedReport struct {
	Products int `json:"products"`
	Brands   int `json:"brands"`
	Reviews  int `json:"reviews"`
}

// ErrSeedDegraded is returned by Seed when the remote could not be read, so
// emptiness of the catalog cannot be established.
var ErrSeedDegraded = errors.New("catalog seed skipped: remote data service not connected")

// Seed writes the starter catalog into every catalog collection that is
// empty in both stores. Collections with any data are left alone. Seeding
// needs a connected remote.
func (s *CatalogService) Seed(ctx context.Context) (SeedReport, error) {
	var report SeedReport

	cat, out, err := s.LoadCatalog(ctx)
	if err != nil {
		return report, err
	}
	if out.Degraded() {
		return report, ErrSeedDegraded
	}

	if report.Products, err = seedCollection(ctx, s.products, cat.Products, templateProducts()); err != nil {
		return report, fmt.Errorf("seed products: %w", err)
	}
	if report.Brands, err = seedCollection(ctx, s.brands, cat.Brands, templateBrands()); err != nil {
		return report, fmt.Errorf("seed brands: %w", err)
	}
	if report.Reviews, err = seedCollection(ctx, s.reviews, cat.Reviews, templateReviews()); err != nil {
		return report, fmt.Errorf("seed reviews: %w", err)
	}

	if report.Products+report.Brands+report.Reviews > 0 {
		s.logger.Info("seeded template catalog",
			"products", report.Products,
			"brands", report.Brands,
			"reviews", report.Reviews)
	}

	return report, nil
}

func seedCollection[T any](ctx context.Context, repo *sync.Repository[T], current []*T, templates []*T) (int, error) {
	if len(current) > 0 {
		return 0, nil
	}
	// The remote may be empty while the cache still holds values it never saw.
	cached, err := repo.Cached(ctx, remote.Filter{})
	if err != nil {
		return 0, err
	}
	if len(cached) > 0 {
		return 0, nil
	}

	for _, t := range templates {
		if _, err := repo.Save(ctx, t); err != nil {
			return 0, err
		}
	}
	return len(templates), nil
}

// Reindex rebuilds the search index from the catalog.
func (s *CatalogService) Reindex(ctx context.Context) error {
	cat, _, err := s.LoadCatalog(ctx)
	if err != nil {
		return err
	}
	return s.search.ReindexAll(cat.Products, cat.Brands)
}

// ProductQuery narrows ListProducts. The zero value lists every product by id.
type ProductQuery struct {
	BrandID string
	Status  domain.ProductStatus
	SortBy  string
	Desc    bool
	Limit   int
}

func (q ProductQuery) filter() remote.Filter {
	var f remote.Filter
	if q.BrandID != "" {
		f = f.And("brand_id", q.BrandID)
	}
	if q.Status != "" {
		f = f.And("status", string(q.Status))
	}
	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "id"
	}
	return f.Order(sortBy, q.Desc).Take(q.Limit)
}

// ListProducts returns the products matching q.
func (s *CatalogService) ListProducts(ctx context.Context, q ProductQuery) ([]*domain.Product, sync.Outcome, error) {
	return s.products.List(ctx, q.filter())
}

// GetProduct returns a product by id.
func (s *CatalogService) GetProduct(ctx context.Context, productID int64) (*domain.Product, sync.Outcome, error) {
	return s.products.Get(ctx, strconv.FormatInt(productID, 10))
}

// RelatedProducts returns up to limit products other than productID.
func (s *CatalogService) RelatedProducts(ctx context.Context, productID int64, limit int) ([]*domain.Product, sync.Outcome, error) {
	if limit <= 0 {
		limit = DefaultRelatedLimit
	}

	all, out, err := s.products.List(ctx, remote.Filter{}.Order("id", false))
	if err != nil {
		return nil, out, err
	}

	related := make([]*domain.Product, 0, limit)
	for _, p := range all {
		if p.ID == productID {
			continue
		}
		related = append(related, p)
		if len(related) == limit {
			break
		}
	}
	return related, out, nil
}

// nextID returns one more than the highest id in collection.
func nextID[T any](ctx context.Context, repo *sync.Repository[T], idOf func(*T) int64) (int64, sync.Outcome, error) {
	top, out, err := repo.List(ctx, remote.Filter{}.Order("id", true).Take(1))
	if err != nil {
		return 0, out, err
	}
	if len(top) == 0 {
		return 1, out, nil
	}
	return idOf(top[0]) + 1, out, nil
}

// CreateProduct adds a product to the catalog. The id is allocated as one
// more than the highest known id; a zero stock becomes DefaultStock and an
// empty status becomes active.
func (s *CatalogService) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, sync.Outcome, error) {
	if p.Stock == 0 {
		p.Stock = domain.DefaultStock
	}
	if p.Status == "" {
		p.Status = domain.ProductActive
	}
	if p.Features == nil {
		p.Features = []string{}
	}
	if err := s.validate(p); err != nil {
		return nil, sync.Outcome{}, err
	}

	s.idMu.Lock()
	defer s.idMu.Unlock()

	next, idOut, err := nextID(ctx, s.products, func(p *domain.Product) int64 { return p.ID })
	if err != nil {
		return nil, idOut, err
	}
	p.ID = next

	out, err := s.products.Save(ctx, p)
	if err != nil {
		return nil, out, err
	}

	s.afterProductWrite(ctx, p)
	s.logger.Info("product created", "product_id", p.ID, "name", p.Name, "state", out.State)

	return p, combine(out, idOut), nil
}

// ProductPatch contains optional product fields to update.
type ProductPatch struct {
	Name           *string
	BrandID        *string
	Price          *decimal.Decimal
	Rating         *float64
	ReviewCount    *int
	Recommended    *bool
	Firmness       *domain.Firmness
	Image          *string
	Description    *string
	Features       []string
	Specifications *domain.Specifications
	Stock          *int
	Sales          *int
	Status         *domain.ProductStatus
	SleepPositions []domain.SleepPosition
}

func (pp ProductPatch) apply(p *domain.Product) {
	if pp.Name != nil {
		p.Name = *pp.Name
	}
	if pp.BrandID != nil {
		p.BrandID = *pp.BrandID
	}
	if pp.Price != nil {
		p.Price = *pp.Price
	}
	if pp.Rating != nil {
		p.Rating = *pp.Rating
	}
	if pp.ReviewCount != nil {
		p.ReviewCount = *pp.ReviewCount
	}
	if pp.Recommended != nil {
		p.Recommended = *pp.Recommended
	}
	if pp.Firmness != nil {
		p.Firmness = *pp.Firmness
	}
	if pp.Image != nil {
		p.Image = *pp.Image
	}
	if pp.Description != nil {
		p.Description = *pp.Description
	}
	if pp.Features != nil {
		p.Features = pp.Features
	}
	if pp.Specifications != nil {
		p.Specifications = pp.Specifications
	}
	if pp.Stock != nil {
		p.Stock = *pp.Stock
	}
	if pp.Sales != nil {
		p.Sales = *pp.Sales
	}
	if pp.Status != nil {
		p.Status = *pp.Status
	}
	if pp.SleepPositions != nil {
		p.SleepPositions = pp.SleepPositions
	}
}

// UpdateProduct applies patch to an existing product.
func (s *CatalogService) UpdateProduct(ctx context.Context, productID int64, patch ProductPatch) (*domain.Product, sync.Outcome, error) {
	p, getOut, err := s.GetProduct(ctx, productID)
	if err != nil {
		return nil, getOut, err
	}

	patch.apply(p)
	p.ID = productID

	out, err := s.products.Save(ctx, p)
	if err != nil {
		return nil, out, err
	}

	s.afterProductWrite(ctx, p)
	s.logger.Info("product updated", "product_id", p.ID, "state", out.State)

	return p, combine(out, getOut), nil
}

// DeleteProduct removes a product from both stores and the search index.
func (s *CatalogService) DeleteProduct(ctx context.Context, productID int64) (sync.Outcome, error) {
	out, err := s.products.Delete(ctx, strconv.FormatInt(productID, 10))
	if err != nil {
		return out, err
	}
	if err := s.search.DeleteProduct(productID); err != nil {
		s.logger.Warn("failed to remove product from search index", "product_id", productID, "error", err)
	}
	s.logger.Info("product deleted", "product_id", productID)
	return out, nil
}

func (s *CatalogService) afterProductWrite(ctx context.Context, p *domain.Product) {
	brandName := ""
	if b, _, err := s.brands.Get(ctx, p.BrandID); err == nil {
		brandName = b.Name
	}
	if err := s.search.IndexProduct(p, brandName); err != nil {
		s.logger.Warn("failed to index product", "product_id", p.ID, "error", err)
	}
	s.events.Emit(sse.NewProductSavedEvent(p.ID, p.Name))
}

// ListBrands returns every brand with its derived product count.
func (s *CatalogService) ListBrands(ctx context.Context) ([]*domain.Brand, sync.Outcome, error) {
	var (
		brands            []*domain.Brand
		products          []*domain.Product
		brandOut, prodOut sync.Outcome
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		brands, brandOut, err = s.brands.List(gctx, remote.Filter{}.Order("id", false))
		return err
	})
	g.Go(func() error {
		var err error
		products, prodOut, err = s.products.List(gctx, remote.Filter{})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, combine(brandOut, prodOut), err
	}

	countProducts(brands, products)
	return brands, combine(brandOut, prodOut), nil
}

// GetBrand returns a brand with its derived product count.
func (s *CatalogService) GetBrand(ctx context.Context, brandID string) (*domain.Brand, sync.Outcome, error) {
	b, out, err := s.brands.Get(ctx, brandID)
	if err != nil {
		return nil, out, err
	}

	products, prodOut, err := s.products.List(ctx, remote.Eq("brand_id", brandID))
	if err != nil {
		return nil, combine(out, prodOut), err
	}
	b.ProductCount = len(products)
	return b, combine(out, prodOut), nil
}

// CreateBrand adds a brand. Without an id, one is derived from the name.
// Creating a brand whose id is taken is a conflict.
func (s *CatalogService) CreateBrand(ctx context.Context, b *domain.Brand) (*domain.Brand, sync.Outcome, error) {
	if b.ID == "" {
		b.ID = id.BrandID(b.Name)
	}
	b.ProductCount = 0
	if err := s.validate(b); err != nil {
		return nil, sync.Outcome{}, err
	}

	if _, out, err := s.brands.Get(ctx, b.ID); err == nil {
		return nil, out, domainerrors.Conflict(fmt.Sprintf("brand %q already exists", b.ID))
	} else if !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, out, err
	}

	out, err := s.brands.Save(ctx, b)
	if err != nil {
		return nil, out, err
	}

	if err := s.search.IndexBrand(b); err != nil {
		s.logger.Warn("failed to index brand", "brand_id", b.ID, "error", err)
	}
	s.logger.Info("brand created", "brand_id", b.ID, "name", b.Name, "state", out.State)

	return b, out, nil
}

// BrandPatch contains optional brand fields to update.
type BrandPatch struct {
	Name *string
	Logo *string
}

// UpdateBrand applies patch to an existing brand.
func (s *CatalogService) UpdateBrand(ctx context.Context, brandID string, patch BrandPatch) (*domain.Brand, sync.Outcome, error) {
	b, getOut, err := s.brands.Get(ctx, brandID)
	if err != nil {
		return nil, getOut, err
	}

	if patch.Name != nil {
		b.Name = *patch.Name
	}
	if patch.Logo != nil {
		b.Logo = *patch.Logo
	}
	b.ProductCount = 0

	out, err := s.brands.Save(ctx, b)
	if err != nil {
		return nil, out, err
	}

	if err := s.search.IndexBrand(b); err != nil {
		s.logger.Warn("failed to index brand", "brand_id", b.ID, "error", err)
	}
	s.logger.Info("brand updated", "brand_id", b.ID, "state", out.State)

	return b, combine(out, getOut), nil
}

// ListReviews returns the reviews of a product, oldest first.
func (s *CatalogService) ListReviews(ctx context.Context, productID int64) ([]*domain.Review, sync.Outcome, error) {
	return s.reviews.List(ctx, remote.Eq("product_id", strconv.FormatInt(productID, 10)).Order("id", false))
}

// AddReview stores a review of an existing product. The id is allocated as
// one more than the highest known review id.
func (s *CatalogService) AddReview(ctx context.Context, r *domain.Review) (*domain.Review, sync.Outcome, error) {
	if r.Date == "" {
		r.Date = time.Now().UTC().Format(time.DateOnly)
	}
	if err := s.validate(r); err != nil {
		return nil, sync.Outcome{}, err
	}

	if _, out, err := s.GetProduct(ctx, r.ProductID); err != nil {
		if domainerrors.Is(err, domainerrors.ErrNotFound) {
			return nil, out, domainerrors.ValidationWithDetails("validation failed", map[string]string{
				"product_id": "must reference an existing product",
			})
		}
		return nil, out, err
	}

	s.idMu.Lock()
	defer s.idMu.Unlock()

	next, idOut, err := nextID(ctx, s.reviews, func(r *domain.Review) int64 { return r.ID })
	if err != nil {
		return nil, idOut, err
	}
	r.ID = next

	out, err := s.reviews.Save(ctx, r)
	if err != nil {
		return nil, out, err
	}

	s.logger.Info("review added", "review_id", r.ID, "product_id", r.ProductID, "state", out.State)
	return r, combine(out, idOut), nil
}

func (s *CatalogService) validate(v any) error {
	if s.validator == nil {
		return nil
	}
	return s.validator.Validate(v)
}

func countProducts(brands []*domain.Brand, products []*domain.Product) {
	counts := make(map[string]int, len(brands))
	for _, p := range products {
		counts[p.BrandID]++
	}
	for _, b := range brands {
		b.ProductCount = counts[b.ID]
	}
}
