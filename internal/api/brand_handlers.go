package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	"github.com/sleepwell/sleepwell-server/internal/service"
)

func (s *Server) registerBrandRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listBrands",
		Method:      http.MethodGet,
		Path:        "/api/v1/brands",
		Summary:     "List brands",
		Description: "Returns every brand with its current product count",
		Tags:        []string{"Brands"},
	}, s.handleListBrands)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createBrand",
		Method:        http.MethodPost,
		Path:          "/api/v1/brands",
		Summary:       "Create brand",
		Description:   "Adds a brand; the id defaults to a slug of the name",
		Tags:          []string{"Brands"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateBrand)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBrand",
		Method:      http.MethodGet,
		Path:        "/api/v1/brands/{id}",
		Summary:     "Get brand",
		Description: "Returns a brand by id",
		Tags:        []string{"Brands"},
	}, s.handleGetBrand)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateBrand",
		Method:      http.MethodPut,
		Path:        "/api/v1/brands/{id}",
		Summary:     "Update brand",
		Description: "Updates a brand's name or logo",
		Tags:        []string{"Brands"},
	}, s.handleUpdateBrand)
}

// === DTOs ===

// BrandResponse contains brand data in API responses.
type BrandResponse struct {
	ID           string `json:"id" doc:"Brand ID"`
	Name         string `json:"name" doc:"Brand name"`
	Logo         string `json:"logo,omitempty" doc:"Logo URL"`
	ProductCount int    `json:"product_count" doc:"Number of products of this brand"`
}

// BrandOutput wraps a brand response for Huma.
type BrandOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
	Body        BrandResponse
}

// ListBrandsResponse contains a list of brands.
type ListBrandsResponse struct {
	Brands []BrandResponse `json:"brands" doc:"Brands"`
}

// ListBrandsOutput wraps a brand list for Huma.
type ListBrandsOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
	Body        ListBrandsResponse
}

// BrandIDInput identifies a brand.
type BrandIDInput struct {
	ID string `path:"id" doc:"Brand ID"`
}

// CreateBrandInput wraps the create brand request for Huma.
type CreateBrandInput struct {
	Body struct {
		ID   string `json:"id,omitempty" maxLength:"100" doc:"Brand ID (default: slug of the name)"`
		Name string `json:"name" minLength:"1" maxLength:"200" doc:"Brand name"`
		Logo string `json:"logo,omitempty" doc:"Logo URL"`
	}
}

// UpdateBrandInput wraps the update brand request for Huma.
type UpdateBrandInput struct {
	ID   string `path:"id" doc:"Brand ID"`
	Body struct {
		Name *string `json:"name,omitempty" maxLength:"200" doc:"Brand name"`
		Logo *string `json:"logo,omitempty" doc:"Logo URL"`
	}
}

// === Handlers ===

func (s *Server) handleListBrands(ctx context.Context, _ *struct{}) (*ListBrandsOutput, error) {
	brands, out, err := s.services.Catalog.ListBrands(ctx)
	if err != nil {
		return nil, err
	}

	resp := ListBrandsResponse{Brands: make([]BrandResponse, 0, len(brands))}
	for _, b := range brands {
		resp.Brands = append(resp.Brands, toBrandResponse(b))
	}
	return &ListBrandsOutput{SyncOutcome: outcomeHeader(out), Body: resp}, nil
}

func (s *Server) handleCreateBrand(ctx context.Context, input *CreateBrandInput) (*BrandOutput, error) {
	b, out, err := s.services.Catalog.CreateBrand(ctx, &domain.Brand{
		ID:   input.Body.ID,
		Name: input.Body.Name,
		Logo: input.Body.Logo,
	})
	if err != nil {
		return nil, err
	}
	return &BrandOutput{SyncOutcome: outcomeHeader(out), Body: toBrandResponse(b)}, nil
}

func (s *Server) handleGetBrand(ctx context.Context, input *BrandIDInput) (*BrandOutput, error) {
	b, out, err := s.services.Catalog.GetBrand(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BrandOutput{SyncOutcome: outcomeHeader(out), Body: toBrandResponse(b)}, nil
}

func (s *Server) handleUpdateBrand(ctx context.Context, input *UpdateBrandInput) (*BrandOutput, error) {
	b, out, err := s.services.Catalog.UpdateBrand(ctx, input.ID, service.BrandPatch{
		Name: input.Body.Name,
		Logo: input.Body.Logo,
	})
	if err != nil {
		return nil, err
	}
	return &BrandOutput{SyncOutcome: outcomeHeader(out), Body: toBrandResponse(b)}, nil
}

func toBrandResponse(b *domain.Brand) BrandResponse {
	return BrandResponse{
		ID:           b.ID,
		Name:         b.Name,
		Logo:         b.Logo,
		ProductCount: b.ProductCount,
	}
}
