package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shopspring/decimal"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	"github.com/sleepwell/sleepwell-server/internal/service"
)

func (s *Server) registerProductRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "listProducts",
		Method:      http.MethodGet,
		Path:        "/api/v1/products",
		Summary:     "List products",
		Description: "Returns catalog products, from the remote when reachable and the local cache otherwise",
		Tags:        []string{"Products"},
	}, s.handleListProducts)

	huma.Register(s.api, huma.Operation{
		OperationID:   "createProduct",
		Method:        http.MethodPost,
		Path:          "/api/v1/products",
		Summary:       "Create product",
		Description:   "Adds a product to the catalog with the next free id",
		Tags:          []string{"Products"},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateProduct)

	huma.Register(s.api, huma.Operation{
		OperationID: "getProduct",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{id}",
		Summary:     "Get product",
		Description: "Returns a product by id",
		Tags:        []string{"Products"},
	}, s.handleGetProduct)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateProduct",
		Method:      http.MethodPut,
		Path:        "/api/v1/products/{id}",
		Summary:     "Update product",
		Description: "Updates the given product fields; omitted fields are kept",
		Tags:        []string{"Products"},
	}, s.handleUpdateProduct)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteProduct",
		Method:        http.MethodDelete,
		Path:          "/api/v1/products/{id}",
		Summary:       "Delete product",
		Description:   "Removes a product from both stores. Requires the remote",
		Tags:          []string{"Products"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteProduct)

	huma.Register(s.api, huma.Operation{
		OperationID: "getRelatedProducts",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{id}/related",
		Summary:     "Get related products",
		Description: "Returns other products to show next to this one",
		Tags:        []string{"Products"},
	}, s.handleRelatedProducts)

	huma.Register(s.api, huma.Operation{
		OperationID: "listReviews",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/{id}/reviews",
		Summary:     "List reviews",
		Description: "Returns the reviews of a product",
		Tags:        []string{"Products"},
	}, s.handleListReviews)

	huma.Register(s.api, huma.Operation{
		OperationID:   "addReview",
		Method:        http.MethodPost,
		Path:          "/api/v1/products/{id}/reviews",
		Summary:       "Add review",
		Description:   "Adds a review to a product",
		Tags:          []string{"Products"},
		DefaultStatus: http.StatusCreated,
	}, s.handleAddReview)
}

// === DTOs ===

// ProductResponse contains product data in API responses.
type ProductResponse struct {
	ID             int64                  `json:"id" doc:"Product ID"`
	Name           string                 `json:"name" doc:"Product name"`
	BrandID        string                 `json:"brand_id" doc:"Brand ID"`
	Price          string                 `json:"price" doc:"Price as a decimal string"`
	Rating         float64                `json:"rating" doc:"Average rating, 0 to 5"`
	ReviewCount    int                    `json:"review_count" doc:"Number of reviews"`
	Recommended    bool                   `json:"recommended" doc:"Shown as a recommendation"`
	Firmness       string                 `json:"firmness,omitempty" doc:"Firmness grade"`
	Image          string                 `json:"image,omitempty" doc:"Image URL"`
	Description    string                 `json:"description,omitempty" doc:"Product description"`
	Features       []string               `json:"features" doc:"Feature bullet points"`
	Specifications *domain.Specifications `json:"specifications,omitempty" doc:"Detail sheet"`
	SleepPositions []string               `json:"sleep_positions,omitempty" doc:"Sleep positions the product suits"`
	Stock          int                    `json:"stock" doc:"Units in stock"`
	Sales          int                    `json:"sales" doc:"Units sold"`
	Status         string                 `json:"status" doc:"active, draft or out_of_stock"`
}

// ProductOutput wraps a product response for Huma.
type ProductOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
	Body        ProductResponse
}

// ListProductsResponse contains a list of products.
type ListProductsResponse struct {
	Products []ProductResponse `json:"products" doc:"Products"`
}

// ListProductsOutput wraps a product list for Huma.
type ListProductsOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
	Body        ListProductsResponse
}

// ListProductsInput contains filters for listing products.
type ListProductsInput struct {
	BrandID string `query:"brand_id" doc:"Only products of this brand"`
	Status  string `query:"status" enum:"active,draft,out_of_stock" doc:"Only products in this status"`
	Sort    string `query:"sort" enum:"id,name,price,rating,sales" doc:"Sort field (default id)"`
	Order   string `query:"order" enum:"asc,desc" doc:"Sort order (default asc)"`
	Limit   int    `query:"limit" minimum:"0" maximum:"500" doc:"Max products, 0 for all"`
}

// ProductIDInput identifies a product.
type ProductIDInput struct {
	ID int64 `path:"id" doc:"Product ID"`
}

// CreateProductRequest is the request body for creating a product.
type CreateProductRequest struct {
	Name           string                 `json:"name" doc:"Product name"`
	BrandID        string                 `json:"brand_id" doc:"Brand ID"`
	Price          float64                `json:"price" doc:"Price"`
	Rating         float64                `json:"rating,omitempty" doc:"Average rating"`
	ReviewCount    int                    `json:"review_count,omitempty" doc:"Number of reviews"`
	Recommended    bool                   `json:"recommended,omitempty" doc:"Shown as a recommendation"`
	Firmness       string                 `json:"firmness,omitempty" doc:"Firmness grade"`
	Image          string                 `json:"image,omitempty" doc:"Image URL"`
	Description    string                 `json:"description,omitempty" doc:"Product description"`
	Features       []string               `json:"features,omitempty" doc:"Feature bullet points"`
	Specifications *domain.Specifications `json:"specifications,omitempty" doc:"Detail sheet"`
	SleepPositions []string               `json:"sleep_positions,omitempty" doc:"Sleep positions the product suits"`
	Stock          int                    `json:"stock,omitempty" doc:"Units in stock (default 100)"`
	Sales          int                    `json:"sales,omitempty" doc:"Units sold"`
	Status         string                 `json:"status,omitempty" doc:"active, draft or out_of_stock (default active)"`
}

// CreateProductInput wraps the create product request for Huma.
type CreateProductInput struct {
	Body CreateProductRequest
}

// UpdateProductRequest is the request body for updating a product.
type UpdateProductRequest struct {
	Name           *string                `json:"name,omitempty" doc:"Product name"`
	BrandID        *string                `json:"brand_id,omitempty" doc:"Brand ID"`
	Price          *float64               `json:"price,omitempty" doc:"Price"`
	Rating         *float64               `json:"rating,omitempty" doc:"Average rating"`
	ReviewCount    *int                   `json:"review_count,omitempty" doc:"Number of reviews"`
	Recommended    *bool                  `json:"recommended,omitempty" doc:"Shown as a recommendation"`
	Firmness       *string                `json:"firmness,omitempty" doc:"Firmness grade"`
	Image          *string                `json:"image,omitempty" doc:"Image URL"`
	Description    *string                `json:"description,omitempty" doc:"Product description"`
	Features       []string               `json:"features,omitempty" doc:"Replaces the feature list"`
	Specifications *domain.Specifications `json:"specifications,omitempty" doc:"Replaces the detail sheet"`
	SleepPositions []string               `json:"sleep_positions,omitempty" doc:"Replaces the sleep positions"`
	Stock          *int                   `json:"stock,omitempty" doc:"Units in stock"`
	Sales          *int                   `json:"sales,omitempty" doc:"Units sold"`
	Status         *string                `json:"status,omitempty" doc:"active, draft or out_of_stock"`
}

// UpdateProductInput wraps the update product request for Huma.
type UpdateProductInput struct {
	ID   int64 `path:"id" doc:"Product ID"`
	Body UpdateProductRequest
}

// DeleteOutput carries only the outcome header.
type DeleteOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
}

// RelatedProductsInput contains parameters for related products.
type RelatedProductsInput struct {
	ID    int64 `path:"id" doc:"Product ID"`
	Limit int   `query:"limit" minimum:"0" maximum:"50" doc:"Max products (default 3)"`
}

// ReviewResponse contains review data in API responses.
type ReviewResponse struct {
	ID        int64  `json:"id" doc:"Review ID"`
	ProductID int64  `json:"product_id" doc:"Product ID"`
	User      string `json:"user" doc:"Reviewer display name"`
	Avatar    string `json:"avatar,omitempty" doc:"Reviewer avatar URL"`
	Rating    int    `json:"rating" doc:"Rating, 1 to 5"`
	Date      string `json:"date,omitempty" doc:"Review date"`
	Title     string `json:"title,omitempty" doc:"Review title"`
	Comment   string `json:"comment,omitempty" doc:"Review text"`
	Helpful   int    `json:"helpful" doc:"Helpful votes"`
	Verified  bool   `json:"verified" doc:"Verified purchase"`
}

// ReviewOutput wraps a review response for Huma.
type ReviewOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
	Body        ReviewResponse
}

// ListReviewsResponse contains a list of reviews.
type ListReviewsResponse struct {
	Reviews []ReviewResponse `json:"reviews" doc:"Reviews, oldest first"`
}

// ListReviewsOutput wraps a review list for Huma.
type ListReviewsOutput struct {
	SyncOutcome string `header:"X-Sync-Outcome" doc:"reconciled or degraded"`
	Body        ListReviewsResponse
}

// AddReviewRequest is the request body for adding a review.
type AddReviewRequest struct {
	User     string `json:"user" maxLength:"200" doc:"Reviewer display name"`
	Avatar   string `json:"avatar,omitempty" doc:"Reviewer avatar URL"`
	Rating   int    `json:"rating" doc:"Rating, 1 to 5"`
	Date     string `json:"date,omitempty" doc:"Review date (default today)"`
	Title    string `json:"title,omitempty" doc:"Review title"`
	Comment  string `json:"comment,omitempty" doc:"Review text"`
	Verified bool   `json:"verified,omitempty" doc:"Verified purchase"`
}

// AddReviewInput wraps the add review request for Huma.
type AddReviewInput struct {
	ID   int64 `path:"id" doc:"Product ID"`
	Body AddReviewRequest
}

// === Handlers ===

func (s *Server) handleListProducts(ctx context.Context, input *ListProductsInput) (*ListProductsOutput, error) {
	products, out, err := s.services.Catalog.ListProducts(ctx, service.ProductQuery{
		BrandID: input.BrandID,
		Status:  domain.ProductStatus(input.Status),
		SortBy:  input.Sort,
		Desc:    input.Order == "desc",
		Limit:   input.Limit,
	})
	if err != nil {
		return nil, err
	}

	return &ListProductsOutput{
		SyncOutcome: outcomeHeader(out),
		Body:        ListProductsResponse{Products: toProductResponses(products)},
	}, nil
}

func (s *Server) handleCreateProduct(ctx context.Context, input *CreateProductInput) (*ProductOutput, error) {
	req := input.Body
	p := &domain.Product{
		Name:           req.Name,
		BrandID:        req.BrandID,
		Price:          priceFromFloat(req.Price),
		Rating:         req.Rating,
		ReviewCount:    req.ReviewCount,
		Recommended:    req.Recommended,
		Firmness:       domain.Firmness(req.Firmness),
		Image:          req.Image,
		Description:    req.Description,
		Features:       req.Features,
		Specifications: req.Specifications,
		SleepPositions: toSleepPositions(req.SleepPositions),
		Stock:          req.Stock,
		Sales:          req.Sales,
		Status:         domain.ProductStatus(req.Status),
	}

	created, out, err := s.services.Catalog.CreateProduct(ctx, p)
	if err != nil {
		return nil, err
	}
	return &ProductOutput{SyncOutcome: outcomeHeader(out), Body: toProductResponse(created)}, nil
}

func (s *Server) handleGetProduct(ctx context.Context, input *ProductIDInput) (*ProductOutput, error) {
	p, out, err := s.services.Catalog.GetProduct(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ProductOutput{SyncOutcome: outcomeHeader(out), Body: toProductResponse(p)}, nil
}

func (s *Server) handleUpdateProduct(ctx context.Context, input *UpdateProductInput) (*ProductOutput, error) {
	req := input.Body
	patch := service.ProductPatch{
		Name:           req.Name,
		BrandID:        req.BrandID,
		Rating:         req.Rating,
		ReviewCount:    req.ReviewCount,
		Recommended:    req.Recommended,
		Image:          req.Image,
		Description:    req.Description,
		Features:       req.Features,
		Specifications: req.Specifications,
		Stock:          req.Stock,
		Sales:          req.Sales,
		SleepPositions: toSleepPositions(req.SleepPositions),
	}
	if req.Price != nil {
		price := priceFromFloat(*req.Price)
		patch.Price = &price
	}
	if req.Firmness != nil {
		f := domain.Firmness(*req.Firmness)
		patch.Firmness = &f
	}
	if req.Status != nil {
		st := domain.ProductStatus(*req.Status)
		patch.Status = &st
	}

	p, out, err := s.services.Catalog.UpdateProduct(ctx, input.ID, patch)
	if err != nil {
		return nil, err
	}
	return &ProductOutput{SyncOutcome: outcomeHeader(out), Body: toProductResponse(p)}, nil
}

func (s *Server) handleDeleteProduct(ctx context.Context, input *ProductIDInput) (*DeleteOutput, error) {
	out, err := s.services.Catalog.DeleteProduct(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteOutput{SyncOutcome: outcomeHeader(out)}, nil
}

func (s *Server) handleRelatedProducts(ctx context.Context, input *RelatedProductsInput) (*ListProductsOutput, error) {
	products, out, err := s.services.Catalog.RelatedProducts(ctx, input.ID, input.Limit)
	if err != nil {
		return nil, err
	}
	return &ListProductsOutput{
		SyncOutcome: outcomeHeader(out),
		Body:        ListProductsResponse{Products: toProductResponses(products)},
	}, nil
}

func (s *Server) handleListReviews(ctx context.Context, input *ProductIDInput) (*ListReviewsOutput, error) {
	reviews, out, err := s.services.Catalog.ListReviews(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	resp := ListReviewsResponse{Reviews: make([]ReviewResponse, 0, len(reviews))}
	for _, r := range reviews {
		resp.Reviews = append(resp.Reviews, toReviewResponse(r))
	}
	return &ListReviewsOutput{SyncOutcome: outcomeHeader(out), Body: resp}, nil
}

func (s *Server) handleAddReview(ctx context.Context, input *AddReviewInput) (*ReviewOutput, error) {
	req := input.Body
	r, out, err := s.services.Catalog.AddReview(ctx, &domain.Review{
		ProductID: input.ID,
		User:      req.User,
		Avatar:    req.Avatar,
		Rating:    req.Rating,
		Date:      req.Date,
		Title:     req.Title,
		Comment:   req.Comment,
		Verified:  req.Verified,
	})
	if err != nil {
		return nil, err
	}
	return &ReviewOutput{SyncOutcome: outcomeHeader(out), Body: toReviewResponse(r)}, nil
}

// === Conversions ===

// priceFromFloat converts a JSON price to cents precision.
func priceFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(2)
}

func toSleepPositions(in []string) []domain.SleepPosition {
	if in == nil {
		return nil
	}
	out := make([]domain.SleepPosition, len(in))
	for i, p := range in {
		out[i] = domain.SleepPosition(p)
	}
	return out
}

func toProductResponse(p *domain.Product) ProductResponse {
	resp := ProductResponse{
		ID:             p.ID,
		Name:           p.Name,
		BrandID:        p.BrandID,
		Price:          p.Price.StringFixed(2),
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
		Recommended:    p.Recommended,
		Firmness:       string(p.Firmness),
		Image:          p.Image,
		Description:    p.Description,
		Features:       p.Features,
		Specifications: p.Specifications,
		Stock:          p.Stock,
		Sales:          p.Sales,
		Status:         string(p.Status),
	}
	if resp.Features == nil {
		resp.Features = []string{}
	}
	for _, pos := range p.SleepPositions {
		resp.SleepPositions = append(resp.SleepPositions, string(pos))
	}
	return resp
}

func toProductResponses(products []*domain.Product) []ProductResponse {
	out := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResponse(p))
	}
	return out
}

func toReviewResponse(r *domain.Review) ReviewResponse {
	return ReviewResponse{
		ID:        r.ID,
		ProductID: r.ProductID,
		User:      r.User,
		Avatar:    r.Avatar,
		Rating:    r.Rating,
		Date:      r.Date,
		Title:     r.Title,
		Comment:   r.Comment,
		Helpful:   r.Helpful,
		Verified:  r.Verified,
	}
}
