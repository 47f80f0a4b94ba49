package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sleepwell/sleepwell-server/internal/search"
)

func (s *Server) registerSearchRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "searchProducts",
		Method:      http.MethodGet,
		Path:        "/api/v1/products/search",
		Summary:     "Search catalog",
		Description: "Full-text search over products and brands with filters and facets",
		Tags:        []string{"Search"},
	}, s.handleSearch)
}

// === DTOs ===

// SearchInput contains parameters for searching the catalog.
type SearchInput struct {
	Query         string  `query:"q" maxLength:"200" doc:"Search query; empty matches everything"`
	Types         string  `query:"types" maxLength:"100" doc:"Comma-separated types (product,brand). Omit for all."`
	Brands        string  `query:"brands" maxLength:"200" doc:"Comma-separated brand ids"`
	Firmness      string  `query:"firmness" maxLength:"200" doc:"Comma-separated firmness grades"`
	SleepPosition string  `query:"sleep_position" enum:"back,side,stomach" doc:"Only products for this position"`
	MinPrice      float64 `query:"min_price" minimum:"0" doc:"Minimum price"`
	MaxPrice      float64 `query:"max_price" minimum:"0" doc:"Maximum price"`
	MinRating     float64 `query:"min_rating" minimum:"0" maximum:"5" doc:"Minimum rating"`
	Sort          string  `query:"sort" enum:"relevance,name,price,rating" doc:"Sort field (default relevance)"`
	Order         string  `query:"order" enum:"asc,desc" doc:"Sort order"`
	Limit         int     `query:"limit" minimum:"0" maximum:"100" doc:"Max results (default 20)"`
	Offset        int     `query:"offset" minimum:"0" doc:"Pagination offset"`
	Facets        bool    `query:"facets" doc:"Include facets in response"`
}

// SearchHitResult contains a single search result.
type SearchHitResult struct {
	ID         string            `json:"id" doc:"Product or brand ID"`
	Type       string            `json:"type" doc:"Type: product or brand"`
	Score      float64           `json:"score" doc:"Search relevance score"`
	Name       string            `json:"name" doc:"Display name"`
	BrandID    string            `json:"brand_id,omitempty" doc:"Brand ID (for products)"`
	BrandName  string            `json:"brand_name,omitempty" doc:"Brand name (for products)"`
	Firmness   string            `json:"firmness,omitempty" doc:"Firmness grade (for products)"`
	Price      float64           `json:"price,omitempty" doc:"Price (for products)"`
	Rating     float64           `json:"rating,omitempty" doc:"Rating (for products)"`
	Highlights map[string]string `json:"highlights,omitempty" doc:"Highlighted matches"`
}

// SearchFacets contains facet counts for filtering.
type SearchFacets struct {
	Types    []search.FacetCount `json:"types,omitempty" doc:"Type facets"`
	Brands   []search.FacetCount `json:"brands,omitempty" doc:"Brand facets"`
	Firmness []search.FacetCount `json:"firmness,omitempty" doc:"Firmness facets"`
}

// SearchResponse contains search results.
type SearchResponse struct {
	Query  string            `json:"query" doc:"Original search query"`
	Total  int64             `json:"total" doc:"Total matches"`
	TookMs int64             `json:"took_ms" doc:"Search duration in milliseconds"`
	Hits   []SearchHitResult `json:"hits" doc:"Search results"`
	Facets *SearchFacets     `json:"facets,omitempty" doc:"Facet counts for filtering"`
}

// SearchOutput wraps the search response for Huma.
type SearchOutput struct {
	Body SearchResponse
}

// === Handlers ===

func (s *Server) handleSearch(ctx context.Context, input *SearchInput) (*SearchOutput, error) {
	params := search.DefaultSearchParams()
	params.Query = input.Query
	params.IncludeFacets = input.Facets
	params.Highlight = input.Query != ""
	params.SleepPosition = input.SleepPosition
	params.MinPrice = input.MinPrice
	params.MaxPrice = input.MaxPrice
	params.MinRating = input.MinRating
	params.Offset = input.Offset
	if input.Limit > 0 {
		params.Limit = input.Limit
	}
	if input.Sort != "" {
		params.SortBy = input.Sort
	}
	if input.Order != "" {
		params.SortOrder = input.Order
	}

	for _, t := range splitCSV(input.Types) {
		switch t {
		case "product":
			params.Types = append(params.Types, string(search.DocTypeProduct))
		case "brand":
			params.Types = append(params.Types, string(search.DocTypeBrand))
		}
	}
	params.BrandIDs = splitCSV(input.Brands)
	params.Firmness = splitCSV(input.Firmness)

	result, err := s.services.Search.Search(ctx, params)
	if err != nil {
		s.logger.Error("search failed", "error", err, "query", input.Query)
		return nil, err
	}

	resp := SearchResponse{
		Query:  input.Query,
		Total:  int64(result.Total), //nolint:gosec // total count won't exceed int64
		TookMs: result.TookMs,
		Hits:   make([]SearchHitResult, 0, len(result.Hits)),
	}
	for i := range result.Hits {
		hit := &result.Hits[i]
		resp.Hits = append(resp.Hits, SearchHitResult{
			ID:         hit.ID,
			Type:       string(hit.Type),
			Score:      hit.Score,
			Name:       hit.Name,
			BrandID:    hit.BrandID,
			BrandName:  hit.BrandName,
			Firmness:   hit.Firmness,
			Price:      hit.Price,
			Rating:     hit.Rating,
			Highlights: hit.Highlights,
		})
	}
	if input.Facets {
		resp.Facets = &SearchFacets{
			Types:    result.Facets.Types,
			Brands:   result.Facets.Brands,
			Firmness: result.Facets.Firmness,
		}
	}

	return &SearchOutput{Body: resp}, nil
}

func splitCSV(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
