package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a search query.
type SearchParams struct {
	Query string   // User's search query
	Types []string // Document types to include (empty = all)

	// Filters
	BrandIDs      []string // Filter by exact brand ids
	Firmness      []string // Filter by firmness grade (OR)
	SleepPosition string   // Only products marked for this position
	Status        string   // Filter by product status
	MinPrice      float64  // Minimum price, 0 = unbounded
	MaxPrice      float64  // Maximum price, 0 = unbounded
	MinRating     float64  // Minimum rating

	// Pagination
	Limit  int
	Offset int

	// Sorting
	SortBy    string // "relevance", "name", "price", "rating"
	SortOrder string // "asc", "desc"

	// Options
	IncludeFacets bool     // Include facet counts in results
	FacetFields   []string // Which fields to facet on
	Highlight     bool     // Include match highlighting
}

// DefaultSearchParams returns sensible defaults.
func DefaultSearchParams() SearchParams {
	return SearchParams{
		Limit:         20,
		SortBy:        "relevance",
		SortOrder:     "desc",
		IncludeFacets: true,
		FacetFields:   []string{"type", "brand_id", "firmness"},
		Highlight:     true,
	}
}

// SearchResult represents the search results.
type SearchResult struct {
	Query  string       `json:"query"`
	Total  uint64       `json:"total"`
	TookMs int64        `json:"took_ms"`
	Hits   []SearchHit  `json:"hits"`
	Facets SearchFacets `json:"facets,omitempty"`
}

// SearchHit represents a single search result. ID is the entity id (the
// product id or the brand id), not the index document id.
type SearchHit struct {
	ID         string            `json:"id"`
	Type       DocType           `json:"type"`
	Score      float64           `json:"score"`
	Name       string            `json:"name"`
	BrandID    string            `json:"brand_id,omitempty"`
	BrandName  string            `json:"brand_name,omitempty"`
	Firmness   string            `json:"firmness,omitempty"`
	Price      float64           `json:"price,omitempty"`
	Rating     float64           `json:"rating,omitempty"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

// SearchFacets contains facet counts.
type SearchFacets struct {
	Types    []FacetCount `json:"types,omitempty"`
	Brands   []FacetCount `json:"brands,omitempty"`
	Firmness []FacetCount `json:"firmness,omitempty"`
}

// FacetCount represents a facet value and its count.
type FacetCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Search executes a search query.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = DefaultSearchParams().Limit
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSearchQuery(params), params.Limit, params.Offset, false)
	addSorting(searchRequest, params)

	if params.IncludeFacets {
		addFacets(searchRequest, params)
	}

	if params.Highlight {
		searchRequest.Highlight = bleve.NewHighlight()
		searchRequest.Highlight.AddField("name")
		searchRequest.Highlight.AddField("features")
	}

	searchRequest.Fields = []string{
		"type", "name", "brand_id", "brand_name", "firmness", "price", "rating",
	}

	searchResult, err := s.index.SearchInContext(ctx, searchRequest)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  searchResult.Total,
		TookMs: searchResult.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(searchResult.Hits)),
	}

	for _, hit := range searchResult.Hits {
		searchHit := SearchHit{Score: hit.Score}

		if t, ok := hit.Fields["type"].(string); ok {
			searchHit.Type = DocType(t)
		}
		searchHit.ID = strings.TrimPrefix(hit.ID, string(searchHit.Type)+":")

		if n, ok := hit.Fields["name"].(string); ok {
			searchHit.Name = n
		}
		if b, ok := hit.Fields["brand_id"].(string); ok {
			searchHit.BrandID = b
		}
		if b, ok := hit.Fields["brand_name"].(string); ok {
			searchHit.BrandName = b
		}
		if f, ok := hit.Fields["firmness"].(string); ok {
			searchHit.Firmness = f
		}
		if p, ok := hit.Fields["price"].(float64); ok {
			searchHit.Price = p
		}
		if r, ok := hit.Fields["rating"].(float64); ok {
			searchHit.Rating = r
		}

		if len(hit.Fragments) > 0 {
			searchHit.Highlights = make(map[string]string)
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					searchHit.Highlights[field] = fragments[0]
				}
			}
		}

		result.Hits = append(result.Hits, searchHit)
	}

	if params.IncludeFacets {
		result.Facets = extractFacets(searchResult)
	}

	return result, nil
}

// buildSearchQuery constructs the Bleve query from params.
func buildSearchQuery(params SearchParams) query.Query {
	var queries []query.Query

	if params.Query != "" {
		textQueries := []query.Query{}

		nameMatch := bleve.NewMatchQuery(params.Query)
		nameMatch.SetField("name")
		nameMatch.SetBoost(3.0)
		textQueries = append(textQueries, nameMatch)

		brandMatch := bleve.NewMatchQuery(params.Query)
		brandMatch.SetField("brand_name")
		brandMatch.SetBoost(2.0)
		textQueries = append(textQueries, brandMatch)

		featureMatch := bleve.NewMatchQuery(params.Query)
		featureMatch.SetField("features")
		featureMatch.SetBoost(1.5)
		textQueries = append(textQueries, featureMatch)

		descMatch := bleve.NewMatchQuery(params.Query)
		descMatch.SetField("description")
		descMatch.SetBoost(0.5)
		textQueries = append(textQueries, descMatch)

		// Typo tolerance on name
		fuzzyQuery := bleve.NewFuzzyQuery(strings.ToLower(params.Query))
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetField("name")
		fuzzyQuery.SetBoost(0.8)
		textQueries = append(textQueries, fuzzyQuery)

		// Prefix query for autocomplete (minimum 2 chars)
		if len(params.Query) >= 2 {
			prefixQuery := bleve.NewPrefixQuery(strings.ToLower(params.Query))
			prefixQuery.SetField("name")
			prefixQuery.SetBoost(0.5)
			textQueries = append(textQueries, prefixQuery)
		}

		queries = append(queries, bleve.NewDisjunctionQuery(textQueries...))
	}

	if q := anyTerm("type", params.Types); q != nil {
		queries = append(queries, q)
	}
	if q := anyTerm("brand_id", params.BrandIDs); q != nil {
		queries = append(queries, q)
	}
	if q := anyTerm("firmness", params.Firmness); q != nil {
		queries = append(queries, q)
	}
	if params.SleepPosition != "" {
		queries = append(queries, anyTerm("sleep_positions", []string{params.SleepPosition}))
	}
	if params.Status != "" {
		queries = append(queries, anyTerm("status", []string{params.Status}))
	}

	if params.MinPrice > 0 || params.MaxPrice > 0 {
		var lo, hi *float64
		if params.MinPrice > 0 {
			lo = &params.MinPrice
		}
		if params.MaxPrice > 0 {
			hi = &params.MaxPrice
		}
		inclusive := true
		rangeQuery := bleve.NewNumericRangeInclusiveQuery(lo, hi, &inclusive, &inclusive)
		rangeQuery.SetField("price")
		queries = append(queries, rangeQuery)
	}

	if params.MinRating > 0 {
		inclusive := true
		rangeQuery := bleve.NewNumericRangeInclusiveQuery(&params.MinRating, nil, &inclusive, nil)
		rangeQuery.SetField("rating")
		queries = append(queries, rangeQuery)
	}

	if len(queries) == 0 {
		return bleve.NewMatchAllQuery()
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewConjunctionQuery(queries...)
}

// anyTerm matches documents whose keyword field equals any of values.
func anyTerm(field string, values []string) query.Query {
	if len(values) == 0 {
		return nil
	}
	terms := make([]query.Query, len(values))
	for i, v := range values {
		tq := bleve.NewTermQuery(v)
		tq.SetField(field)
		terms[i] = tq
	}
	if len(terms) == 1 {
		return terms[0]
	}
	return bleve.NewDisjunctionQuery(terms...)
}

// addSorting configures sort order.
func addSorting(req *bleve.SearchRequest, params SearchParams) {
	desc := params.SortOrder == "desc"
	switch params.SortBy {
	case "name":
		if desc {
			req.SortBy([]string{"-name"})
		} else {
			req.SortBy([]string{"name"})
		}
	case "price":
		if desc {
			req.SortBy([]string{"-price", "name"})
		} else {
			req.SortBy([]string{"price", "name"})
		}
	case "rating":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"rating", "name"})
		} else {
			req.SortBy([]string{"-rating", "name"})
		}
	default:
		req.SortBy([]string{"-_score", "_id"})
	}
}

// addFacets configures facet requests.
func addFacets(req *bleve.SearchRequest, params SearchParams) {
	for _, field := range params.FacetFields {
		req.AddFacet(field, bleve.NewFacetRequest(field, 20))
	}
}

// extractFacets converts Bleve facets to our format.
func extractFacets(result *bleve.SearchResult) SearchFacets {
	facets := SearchFacets{}

	collect := func(field string) []FacetCount {
		facet, ok := result.Facets[field]
		if !ok || facet.Terms == nil {
			return nil
		}
		var out []FacetCount
		for _, term := range facet.Terms.Terms() {
			out = append(out, FacetCount{Value: term.Term, Count: term.Count})
		}
		return out
	}

	facets.Types = collect("type")
	facets.Brands = collect("brand_id")
	facets.Firmness = collect("firmness")

	return facets
}
