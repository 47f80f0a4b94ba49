package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve index mapping for search documents.
//
// The mapping is designed with these priorities:
//  1. Full-text search on names and features with English stemming
//  2. Exact keyword matching for type, brand, firmness and position filters
//  3. Numeric range queries on price and rating
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	// --- Text fields (full-text searchable) ---

	// Name field - primary search target
	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = en.AnalyzerName
	nameFieldMapping.Store = true
	nameFieldMapping.IncludeTermVectors = true // For highlighting
	docMapping.AddFieldMappingsAt("name", nameFieldMapping)

	// Description - searchable but not stored
	descFieldMapping := bleve.NewTextFieldMapping()
	descFieldMapping.Analyzer = en.AnalyzerName
	descFieldMapping.Store = false
	docMapping.AddFieldMappingsAt("description", descFieldMapping)

	// Features - "Cooling technology", "Memory foam"
	featuresFieldMapping := bleve.NewTextFieldMapping()
	featuresFieldMapping.Analyzer = en.AnalyzerName
	featuresFieldMapping.Store = true
	featuresFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt("features", featuresFieldMapping)

	// Brand name - simple analyzer, no stemming of proper names
	brandNameFieldMapping := bleve.NewTextFieldMapping()
	brandNameFieldMapping.Analyzer = simple.Name
	brandNameFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("brand_name", brandNameFieldMapping)

	// --- Keyword fields (exact match, facetable) ---

	for _, field := range []string{"id", "type", "brand_id", "firmness", "sleep_positions", "status"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	// --- Numeric fields (range queries, sorting) ---

	for _, field := range []string{"price", "rating", "review_count", "product_count"} {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}
