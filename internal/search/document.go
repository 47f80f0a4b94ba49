// Package search provides full-text search over the pillow catalog using
// Bleve. Products and brands share one index and are told apart by type.
package search

import (
	"strconv"

	"github.com/sleepwell/sleepwell-server/internal/domain"
)

// DocType represents the type of document in the unified index.
type DocType string

// Document types for the search index.
const (
	DocTypeProduct DocType = "product"
	DocTypeBrand   DocType = "brand"
)

// SearchDocument is the unified document structure for the Bleve index.
//
// Brand names are denormalized into product documents so a query for
// "casper" finds Casper pillows without a second lookup.
type SearchDocument struct {
	// Identity
	ID   string  `json:"id"`   // Type-prefixed entity ID (product:1, brand:casper)
	Type DocType `json:"type"` // Discriminator for result grouping

	// Product: name, Brand: display name
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Product-specific fields (empty for brands)
	BrandID        string   `json:"brand_id,omitempty"`
	BrandName      string   `json:"brand_name,omitempty"` // Denormalized for search
	Features       []string `json:"features,omitempty"`
	Firmness       string   `json:"firmness,omitempty"`
	SleepPositions []string `json:"sleep_positions,omitempty"`
	Status         string   `json:"status,omitempty"`

	// Numeric fields for range queries and sorting
	Price        float64 `json:"price,omitempty"`
	Rating       float64 `json:"rating,omitempty"`
	ReviewCount  int     `json:"review_count,omitempty"`
	ProductCount int     `json:"product_count,omitempty"` // (brands only)
}

// ToMap converts the document to a map with lowercase field names.
// This ensures field names match the Bleve index mapping.
func (d *SearchDocument) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"id":   d.ID,
		"type": string(d.Type),
		"name": d.Name,
	}

	// Optional fields - only add if non-empty
	if d.Description != "" {
		m["description"] = d.Description
	}
	if d.BrandID != "" {
		m["brand_id"] = d.BrandID
	}
	if d.BrandName != "" {
		m["brand_name"] = d.BrandName
	}
	if len(d.Features) > 0 {
		m["features"] = d.Features
	}
	if d.Firmness != "" {
		m["firmness"] = d.Firmness
	}
	if len(d.SleepPositions) > 0 {
		m["sleep_positions"] = d.SleepPositions
	}
	if d.Status != "" {
		m["status"] = d.Status
	}
	if d.Type == DocTypeProduct {
		m["price"] = d.Price
		m["rating"] = d.Rating
		m["review_count"] = d.ReviewCount
	}
	if d.ProductCount > 0 {
		m["product_count"] = d.ProductCount
	}

	return m
}

// ProductDocID returns the index id of a product.
func ProductDocID(productID int64) string {
	return string(DocTypeProduct) + ":" + strconv.FormatInt(productID, 10)
}

// BrandDocID returns the index id of a brand.
func BrandDocID(brandID string) string {
	return string(DocTypeBrand) + ":" + brandID
}

// ProductToSearchDocument converts a domain Product to a SearchDocument.
// The brand's display name is provided by the caller.
func ProductToSearchDocument(p *domain.Product, brandName string) *SearchDocument {
	positions := make([]string, len(p.SleepPositions))
	for i, pos := range p.SleepPositions {
		positions[i] = string(pos)
	}

	price, _ := p.Price.Float64()

	return &SearchDocument{
		ID:             ProductDocID(p.ID),
		Type:           DocTypeProduct,
		Name:           p.Name,
		Description:    p.Description,
		BrandID:        p.BrandID,
		BrandName:      brandName,
		Features:       p.Features,
		Firmness:       string(p.Firmness),
		SleepPositions: positions,
		Status:         string(p.Status),
		Price:          price,
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
	}
}

// BrandToSearchDocument converts a domain Brand to a SearchDocument.
func BrandToSearchDocument(b *domain.Brand) *SearchDocument {
	return &SearchDocument{
		ID:           BrandDocID(b.ID),
		Type:         DocTypeBrand,
		Name:         b.Name,
		BrandID:      b.ID,
		ProductCount: b.ProductCount,
	}
}
