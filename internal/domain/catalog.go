package domain

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// Firmness grades a pillow's fill.
type Firmness string

// Firmness grades.
const (
	FirmnessSoft       Firmness = "Soft"
	FirmnessMediumSoft Firmness = "Medium-soft"
	FirmnessMedium     Firmness = "Medium"
	FirmnessMediumFirm Firmness = "Medium-firm"
	FirmnessFirm       Firmness = "Firm"
)

// ProductStatus is the catalog lifecycle state of a product.
type ProductStatus string

// Product statuses.
const (
	ProductActive     ProductStatus = "active"
	ProductDraft      ProductStatus = "draft"
	ProductOutOfStock ProductStatus = "out_of_stock"
)

// DefaultStock is assigned to new products that arrive without a stock level.
const DefaultStock = 100

// Specifications is the optional detail sheet of a product.
type Specifications struct {
	Dimensions       string `json:"dimensions,omitempty"`
	Weight           string `json:"weight,omitempty"`
	Material         string `json:"material,omitempty"`
	Cover            string `json:"cover,omitempty"`
	Filling          string `json:"filling,omitempty"`
	Firmness         string `json:"firmness,omitempty"`
	Warranty         string `json:"warranty,omitempty"`
	CareInstructions string `json:"care_instructions,omitempty"`
}

// Product is a pillow in the catalog.
type Product struct {
	Specifications *Specifications `json:"specifications,omitempty"`
	Price          decimal.Decimal `json:"price" validate:"decimal_gte0"`
	Name           string          `json:"name" validate:"required,max=200"`
	BrandID        string          `json:"brand_id" validate:"required"`
	Firmness       Firmness        `json:"firmness,omitempty" validate:"omitempty,firmness"`
	Image          string          `json:"image,omitempty"`
	Description    string          `json:"description,omitempty"`
	Status         ProductStatus   `json:"status" validate:"omitempty,product_status"`
	Features       []string        `json:"features"`
	SleepPositions []SleepPosition `json:"sleep_positions,omitempty" validate:"omitempty,dive,sleep_position"`
	ID             int64           `json:"id" validate:"gte=0"`
	Rating         float64         `json:"rating" validate:"gte=0,lte=5"`
	ReviewCount    int             `json:"review_count" validate:"gte=0"`
	Stock          int             `json:"stock" validate:"gte=0"`
	Sales          int             `json:"sales,omitempty" validate:"gte=0"`
	Recommended    bool            `json:"recommended,omitempty"`
}

// Key returns the product's storage key.
func (p *Product) Key() string {
	return strconv.FormatInt(p.ID, 10)
}

// Brand is a pillow manufacturer. ProductCount is derived from the catalog
// on read and is never authoritative.
type Brand struct {
	ID           string `json:"id" validate:"required,max=100"`
	Name         string `json:"name" validate:"required,max=200"`
	Logo         string `json:"logo,omitempty"`
	ProductCount int    `json:"product_count"`
}

// Key returns the brand's storage key.
func (b *Brand) Key() string {
	return b.ID
}

// Review is a customer review of a product.
type Review struct {
	User      string `json:"user"`
	Avatar    string `json:"avatar,omitempty"`
	Date      string `json:"date,omitempty"`
	Title     string `json:"title,omitempty" validate:"max=200"`
	Comment   string `json:"comment,omitempty" validate:"max=5000"`
	ID        int64  `json:"id" validate:"gte=0"`
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Rating    int    `json:"rating" validate:"required,gte=1,lte=5"`
	Helpful   int    `json:"helpful" validate:"gte=0"`
	Verified  bool   `json:"verified"`
}

// Key returns the review's storage key.
func (r *Review) Key() string {
	return strconv.FormatInt(r.ID, 10)
}

