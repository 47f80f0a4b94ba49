package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartItem is a product line in a cart. Price, name, brand and image are
// snapshotted when the item is added.
type CartItem struct {
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
	Brand     string          `json:"brand"`
	Image     string          `json:"image,omitempty"`
	ProductID int64           `json:"product_id" validate:"gt=0"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
}

// Subtotal returns price times quantity.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart is a session-scoped shopping cart. Carts live in the local cache only.
type Cart struct {
	UpdatedAt time.Time  `json:"updated_at"`
	SessionID string     `json:"session_id" validate:"required"`
	Items     []CartItem `json:"items" validate:"dive"`
}

// Key returns the cart's storage key.
func (c *Cart) Key() string {
	return c.SessionID
}

// Total sums the subtotals of every item.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ItemCount sums item quantities.
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}
