package service

import (
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/sleepwell/sleepwell-server/internal/domain"
	domainerrors "github.com/sleepwell/sleepwell-server/internal/errors"
	"github.com/sleepwell/sleepwell-server/internal/sync"
	"github.com/sleepwell/sleepwell-server/internal/validation"
)

// CartService manages session carts. Carts live in the local cache only.
type CartService struct {
	carts   *sync.Repository[domain.Cart]
	catalog *CatalogService
	logger  *slog.Logger
}

// NewCartService creates a new cart service.
func NewCartService(coord *sync.Coordinator, validator *validation.Validator, catalog *CatalogService, logger *slog.Logger) *CartService {
	return &CartService{
		carts:   newCartRepository(coord, validator),
		catalog: catalog,
		logger:  logger,
	}
}

// GetCart returns the session's cart, empty when the session has none.
func (s *CartService) GetCart(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, _, err := s.carts.Get(ctx, sessionID)
	if domainerrors.Is(err, domainerrors.ErrNotFound) {
		return &domain.Cart{SessionID: sessionID, Items: []domain.CartItem{}}, nil
	}
	return cart, err
}

// AddItem adds quantity units of a product. The product's name, brand,
// image and price are snapshotted the first time it is added; adding it
// again only raises the quantity.
func (s *CartService) AddItem(ctx context.Context, sessionID string, productID int64, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"quantity": "must be greater than or equal to 1",
		})
	}

	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if i := itemIndex(cart, productID); i >= 0 {
		cart.Items[i].Quantity += quantity
	} else {
		p, _, err := s.catalog.GetProduct(ctx, productID)
		if err != nil {
			return nil, err
		}
		cart.Items = append(cart.Items, domain.CartItem{
			ProductID: p.ID,
			Name:      p.Name,
			Brand:     p.BrandID,
			Image:     p.Image,
			Price:     p.Price,
			Quantity:  quantity,
		})
	}

	return s.save(ctx, cart)
}

// UpdateQuantity sets the quantity of an item already in the cart.
// Quantities below one are ignored and leave the cart unchanged.
func (s *CartService) UpdateQuantity(ctx context.Context, sessionID string, productID int64, quantity int) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if quantity < 1 {
		return cart, nil
	}

	i := itemIndex(cart, productID)
	if i < 0 {
		return nil, domainerrors.NotFoundf("product %d is not in the cart", productID)
	}
	cart.Items[i].Quantity = quantity

	return s.save(ctx, cart)
}

// RemoveItem drops a product from the cart. Removing an absent product is
// a no-op.
func (s *CartService) RemoveItem(ctx context.Context, sessionID string, productID int64) (*domain.Cart, error) {
	cart, err := s.GetCart(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cart.Items = slices.DeleteFunc(cart.Items, func(item domain.CartItem) bool {
		return item.ProductID == productID
	})
	return s.save(ctx, cart)
}

// Clear empties the session's cart.
func (s *CartService) Clear(ctx context.Context, sessionID string) error {
	_, err := s.carts.Delete(ctx, sessionID)
	return err
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	cart.UpdatedAt = time.Now().UTC()
	if _, err := s.carts.Save(ctx, cart); err != nil {
		return nil, err
	}
	s.logger.Debug("cart saved", "session_id", cart.SessionID, "items", cart.ItemCount())
	return cart, nil
}

func itemIndex(cart *domain.Cart, productID int64) int {
	return slices.IndexFunc(cart.Items, func(item domain.CartItem) bool {
		return item.ProductID == productID
	})
}
