package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/sleepwell/sleepwell-server/internal/domain"
)

func (s *Server) registerCartRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "getCart",
		Method:      http.MethodGet,
		Path:        "/api/v1/carts/{sessionID}",
		Summary:     "Get cart",
		Description: "Returns the session's cart, empty when none exists",
		Tags:        []string{"Carts"},
	}, s.handleGetCart)

	huma.Register(s.api, huma.Operation{
		OperationID: "addCartItem",
		Method:      http.MethodPost,
		Path:        "/api/v1/carts/{sessionID}/items",
		Summary:     "Add cart item",
		Description: "Adds units of a product, snapshotting its price on first add",
		Tags:        []string{"Carts"},
	}, s.handleAddCartItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateCartItem",
		Method:      http.MethodPatch,
		Path:        "/api/v1/carts/{sessionID}/items/{productID}",
		Summary:     "Update cart item",
		Description: "Sets an item's quantity; quantities below one are ignored",
		Tags:        []string{"Carts"},
	}, s.handleUpdateCartItem)

	huma.Register(s.api, huma.Operation{
		OperationID: "removeCartItem",
		Method:      http.MethodDelete,
		Path:        "/api/v1/carts/{sessionID}/items/{productID}",
		Summary:     "Remove cart item",
		Description: "Drops a product from the cart",
		Tags:        []string{"Carts"},
	}, s.handleRemoveCartItem)

	huma.Register(s.api, huma.Operation{
		OperationID:   "clearCart",
		Method:        http.MethodDelete,
		Path:          "/api/v1/carts/{sessionID}",
		Summary:       "Clear cart",
		Description:   "Empties the session's cart",
		Tags:          []string{"Carts"},
		DefaultStatus: http.StatusNoContent,
	}, s.handleClearCart)
}

// === DTOs ===

// CartItemResponse is one line of a cart.
type CartItemResponse struct {
	ProductID int64  `json:"product_id" doc:"Product ID"`
	Name      string `json:"name" doc:"Product name when added"`
	Brand     string `json:"brand" doc:"Brand when added"`
	Image     string `json:"image,omitempty" doc:"Image when added"`
	Price     string `json:"price" doc:"Unit price when added"`
	Quantity  int    `json:"quantity" doc:"Units"`
	Subtotal  string `json:"subtotal" doc:"Price times quantity"`
}

// CartResponse contains a cart and its totals.
type CartResponse struct {
	SessionID string             `json:"session_id" doc:"Session ID"`
	Items     []CartItemResponse `json:"items" doc:"Cart lines"`
	ItemCount int                `json:"item_count" doc:"Total units"`
	Total     string             `json:"total" doc:"Sum of subtotals"`
	UpdatedAt time.Time          `json:"updated_at,omitempty" doc:"Last change"`
}

// CartOutput wraps a cart response for Huma.
type CartOutput struct {
	Body CartResponse
}

// SessionIDInput identifies a cart.
type SessionIDInput struct {
	SessionID string `path:"sessionID" doc:"Session ID"`
}

// AddCartItemInput wraps the add item request for Huma.
type AddCartItemInput struct {
	SessionID string `path:"sessionID" doc:"Session ID"`
	Body      struct {
		ProductID int64 `json:"product_id" minimum:"1" doc:"Product ID"`
		Quantity  int   `json:"quantity,omitempty" default:"1" doc:"Units to add"`
	}
}

// UpdateCartItemInput wraps the quantity change for Huma.
type UpdateCartItemInput struct {
	SessionID string `path:"sessionID" doc:"Session ID"`
	ProductID int64  `path:"productID" doc:"Product ID"`
	Body      struct {
		Quantity int `json:"quantity" doc:"New quantity"`
	}
}

// CartItemInput identifies a cart line.
type CartItemInput struct {
	SessionID string `path:"sessionID" doc:"Session ID"`
	ProductID int64  `path:"productID" doc:"Product ID"`
}

// ClearCartOutput has no body.
type ClearCartOutput struct{}

// === Handlers ===

func (s *Server) handleGetCart(ctx context.Context, input *SessionIDInput) (*CartOutput, error) {
	cart, err := s.services.Cart.GetCart(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	return &CartOutput{Body: toCartResponse(cart)}, nil
}

func (s *Server) handleAddCartItem(ctx context.Context, input *AddCartItemInput) (*CartOutput, error) {
	cart, err := s.services.Cart.AddItem(ctx, input.SessionID, input.Body.ProductID, input.Body.Quantity)
	if err != nil {
		return nil, err
	}
	return &CartOutput{Body: toCartResponse(cart)}, nil
}

func (s *Server) handleUpdateCartItem(ctx context.Context, input *UpdateCartItemInput) (*CartOutput, error) {
	cart, err := s.services.Cart.UpdateQuantity(ctx, input.SessionID, input.ProductID, input.Body.Quantity)
	if err != nil {
		return nil, err
	}
	return &CartOutput{Body: toCartResponse(cart)}, nil
}

func (s *Server) handleRemoveCartItem(ctx context.Context, input *CartItemInput) (*CartOutput, error) {
	cart, err := s.services.Cart.RemoveItem(ctx, input.SessionID, input.ProductID)
	if err != nil {
		return nil, err
	}
	return &CartOutput{Body: toCartResponse(cart)}, nil
}

func (s *Server) handleClearCart(ctx context.Context, input *SessionIDInput) (*ClearCartOutput, error) {
	if err := s.services.Cart.Clear(ctx, input.SessionID); err != nil {
		return nil, err
	}
	return &ClearCartOutput{}, nil
}

func toCartResponse(c *domain.Cart) CartResponse {
	items := make([]CartItemResponse, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, CartItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Brand:     item.Brand,
			Image:     item.Image,
			Price:     item.Price.StringFixed(2),
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal().StringFixed(2),
		})
	}
	return CartResponse{
		SessionID: c.SessionID,
		Items:     items,
		ItemCount: c.ItemCount(),
		Total:     c.Total().StringFixed(2),
		UpdatedAt: c.UpdatedAt,
	}
}
