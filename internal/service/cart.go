package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/crochet_shop/internal/cart"
	"github.com/Skotchmaster/crochet_shop/internal/events"
	"github.com/Skotchmaster/crochet_shop/internal/models"
	"github.com/Skotchmaster/crochet_shop/internal/repo"
	"github.com/Skotchmaster/crochet_shop/internal/shipping"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
)

type CartService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

func emptyCart(userID uuid.UUID) *models.Cart {
	return &models.Cart{
		UserID:      userID,
		Items:       []models.CartItem{},
		ShippingFee: decimal.Zero,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	c, err := s.Repo.GetCart(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return emptyCart(userID), nil
	}
	if err != nil {
		return nil, err
	}
	if c.Items == nil {
		c.Items = []models.CartItem{}
	}
	return c, nil
}

// SaveCart replaces the stored cart with exactly the submitted state.
func (s *CartService) SaveCart(ctx context.Context, userID uuid.UUID, req transport.SaveCartRequest) (*models.Cart, error) {
	items, err := cartItemsFromRequest(req.Items)
	if err != nil {
		return nil, err
	}

	c := &models.Cart{
		UserID:   userID,
		Username: strings.TrimSpace(req.Username),
		Items:    items,
	}

	switch {
	case req.Region != "" || req.City != "":
		fee, err := shipping.Fee(req.Region, req.City)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown region/city %q/%q", ErrValidation, req.Region, req.City)
		}
		c.Region, c.City, c.ShippingFee = req.Region, req.City, fee
	default:
		if req.ShippingAddress != nil {
			c.ShippingAddress = *req.ShippingAddress
		}
		c.ShippingFee = decimal.Zero
		if req.ShippingFee != nil {
			if !validMoney(*req.ShippingFee) {
				return nil, fmt.Errorf("%w: shippingFee must be >= 0 with at most 2 decimals", ErrValidation)
			}
			c.ShippingFee = *req.ShippingFee
		}
	}

	stored, err := s.Repo.ReplaceCart(ctx, c)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, events.New(events.CartUpdated, userID.String(), map[string]any{
		"items": len(stored.Items),
	}))
	return stored, nil
}

// MergeGuestCart folds a guest cart into the stored one, stored items first.
func (s *CartService) MergeGuestCart(ctx context.Context, userID uuid.UUID, req transport.MergeCartRequest) (*models.Cart, error) {
	guest := make([]cart.Item, 0, len(req.Items))
	for i, it := range req.Items {
		if !validMoney(it.Price) {
			return nil, fmt.Errorf("%w: items[%d]: price must be >= 0 with at most 2 decimals", ErrValidation, i)
		}
		guest = append(guest, it.Item())
	}

	stored, err := s.Repo.MergeCart(ctx, userID, strings.TrimSpace(req.Username), func(current []models.CartItem) []models.CartItem {
		return fromMergeItems(cart.Merge(toMergeItems(current), guest))
	})
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, events.New(events.CartUpdated, userID.String(), map[string]any{
		"items":  len(stored.Items),
		"merged": len(req.Items),
	}))
	return stored, nil
}

func cartItemsFromRequest(in []transport.CartItem) ([]models.CartItem, error) {
	out := make([]models.CartItem, 0, len(in))
	for i, it := range in {
		id := cart.ResolveProductID(it.Item())
		if id == "" {
			return nil, fmt.Errorf("%w: items[%d]: product id required", ErrValidation, i)
		}
		qty, _ := it.RequestedQuantity()
		if qty < 1 {
			return nil, fmt.Errorf("%w: items[%d]: quantity must be > 0", ErrValidation, i)
		}
		if !validMoney(it.Price) {
			return nil, fmt.Errorf("%w: items[%d]: price must be >= 0 with at most 2 decimals", ErrValidation, i)
		}
		out = append(out, models.CartItem{
			ProductID: id,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  qty,
			Variation: it.Variation,
			Image:     it.Image,
		})
	}
	return out, nil
}

func toMergeItems(in []models.CartItem) []cart.Item {
	out := make([]cart.Item, len(in))
	for i, it := range in {
		out[i] = cart.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Variation: it.Variation,
			Image:     it.Image,
		}
	}
	return out
}

func fromMergeItems(in []cart.Item) []models.CartItem {
	out := make([]models.CartItem, len(in))
	for i, it := range in {
		out[i] = models.CartItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Price:     it.Price,
			Quantity:  it.Quantity,
			Variation: it.Variation,
			Image:     it.Image,
		}
	}
	return out
}

// validMoney reports whether v is a non-negative amount in whole cents, the
// precision money columns are stored with.
func validMoney(v decimal.Decimal) bool {
	return !v.IsNegative() && v.Equal(v.Round(2))
}
