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
	"github.com/Skotchmaster/crochet_shop/internal/logging"
	"github.com/Skotchmaster/crochet_shop/internal/models"
	"github.com/Skotchmaster/crochet_shop/internal/repo"
	"github.com/Skotchmaster/crochet_shop/internal/shipping"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
	"github.com/Skotchmaster/crochet_shop/internal/util"
)

type OrderService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

// PlaceOrder creates one order holding every submitted line. The owner is
// always the authenticated user.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uuid.UUID, req transport.PlaceOrderRequest) (*models.Order, error) {
	l := logging.FromContext(ctx).With("svc", "order.place")

	if req.UserID != "" && req.UserID != userID.String() {
		return nil, fmt.Errorf("%w: cannot place an order for another user", ErrForbidden)
	}
	if len(req.Products) == 0 {
		return nil, fmt.Errorf("%w: products required", ErrValidation)
	}
	if req.Total == nil {
		return nil, fmt.Errorf("%w: total required", ErrValidation)
	}

	lines := make([]models.OrderLine, 0, len(req.Products))
	seen := make(map[string]struct{}, len(req.Products))
	for i, p := range req.Products {
		id := cart.ResolveProductID(p.Item())
		if id == "" {
			return nil, fmt.Errorf("%w: products[%d]: product id required", ErrValidation, i)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: products[%d]: duplicate product %q", ErrValidation, i, id)
		}
		seen[id] = struct{}{}

		qty, _ := p.RequestedQuantity()
		if qty < 1 {
			return nil, fmt.Errorf("%w: products[%d]: quantity must be > 0", ErrValidation, i)
		}
		if !validMoney(p.Price) {
			return nil, fmt.Errorf("%w: products[%d]: price must be >= 0 with at most 2 decimals", ErrValidation, i)
		}
		lines = append(lines, models.OrderLine{
			ProductID: id,
			Name:      p.Name,
			Price:     p.Price,
			Quantity:  qty,
			Variation: p.Variation,
			Image:     p.Image,
		})
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		UserID:   userID,
		Username: user.Username,
		Lines:    lines,
		Status:   models.OrderStatusPending,
	}

	fee := decimal.Zero
	if req.ShippingFee != nil {
		fee = *req.ShippingFee
	}
	if req.Region != "" || req.City != "" {
		looked, err := shipping.Fee(req.Region, req.City)
		if err != nil {
			return nil, fmt.Errorf("%w: unknown region/city %q/%q", ErrValidation, req.Region, req.City)
		}
		order.Region, order.City = req.Region, req.City
		if req.ShippingFee == nil {
			fee = looked
		}
	}
	if !validMoney(fee) {
		return nil, fmt.Errorf("%w: shippingFee must be >= 0 with at most 2 decimals", ErrValidation)
	}
	order.ShippingFee = fee

	switch {
	case req.ShippingAddress != nil && !req.ShippingAddress.IsZero():
		order.ShippingAddress = trimAddress(*req.ShippingAddress)
	default:
		addr, ok := user.DefaultAddress()
		if !ok && order.City == "" {
			return nil, fmt.Errorf("%w: shipping address required", ErrValidation)
		}
		if ok {
			order.ShippingAddress = addr.Snapshot()
		}
	}

	computed := order.ComputeTotal()
	if !computed.Equal(*req.Total) {
		l.Warn("order_total_mismatch", "submitted", req.Total.String(), "computed", computed.String())
		return nil, fmt.Errorf("%w: total %s does not match computed %s", ErrValidation, req.Total.String(), computed.String())
	}
	order.Total = computed

	placed, err := s.Repo.PlaceOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	publish(ctx, s.Events, events.New(events.OrderCreated, userID.String(), map[string]any{
		"order_id": placed.ID.String(),
		"total":    placed.Total.String(),
		"lines":    len(placed.Lines),
	}))
	return placed, nil
}

func trimAddress(a models.ShippingAddress) models.ShippingAddress {
	return models.ShippingAddress{
		Label:      strings.TrimSpace(a.Label),
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		City:       strings.TrimSpace(a.City),
		State:      strings.TrimSpace(a.State),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

func (s *OrderService) ListMine(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	orders, err := s.Repo.ListOrdersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return orders, nil
}

func (s *OrderService) ListAll(ctx context.Context, status string, page, size int) (*transport.OrdersPage, error) {
	st := models.OrderStatus(status)
	if st != "" && !st.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	offset, limit := util.Calculate(page, size)
	orders, total, err := s.Repo.ListOrders(ctx, st, limit, offset)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []models.Order{}
	}
	return &transport.OrdersPage{Items: orders, Total: total, Page: offset/limit + 1, Size: limit}, nil
}

func mapOrderErr(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: order", ErrNotFound)
	case errors.Is(err, repo.ErrNotOwner):
		return fmt.Errorf("%w: order belongs to another user", ErrForbidden)
	case errors.Is(err, repo.ErrLineNotFound):
		return fmt.Errorf("%w: product not in order", ErrNotFound)
	case errors.Is(err, repo.ErrNotCancellable):
		return fmt.Errorf("%w: order can no longer be changed", ErrConflict)
	}
	return err
}

func (s *OrderService) DeleteOrder(ctx context.Context, orderID, userID uuid.UUID) error {
	if err := s.Repo.DeleteOrder(ctx, orderID, userID); err != nil {
		return mapOrderErr(err)
	}
	publish(ctx, s.Events, events.New(events.OrderDeleted, userID.String(), map[string]any{
		"order_id": orderID.String(),
	}))
	return nil
}

// CancelLine removes one product from an order, deleting the order when it
// held only that product.
func (s *OrderService) CancelLine(ctx context.Context, orderID, userID uuid.UUID, productID string) (*transport.CancelLineResponse, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return nil, fmt.Errorf("%w: product id required", ErrValidation)
	}

	deleted, order, err := s.Repo.CancelOrderLine(ctx, orderID, userID, productID)
	if err != nil {
		return nil, mapOrderErr(err)
	}

	if deleted {
		publish(ctx, s.Events, events.New(events.OrderDeleted, userID.String(), map[string]any{
			"order_id":   orderID.String(),
			"product_id": productID,
		}))
		return &transport.CancelLineResponse{OrderDeleted: true}, nil
	}

	publish(ctx, s.Events, events.New(events.OrderUpdated, userID.String(), map[string]any{
		"order_id":   orderID.String(),
		"product_id": productID,
		"total":      order.Total.String(),
	}))
	return &transport.CancelLineResponse{Order: order}, nil
}

func (s *OrderService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*models.Order, error) {
	st := models.OrderStatus(status)
	if !st.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	order, err := s.Repo.UpdateOrderStatus(ctx, orderID, st)
	if err != nil {
		return nil, mapOrderErr(err)
	}

	publish(ctx, s.Events, events.New(events.OrderUpdated, order.UserID.String(), map[string]any{
		"order_id": order.ID.String(),
		"status":   string(order.Status),
	}))
	return order, nil
}
