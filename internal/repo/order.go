package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/crochet_shop/internal/models"
)

func linesByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// PlaceOrder stores the order with its lines and removes the ordered
// products from the owner's cart. Both happen or neither does.
func (r *GormRepo) PlaceOrder(ctx context.Context, order *models.Order) (*models.Order, error) {
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines := order.Lines
		order.Lines = nil
		if err := tx.Omit("Lines").Create(order).Error; err != nil {
			return errors.Wrap(err, "create order")
		}

		productIDs := make([]string, len(lines))
		for i := range lines {
			lines[i].ID = 0
			lines[i].OrderID = order.ID
			lines[i].Position = i
			productIDs[i] = lines[i].ProductID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return errors.Wrap(err, "create order lines")
		}
		order.Lines = lines

		cartIDs := tx.Model(&models.Cart{}).Select("id").Where("user_id = ?", order.UserID)
		if err := tx.Where("cart_id IN (?) AND product_id IN ?", cartIDs, productIDs).Delete(&models.CartItem{}).Error; err != nil {
			return errors.Wrap(err, "trim cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *GormRepo) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.DB.WithContext(ctx).Preload("Lines", linesByPosition).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormRepo) ListOrdersByUser(ctx context.Context, userID uuid.UUID) ([]models.Order, error) {
	var orders []models.Order
	if err := r.DB.WithContext(ctx).
		Preload("Lines", linesByPosition).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *GormRepo) ListOrders(ctx context.Context, status models.OrderStatus, limit, offset int) ([]models.Order, int64, error) {
	q := r.DB.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var orders []models.Order
	if err := q.Preload("Lines", linesByPosition).Order("created_at DESC").Order("id").Limit(limit).Offset(offset).Find(&orders).Error; err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func lockOwnedOrder(tx *gorm.DB, orderID, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, ErrNotOwner
	}
	if !order.Status.Cancellable() {
		return nil, ErrNotCancellable
	}
	if err := tx.Scopes(linesByPosition).Where("order_id = ?", order.ID).Find(&order.Lines).Error; err != nil {
		return nil, errors.Wrap(err, "load order lines")
	}
	return &order, nil
}

func deleteOrder(tx *gorm.DB, orderID uuid.UUID) error {
	if err := tx.Where("order_id = ?", orderID).Delete(&models.OrderLine{}).Error; err != nil {
		return errors.Wrap(err, "delete order lines")
	}
	return errors.Wrap(tx.Where("id = ?", orderID).Delete(&models.Order{}).Error, "delete order")
}

func (r *GormRepo) DeleteOrder(ctx context.Context, orderID, userID uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockOwnedOrder(tx, orderID, userID); err != nil {
			return err
		}
		return deleteOrder(tx, orderID)
	})
}

// CancelOrderLine removes one product line. When it was the last line the
// whole order goes and deleted is true; otherwise the updated order is
// returned with the line subtotal taken off its total.
func (r *GormRepo) CancelOrderLine(ctx context.Context, orderID, userID uuid.UUID, productID string) (deleted bool, updated *models.Order, err error) {
	err = r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := lockOwnedOrder(tx, orderID, userID)
		if err != nil {
			return err
		}

		line, ok := order.Line(productID)
		if !ok {
			return ErrLineNotFound
		}

		if len(order.Lines) == 1 {
			deleted = true
			return deleteOrder(tx, order.ID)
		}

		if err := tx.Delete(&models.OrderLine{}, line.ID).Error; err != nil {
			return errors.Wrap(err, "delete order line")
		}
		order.Total = order.Total.Sub(line.Subtotal())
		if err := tx.Model(order).Update("total", order.Total).Error; err != nil {
			return errors.Wrap(err, "update order total")
		}

		remaining := make([]models.OrderLine, 0, len(order.Lines)-1)
		for _, l := range order.Lines {
			if l.ID != line.ID {
				remaining = append(remaining, l)
			}
		}
		order.Lines = remaining
		updated = order
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return deleted, updated, nil
}

func (r *GormRepo) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	res := r.DB.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Update("status", status)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "update order status")
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetOrder(ctx, orderID)
}
