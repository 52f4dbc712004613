package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusProcessing     OrderStatus = "processing"
	OrderStatusShipped        OrderStatus = "shipped"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusRejected       OrderStatus = "rejected"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

var orderStatuses = map[OrderStatus]struct{}{
	OrderStatusPending:        {},
	OrderStatusProcessing:     {},
	OrderStatusShipped:        {},
	OrderStatusOutForDelivery: {},
	OrderStatusDelivered:      {},
	OrderStatusRejected:       {},
	OrderStatusCancelled:      {},
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatuses[s]
	return ok
}

// Cancellable reports whether the customer may still remove lines.
func (s OrderStatus) Cancellable() bool {
	return s == OrderStatusPending || s == OrderStatusProcessing
}

type Order struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"               json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;index;not null"           json:"userId"`
	Username        string          `gorm:"not null"                           json:"username"`
	Lines           []OrderLine     `gorm:"constraint:OnDelete:CASCADE"        json:"products"`
	Region          string          `                                          json:"region,omitempty"`
	City            string          `                                          json:"city,omitempty"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_"      json:"shippingAddress"`
	ShippingFee     decimal.Decimal `gorm:"type:numeric(12,2);not null"        json:"shippingFee"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null"        json:"total"`
	Status          OrderStatus     `gorm:"type:varchar(32);not null;index"    json:"status"`
	CreatedAt       time.Time       `gorm:"index"                              json:"createdAt"`
	UpdatedAt       time.Time       `                                          json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OrderStatusPending
	}
	return nil
}

// ComputeTotal recomputes the total from the lines and the shipping fee.
func (o *Order) ComputeTotal() decimal.Decimal {
	sum := o.ShippingFee
	for _, l := range o.Lines {
		sum = sum.Add(l.Subtotal())
	}
	return sum
}

func (o *Order) Line(productID string) (OrderLine, bool) {
	for _, l := range o.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return OrderLine{}, false
}

type OrderLine struct {
	ID        uint            `gorm:"primaryKey"                       json:"-"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"         json:"-"`
	Position  int             `gorm:"not null"                         json:"-"`
	ProductID string          `gorm:"not null"                         json:"productId"`
	Name      string          `                                        json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"      json:"price"`
	Quantity  int             `gorm:"not null;check:quantity > 0"      json:"quantity"`
	Variation string          `                                        json:"variation,omitempty"`
	Image     string          `                                        json:"image,omitempty"`
}

func (OrderLine) TableName() string {
	return "order_lines"
}

func (l OrderLine) Subtotal() decimal.Decimal {
	return lineSubtotal(l.Price, l.Quantity)
}
