package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Cart struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey"               json:"id"`
	UserID          uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null"     json:"userId"`
	Username        string          `                                          json:"username"`
	Items           []CartItem      `gorm:"constraint:OnDelete:CASCADE"        json:"items"`
	Region          string          `                                          json:"region"`
	City            string          `                                          json:"city"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:ship_"      json:"shippingAddress"`
	ShippingFee     decimal.Decimal `gorm:"type:numeric(12,2);not null"        json:"shippingFee"`
	CreatedAt       time.Time       `                                          json:"createdAt"`
	UpdatedAt       time.Time       `                                          json:"updatedAt"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Subtotal is the sum of item prices times quantities, shipping excluded.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(lineSubtotal(it.Price, it.Quantity))
	}
	return sum
}

type CartItem struct {
	ID        uint            `gorm:"primaryKey"                       json:"-"`
	CartID    uuid.UUID       `gorm:"type:uuid;index;not null"         json:"-"`
	Position  int             `gorm:"not null"                         json:"-"`
	ProductID string          `gorm:"not null"                         json:"productId"`
	Name      string          `                                        json:"name"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null"      json:"price"`
	Quantity  int             `gorm:"not null;check:quantity > 0"      json:"quantity"`
	Variation string          `                                        json:"variation,omitempty"`
	Image     string          `                                        json:"image,omitempty"`
}

func (CartItem) TableName() string {
	return "cart_items"
}
