package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type Preferences struct {
	Newsletter bool `json:"newsletter"`
}

type User struct {
	ID                   uuid.UUID   `gorm:"type:uuid;primaryKey"                     json:"id"`
	FullName             string      `gorm:"not null"                                 json:"fullName"`
	Username             string      `gorm:"uniqueIndex;not null"                     json:"username"`
	Email                string      `gorm:"uniqueIndex;not null"                     json:"email"`
	PasswordHash         string      `gorm:"not null"                                 json:"-"`
	Avatar               string      `                                                json:"avatar"`
	Addresses            []Address   `gorm:"constraint:OnDelete:CASCADE"              json:"addresses"`
	Preferences          Preferences `gorm:"embedded"                                 json:"preferences"`
	LastUsernameChangeAt *time.Time  `                                                json:"lastUsernameChangeAt,omitempty"`
	Role                 string      `gorm:"not null"                                 json:"role"`
	CreatedAt            time.Time   `                                                json:"createdAt"`
	UpdatedAt            time.Time   `                                                json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// DefaultAddress is the flagged address, or the first one when none is flagged.
func (u *User) DefaultAddress() (Address, bool) {
	if len(u.Addresses) == 0 {
		return Address{}, false
	}
	for _, a := range u.Addresses {
		if a.IsDefault {
			return a, true
		}
	}
	return u.Addresses[0], true
}

type Address struct {
	ID         uint      `gorm:"primaryKey"                json:"-"`
	UserID     uuid.UUID `gorm:"type:uuid;index;not null"  json:"-"`
	Position   int       `gorm:"not null"                  json:"-"`
	Label      string    `                                 json:"label"`
	Line1      string    `gorm:"not null"                  json:"line1"`
	Line2      string    `                                 json:"line2"`
	City       string    `gorm:"not null"                  json:"city"`
	State      string    `gorm:"not null"                  json:"state"`
	PostalCode string    `gorm:"not null"                  json:"postalCode"`
	Country    string    `gorm:"not null"                  json:"country"`
	IsDefault  bool      `gorm:"not null"                  json:"isDefault"`
}

func (Address) TableName() string {
	return "user_addresses"
}

// Snapshot copies the address into the value stored on carts and orders.
func (a Address) Snapshot() ShippingAddress {
	return ShippingAddress{
		Label:      a.Label,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
	}
}

type ShippingAddress struct {
	Label      string `json:"label,omitempty"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (s ShippingAddress) IsZero() bool {
	return s.Line1 == "" && s.City == "" && s.State == "" && s.PostalCode == "" && s.Country == ""
}

type RefreshToken struct {
	ID        uint      `gorm:"primaryKey"                json:"id"`
	TokenHash string    `gorm:"uniqueIndex;not null"      json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"  json:"user_id"`
	JTI       string    `gorm:"uniqueIndex;not null"      json:"jti"`
	ExpiresAt time.Time `gorm:"not null"                  json:"expires_at"`
	Revoked   bool      `gorm:"not null"                  json:"revoked"`
	CreatedAt time.Time `                                 json:"created_at"`
}

type Testimonial struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"                 json:"id"`
	Quote     string    `gorm:"not null"                             json:"quote"`
	Author    string    `gorm:"not null"                             json:"author"`
	Rating    int       `gorm:"not null;check:rating BETWEEN 1 AND 5" json:"rating"`
	CreatedAt time.Time `gorm:"index"                                json:"createdAt"`
}

func (t *Testimonial) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

func lineSubtotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}
