package transport

import (
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/crochet_shop/internal/cart"
	"github.com/Skotchmaster/crochet_shop/internal/models"
)

// CartItem accepts the identifier and quantity spellings clients use.
type CartItem struct {
	DatabaseID string          `json:"_id,omitempty"`
	ID         string          `json:"id,omitempty"`
	ProductID  string          `json:"productId,omitempty"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Qty        *int            `json:"qty,omitempty"`
	Quantity   *int            `json:"quantity,omitempty"`
	Variation  string          `json:"variation,omitempty"`
	Image      string          `json:"image,omitempty"`
}

// RequestedQuantity is qty, then quantity, then 1. explicit reports whether
// the client sent either field.
func (it CartItem) RequestedQuantity() (qty int, explicit bool) {
	switch {
	case it.Qty != nil:
		return *it.Qty, true
	case it.Quantity != nil:
		return *it.Quantity, true
	default:
		return 1, false
	}
}

func (it CartItem) Item() cart.Item {
	q, _ := it.RequestedQuantity()
	return cart.Item{
		DatabaseID: it.DatabaseID,
		ID:         it.ID,
		ProductID:  it.ProductID,
		Name:       it.Name,
		Price:      it.Price,
		Quantity:   q,
		Variation:  it.Variation,
		Image:      it.Image,
	}
}

type SaveCartRequest struct {
	Items           []CartItem              `json:"items"`
	Username        string                  `json:"username"`
	Region          string                  `json:"region"`
	City            string                  `json:"city"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress"`
	ShippingFee     *decimal.Decimal        `json:"shippingFee"`
}

type MergeCartRequest struct {
	Items    []CartItem `json:"items"`
	Username string     `json:"username"`
}

type PlaceOrderRequest struct {
	UserID          string                  `json:"userId"`
	Username        string                  `json:"username"`
	Products        []CartItem              `json:"products"`
	ShippingAddress *models.ShippingAddress `json:"shippingAddress"`
	Region          string                  `json:"region"`
	City            string                  `json:"city"`
	ShippingFee     *decimal.Decimal        `json:"shippingFee"`
	Total           *decimal.Decimal        `json:"total"`
}

type CancelLineResponse struct {
	OrderDeleted bool          `json:"orderDeleted"`
	Order        *models.Order `json:"order,omitempty"`
}

type OrdersPage struct {
	Items []models.Order `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Size  int            `json:"size"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

type AddressInput struct {
	Label      string `json:"label"`
	Line1      string `json:"line1"      validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city"       validate:"required"`
	State      string `json:"state"      validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country"    validate:"required"`
	IsDefault  bool   `json:"isDefault"`
}

type PreferencesInput struct {
	Newsletter *bool `json:"newsletter"`
}

type UpdateAccountRequest struct {
	Password    string            `json:"password"`
	Username    *string           `json:"username"`
	Avatar      *string           `json:"avatar"`
	Addresses   *[]AddressInput   `json:"addresses"   validate:"omitempty,dive"`
	Preferences *PreferencesInput `json:"preferences"`
}

type RegisterRequest struct {
	FullName string `json:"fullName" validate:"required"`
	Username string `json:"username" validate:"required"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type TokenResponse struct {
	AccessToken  string       `json:"accessToken"`
	RefreshToken string       `json:"refreshToken"`
	AccessExp    int64        `json:"accessExp"`
	RefreshExp   int64        `json:"refreshExp"`
	User         *models.User `json:"user,omitempty"`
}

type TestimonialRequest struct {
	Quote  string `json:"quote"  validate:"required"`
	Author string `json:"author" validate:"required"`
	Rating int    `json:"rating" validate:"min=1,max=5"`
}
