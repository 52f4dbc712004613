package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/crochet_shop/internal/models"
)

var cartUpsertColumns = []string{
	"username", "region", "city",
	"ship_label", "ship_line1", "ship_line2", "ship_city", "ship_state", "ship_postal_code", "ship_country",
	"shipping_fee", "updated_at",
}

func itemsByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func (r *GormRepo) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return getCart(r.DB.WithContext(ctx), userID)
}

func getCart(db *gorm.DB, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	if err := db.Preload("Items", itemsByPosition).Where("user_id = ?", userID).First(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// ReplaceCart creates the user's cart or overwrites it, items included.
func (r *GormRepo) ReplaceCart(ctx context.Context, cart *models.Cart) (*models.Cart, error) {
	var stored *models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		stored, err = replaceCart(tx, cart)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// MergeCart loads the stored items under lock, lets merge compute the new
// list and writes it back within one transaction. A missing cart is seen as
// empty.
func (r *GormRepo) MergeCart(ctx context.Context, userID uuid.UUID, username string, merge func(stored []models.CartItem) []models.CartItem) (*models.Cart, error) {
	var stored *models.Cart
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next := models.Cart{UserID: userID, Username: username}

		var current models.Cart
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&current).Error
		switch {
		case err == nil:
			if err := tx.Scopes(itemsByPosition).Where("cart_id = ?", current.ID).Find(&current.Items).Error; err != nil {
				return errors.Wrap(err, "load cart items")
			}
			next = current
			if username != "" {
				next.Username = username
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return errors.Wrap(err, "lock cart")
		}

		next.Items = merge(current.Items)
		stored, err = replaceCart(tx, &next)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func replaceCart(tx *gorm.DB, cart *models.Cart) (*models.Cart, error) {
	row := *cart
	row.ID = uuid.Nil
	row.Items = nil

	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns(cartUpsertColumns),
	}).Omit("Items").Create(&row).Error; err != nil {
		return nil, errors.Wrap(err, "upsert cart")
	}

	var saved models.Cart
	if err := tx.Where("user_id = ?", cart.UserID).First(&saved).Error; err != nil {
		return nil, errors.Wrap(err, "reload cart")
	}

	if err := tx.Where("cart_id = ?", saved.ID).Delete(&models.CartItem{}).Error; err != nil {
		return nil, errors.Wrap(err, "clear cart items")
	}

	if len(cart.Items) > 0 {
		items := make([]models.CartItem, len(cart.Items))
		for i, it := range cart.Items {
			it.ID = 0
			it.CartID = saved.ID
			it.Position = i
			items[i] = it
		}
		if err := tx.Create(&items).Error; err != nil {
			return nil, errors.Wrap(err, "insert cart items")
		}
	}

	return getCart(tx, cart.UserID)
}
