package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Skotchmaster/crochet_shop/internal/models"
)

func addressesByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// CreateUser inserts the user after checking that username and email are free.
func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := usernameTaken(tx, u.Username, uuid.Nil)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		var count int64
		if err := tx.Model(&models.User{}).Where("email = ?", u.Email).Count(&count).Error; err != nil {
			return errors.Wrap(err, "count users by email")
		}
		if count > 0 {
			return ErrEmailTaken
		}

		if err := tx.Omit("Addresses").Create(u).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUsernameTaken
			}
			return errors.Wrap(err, "create user")
		}
		return nil
	})
}

func (r *GormRepo) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Preload("Addresses", addressesByPosition).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Preload("Addresses", addressesByPosition).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// UsernameTaken reports whether a user other than exceptID owns username.
func (r *GormRepo) UsernameTaken(ctx context.Context, username string, exceptID uuid.UUID) (bool, error) {
	return usernameTaken(r.DB.WithContext(ctx), username, exceptID)
}

func usernameTaken(db *gorm.DB, username string, exceptID uuid.UUID) (bool, error) {
	var count int64
	q := db.Model(&models.User{}).Where("username = ?", username)
	if exceptID != uuid.Nil {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, errors.Wrap(err, "count users by username")
	}
	return count > 0, nil
}

// SaveAccount writes profile fields and, when replaceAddresses is set,
// swaps the whole address list in the same transaction.
func (r *GormRepo) SaveAccount(ctx context.Context, u *models.User, replaceAddresses bool) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		taken, err := usernameTaken(tx, u.Username, u.ID)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		res := tx.Model(&models.User{}).Where("id = ?", u.ID).Updates(map[string]any{
			"username":                u.Username,
			"avatar":                  u.Avatar,
			"newsletter":              u.Preferences.Newsletter,
			"last_username_change_at": u.LastUsernameChangeAt,
		})
		if res.Error != nil {
			if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
				return ErrUsernameTaken
			}
			return errors.Wrap(res.Error, "update user")
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if !replaceAddresses {
			return nil
		}
		if err := tx.Where("user_id = ?", u.ID).Delete(&models.Address{}).Error; err != nil {
			return errors.Wrap(err, "delete addresses")
		}
		if len(u.Addresses) == 0 {
			return nil
		}
		for i := range u.Addresses {
			u.Addresses[i].ID = 0
			u.Addresses[i].UserID = u.ID
			u.Addresses[i].Position = i
		}
		return errors.Wrap(tx.Create(&u.Addresses).Error, "insert addresses")
	})
}
