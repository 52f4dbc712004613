package repo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Skotchmaster/crochet_shop/internal/models"
)

func (r *GormRepo) SaveRefreshToken(ctx context.Context, t *models.RefreshToken) error {
	return errors.Wrap(r.DB.WithContext(ctx).Create(t).Error, "save refresh token")
}

// RotateRefreshToken revokes oldJTI and stores next, failing when oldJTI is
// unknown, expired or already revoked.
func (r *GormRepo) RotateRefreshToken(ctx context.Context, oldJTI string, next *models.RefreshToken) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.RefreshToken
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("jti = ?", oldJTI).First(&current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenRevoked
			}
			return errors.Wrap(err, "find refresh token")
		}
		if current.Revoked || current.ExpiresAt.Before(time.Now()) {
			return ErrTokenRevoked
		}

		if err := tx.Model(&current).Update("revoked", true).Error; err != nil {
			return errors.Wrap(err, "revoke refresh token")
		}
		return errors.Wrap(tx.Create(next).Error, "save rotated token")
	})
}

func (r *GormRepo) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	return errors.Wrap(r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", tokenHash).
		Update("revoked", true).Error, "revoke refresh token")
}
