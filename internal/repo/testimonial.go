package repo

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/Skotchmaster/crochet_shop/internal/models"
)

func (r *GormRepo) CreateTestimonial(ctx context.Context, t *models.Testimonial) error {
	return errors.Wrap(r.DB.WithContext(ctx).Create(t).Error, "create testimonial")
}

func (r *GormRepo) ListTestimonials(ctx context.Context, limit, offset int) ([]models.Testimonial, error) {
	var out []models.Testimonial
	if err := r.DB.WithContext(ctx).Order("created_at DESC").Limit(limit).Offset(offset).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormRepo) DeleteTestimonial(ctx context.Context, id uuid.UUID) error {
	res := r.DB.WithContext(ctx).Where("id = ?", id).Delete(&models.Testimonial{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete testimonial")
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
