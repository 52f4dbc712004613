package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/crochet_shop/internal/events"
	"github.com/Skotchmaster/crochet_shop/internal/models"
	"github.com/Skotchmaster/crochet_shop/internal/repo"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
	"github.com/Skotchmaster/crochet_shop/internal/util"
)

type TestimonialService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
}

func (s *TestimonialService) List(ctx context.Context, page, size int) ([]models.Testimonial, error) {
	offset, limit := util.Calculate(page, size)
	out, err := s.Repo.ListTestimonials(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Testimonial{}
	}
	return out, nil
}

func (s *TestimonialService) Create(ctx context.Context, req transport.TestimonialRequest) (*models.Testimonial, error) {
	t := &models.Testimonial{
		Quote:  strings.TrimSpace(req.Quote),
		Author: strings.TrimSpace(req.Author),
		Rating: req.Rating,
	}
	if t.Quote == "" || t.Author == "" {
		return nil, fmt.Errorf("%w: quote and author are required", ErrValidation)
	}
	if t.Rating < 1 || t.Rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	if err := s.Repo.CreateTestimonial(ctx, t); err != nil {
		return nil, err
	}

	publish(ctx, s.Events, events.New(events.TestimonialInsert, t.ID.String(), map[string]any{
		"id":        t.ID.String(),
		"quote":     t.Quote,
		"author":    t.Author,
		"rating":    t.Rating,
		"createdAt": t.CreatedAt,
	}))
	return t, nil
}

func (s *TestimonialService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.Repo.DeleteTestimonial(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: testimonial", ErrNotFound)
		}
		return err
	}
	publish(ctx, s.Events, events.New(events.TestimonialDeleted, id.String(), map[string]any{
		"id": id.String(),
	}))
	return nil
}
