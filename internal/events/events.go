// Package events carries entity change notifications to Kafka and to
// in-process subscribers such as the testimonials live feed.
package events

import (
	"context"
	"errors"
	"time"
)

const (
	OrderCreated       = "order_created"
	OrderUpdated       = "order_updated"
	OrderDeleted       = "order_deleted"
	CartUpdated        = "cart_updated"
	UserUpdated        = "user_updated"
	UserRegistered     = "user_registered"
	TestimonialInsert  = "testimonial_inserted"
	TestimonialDeleted = "testimonial_deleted"
)

type Event struct {
	Type       string         `json:"type"`
	Key        string         `json:"key"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload,omitempty"`
}

func New(typ, key string, payload map[string]any) Event {
	return Event{
		Type:       typ,
		Key:        key,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

// Fanout delivers to every publisher and joins their errors.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
