package cartsync

import (
	"context"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/crochet_shop/internal/cart"
	"github.com/Skotchmaster/crochet_shop/internal/models"
)

// Shipping is where the cart ships to: a region and city with a looked-up
// fee, or an explicit address with an optional fee.
type Shipping struct {
	Region  string                  `json:"region,omitempty"`
	City    string                  `json:"city,omitempty"`
	Address *models.ShippingAddress `json:"address,omitempty"`
	Fee     *decimal.Decimal        `json:"fee,omitempty"`
}

func (s Shipping) IsZero() bool {
	return s.Region == "" && s.City == "" && s.Address == nil && s.Fee == nil
}

// State is what a LocalStore keeps between sessions.
type State struct {
	Items    []cart.Item `json:"items"`
	Shipping Shipping    `json:"shipping"`
}

func (s State) clone() State {
	out := State{Items: slices.Clone(s.Items), Shipping: s.Shipping}
	if s.Shipping.Address != nil {
		a := *s.Shipping.Address
		out.Shipping.Address = &a
	}
	if s.Shipping.Fee != nil {
		f := *s.Shipping.Fee
		out.Shipping.Fee = &f
	}
	if out.Items == nil {
		out.Items = []cart.Item{}
	}
	return out
}

// LocalStore persists the cart on the shopper's device.
type LocalStore interface {
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, st State) error
}

type MemoryStore struct {
	mu    sync.Mutex
	state State
	saves int
}

func NewMemoryStore(initial State) *MemoryStore {
	return &MemoryStore{state: initial.clone()}
}

func (m *MemoryStore) Load(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = st.clone()
	m.saves++
	return nil
}

// Saves reports how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
