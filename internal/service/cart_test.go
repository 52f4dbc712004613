package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/crochet_shop/internal/events"
	"github.com/Skotchmaster/crochet_shop/internal/models"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
)

func TestCartService_GetCart_EmptyDefault(t *testing.T) {
	svc := &CartService{Repo: newTestRepo(t), Events: events.Nop{}}
	userID := uuid.New()

	c, err := svc.GetCart(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, c.UserID)
	assert.NotNil(t, c.Items)
	assert.Empty(t, c.Items)
	assert.True(t, c.ShippingFee.IsZero())
}

func TestCartService_SaveCart_Validation(t *testing.T) {
	svc := &CartService{Repo: newTestRepo(t), Events: events.Nop{}}
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name string
		req  transport.SaveCartRequest
	}{
		{name: "no product id", req: transport.SaveCartRequest{Items: []transport.CartItem{{Name: "x"}}}},
		{name: "zero quantity", req: transport.SaveCartRequest{Items: []transport.CartItem{{ProductID: "p1", Quantity: intPtr(0)}}}},
		{name: "negative price", req: transport.SaveCartRequest{Items: []transport.CartItem{{ProductID: "p1", Price: dec("-1")}}}},
		{name: "unknown city", req: transport.SaveCartRequest{Region: "Visayas", City: "Manila"}},
		{name: "negative fee", req: transport.SaveCartRequest{ShippingFee: decPtr("-5")}},
		{name: "sub-cent price", req: transport.SaveCartRequest{Items: []transport.CartItem{{ProductID: "p1", Price: dec("0.333")}}}},
		{name: "sub-cent fee", req: transport.SaveCartRequest{ShippingFee: decPtr("12.505")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.SaveCart(ctx, userID, tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}

	c, err := svc.GetCart(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestCartService_SaveCart_FullReplace(t *testing.T) {
	r := newTestRepo(t)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, eventOfType(events.CartUpdated)).Return(nil).Twice()
	svc := &CartService{Repo: r, Events: pub}
	ctx := context.Background()
	u := seedUser(t, r, "replace")

	_, err := svc.SaveCart(ctx, u.ID, transport.SaveCartRequest{
		Items: []transport.CartItem{
			{ID: "p1", Name: "Bunny", Price: dec("150"), Qty: intPtr(2)},
			{DatabaseID: "p2", Name: "Bear", Price: dec("300")},
		},
		Region: "South Luzon",
		City:   "Calamba City",
	})
	require.NoError(t, err)

	c, err := svc.GetCart(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, c.Items, 2)
	assert.Equal(t, "p1", c.Items[0].ProductID)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.Equal(t, "p2", c.Items[1].ProductID)
	assert.Equal(t, 1, c.Items[1].Quantity)
	assert.True(t, dec("36").Equal(c.ShippingFee))

	stored, err := svc.SaveCart(ctx, u.ID, transport.SaveCartRequest{
		Items:           []transport.CartItem{{ProductID: "p9", Price: dec("10"), Quantity: intPtr(1)}},
		ShippingAddress: &models.ShippingAddress{Line1: "1 Rizal St", City: "Manila", State: "NCR", PostalCode: "1000", Country: "PH"},
		ShippingFee:     decPtr("25"),
	})
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "p9", stored.Items[0].ProductID)
	assert.Equal(t, "1 Rizal St", stored.ShippingAddress.Line1)
	assert.Empty(t, stored.Region)
	assert.True(t, dec("25").Equal(stored.ShippingFee))

	pub.AssertExpectations(t)
}

func TestCartService_MergeGuestCart(t *testing.T) {
	r := newTestRepo(t)
	svc := &CartService{Repo: r, Events: events.Nop{}}
	ctx := context.Background()
	u := seedUser(t, r, "guest")

	_, err := svc.SaveCart(ctx, u.ID, transport.SaveCartRequest{
		Items: []transport.CartItem{{ProductID: "p1", Name: "Bunny", Price: dec("150"), Quantity: intPtr(2)}},
	})
	require.NoError(t, err)

	merged, err := svc.MergeGuestCart(ctx, u.ID, transport.MergeCartRequest{Items: []transport.CartItem{
		{ID: "p1", Quantity: intPtr(1)},
		{ID: "p2", Name: "Bear", Price: dec("300"), Qty: intPtr(3)},
		{Name: "no id"},
	}})
	require.NoError(t, err)

	require.Len(t, merged.Items, 2)
	assert.Equal(t, "p1", merged.Items[0].ProductID)
	assert.Equal(t, 3, merged.Items[0].Quantity)
	assert.Equal(t, "Bunny", merged.Items[0].Name)
	assert.Equal(t, "p2", merged.Items[1].ProductID)
	assert.Equal(t, 3, merged.Items[1].Quantity)
}

func TestCartService_MergeGuestCart_InvalidPrice(t *testing.T) {
	svc := &CartService{Repo: newTestRepo(t), Events: events.Nop{}}

	for _, price := range []string{"-3", "9.999"} {
		_, err := svc.MergeGuestCart(context.Background(), uuid.New(), transport.MergeCartRequest{
			Items: []transport.CartItem{{ProductID: "p1", Price: dec(price)}},
		})
		assert.ErrorIs(t, err, ErrValidation, price)
	}
}

func TestValidMoney(t *testing.T) {
	assert.True(t, validMoney(dec("0")))
	assert.True(t, validMoney(dec("150.5")))
	assert.True(t, validMoney(dec("36.00")))
	assert.True(t, validMoney(dec("12.3400")))
	assert.False(t, validMoney(dec("0.333")))
	assert.False(t, validMoney(dec("-0.01")))
}
