package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/crochet_shop/internal/events"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
)

func TestUsernameDaysRemaining(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		v := now.Add(-d)
		return &v
	}

	tests := []struct {
		name string
		last *time.Time
		want int
	}{
		{name: "never changed", last: nil, want: 0},
		{name: "just now", last: at(0), want: 7},
		{name: "two days ago", last: at(48 * time.Hour), want: 5},
		{name: "two and a half days ago", last: at(60 * time.Hour), want: 5},
		{name: "six days and an hour ago", last: at(6*24*time.Hour + time.Hour), want: 1},
		{name: "exactly seven days", last: at(7 * 24 * time.Hour), want: 0},
		{name: "long ago", last: at(30 * 24 * time.Hour), want: 0},
		{name: "clock skew", last: at(-time.Hour), want: 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UsernameDaysRemaining(tt.last, now))
		})
	}
}

func TestAccountService_UpdateAccount_PasswordGate(t *testing.T) {
	r := newTestRepo(t)
	pub := &mockPublisher{}
	svc := &AccountService{Repo: r, Events: pub}
	ctx := context.Background()
	u := seedUser(t, r, "gated", homeAddress())

	req := transport.UpdateAccountRequest{
		Username:  strPtr("renamed"),
		Avatar:    strPtr("https://cdn.example.com/a.png"),
		Addresses: &[]transport.AddressInput{},
	}

	_, err := svc.UpdateAccount(ctx, u.ID, req)
	assert.ErrorIs(t, err, ErrValidation)

	req.Password = "wrong-password"
	_, err = svc.UpdateAccount(ctx, u.ID, req)
	assert.ErrorIs(t, err, ErrUnauthorized)

	after, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "gated", after.Username)
	assert.Empty(t, after.Avatar)
	assert.Len(t, after.Addresses, 1)
	assert.Nil(t, after.LastUsernameChangeAt)

	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestAccountService_UpdateAccount_Username(t *testing.T) {
	r := newTestRepo(t)
	pub := &mockPublisher{}
	pub.On("Publish", mock.Anything, eventOfType(events.UserUpdated)).Return(nil)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc := &AccountService{Repo: r, Events: pub, Now: func() time.Time { return now }}
	ctx := context.Background()
	u := seedUser(t, r, "knitter")
	seedUser(t, r, "taken")

	_, err := svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{Password: testPassword, Username: strPtr("taken")})
	assert.ErrorIs(t, err, ErrUsernameTaken)
	assert.ErrorIs(t, err, ErrConflict)

	updated, err := svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{Password: testPassword, Username: strPtr("crocheter")})
	require.NoError(t, err)
	assert.Equal(t, "crocheter", updated.Username)
	require.NotNil(t, updated.LastUsernameChangeAt)
	assert.True(t, now.Equal(*updated.LastUsernameChangeAt))

	now = now.Add(2 * 24 * time.Hour)
	_, err = svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{Password: testPassword, Username: strPtr("again")})
	var cd *CooldownError
	require.True(t, errors.As(err, &cd))
	assert.Equal(t, 5, cd.DaysRemaining)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "You can change your username again in 5 day(s).", err.Error())

	// Sending the current name is not a change.
	_, err = svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{Password: testPassword, Username: strPtr("crocheter")})
	require.NoError(t, err)

	now = now.Add(5 * 24 * time.Hour)
	updated, err = svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{Password: testPassword, Username: strPtr("again")})
	require.NoError(t, err)
	assert.Equal(t, "again", updated.Username)
}

func TestAccountService_UpdateAccount_RejectsAsWhole(t *testing.T) {
	r := newTestRepo(t)
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	svc := &AccountService{Repo: r, Events: events.Nop{}, Now: func() time.Time { return now }}
	ctx := context.Background()
	u := seedUser(t, r, "atomic", homeAddress())

	_, err := svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{Password: testPassword, Username: strPtr("atomic2")})
	require.NoError(t, err)

	_, err = svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{
		Password: testPassword,
		Username: strPtr("atomic3"),
		Avatar:   strPtr("new.png"),
		Addresses: &[]transport.AddressInput{
			{Line1: "1 A St", City: "Manila", State: "NCR", PostalCode: "1000", Country: "PH"},
		},
	})
	require.Error(t, err)

	after, err := svc.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "atomic2", after.Username)
	assert.Empty(t, after.Avatar)
	require.Len(t, after.Addresses, 1)
	assert.Equal(t, "12 Mabini St", after.Addresses[0].Line1)
}

func TestAccountService_UpdateAccount_AddressesAndPreferences(t *testing.T) {
	r := newTestRepo(t)
	svc := &AccountService{Repo: r, Events: events.Nop{}}
	ctx := context.Background()
	u := seedUser(t, r, "addresses", homeAddress())
	off := false

	updated, err := svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{
		Password: testPassword,
		Addresses: &[]transport.AddressInput{
			{Label: "Work", Line1: "5 Ayala Ave", City: "Makati", State: "NCR", PostalCode: "1226", Country: "PH"},
			{Label: "Mom", Line1: "7 Burgos St", City: "Cebu City", State: "Cebu", PostalCode: "6000", Country: "PH", IsDefault: true},
			{Label: "Cabin", Line1: "3 Pine Rd", City: "Baguio", State: "Benguet", PostalCode: "2600", Country: "PH", IsDefault: true},
		},
		Preferences: &transport.PreferencesInput{Newsletter: &off},
	})
	require.NoError(t, err)

	require.Len(t, updated.Addresses, 3)
	assert.Equal(t, "Work", updated.Addresses[0].Label)
	assert.False(t, updated.Addresses[0].IsDefault)
	assert.True(t, updated.Addresses[1].IsDefault)
	assert.False(t, updated.Addresses[2].IsDefault)
	assert.False(t, updated.Preferences.Newsletter)

	updated, err = svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{
		Password: testPassword,
		Avatar:   strPtr("me.png"),
	})
	require.NoError(t, err)
	assert.Len(t, updated.Addresses, 3)
	assert.False(t, updated.Preferences.Newsletter)
	assert.Equal(t, "me.png", updated.Avatar)

	_, err = svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{
		Password:  testPassword,
		Addresses: &[]transport.AddressInput{{Line1: "no city"}},
	})
	assert.ErrorIs(t, err, ErrValidation)

	updated, err = svc.UpdateAccount(ctx, u.ID, transport.UpdateAccountRequest{
		Password:  testPassword,
		Addresses: &[]transport.AddressInput{},
	})
	require.NoError(t, err)
	assert.Empty(t, updated.Addresses)
}

func TestNormalizeAddresses_FirstBecomesDefault(t *testing.T) {
	out, err := normalizeAddresses([]transport.AddressInput{
		{Line1: "a", City: "b", State: "c", PostalCode: "d", Country: "e"},
		{Line1: "f", City: "g", State: "h", PostalCode: "i", Country: "j"},
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.True(t, out[0].IsDefault)
	assert.False(t, out[1].IsDefault)
}
