package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/crochet_shop/internal/events"
	"github.com/Skotchmaster/crochet_shop/internal/hash"
	"github.com/Skotchmaster/crochet_shop/internal/models"
	"github.com/Skotchmaster/crochet_shop/internal/repo"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
)

const UsernameCooldown = 7 * 24 * time.Hour

type AccountService struct {
	Repo   *repo.GormRepo
	Events events.Publisher
	Now    func() time.Time
}

func (s *AccountService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *AccountService) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	u, err := s.Repo.GetUserByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if u.Addresses == nil {
		u.Addresses = []models.Address{}
	}
	return u, nil
}

// UsernameDaysRemaining returns how many whole days are left before the
// username may change again, or 0 when it may change now.
func UsernameDaysRemaining(last *time.Time, now time.Time) int {
	if last == nil {
		return 0
	}
	since := max(now.Sub(*last), 0)
	if since >= UsernameCooldown {
		return 0
	}
	daysSince := since.Hours() / 24
	return int(math.Ceil(7 - daysSince))
}

// UpdateAccount applies profile, address and preference changes after the
// current password checks out. Any rejection leaves the stored user as is.
func (s *AccountService) UpdateAccount(ctx context.Context, userID uuid.UUID, req transport.UpdateAccountRequest) (*models.User, error) {
	if req.Password == "" {
		return nil, fmt.Errorf("%w: password is required", ErrValidation)
	}

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !hash.CheckPassword(u.PasswordHash, req.Password) {
		return nil, fmt.Errorf("%w: incorrect password", ErrUnauthorized)
	}

	changed := []string{}

	if req.Username != nil {
		name := strings.TrimSpace(*req.Username)
		if name == "" {
			return nil, fmt.Errorf("%w: username cannot be empty", ErrValidation)
		}
		if name != u.Username {
			now := s.now()
			if days := UsernameDaysRemaining(u.LastUsernameChangeAt, now); days > 0 {
				return nil, &CooldownError{DaysRemaining: days}
			}
			taken, err := s.Repo.UsernameTaken(ctx, name, u.ID)
			if err != nil {
				return nil, err
			}
			if taken {
				return nil, ErrUsernameTaken
			}
			u.Username = name
			nowUTC := now.UTC()
			u.LastUsernameChangeAt = &nowUTC
			changed = append(changed, "username")
		}
	}

	if req.Avatar != nil {
		u.Avatar = strings.TrimSpace(*req.Avatar)
		changed = append(changed, "avatar")
	}

	if req.Preferences != nil && req.Preferences.Newsletter != nil {
		u.Preferences.Newsletter = *req.Preferences.Newsletter
		changed = append(changed, "preferences")
	}

	replaceAddresses := req.Addresses != nil
	if replaceAddresses {
		addrs, err := normalizeAddresses(*req.Addresses)
		if err != nil {
			return nil, err
		}
		u.Addresses = addrs
		changed = append(changed, "addresses")
	}

	if err := s.Repo.SaveAccount(ctx, u, replaceAddresses); err != nil {
		if errors.Is(err, repo.ErrUsernameTaken) {
			return nil, ErrUsernameTaken
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: user", ErrNotFound)
		}
		return nil, err
	}

	publish(ctx, s.Events, events.New(events.UserUpdated, u.ID.String(), map[string]any{
		"fields": changed,
	}))
	return s.GetUser(ctx, userID)
}

// normalizeAddresses validates the list and leaves exactly one default: the
// first flagged address, or the first address when none is flagged.
func normalizeAddresses(in []transport.AddressInput) ([]models.Address, error) {
	out := make([]models.Address, 0, len(in))
	defaultSeen := false
	for i, a := range in {
		addr := models.Address{
			Label:      strings.TrimSpace(a.Label),
			Line1:      strings.TrimSpace(a.Line1),
			Line2:      strings.TrimSpace(a.Line2),
			City:       strings.TrimSpace(a.City),
			State:      strings.TrimSpace(a.State),
			PostalCode: strings.TrimSpace(a.PostalCode),
			Country:    strings.TrimSpace(a.Country),
		}
		var missing []string
		for _, f := range []struct{ name, v string }{
			{"line1", addr.Line1}, {"city", addr.City}, {"state", addr.State},
			{"postalCode", addr.PostalCode}, {"country", addr.Country},
		} {
			if f.v == "" {
				missing = append(missing, f.name)
			}
		}
		if len(missing) > 0 {
			return nil, fmt.Errorf("%w: addresses[%d]: %s required", ErrValidation, i, strings.Join(missing, ", "))
		}
		if a.IsDefault && !defaultSeen {
			addr.IsDefault = true
			defaultSeen = true
		}
		out = append(out, addr)
	}
	if !defaultSeen && len(out) > 0 {
		out[0].IsDefault = true
	}
	return out, nil
}
