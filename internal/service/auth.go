package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Skotchmaster/crochet_shop/internal/events"
	"github.com/Skotchmaster/crochet_shop/internal/hash"
	"github.com/Skotchmaster/crochet_shop/internal/logging"
	"github.com/Skotchmaster/crochet_shop/internal/models"
	"github.com/Skotchmaster/crochet_shop/internal/repo"
	"github.com/Skotchmaster/crochet_shop/internal/tokens"
	"github.com/Skotchmaster/crochet_shop/internal/transport"
)

var ErrInvalidRefreshToken = fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)

type AuthService struct {
	Repo          *repo.GormRepo
	Events        events.Publisher
	JWTSecret     []byte
	RefreshSecret []byte
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	User         *models.User
}

func (s *AuthService) Register(ctx context.Context, req transport.RegisterRequest) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	fullName := strings.TrimSpace(req.FullName)
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if fullName == "" || username == "" || email == "" || req.Password == "" {
		return nil, fmt.Errorf("%w: fullName, username, email and password are required", ErrValidation)
	}

	pwHash, err := hash.HashPassword(req.Password)
	if err != nil {
		l.Error("register_error", "reason", "cannot hash the password", "error", err)
		return nil, err
	}

	user := &models.User{
		FullName:     fullName,
		Username:     username,
		Email:        email,
		PasswordHash: pwHash,
		Role:         models.RoleUser,
		Preferences:  models.Preferences{Newsletter: true},
		Addresses:    []models.Address{},
	}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		switch {
		case errors.Is(err, repo.ErrUsernameTaken):
			return nil, ErrUsernameTaken
		case errors.Is(err, repo.ErrEmailTaken):
			return nil, ErrEmailTaken
		}
		return nil, err
	}

	publish(ctx, s.Events, events.New(events.UserRegistered, user.ID.String(), map[string]any{
		"username": user.Username,
	}))
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := s.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		return nil, fmt.Errorf("%w: invalid email or password", ErrUnauthorized)
	}

	res, err := s.issue(ctx, user, "")
	if err != nil {
		return nil, err
	}
	res.User = user
	return res, nil
}

// issue signs a fresh token pair. With oldJTI set the previous refresh
// token is revoked in the same transaction.
func (s *AuthService) issue(ctx context.Context, user *models.User, oldJTI string) (*LoginResult, error) {
	now := time.Now()
	accessExp := now.Add(tokens.AccessTTL)
	access, err := tokens.NewAccessToken(user.ID.String(), user.Role, accessExp, s.JWTSecret)
	if err != nil {
		return nil, err
	}

	refreshExp := now.Add(tokens.RefreshTTL)
	refresh, jti, err := tokens.NewRefreshToken(user.ID.String(), refreshExp, s.RefreshSecret)
	if err != nil {
		return nil, err
	}

	record := &models.RefreshToken{
		TokenHash: hash.Sha256Hex(refresh),
		UserID:    user.ID,
		JTI:       jti,
		ExpiresAt: refreshExp.UTC(),
	}
	if oldJTI == "" {
		err = s.Repo.SaveRefreshToken(ctx, record)
	} else {
		err = s.Repo.RotateRefreshToken(ctx, oldJTI, record)
	}
	if errors.Is(err, repo.ErrTokenRevoked) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRefreshToken, err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.Repo.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidRefreshToken
	}
	if err != nil {
		return nil, err
	}

	res, err := s.issue(ctx, user, claims.ID)
	if err != nil {
		return nil, err
	}
	res.User = user
	return res, nil
}

func (s *AuthService) LogOut(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.Repo.RevokeRefreshToken(ctx, hash.Sha256Hex(refreshToken))
}
