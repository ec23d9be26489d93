package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"bacopilot/internal/logging"
	"bacopilot/internal/model"
	"bacopilot/internal/pkg/jwtutil"
	"bacopilot/internal/repository"
)

// TokenDenylist revokes access tokens before they expire.
type TokenDenylist interface {
	Deny(ctx context.Context, tokenID string, ttl time.Duration) error
	IsDenied(ctx context.Context, tokenID string) (bool, error)
}

type AuthService struct {
	userRepo   *repository.UserRepository
	tokenRepo  *repository.TokenRepository
	denylist   TokenDenylist
	otps       OTPStore
	otpSender  OTPSender
	otpTTL     time.Duration
	jwtSecret  string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type"`
}

type AuthServiceOption func(*AuthService)

func WithDenylist(d TokenDenylist) AuthServiceOption {
	return func(s *AuthService) { s.denylist = d }
}

// WithPasswordReset enables the forgot/verify/reset password flow. Codes
// live in store for ttl; a nil sender logs them.
func WithPasswordReset(store OTPStore, sender OTPSender, ttl time.Duration) AuthServiceOption {
	return func(s *AuthService) {
		s.otps = store
		s.otpSender = sender
		s.otpTTL = ttl
	}
}

func WithAuthClock(now func() time.Time) AuthServiceOption {
	return func(s *AuthService) { s.now = now }
}

func NewAuthService(
	userRepo *repository.UserRepository,
	tokenRepo *repository.TokenRepository,
	jwtSecret string,
	accessTTL, refreshTTL time.Duration,
	opts ...AuthServiceOption,
) *AuthService {
	s := &AuthService{
		userRepo:   userRepo,
		tokenRepo:  tokenRepo,
		jwtSecret:  jwtSecret,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.otpSender == nil {
		s.otpSender = LogOTPSender{}
	}
	if s.otpTTL <= 0 {
		s.otpTTL = 15 * time.Minute
	}
	return s
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.TrimSpace(strings.ToLower(input.Email))
	password := input.Password

	if email == "" || len(password) < 8 {
		return nil, ErrInvalidInput
	}

	existing, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password failed: %w", err)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*TokenPair, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	if email == "" || input.Password == "" {
		return nil, ErrInvalidInput
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredential
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)); err != nil {
		return nil, ErrInvalidCredential
	}

	access, err := jwtutil.GenerateToken(s.jwtSecret, s.accessTTL, user.ID, user.Email)
	if err != nil {
		return nil, err
	}

	refresh := &model.Token{
		UserID:    user.ID,
		Token:     uuid.NewString(),
		ExpiresAt: s.now().Add(s.refreshTTL),
	}
	if err := s.tokenRepo.Create(ctx, refresh); err != nil {
		return nil, err
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh.Token, TokenType: "bearer"}, nil
}

// Refresh exchanges a stored refresh token for a new access token. Expired
// refresh tokens are deleted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, ErrInvalidRefreshToken
	}

	stored, err := s.tokenRepo.GetByToken(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, ErrInvalidRefreshToken
	}
	if !stored.ExpiresAt.After(s.now()) {
		if err := s.tokenRepo.DeleteByID(ctx, stored.ID); err != nil {
			return nil, err
		}
		return nil, ErrRefreshTokenExpired
	}

	user, err := s.userRepo.GetByID(ctx, stored.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidRefreshToken
	}

	access, err := jwtutil.GenerateToken(s.jwtSecret, s.accessTTL, user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, TokenType: "bearer"}, nil
}

// Logout revokes the access token and deletes either the given refresh token
// or every refresh token of the user.
func (s *AuthService) Logout(ctx context.Context, claims *jwtutil.Claims, refreshToken string) error {
	if claims == nil {
		return ErrInvalidToken
	}
	if s.denylist != nil && claims.ID != "" {
		if err := s.denylist.Deny(ctx, claims.ID, claims.RemainingTTL(s.now())); err != nil {
			logging.FromContext(ctx).Warn("deny access token failed", "user_id", claims.UserID, "error", err)
		}
	}

	if strings.TrimSpace(refreshToken) != "" {
		return s.tokenRepo.DeleteByToken(ctx, claims.UserID, refreshToken)
	}
	return s.tokenRepo.DeleteByUserID(ctx, claims.UserID)
}

// Authenticate validates an access token and returns its claims. Revoked
// tokens and tokens of deleted users are rejected.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*jwtutil.Claims, error) {
	claims, err := jwtutil.ParseToken(s.jwtSecret, token)
	if err != nil {
		return nil, ErrInvalidToken
	}

	if s.denylist != nil && claims.ID != "" {
		denied, err := s.denylist.IsDenied(ctx, claims.ID)
		if err != nil {
			logging.FromContext(ctx).Warn("check token denylist failed", "error", err)
		} else if denied {
			return nil, ErrInvalidToken
		}
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *AuthService) ChangePassword(ctx context.Context, userID uint, current, next string) error {
	if len(next) < 8 {
		return ErrInvalidInput
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return ErrWrongPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password failed: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.userRepo.Save(ctx, user); err != nil {
		return err
	}
	// every refresh token issued with the old password is revoked
	return s.tokenRepo.DeleteByUserID(ctx, userID)
}
