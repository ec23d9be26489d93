package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"bacopilot/internal/logging"
)

// OTPStore keeps the hashed password reset code of an email until it expires.
type OTPStore interface {
	Save(ctx context.Context, email, hash string, ttl time.Duration) error
	// Load returns ok=false when no unexpired code exists.
	Load(ctx context.Context, email string) (hash string, ok bool, err error)
	Delete(ctx context.Context, email string) error
}

// OTPSender delivers a reset code to its owner.
type OTPSender interface {
	SendResetCode(ctx context.Context, email, code string) error
}

// LogOTPSender writes reset codes to the request logger. It stands in for
// mail delivery.
type LogOTPSender struct{}

func (LogOTPSender) SendResetCode(ctx context.Context, email, code string) error {
	logging.FromContext(ctx).Info("password reset code issued", "email", email, "code", code)
	return nil
}

// ForgotPassword issues a six digit reset code for email and hands it to the
// sender. A new code replaces any earlier one.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	if s.otps == nil {
		return ErrOTPUnavailable
	}
	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrEmailNotFound
	}

	code, err := newResetCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash reset code failed: %w", err)
	}
	if err := s.otps.Save(ctx, email, string(hash), s.otpTTL); err != nil {
		return err
	}
	if err := s.otpSender.SendResetCode(ctx, email, code); err != nil {
		if delErr := s.otps.Delete(context.WithoutCancel(ctx), email); delErr != nil {
			logging.FromContext(ctx).Warn("drop unsent reset code failed", "error", delErr)
		}
		return fmt.Errorf("send reset code failed: %w", err)
	}
	return nil
}

// VerifyOTP checks a reset code without consuming it.
func (s *AuthService) VerifyOTP(ctx context.Context, email, code string) error {
	if s.otps == nil {
		return ErrOTPUnavailable
	}
	return s.checkResetCode(ctx, normalizeEmail(email), code)
}

// ResetPassword sets a new password when code is the valid reset code of
// email. The code is consumed and every refresh token of the user revoked.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, password string) error {
	if s.otps == nil {
		return ErrOTPUnavailable
	}
	if len(password) < 8 {
		return ErrInvalidInput
	}
	email = normalizeEmail(email)
	if err := s.checkResetCode(ctx, email, code); err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrEmailNotFound
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password failed: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.userRepo.Save(ctx, user); err != nil {
		return err
	}
	if err := s.otps.Delete(ctx, email); err != nil {
		logging.FromContext(ctx).Warn("delete used reset code failed", "user_id", user.ID, "error", err)
	}
	return s.tokenRepo.DeleteByUserID(ctx, user.ID)
}

func (s *AuthService) checkResetCode(ctx context.Context, email, code string) error {
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ErrInvalidOTP
	}
	hash, ok, err := s.otps.Load(ctx, email)
	if err != nil {
		return err
	}
	if !ok || bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) != nil {
		return ErrInvalidOTP
	}
	return nil
}

func newResetCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", fmt.Errorf("generate reset code failed: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}
