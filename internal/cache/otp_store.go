package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// OTPStore keeps hashed password reset codes in Redis. Expiry is left to the
// key TTL.
type OTPStore struct {
	client *redisv9.Client
}

func NewOTPStore(client *redisv9.Client) *OTPStore {
	return &OTPStore{client: client}
}

func (s *OTPStore) Save(ctx context.Context, email, hash string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(email), hash, ttl).Err(); err != nil {
		return fmt.Errorf("redis save reset code failed: %w", err)
	}
	return nil
}

func (s *OTPStore) Load(ctx context.Context, email string) (string, bool, error) {
	hash, err := s.client.Get(ctx, s.key(email)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis load reset code failed: %w", err)
	}
	return hash, true, nil
}

func (s *OTPStore) Delete(ctx context.Context, email string) error {
	if err := s.client.Del(ctx, s.key(email)).Err(); err != nil {
		return fmt.Errorf("redis delete reset code failed: %w", err)
	}
	return nil
}

func (s *OTPStore) key(email string) string {
	return fmt.Sprintf("auth:reset:%s", email)
}
