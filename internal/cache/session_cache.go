package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"bacopilot/internal/model"
)

// SessionCache keeps the chat session log of a file in Redis. Appending to the
// log marks the key dirty for a short while so a reader that loaded the log
// before the write cannot put the stale copy back.
type SessionCache struct {
	client         *redisv9.Client
	sessionTTL     time.Duration
	dirtyMarkerTTL time.Duration
}

func NewSessionCache(client *redisv9.Client, sessionTTL, dirtyMarkerTTL time.Duration) *SessionCache {
	if sessionTTL <= 0 {
		sessionTTL = 300 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &SessionCache{
		client:         client,
		sessionTTL:     sessionTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *SessionCache) Get(ctx context.Context, contentID string) ([]model.ChatSession, bool, error) {
	dirty, err := c.isDirty(ctx, contentID)
	if err != nil {
		return nil, false, err
	}
	if dirty {
		return nil, false, nil
	}

	raw, err := c.client.Get(ctx, c.sessionKey(contentID)).Result()
	if errors.Is(err, redisv9.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get sessions failed: %w", err)
	}

	var sessions []model.ChatSession
	if err := json.Unmarshal([]byte(raw), &sessions); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached sessions failed: %w", err)
	}
	return sessions, true, nil
}

// Set caches sessions unless the key was invalidated within the dirty window.
func (c *SessionCache) Set(ctx context.Context, contentID string, sessions []model.ChatSession) error {
	dirty, err := c.isDirty(ctx, contentID)
	if err != nil {
		return err
	}
	if dirty {
		return nil
	}

	payload, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("marshal session cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.sessionKey(contentID), payload, c.sessionTTL).Err(); err != nil {
		return fmt.Errorf("redis set sessions failed: %w", err)
	}
	return nil
}

// Invalidate drops the cached log and marks the key dirty.
func (c *SessionCache) Invalidate(ctx context.Context, contentID string) error {
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, c.dirtyKey(contentID), "1", c.dirtyMarkerTTL)
	pipe.Del(ctx, c.sessionKey(contentID))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis invalidate sessions failed: %w", err)
	}
	return nil
}

func (c *SessionCache) isDirty(ctx context.Context, contentID string) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(contentID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *SessionCache) sessionKey(contentID string) string {
	return fmt.Sprintf("chat:sessions:%s", contentID)
}

func (c *SessionCache) dirtyKey(contentID string) string {
	return fmt.Sprintf("chat:sessions:dirty:%s", contentID)
}
