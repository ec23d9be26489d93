package app

import (
	"context"

	"github.com/google/uuid"

	"bacopilot/internal/logging"
	"bacopilot/internal/model"
	"bacopilot/internal/repository"
)

// SessionCache caches the conversation log of a file.
type SessionCache interface {
	Get(ctx context.Context, contentID string) ([]model.ChatSession, bool, error)
	Set(ctx context.Context, contentID string, sessions []model.ChatSession) error
	Invalidate(ctx context.Context, contentID string) error
}

type SessionService struct {
	fileRepo    *repository.FileRepository
	sessionRepo *repository.ChatSessionRepository
	cache       SessionCache
}

func NewSessionService(fileRepo *repository.FileRepository, sessionRepo *repository.ChatSessionRepository, cache SessionCache) *SessionService {
	return &SessionService{
		fileRepo:    fileRepo,
		sessionRepo: sessionRepo,
		cache:       cache,
	}
}

// List returns the conversation attached to a file owned by userID, oldest first.
func (s *SessionService) List(ctx context.Context, userID uint, contentID uuid.UUID) ([]model.ChatSession, error) {
	file, err := s.fileRepo.GetActive(ctx, contentID, userID)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, ErrFileNotFound
	}

	logger := logging.FromContext(ctx)
	key := contentID.String()
	if s.cache != nil {
		cached, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			logger.Warn("read session cache failed", "content_id", key, "error", err)
		} else if ok {
			return cached, nil
		}
	}

	sessions, err := s.sessionRepo.ListByContentID(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, sessions); err != nil {
			logger.Warn("write session cache failed", "content_id", key, "error", err)
		}
	}
	return sessions, nil
}
