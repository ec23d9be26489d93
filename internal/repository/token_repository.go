package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bacopilot/internal/model"
)

type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

func (r *TokenRepository) Create(ctx context.Context, token *model.Token) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		return fmt.Errorf("create token failed: %w", err)
	}
	return nil
}

func (r *TokenRepository) GetByToken(ctx context.Context, value string) (*model.Token, error) {
	var token model.Token
	if err := r.db.WithContext(ctx).Where("token = ?", value).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query token failed: %w", err)
	}
	return &token, nil
}

func (r *TokenRepository) DeleteByID(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Delete(&model.Token{}, id).Error; err != nil {
		return fmt.Errorf("delete token failed: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteByToken(ctx context.Context, userID uint, value string) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND token = ?", userID, value).
		Delete(&model.Token{}).Error
	if err != nil {
		return fmt.Errorf("delete token failed: %w", err)
	}
	return nil
}

func (r *TokenRepository) DeleteByUserID(ctx context.Context, userID uint) error {
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&model.Token{}).Error; err != nil {
		return fmt.Errorf("delete user tokens failed: %w", err)
	}
	return nil
}
