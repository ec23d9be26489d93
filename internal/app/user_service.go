package app

import (
	"context"
	"strings"

	"bacopilot/internal/model"
	"bacopilot/internal/repository"
)

type UserService struct {
	userRepo *repository.UserRepository
}

type UpdateUserInput struct {
	Name  *string
	Email *string
}

func NewUserService(userRepo *repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) Get(ctx context.Context, userID uint) (*model.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *UserService) Update(ctx context.Context, userID uint, input UpdateUserInput) (*model.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if input.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*input.Email))
		if email == "" {
			return nil, ErrInvalidInput
		}
		if email != user.Email {
			existing, err := s.userRepo.GetByEmail(ctx, email)
			if err != nil {
				return nil, err
			}
			if existing != nil && existing.ID != user.ID {
				return nil, ErrEmailExists
			}
			user.Email = email
			user.EmailVerified = false
		}
	}
	if input.Name != nil {
		user.Name = strings.TrimSpace(*input.Name)
	}

	if err := s.userRepo.Save(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, userID uint) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return s.userRepo.Delete(ctx, userID)
}
