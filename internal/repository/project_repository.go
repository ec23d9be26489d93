package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"bacopilot/internal/model"
)

// ProjectFilter narrows ListByUser. SortField must already be validated.
type ProjectFilter struct {
	Name          string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	UpdatedAfter  *time.Time
	UpdatedBefore *time.Time
	SortField     string
	Descending    bool
}

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return fmt.Errorf("create project failed: %w", err)
	}
	return nil
}

// GetActive returns the project only when it belongs to userID and is not deleted.
func (r *ProjectRepository) GetActive(ctx context.Context, id, userID uint) (*model.Project, error) {
	var project model.Project
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status <> ?", id, userID, model.ProjectStatusDeleted).
		First(&project).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query project failed: %w", err)
	}
	return &project, nil
}

func (r *ProjectRepository) ListByUser(ctx context.Context, userID uint, filter ProjectFilter) ([]model.Project, error) {
	query := r.db.WithContext(ctx).
		Where("user_id = ? AND status <> ?", userID, model.ProjectStatusDeleted)

	if name := strings.TrimSpace(filter.Name); name != "" {
		query = query.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(name)+"%")
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}
	if filter.UpdatedAfter != nil {
		query = query.Where("updated_at >= ?", *filter.UpdatedAfter)
	}
	if filter.UpdatedBefore != nil {
		query = query.Where("updated_at <= ?", *filter.UpdatedBefore)
	}

	sortField := filter.SortField
	if sortField == "" {
		sortField = "created_at"
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}

	var projects []model.Project
	if err := query.Order(sortField + " " + direction).Order("id " + direction).Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("list projects failed: %w", err)
	}
	return projects, nil
}

func (r *ProjectRepository) Save(ctx context.Context, project *model.Project) error {
	if err := r.db.WithContext(ctx).Save(project).Error; err != nil {
		return fmt.Errorf("save project failed: %w", err)
	}
	return nil
}
