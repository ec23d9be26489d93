package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"bacopilot/internal/model"
)

type FolderRepository struct {
	db *gorm.DB
}

func NewFolderRepository(db *gorm.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

func (r *FolderRepository) Create(ctx context.Context, folder *model.Folder) error {
	if err := r.db.WithContext(ctx).Create(folder).Error; err != nil {
		return fmt.Errorf("create folder failed: %w", err)
	}
	return nil
}

func (r *FolderRepository) Save(ctx context.Context, folder *model.Folder) error {
	if err := r.db.WithContext(ctx).Save(folder).Error; err != nil {
		return fmt.Errorf("save folder failed: %w", err)
	}
	return nil
}

// GetActive returns a folder that has not been soft deleted.
func (r *FolderRepository) GetActive(ctx context.Context, id uint) (*model.Folder, error) {
	var folder model.Folder
	err := r.db.WithContext(ctx).Where("id = ? AND is_deleted = ?", id, false).First(&folder).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query folder failed: %w", err)
	}
	return &folder, nil
}

// FindSibling looks up an active folder named name under parentID (nil for the
// project root), ignoring excludeID.
func (r *FolderRepository) FindSibling(ctx context.Context, projectID uint, parentID *uint, name string, excludeID uint) (*model.Folder, error) {
	query := r.db.WithContext(ctx).
		Where("project_id = ? AND name = ? AND is_deleted = ?", projectID, name, false)
	if parentID == nil {
		query = query.Where("parent_id IS NULL")
	} else {
		query = query.Where("parent_id = ?", *parentID)
	}
	if excludeID != 0 {
		query = query.Where("id <> ?", excludeID)
	}

	var folder model.Folder
	if err := query.Order("id ASC").First(&folder).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query sibling folder failed: %w", err)
	}
	return &folder, nil
}

func (r *FolderRepository) ListChildren(ctx context.Context, parentID uint) ([]model.Folder, error) {
	var folders []model.Folder
	err := r.db.WithContext(ctx).
		Where("parent_id = ? AND is_deleted = ?", parentID, false).
		Order("id ASC").
		Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("list child folders failed: %w", err)
	}
	return folders, nil
}

func (r *FolderRepository) ListRoots(ctx context.Context, projectID uint) ([]model.Folder, error) {
	var folders []model.Folder
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND parent_id IS NULL AND is_deleted = ?", projectID, false).
		Order("id ASC").
		Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("list root folders failed: %w", err)
	}
	return folders, nil
}

func (r *FolderRepository) ListByProject(ctx context.Context, projectID uint) ([]model.Folder, error) {
	var folders []model.Folder
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND is_deleted = ?", projectID, false).
		Order("id ASC").
		Find(&folders).Error
	if err != nil {
		return nil, fmt.Errorf("list project folders failed: %w", err)
	}
	return folders, nil
}

const ancestorQuery = `
WITH RECURSIVE ancestors(id, parent_id) AS (
	SELECT id, parent_id FROM folders WHERE id = ?
	UNION
	SELECT f.id, f.parent_id FROM folders f INNER JOIN ancestors a ON f.id = a.parent_id
)
SELECT COUNT(*) FROM ancestors WHERE id = ?`

// IsAncestorOrSelf reports whether ancestorID is folderID itself or one of its ancestors.
func (r *FolderRepository) IsAncestorOrSelf(ctx context.Context, ancestorID, folderID uint) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Raw(ancestorQuery, folderID, ancestorID).Scan(&count).Error; err != nil {
		return false, fmt.Errorf("query folder ancestors failed: %w", err)
	}
	return count > 0, nil
}
