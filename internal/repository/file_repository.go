package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"bacopilot/internal/model"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, file *model.File) error {
	if err := r.db.WithContext(ctx).Create(file).Error; err != nil {
		return fmt.Errorf("create file failed: %w", err)
	}
	return nil
}

func (r *FileRepository) Save(ctx context.Context, file *model.File) error {
	if err := r.db.WithContext(ctx).Save(file).Error; err != nil {
		return fmt.Errorf("save file failed: %w", err)
	}
	return nil
}

// CreateWithSessions inserts a generated file and its conversation entries in one transaction.
func (r *FileRepository) CreateWithSessions(ctx context.Context, file *model.File, sessions []model.ChatSession) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(file).Error; err != nil {
			return err
		}
		return createSessions(tx, file.ID, sessions)
	})
	if err != nil {
		return fmt.Errorf("create file with sessions failed: %w", err)
	}
	return nil
}

// SaveWithSessions updates a file and appends conversation entries in one transaction.
func (r *FileRepository) SaveWithSessions(ctx context.Context, file *model.File, sessions []model.ChatSession) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(file).Error; err != nil {
			return err
		}
		return createSessions(tx, file.ID, sessions)
	})
	if err != nil {
		return fmt.Errorf("save file with sessions failed: %w", err)
	}
	return nil
}

func createSessions(tx *gorm.DB, fileID uuid.UUID, sessions []model.ChatSession) error {
	if len(sessions) == 0 {
		return nil
	}
	for i := range sessions {
		sessions[i].ContentID = fileID
	}
	return tx.Create(&sessions).Error
}

func (r *FileRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.File, error) {
	var file model.File
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&file).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query file failed: %w", err)
	}
	return &file, nil
}

// GetActive returns a non deleted file created by userID.
func (r *FileRepository) GetActive(ctx context.Context, id uuid.UUID, userID uint) (*model.File, error) {
	var file model.File
	err := r.db.WithContext(ctx).
		Where("id = ? AND created_by = ? AND status <> ?", id, userID, model.FileStatusDeleted).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("query file failed: %w", err)
	}
	return &file, nil
}

func (r *FileRepository) ListByFolder(ctx context.Context, folderID uint) ([]model.File, error) {
	var files []model.File
	err := r.db.WithContext(ctx).
		Where("folder_id = ? AND status <> ?", folderID, model.FileStatusDeleted).
		Order("created_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list folder files failed: %w", err)
	}
	return files, nil
}

func (r *FileRepository) ListRoot(ctx context.Context, projectID uint) ([]model.File, error) {
	var files []model.File
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND folder_id IS NULL AND status <> ?", projectID, model.FileStatusDeleted).
		Order("created_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list root files failed: %w", err)
	}
	return files, nil
}

func (r *FileRepository) ListByProject(ctx context.Context, projectID uint) ([]model.File, error) {
	var files []model.File
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND status <> ?", projectID, model.FileStatusDeleted).
		Order("created_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list project files failed: %w", err)
	}
	return files, nil
}

// ListTypes returns the distinct file types userID already has in the project.
func (r *FileRepository) ListTypes(ctx context.Context, projectID, userID uint) ([]string, error) {
	var types []string
	err := r.db.WithContext(ctx).
		Model(&model.File{}).
		Where("project_id = ? AND updated_by = ? AND status <> ?", projectID, userID, model.FileStatusDeleted).
		Distinct().
		Pluck("file_type", &types).Error
	if err != nil {
		return nil, fmt.Errorf("list file types failed: %w", err)
	}
	return types, nil
}

// ListStoragePaths returns the object keys the AI services should read as
// context: the markdown copy of uploads and the document itself otherwise.
func (r *FileRepository) ListStoragePaths(ctx context.Context, projectID, userID uint) ([]string, error) {
	var files []model.File
	err := r.db.WithContext(ctx).
		Select("file_category", "storage_path", "storage_md_path").
		Where("project_id = ? AND created_by = ? AND status <> ?", projectID, userID, model.FileStatusDeleted).
		Order("created_at ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list storage paths failed: %w", err)
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		path := f.StoragePath
		if f.FileCategory == model.FileCategoryUpload && f.StorageMDPath != "" {
			path = f.StorageMDPath
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	return paths, nil
}

// ListNames returns the names of every file of fileType in the project, including deleted ones.
func (r *FileRepository) ListNames(ctx context.Context, projectID uint, fileType string) ([]string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&model.File{}).
		Where("project_id = ? AND file_type = ?", projectID, fileType).
		Pluck("name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("list file names failed: %w", err)
	}
	return names, nil
}

// ListGenerated returns the generated documents of the given types owned by userID.
func (r *FileRepository) ListGenerated(ctx context.Context, projectID, userID uint, fileTypes []string) ([]model.File, error) {
	var files []model.File
	if len(fileTypes) == 0 {
		return files, nil
	}
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND created_by = ? AND file_type IN ? AND status <> ?",
			projectID, userID, fileTypes, model.FileStatusDeleted).
		Order("created_at DESC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list generated files failed: %w", err)
	}
	return files, nil
}

func (r *FileRepository) UpdateMetadata(ctx context.Context, id uuid.UUID, metadata map[string]any) error {
	err := r.db.WithContext(ctx).
		Model(&model.File{}).
		Where("id = ?", id).
		Update("metadata", datatypes.JSONMap(metadata)).Error
	if err != nil {
		return fmt.Errorf("update file metadata failed: %w", err)
	}
	return nil
}
