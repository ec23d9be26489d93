package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FileCategoryAIGenerated = "ai gen"
	FileCategoryUpload      = "user upload"

	FileStatusActive  = "active"
	FileStatusDeleted = "deleted"
)

// File is either an AI generated document or a user upload. FileType holds the
// document type tag (srs, hld-arch, ...) for generated files and the extension
// for uploads.
type File struct {
	ID            uuid.UUID         `gorm:"type:char(36);primaryKey" json:"id"`
	ProjectID     uint              `gorm:"not null;index" json:"project_id"`
	FolderID      *uint             `gorm:"index" json:"folder_id"`
	CreatedBy     uint              `gorm:"not null;index" json:"created_by"`
	UpdatedBy     uint              `gorm:"not null" json:"updated_by"`
	Name          string            `gorm:"size:255;not null" json:"name"`
	Extension     string            `gorm:"size:32" json:"extension"`
	StoragePath   string            `gorm:"size:1024" json:"storage_path"`
	StorageMDPath string            `gorm:"column:storage_md_path;size:1024" json:"storage_md_path"`
	Content       string            `gorm:"type:text" json:"content"`
	FileCategory  string            `gorm:"size:32;not null;index" json:"file_category"`
	FileType      string            `gorm:"size:64;not null;index" json:"file_type"`
	Status        string            `gorm:"size:32;not null;default:active;index" json:"status"`
	Metadata      datatypes.JSONMap `json:"metadata"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
