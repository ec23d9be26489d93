package model

import "github.com/google/uuid"

// MetadataJob asks the worker to classify the sections of an uploaded file.
type MetadataJob struct {
	FileID    uuid.UUID `json:"file_id"`
	ProjectID uint      `json:"project_id"`
	UserID    uint      `json:"user_id"`
}

// All lists every table managed by AutoMigrate.
func All() []any {
	return []any{&User{}, &Token{}, &Project{}, &Folder{}, &File{}, &ChatSession{}}
}
