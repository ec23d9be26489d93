package model

import "time"

type Folder struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ProjectID uint      `gorm:"not null;index" json:"project_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	IsDeleted bool      `gorm:"not null;default:false" json:"is_deleted"`
	CreatedBy uint      `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
