package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ProjectStatusActive  = "active"
	ProjectStatusDeleted = "deleted"
)

type Project struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      uint              `gorm:"not null;index" json:"user_id"`
	Name        string            `gorm:"size:255;not null" json:"name"`
	Description string            `gorm:"type:text" json:"description"`
	Status      string            `gorm:"size:32;not null;default:active;index" json:"status"`
	Settings    datatypes.JSONMap `json:"settings"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}
