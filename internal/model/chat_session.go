package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChatRoleUser = "user"
	ChatRoleAI   = "ai"
)

// ChatSession is one entry of the append-only conversation log attached to a file.
type ChatSession struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ProjectID   uint      `gorm:"not null;index" json:"project_id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	ContentType string    `gorm:"size:64;not null" json:"content_type"`
	ContentID   uuid.UUID `gorm:"type:char(36);not null;index" json:"content_id"`
	Role        string    `gorm:"size:16;not null" json:"role"`
	Message     string    `gorm:"type:text" json:"message"`
	CreatedAt   time.Time `json:"created_at"`
}
