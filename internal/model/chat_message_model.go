package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ChatMessage struct {
	Id             uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ConversationId uuid.UUID      `gorm:"type:uuid;not null;index"`
	Role           string         `gorm:"type:varchar(50);not null"`
	Content        string         `gorm:"type:text;not null"`
	Tier           string         `gorm:"type:varchar(20)"`
	ModelUsed      string         `gorm:"type:varchar(100)"`
	Confidence     *float64       `gorm:"type:double precision"`
	Verification   datatypes.JSON `gorm:"type:jsonb"`
	Reconciliation datatypes.JSON `gorm:"type:jsonb"`
	LatencyMs      int64          `gorm:"default:0"`
	CreatedAt      time.Time      `gorm:"autoCreateTime"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
