package model

import (
	"time"

	"github.com/google/uuid"
)

// ChatCitation links an assistant message to the chunk it cited.
type ChatCitation struct {
	Id            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatMessageId uuid.UUID `gorm:"type:uuid;index;not null"`
	DocumentId    uuid.UUID `gorm:"type:uuid;index;not null"`
	ChunkId       uuid.UUID `gorm:"type:uuid;index;not null"`
	Page          int       `gorm:"default:0"`
	Score         float64   `gorm:"default:0"`
	Excerpt       string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`

	// Relationships
	ChatMessage ChatMessage `gorm:"foreignKey:ChatMessageId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Document    Document    `gorm:"foreignKey:DocumentId;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (ChatCitation) TableName() string {
	return "chat_citations"
}
