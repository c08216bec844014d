package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document ingestion statuses.
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusReady      = "ready"
	DocumentStatusFailed     = "failed"
)

type Document struct {
	Id        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name      string
	MimeType  string
	Status    string
	PageCount int
	SizeBytes int64
	UserId    uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt time.Time
	UpdatedAt *time.Time
	DeletedAt *time.Time
	IsDeleted bool
}
