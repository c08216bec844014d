package entity

import (
	"time"

	"github.com/google/uuid"
)

// BoundingRegion locates a chunk on its source page, normalized to 0..1.
type BoundingRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type DocumentChunk struct {
	Id         uuid.UUID `gorm:"type:uuid;primaryKey"`
	DocumentId uuid.UUID `gorm:"type:uuid;index"`
	Text       string
	Embedding  []float32
	ChunkIndex int
	Page       int
	Region     *BoundingRegion
	CreatedAt  time.Time
	UpdatedAt  *time.Time
	DeletedAt  *time.Time
	IsDeleted  bool
}
