package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type CreateConversationRequest struct {
	Title string `json:"title"`
}

type CreateConversationResponse struct {
	Id uuid.UUID `json:"id"`
}

type GetAllConversationsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

// AskRequest starts one answer pipeline run over the selected documents.
type AskRequest struct {
	ConversationId uuid.UUID   `json:"conversation_id" validate:"required"`
	Question       string      `json:"question" validate:"required,max=4000"`
	DocumentIds    []uuid.UUID `json:"document_ids" validate:"max=20"`
	Tier           string      `json:"tier" validate:"omitempty,oneof=quick standard thorough"`
}

type CitationDTO struct {
	DocumentId   uuid.UUID          `json:"document_id"`
	DocumentName string             `json:"document_name"`
	ChunkId      uuid.UUID          `json:"chunk_id"`
	Page         int                `json:"page"`
	Region       *BoundingRegionDTO `json:"region,omitempty"`
	Score        float64            `json:"score"`
	Excerpt      string             `json:"excerpt"`
}

type BoundingRegionDTO struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type GetChatHistoryResponse struct {
	Id             uuid.UUID       `json:"id"`
	Role           string          `json:"role"`
	Content        string          `json:"content"`
	Tier           string          `json:"tier,omitempty"`
	ModelUsed      string          `json:"model_used,omitempty"`
	Confidence     *float64        `json:"confidence,omitempty"`
	Verification   json.RawMessage `json:"verification,omitempty"`
	Reconciliation json.RawMessage `json:"reconciliation,omitempty"`
	LatencyMs      int64           `json:"latency_ms,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Citations      []CitationDTO   `json:"citations,omitempty"`
}

type DeleteConversationRequest struct {
	ConversationId uuid.UUID `json:"conversation_id"`
}
