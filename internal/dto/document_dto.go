package dto

import (
	"time"

	"github.com/google/uuid"
)

// IngestDocumentRequest registers a document whose text has already been
// extracted client-side. Chunking and embedding happen asynchronously.
type IngestDocumentRequest struct {
	Name      string        `json:"name" validate:"required,max=255"`
	MimeType  string        `json:"mime_type"`
	SizeBytes int64         `json:"size_bytes"`
	Pages     []PageContent `json:"pages" validate:"required,min=1,dive"`
}

type PageContent struct {
	Page int    `json:"page" validate:"required,min=1"`
	Text string `json:"text" validate:"required"`
}

// PublishIngestDocumentMessage is the chunk-and-embed work item. Page text
// travels in the message so the consumer never re-reads the upload.
type PublishIngestDocumentMessage struct {
	DocumentId uuid.UUID     `json:"document_id"`
	Pages      []PageContent `json:"pages"`
}

type IngestDocumentResponse struct {
	Id     uuid.UUID `json:"id"`
	Status string    `json:"status"`
}

type ShowDocumentResponse struct {
	Id         uuid.UUID  `json:"id"`
	Name       string     `json:"name"`
	MimeType   string     `json:"mime_type"`
	Status     string     `json:"status"`
	PageCount  int        `json:"page_count"`
	SizeBytes  int64      `json:"size_bytes"`
	ChunkCount int64      `json:"chunk_count"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  *time.Time `json:"updated_at"`
}

type GetAllDocumentsResponse struct {
	Id        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

type DeleteDocumentRequest struct {
	Id uuid.UUID `json:"id"`
}
