package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/internal/entity"
	"ai-docchat-be/internal/repository/specification"
	"ai-docchat-be/internal/repository/unitofwork"
	"ai-docchat-be/pkg/embedding"
	"ai-docchat-be/pkg/events"
	pktNats "ai-docchat-be/pkg/nats"
	"ai-docchat-be/pkg/utils"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Chunking parameters. 1500 chars is roughly 375 tokens, safely inside the
// embedding model's context with a 200-char overlap between neighbours.
const (
	chunkSize    = 1500
	chunkOverlap = 200
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	uowFactory        unitofwork.RepositoryFactory
	embeddingProvider embedding.EmbeddingProvider
	eventPublisher    *pktNats.Publisher
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	embeddingProvider embedding.EmbeddingProvider,
	eventPublisher *pktNats.Publisher,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		uowFactory:        uowFactory,
		embeddingProvider: embeddingProvider,
		eventPublisher:    eventPublisher,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.PublishIngestDocumentMessage
	err := json.Unmarshal(msg.Payload, &payload)
	if err != nil {
		log.Printf("[ERROR] Failed to unmarshal ingest message: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	log.Printf("[INFO] Processing document ingestion for DocumentId: %s", payload.DocumentId)

	uow := cs.uowFactory.NewUnitOfWork(ctx)

	document, err := uow.DocumentRepository().FindOne(ctx, specification.ByID{ID: payload.DocumentId})
	if err != nil {
		log.Printf("[ERROR] Failed to get document %s: %v", payload.DocumentId, err)
		msg.Nack() // Nack for retriable errors
		return
	}
	if document == nil {
		log.Printf("[ERROR] Document not found: %s", payload.DocumentId)
		msg.Ack() // Deleted before processing? Ack.
		return
	}

	if err := uow.DocumentRepository().UpdateStatus(ctx, document.Id, entity.DocumentStatusProcessing); err != nil {
		log.Printf("[WARN] Failed to mark document %s processing: %v", document.Id, err)
	}

	newChunks, err := cs.buildChunks(document.Id, payload.Pages)
	if err != nil {
		// Embedding failures are not retried, the document is marked failed
		// so the client can re-submit.
		log.Printf("[ERROR] Failed to embed document %s: %v", document.Id, err)
		if err := uow.DocumentRepository().UpdateStatus(ctx, document.Id, entity.DocumentStatusFailed); err != nil {
			log.Printf("[ERROR] Failed to mark document %s failed: %v", document.Id, err)
		}
		msg.Ack()
		return
	}

	if err := uow.Begin(ctx); err != nil {
		log.Printf("[ERROR] Failed to begin transaction: %v", err)
		msg.Nack()
		return
	}
	defer uow.Rollback()

	// Re-ingestion replaces the previous chunk set
	if err := uow.DocumentChunkRepository().DeleteByDocumentId(ctx, document.Id); err != nil {
		log.Printf("[ERROR] Failed to delete old chunks: %v", err)
		msg.Nack()
		return
	}

	if len(newChunks) > 0 {
		if err := uow.DocumentChunkRepository().CreateBulk(ctx, newChunks); err != nil {
			log.Printf("[ERROR] Failed to create bulk chunks: %v", err)
			msg.Nack()
			return
		}
	}

	if err := uow.DocumentRepository().UpdateStatus(ctx, document.Id, entity.DocumentStatusReady); err != nil {
		log.Printf("[ERROR] Failed to mark document %s ready: %v", document.Id, err)
		msg.Nack()
		return
	}

	if err := uow.Commit(); err != nil {
		log.Printf("[ERROR] Failed to commit transaction: %v", err)
		msg.Nack()
		return
	}

	if cs.eventPublisher != nil {
		evt := events.NewBaseEvent(events.TypeDocumentIngested, map[string]interface{}{
			"document_id": document.Id,
			"user_id":     document.UserId,
			"chunk_count": len(newChunks),
			"page_count":  len(payload.Pages),
		})
		if err := cs.eventPublisher.Publish(ctx, evt); err != nil {
			log.Printf("[WARN] Failed to publish %s event: %v", events.TypeDocumentIngested, err)
		}
	}

	log.Printf("[SUCCESS] Document processed: %d chunks for DocumentId: %s", len(newChunks), document.Id)
	msg.Ack()
}

// buildChunks splits each page and embeds every chunk. The chunk index runs
// across pages so retrieval order survives re-assembly.
func (cs *consumerService) buildChunks(documentId uuid.UUID, pages []dto.PageContent) ([]*entity.DocumentChunk, error) {
	var chunks []*entity.DocumentChunk
	chunkIndex := 0

	for _, page := range pages {
		pieces := utils.SplitText(page.Text, chunkSize, chunkOverlap)
		for _, piece := range pieces {
			res, err := cs.embeddingProvider.Generate(piece, "RETRIEVAL_DOCUMENT")
			if err != nil {
				return nil, fmt.Errorf("chunk %d (page %d): %w", chunkIndex, page.Page, err)
			}

			chunks = append(chunks, &entity.DocumentChunk{
				Id:         uuid.New(),
				DocumentId: documentId,
				Text:       piece,
				Embedding:  res.Embedding.Values,
				ChunkIndex: chunkIndex,
				Page:       page.Page,
				CreatedAt:  time.Now(),
			})
			chunkIndex++
		}
	}

	return chunks, nil
}
