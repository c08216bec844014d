package pipeline

import (
	"context"
	"fmt"
	"log"

	"ai-docchat-be/pkg/embedding"

	"github.com/google/uuid"
)

// DefaultRetrieveLimit is the number of nearest passages requested from
// the search store per query.
const DefaultRetrieveLimit = 20

// SearchStore is the similarity-search collaborator. Implementations return
// passages in provider order, typically descending similarity.
type SearchStore interface {
	Search(ctx context.Context, queryEmbedding []float32, documentIds []uuid.UUID, limit int) ([]RetrievedPassage, error)
}

// Retriever embeds the query and fetches the nearest passages across the
// selected documents.
type Retriever struct {
	embeddingProvider embedding.EmbeddingProvider
	store             SearchStore
	logger            *log.Logger
}

func NewRetriever(embeddingProvider embedding.EmbeddingProvider, store SearchStore, logger *log.Logger) *Retriever {
	return &Retriever{
		embeddingProvider: embeddingProvider,
		store:             store,
		logger:            logger,
	}
}

// Retrieve returns up to limit passages from the given document set. An
// empty document set short-circuits to an empty result with zero external
// calls.
func (r *Retriever) Retrieve(ctx context.Context, query string, documentIds []uuid.UUID, limit int) ([]RetrievedPassage, error) {
	if len(documentIds) == 0 {
		r.logger.Printf("[RETRIEVER] No documents in scope, skipping search")
		return []RetrievedPassage{}, nil
	}
	if limit <= 0 {
		limit = DefaultRetrieveLimit
	}

	embeddingRes, err := r.embeddingProvider.Generate(query, "RETRIEVAL_QUERY")
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	passages, err := r.store.Search(ctx, embeddingRes.Embedding.Values, documentIds, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	r.logger.Printf("[RETRIEVER] Retrieved %d passages from %d documents", len(passages), len(documentIds))

	return passages, nil
}
