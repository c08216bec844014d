package service

import (
	"context"

	"ai-docchat-be/internal/repository/unitofwork"
	"ai-docchat-be/pkg/pipeline"

	"github.com/google/uuid"
)

// searchStore adapts the chunk repository to the narrow interface the
// pipeline retriever depends on.
type searchStore struct {
	uowFactory unitofwork.RepositoryFactory
}

func NewSearchStore(uowFactory unitofwork.RepositoryFactory) pipeline.SearchStore {
	return &searchStore{
		uowFactory: uowFactory,
	}
}

func (s *searchStore) Search(ctx context.Context, queryEmbedding []float32, documentIds []uuid.UUID, limit int) ([]pipeline.RetrievedPassage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	scored, err := uow.DocumentChunkRepository().SearchSimilarWithScore(ctx, queryEmbedding, documentIds, limit)
	if err != nil {
		return nil, err
	}

	passages := make([]pipeline.RetrievedPassage, 0, len(scored))
	for _, sc := range scored {
		var region *pipeline.BoundingRegion
		if sc.Chunk.Region != nil {
			region = &pipeline.BoundingRegion{
				X:      sc.Chunk.Region.X,
				Y:      sc.Chunk.Region.Y,
				Width:  sc.Chunk.Region.Width,
				Height: sc.Chunk.Region.Height,
			}
		}
		passages = append(passages, pipeline.RetrievedPassage{
			ChunkId:      sc.Chunk.Id,
			DocumentId:   sc.Chunk.DocumentId,
			DocumentName: sc.DocumentName,
			Text:         sc.Chunk.Text,
			Page:         sc.Chunk.Page,
			Region:       region,
			Score:        sc.Similarity,
		})
	}

	return passages, nil
}
