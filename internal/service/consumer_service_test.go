package service

import (
	"errors"
	"strings"
	"testing"

	"ai-docchat-be/internal/dto"
	"ai-docchat-be/pkg/embedding"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type stubEmbedder struct {
	texts     []string
	taskTypes []string
	err       error
}

func (s *stubEmbedder) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.texts = append(s.texts, text)
	s.taskTypes = append(s.taskTypes, taskType)
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.1, 0.2, 0.3}},
	}, nil
}

func TestBuildChunksSpansPages(t *testing.T) {
	embedder := &stubEmbedder{}
	cs := &consumerService{embeddingProvider: embedder}
	documentId := uuid.New()

	chunks, err := cs.buildChunks(documentId, []dto.PageContent{
		{Page: 1, Text: "First page text."},
		{Page: 2, Text: "Second page text."},
	})

	assert.NoError(t, err)
	assert.Len(t, chunks, 2)

	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 2, chunks[1].Page)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
	assert.Equal(t, 1, chunks[1].ChunkIndex)

	for _, chunk := range chunks {
		assert.Equal(t, documentId, chunk.DocumentId)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, chunk.Embedding)
		assert.NotEqual(t, uuid.Nil, chunk.Id)
	}
	assert.Equal(t, []string{"RETRIEVAL_DOCUMENT", "RETRIEVAL_DOCUMENT"}, embedder.taskTypes)
}

func TestBuildChunksSplitsLongPage(t *testing.T) {
	embedder := &stubEmbedder{}
	cs := &consumerService{embeddingProvider: embedder}

	longText := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 80) // ~3600 chars

	chunks, err := cs.buildChunks(uuid.New(), []dto.PageContent{
		{Page: 3, Text: longText},
	})

	assert.NoError(t, err)
	assert.Greater(t, len(chunks), 1)

	for i, chunk := range chunks {
		assert.Equal(t, 3, chunk.Page)
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.LessOrEqual(t, len(chunk.Text), chunkSize)
	}
}

func TestBuildChunksEmbeddingError(t *testing.T) {
	embedder := &stubEmbedder{err: errors.New("model offline")}
	cs := &consumerService{embeddingProvider: embedder}

	chunks, err := cs.buildChunks(uuid.New(), []dto.PageContent{
		{Page: 7, Text: "Some text."},
	})

	assert.Nil(t, chunks)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "page 7")
	assert.ErrorContains(t, err, "model offline")
}
