package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"

	"ai-docchat-be/pkg/embedding"
	"ai-docchat-be/pkg/llm"

	"github.com/google/uuid"
)

// mockLLM scripts provider behavior per call kind.
type mockLLM struct {
	mu sync.Mutex

	generateResponses []string // popped per Generate call
	generateFn        func(prompt string) (string, error)
	generateErr       error
	chatResponse      string
	chatErr           error
	streamTokens      []string // emitted per ChatStream call
	streamErr         error

	generateCalls int
	chatCalls     int
	streamCalls   int
	lastPrompt    string
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, opts ...llm.Option) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateCalls++
	m.lastPrompt = prompt
	if m.generateFn != nil {
		return m.generateFn(prompt)
	}
	if m.generateErr != nil {
		return "", m.generateErr
	}
	if len(m.generateResponses) == 0 {
		return "", nil
	}
	resp := m.generateResponses[0]
	if len(m.generateResponses) > 1 {
		m.generateResponses = m.generateResponses[1:]
	}
	return resp, nil
}

func (m *mockLLM) Chat(ctx context.Context, history []llm.Message, opts ...llm.Option) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chatCalls++
	if len(history) > 0 {
		m.lastPrompt = history[len(history)-1].Content
	}
	if m.chatErr != nil {
		return "", m.chatErr
	}
	return m.chatResponse, nil
}

func (m *mockLLM) ChatStream(ctx context.Context, history []llm.Message, onToken llm.TokenHandler, opts ...llm.Option) (string, error) {
	m.mu.Lock()
	m.streamCalls++
	if len(history) > 0 {
		m.lastPrompt = history[len(history)-1].Content
	}
	tokens := m.streamTokens
	err := m.streamErr
	m.mu.Unlock()

	if err != nil {
		return "", err
	}
	var full string
	for _, t := range tokens {
		full += t
		onToken(t)
	}
	return full, nil
}

// mockEmbedding returns a fixed vector and counts calls.
type mockEmbedding struct {
	calls int
	err   error
}

func (m *mockEmbedding) Generate(text string, taskType string) (*embedding.EmbeddingResponse, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return &embedding.EmbeddingResponse{
		Embedding: embedding.EmbeddingResponseEmbedding{Values: []float32{0.1, 0.2, 0.3}},
	}, nil
}

// mockStore returns scripted passages and counts calls.
type mockStore struct {
	passages []RetrievedPassage
	err      error
	calls    int
}

func (m *mockStore) Search(ctx context.Context, queryEmbedding []float32, documentIds []uuid.UUID, limit int) ([]RetrievedPassage, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.passages, nil
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func makePassages(n int) []RetrievedPassage {
	docId := uuid.New()
	passages := make([]RetrievedPassage, n)
	for i := range passages {
		passages[i] = RetrievedPassage{
			ChunkId:      uuid.New(),
			DocumentId:   docId,
			DocumentName: "contract.pdf",
			Text:         fmt.Sprintf("Section %d: the agreement may be terminated with thirty days written notice.", i+1),
			Page:         i + 1,
			Score:        0.9 - float64(i)*0.05,
		}
	}
	return passages
}

func collect(ch <-chan Event) []Event {
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}
