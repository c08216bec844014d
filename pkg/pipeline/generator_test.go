package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"ai-docchat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
)

func TestGenerateRetrievalNumbersExcerpts(t *testing.T) {
	provider := &mockLLM{chatResponse: "Thirty days written notice. [1]"}
	g := NewGenerator(provider, "llama3", testLogger())

	passages := makePassages(3)
	query := Query{Text: "what is the notice period?"}

	answer, citations, err := g.Generate(context.Background(), query, IntentNeedsRetrieval, passages)

	assert.NoError(t, err)
	assert.Equal(t, "Thirty days written notice. [1]", answer)
	assert.Len(t, citations, 3)

	for i, p := range passages {
		assert.Contains(t, provider.lastPrompt, fmt.Sprintf("[%d] (%s, page %d)", i+1, p.DocumentName, p.Page))
		assert.Contains(t, provider.lastPrompt, p.Text)
	}
	assert.Contains(t, provider.lastPrompt, "Question: what is the notice period?")
}

func TestGenerateRetrievalWithoutPassages(t *testing.T) {
	provider := &mockLLM{chatResponse: "The documents do not contain that."}
	g := NewGenerator(provider, "llama3", testLogger())

	answer, citations, err := g.Generate(context.Background(), Query{Text: "notice period?"}, IntentNeedsRetrieval, nil)

	assert.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.Empty(t, citations)
	assert.Contains(t, provider.lastPrompt, "No relevant excerpts were found")
	assert.Contains(t, provider.lastPrompt, "Do NOT invent one")
}

func TestGenerateConversationalBoundsHistory(t *testing.T) {
	provider := &mockLLM{chatResponse: "You're welcome!"}
	g := NewGenerator(provider, "llama3", testLogger())

	query := Query{
		Text: "thanks!",
		History: []llm.Message{
			{Role: "user", Content: "oldest turn"},
			{Role: "assistant", Content: "second turn"},
			{Role: "user", Content: "third turn"},
			{Role: "assistant", Content: "fourth turn"},
		},
	}

	answer, citations, err := g.Generate(context.Background(), query, IntentConversational, nil)

	assert.NoError(t, err)
	assert.Equal(t, "You're welcome!", answer)
	assert.Nil(t, citations)
	assert.Equal(t, "thanks!", provider.lastPrompt)
}

func TestGenerateOutOfScopeIgnoresPassages(t *testing.T) {
	provider := &mockLLM{chatResponse: "I can only help with your documents."}
	g := NewGenerator(provider, "llama3", testLogger())

	answer, citations, err := g.Generate(context.Background(), Query{Text: "write me a poem"}, IntentOutOfScope, makePassages(2))

	assert.NoError(t, err)
	assert.NotEmpty(t, answer)
	assert.Nil(t, citations)
	assert.Equal(t, "write me a poem", provider.lastPrompt)
}

func TestGenerateStreamForwardsTokensInOrder(t *testing.T) {
	provider := &mockLLM{streamTokens: []string{"Thirty ", "days ", "notice."}}
	g := NewGenerator(provider, "llama3", testLogger())

	var received []string
	answer, citations, err := g.GenerateStream(context.Background(), Query{Text: "notice period?"}, IntentNeedsRetrieval, makePassages(2), func(token string) {
		received = append(received, token)
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"Thirty ", "days ", "notice."}, received)
	assert.Equal(t, "Thirty days notice.", answer)
	assert.Len(t, citations, 2)
}

func TestGenerateStreamPropagatesError(t *testing.T) {
	provider := &mockLLM{streamErr: errors.New("model overloaded")}
	g := NewGenerator(provider, "llama3", testLogger())

	_, _, err := g.GenerateStream(context.Background(), Query{Text: "hi"}, IntentConversational, nil, func(string) {})

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "answer generation failed")
}

func TestBuildCitationsTruncatesExcerpts(t *testing.T) {
	g := NewGenerator(&mockLLM{}, "llama3", testLogger())

	passages := makePassages(1)
	passages[0].Text = strings.Repeat("x", excerptLen+50)

	citations := g.BuildCitations(passages)

	assert.Len(t, citations, 1)
	assert.Equal(t, passages[0].ChunkId, citations[0].ChunkId)
	assert.Equal(t, passages[0].DocumentId, citations[0].DocumentId)
	assert.Equal(t, passages[0].Page, citations[0].Page)
	assert.Equal(t, excerptLen+3, len(citations[0].Excerpt))
	assert.True(t, strings.HasSuffix(citations[0].Excerpt, "..."))
}
