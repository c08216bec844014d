package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"ai-docchat-be/pkg/llm"

	"github.com/stretchr/testify/assert"
)

func TestClassifyNormalizesResponses(t *testing.T) {
	cases := []struct {
		name     string
		response string
		expected Intent
	}{
		{"clean label", "needs_retrieval", IntentNeedsRetrieval},
		{"conversational", "conversational", IntentConversational},
		{"out of scope", "out_of_scope", IntentOutOfScope},
		{"quoted", `"conversational"`, IntentConversational},
		{"wrapped in prose", "The intent is: out_of_scope.", IntentOutOfScope},
		{"uppercase", "CONVERSATIONAL", IntentConversational},
		{"garbage falls open to retrieval", "banana", IntentNeedsRetrieval},
		{"empty falls open to retrieval", "", IntentNeedsRetrieval},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := &mockLLM{generateResponses: []string{tc.response}}
			r := NewRouter(provider, testLogger())

			intent, err := r.Classify(context.Background(), "what does the contract say?", nil)

			assert.NoError(t, err)
			assert.Equal(t, tc.expected, intent)
		})
	}
}

func TestClassifyPropagatesModelError(t *testing.T) {
	provider := &mockLLM{generateErr: errors.New("connection refused")}
	r := NewRouter(provider, testLogger())

	intent, err := r.Classify(context.Background(), "hello", nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "intent classification failed")
	assert.Empty(t, string(intent))
}

func TestClassifyBoundsHistoryWindow(t *testing.T) {
	provider := &mockLLM{generateResponses: []string{"conversational"}}
	r := NewRouter(provider, testLogger())

	history := []llm.Message{
		{Role: "user", Content: "oldest turn"},
		{Role: "assistant", Content: "second turn"},
		{Role: "user", Content: "third turn"},
		{Role: "assistant", Content: "fourth turn"},
		{Role: "user", Content: "fifth turn"},
	}

	_, err := r.Classify(context.Background(), "thanks!", history)

	assert.NoError(t, err)
	assert.NotContains(t, provider.lastPrompt, "oldest turn")
	assert.Contains(t, provider.lastPrompt, "second turn")
	assert.Contains(t, provider.lastPrompt, "fifth turn")
	assert.Contains(t, provider.lastPrompt, "thanks!")
}

func TestClassifyOmitsHistoryBlockWhenEmpty(t *testing.T) {
	provider := &mockLLM{generateResponses: []string{"needs_retrieval"}}
	r := NewRouter(provider, testLogger())

	_, err := r.Classify(context.Background(), "what is the notice period?", nil)

	assert.NoError(t, err)
	assert.False(t, strings.Contains(provider.lastPrompt, "<recent_conversation>"))
	assert.Contains(t, provider.lastPrompt, "<user_query>")
}
