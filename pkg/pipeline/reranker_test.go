package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRerankPassthroughWithinKeep(t *testing.T) {
	provider := &mockLLM{}
	r := NewReranker(provider, testLogger())

	passages := makePassages(5)
	result := r.Rerank(context.Background(), "termination clause", passages, 5)

	assert.Equal(t, passages, result)
	assert.Zero(t, provider.generateCalls, "passthrough must not call the model")
}

func TestRerankKeepsTopScored(t *testing.T) {
	// Passage 6 scores 9, everything else ties at 3. Scoring runs
	// concurrently, so the hook keys off the passage text instead of call
	// order.
	provider := &mockLLM{generateFn: func(prompt string) (string, error) {
		if strings.Contains(prompt, "Section 6:") {
			return "9", nil
		}
		return "3", nil
	}}
	r := NewReranker(provider, testLogger())

	passages := makePassages(7)
	result := r.Rerank(context.Background(), "termination clause", passages, 5)

	assert.Len(t, result, 5)
	// Highest score first; ties retain retrieval order behind it.
	assert.Equal(t, passages[5].ChunkId, result[0].ChunkId)
	assert.Equal(t, passages[0].ChunkId, result[1].ChunkId)
	assert.Equal(t, passages[1].ChunkId, result[2].ChunkId)
	assert.Equal(t, passages[3].ChunkId, result[4].ChunkId)
	assert.Equal(t, 7, provider.generateCalls)
}

func TestRerankScoringFailureUsesNeutralScore(t *testing.T) {
	provider := &mockLLM{generateErr: errors.New("scoring backend down")}
	r := NewReranker(provider, testLogger())

	passages := makePassages(8)
	result := r.Rerank(context.Background(), "termination clause", passages, 5)

	// Every call failed; all passages score neutral and survive in order.
	assert.Len(t, result, 5)
	for i := range result {
		assert.Equal(t, passages[i].ChunkId, result[i].ChunkId)
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     float64
		wantErr  bool
	}{
		{name: "plain integer", response: "7", want: 7},
		{name: "decimal", response: "8.5", want: 8.5},
		{name: "with suffix", response: "9/10", want: 9},
		{name: "whitespace", response: "  4 \n", want: 4},
		{name: "clamped high", response: "15", want: 10},
		{name: "prose only", response: "very relevant", wantErr: true},
		{name: "empty", response: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseScore(tt.response)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}
