package controller

import (
	"testing"

	"ai-docchat-be/pkg/pipeline"

	"github.com/stretchr/testify/assert"
)

func TestSseFrameAliasesTokenToContent(t *testing.T) {
	frame, err := sseFrame(pipeline.Event{
		Type: pipeline.EventToken,
		Data: pipeline.TokenPayload{Token: "Hello"},
	})

	assert.NoError(t, err)
	assert.Equal(t, "event: content\ndata: {\"token\":\"Hello\"}\n\n", string(frame))
}

func TestSseFramePassesOtherPayloadsThrough(t *testing.T) {
	frame, err := sseFrame(pipeline.Event{
		Type: pipeline.EventThinking,
		Data: pipeline.ThinkingPayload{Step: "routing"},
	})

	assert.NoError(t, err)
	assert.Equal(t, "event: thinking\ndata: {\"step\":\"routing\"}\n\n", string(frame))
}

func TestSseFrameTerminalError(t *testing.T) {
	frame, err := sseFrame(pipeline.Event{
		Type: pipeline.EventError,
		Data: pipeline.ErrorPayload{Message: "generation failed", LatencyMs: 42},
	})

	assert.NoError(t, err)
	assert.Equal(t, "event: error\ndata: {\"message\":\"generation failed\",\"latency_ms\":42}\n\n", string(frame))
}
