package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyConfidentDisagreementEscalates(t *testing.T) {
	provider := &mockLLM{chatResponse: `{"agrees": false, "confidence": 0.9, "notes": "The answer cites the wrong clause.", "issues": ["clause mismatch"]}`}
	v := NewVerifier(provider, "qwen2.5", testLogger())

	result, escalate := v.Verify(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Sixty days.")

	assert.True(t, escalate)
	assert.False(t, result.Agrees)
	assert.Equal(t, 0.9, result.Confidence)
	assert.Equal(t, "qwen2.5", result.Model)
	assert.Equal(t, []string{"clause mismatch"}, result.Issues)
}

func TestVerifyLowConfidenceDisagreementDoesNotEscalate(t *testing.T) {
	provider := &mockLLM{chatResponse: `{"agrees": false, "confidence": 0.6, "notes": "Possibly incomplete."}`}
	v := NewVerifier(provider, "qwen2.5", testLogger())

	result, escalate := v.Verify(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Thirty days.")

	assert.False(t, escalate)
	assert.False(t, result.Agrees)
}

func TestVerifyThresholdIsExclusive(t *testing.T) {
	provider := &mockLLM{chatResponse: `{"agrees": false, "confidence": 0.7, "notes": "Borderline."}`}
	v := NewVerifier(provider, "qwen2.5", testLogger())

	_, escalate := v.Verify(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Thirty days.")

	assert.False(t, escalate)
}

func TestVerifyAgreementNeverEscalates(t *testing.T) {
	provider := &mockLLM{chatResponse: `{"agrees": true, "confidence": 0.99, "notes": "Matches excerpt [1]."}`}
	v := NewVerifier(provider, "qwen2.5", testLogger())

	result, escalate := v.Verify(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Thirty days.")

	assert.False(t, escalate)
	assert.True(t, result.Agrees)
}

func TestVerifyFailsOpenOnModelError(t *testing.T) {
	provider := &mockLLM{chatErr: errors.New("connection refused")}
	v := NewVerifier(provider, "qwen2.5", testLogger())

	result, escalate := v.Verify(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Thirty days.")

	assert.False(t, escalate)
	assert.True(t, result.Agrees)
	assert.Contains(t, result.Notes, "verification unavailable")
}

func TestVerifyFailsOpenOnUnparseableVerdict(t *testing.T) {
	provider := &mockLLM{chatResponse: "I think the answer looks fine to me."}
	v := NewVerifier(provider, "qwen2.5", testLogger())

	result, escalate := v.Verify(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Thirty days.")

	assert.False(t, escalate)
	assert.True(t, result.Agrees)
	assert.Contains(t, result.Notes, "verification response unparseable")
}

func TestVerifyPromptContainsSourcesAndAnswer(t *testing.T) {
	provider := &mockLLM{chatResponse: `{"agrees": true, "confidence": 0.9}`}
	v := NewVerifier(provider, "qwen2.5", testLogger())

	passages := makePassages(2)
	v.Verify(context.Background(), Query{Text: "notice period?"}, passages, "Thirty days written notice.")

	assert.Contains(t, provider.lastPrompt, passages[0].Text)
	assert.Contains(t, provider.lastPrompt, passages[1].Text)
	assert.Contains(t, provider.lastPrompt, "<answer_to_check>\nThirty days written notice.")
	assert.Contains(t, provider.lastPrompt, "notice period?")
}

func TestVerifyPromptMarksEmptySources(t *testing.T) {
	provider := &mockLLM{chatResponse: `{"agrees": true, "confidence": 0.9}`}
	v := NewVerifier(provider, "qwen2.5", testLogger())

	v.Verify(context.Background(), Query{Text: "notice period?"}, nil, "The documents do not say.")

	assert.Contains(t, provider.lastPrompt, "(no excerpts were retrieved)")
}
