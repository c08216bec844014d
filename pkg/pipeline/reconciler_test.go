package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func disagreement() *VerificationResult {
	return &VerificationResult{
		Model:      "qwen2.5",
		Agrees:     false,
		Confidence: 0.85,
		Notes:      "The answer cites sixty days but excerpt [1] says thirty.",
		Issues:     []string{"figure mismatch"},
	}
}

func TestReconcileAdoptsVerificationAnswer(t *testing.T) {
	provider := &mockLLM{chatResponse: `{"chosen": "verification", "resolution": "Excerpt [1] states thirty days.", "final_answer": "Thirty days written notice.", "confidence": 0.92}`}
	r := NewReconciler(provider, "deepseek-r1", testLogger())

	result := r.Reconcile(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Sixty days.", disagreement())

	assert.Equal(t, ChosenVerification, result.Chosen)
	assert.Equal(t, "Thirty days written notice.", result.FinalAnswer)
	assert.Equal(t, 0.92, result.Confidence)
	assert.Equal(t, "deepseek-r1", result.Model)
}

func TestReconcileKeepsPrimaryOnModelError(t *testing.T) {
	provider := &mockLLM{chatErr: errors.New("timeout")}
	r := NewReconciler(provider, "deepseek-r1", testLogger())

	result := r.Reconcile(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Sixty days.", disagreement())

	assert.Equal(t, ChosenPrimary, result.Chosen)
	assert.Equal(t, "Sixty days.", result.FinalAnswer)
	assert.Equal(t, 0.5, result.Confidence)
	assert.Contains(t, result.Resolution, "reconciliation unavailable")
}

func TestReconcileKeepsPrimaryOnUnparseableRuling(t *testing.T) {
	provider := &mockLLM{chatResponse: "After careful thought, I side with the verifier."}
	r := NewReconciler(provider, "deepseek-r1", testLogger())

	result := r.Reconcile(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Sixty days.", disagreement())

	assert.Equal(t, ChosenPrimary, result.Chosen)
	assert.Equal(t, "Sixty days.", result.FinalAnswer)
	assert.Contains(t, result.Resolution, "reconciliation response unparseable")
}

func TestReconcileRejectsUnknownChoice(t *testing.T) {
	provider := &mockLLM{chatResponse: `{"chosen": "both", "final_answer": "A blend of the two.", "confidence": 0.8}`}
	r := NewReconciler(provider, "deepseek-r1", testLogger())

	result := r.Reconcile(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Sixty days.", disagreement())

	assert.Equal(t, ChosenPrimary, result.Chosen)
	assert.Equal(t, "Sixty days.", result.FinalAnswer)
	assert.Contains(t, result.Resolution, "unknown choice")
}

func TestReconcileEmptyFinalAnswerDefaultsToPrimary(t *testing.T) {
	provider := &mockLLM{chatResponse: `{"chosen": "primary", "resolution": "The objection does not hold.", "confidence": 0.88}`}
	r := NewReconciler(provider, "deepseek-r1", testLogger())

	result := r.Reconcile(context.Background(), Query{Text: "notice period?"}, makePassages(2), "Sixty days.", disagreement())

	assert.Equal(t, ChosenPrimary, result.Chosen)
	assert.Equal(t, "Sixty days.", result.FinalAnswer)
	assert.Equal(t, 0.88, result.Confidence)
}

func TestReconcilePromptCarriesBothPositions(t *testing.T) {
	provider := &mockLLM{chatResponse: `{"chosen": "primary", "final_answer": "Sixty days.", "confidence": 0.8}`}
	r := NewReconciler(provider, "deepseek-r1", testLogger())

	passages := makePassages(1)
	verification := disagreement()
	r.Reconcile(context.Background(), Query{Text: "notice period?"}, passages, "Sixty days.", verification)

	assert.Contains(t, provider.lastPrompt, "Sixty days.")
	assert.Contains(t, provider.lastPrompt, verification.Notes)
	assert.Contains(t, provider.lastPrompt, passages[0].Text)
}
