package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOrchestrator(gen, ver, rec *mockLLM, store *mockStore) *Orchestrator {
	return NewOrchestrator(gen, ver, rec, &mockEmbedding{}, store,
		Models{Generator: "llama3", Verifier: "qwen2.5", Reconciler: "deepseek-r1"},
		testLogger(),
	)
}

func baseQuery(tier Tier) Query {
	return Query{
		Text:           "What is the termination clause?",
		ConversationId: uuid.New(),
		DocumentIds:    []uuid.UUID{uuid.New()},
		Tier:           tier,
	}
}

func TestQuickTierEventSequence(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamTokens:      []string{"The ", "termination ", "clause ", "allows 30 days notice. [1]"},
	}
	store := &mockStore{passages: makePassages(3)}
	o := newTestOrchestrator(gen, &mockLLM{}, &mockLLM{}, store)

	events := collect(o.Run(context.Background(), baseQuery(TierQuick)))
	require.NotEmpty(t, events)

	// Exactly one terminal event, and it is last.
	last := events[len(events)-1]
	assert.Equal(t, EventDone, last.Type)
	for _, ev := range events[:len(events)-1] {
		assert.NotEqual(t, EventDone, ev.Type)
		assert.NotEqual(t, EventError, ev.Type)
	}

	// Quick tier never verifies or reconciles.
	for _, ev := range events {
		assert.NotEqual(t, EventVerification, ev.Type)
		assert.NotEqual(t, EventReconciliation, ev.Type)
	}

	done := last.Data.(DonePayload)
	assert.Equal(t, "The termination clause allows 30 days notice. [1]", done.Response)
	assert.Nil(t, done.Verification)
	assert.Nil(t, done.Reconciliation)
	assert.Nil(t, done.Confidence)
	assert.Equal(t, "llama3", done.ModelUsed)
	assert.Len(t, done.Citations, 3)
	assert.GreaterOrEqual(t, done.LatencyMs, int64(0))
}

func TestSourcesPrecedeFirstToken(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamTokens:      []string{"answer"},
	}
	store := &mockStore{passages: makePassages(2)}
	o := newTestOrchestrator(gen, &mockLLM{}, &mockLLM{}, store)

	events := collect(o.Run(context.Background(), baseQuery(TierQuick)))

	sourcesIdx, tokenIdx := -1, -1
	for i, ev := range events {
		if ev.Type == EventSources && sourcesIdx == -1 {
			sourcesIdx = i
		}
		if ev.Type == EventToken && tokenIdx == -1 {
			tokenIdx = i
		}
	}
	require.NotEqual(t, -1, sourcesIdx)
	require.NotEqual(t, -1, tokenIdx)
	assert.Less(t, sourcesIdx, tokenIdx)
}

func TestNoSourcesWithoutPassages(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamTokens:      []string{"The documents do not contain this."},
	}
	store := &mockStore{passages: nil}
	o := newTestOrchestrator(gen, &mockLLM{}, &mockLLM{}, store)

	events := collect(o.Run(context.Background(), baseQuery(TierQuick)))
	for _, ev := range events {
		assert.NotEqual(t, EventSources, ev.Type)
	}
}

func TestConversationalSkipsRetrieval(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"conversational"},
		streamTokens:      []string{"Hi there!"},
	}
	store := &mockStore{passages: makePassages(3)}
	emb := &mockEmbedding{}
	o := NewOrchestrator(gen, &mockLLM{}, &mockLLM{}, emb, store,
		Models{Generator: "llama3", Verifier: "qwen2.5", Reconciler: "deepseek-r1"}, testLogger())

	events := collect(o.Run(context.Background(), baseQuery(TierQuick)))

	assert.Zero(t, store.calls)
	assert.Zero(t, emb.calls)
	for _, ev := range events {
		assert.NotEqual(t, EventSources, ev.Type)
	}
	done := events[len(events)-1].Data.(DonePayload)
	assert.Empty(t, done.Citations)
}

func TestStandardTierDisagreement(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamTokens:      []string{"Sixty days notice."},
	}
	ver := &mockLLM{
		chatResponse: `{"agrees": false, "confidence": 0.9, "notes": "The sources say thirty days.", "issues": ["wrong notice period"]}`,
	}
	rec := &mockLLM{chatResponse: `should never be called`}
	store := &mockStore{passages: makePassages(2)}
	o := newTestOrchestrator(gen, ver, rec, store)

	events := collect(o.Run(context.Background(), baseQuery(TierStandard)))

	var sawVerification bool
	for _, ev := range events {
		if ev.Type == EventVerification {
			sawVerification = true
			payload := ev.Data.(VerificationPayload)
			assert.False(t, payload.Agrees)
			assert.Equal(t, "qwen2.5", payload.Model)
		}
		// Standard tier never escalates, even on confident disagreement.
		assert.NotEqual(t, EventReconciliation, ev.Type)
	}
	assert.True(t, sawVerification)
	assert.Zero(t, rec.chatCalls)

	done := events[len(events)-1].Data.(DonePayload)
	require.NotNil(t, done.Confidence)
	assert.InDelta(t, 0.75, *done.Confidence, 1e-9)
	require.NotNil(t, done.Verification)
	assert.Nil(t, done.Reconciliation)
}

func TestStandardTierAgreementConfidence(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamTokens:      []string{"Thirty days notice."},
	}
	ver := &mockLLM{
		chatResponse: `{"agrees": true, "confidence": 0.8, "notes": "Matches the sources."}`,
	}
	store := &mockStore{passages: makePassages(1)}
	o := newTestOrchestrator(gen, ver, &mockLLM{}, store)

	events := collect(o.Run(context.Background(), baseQuery(TierStandard)))
	done := events[len(events)-1].Data.(DonePayload)
	require.NotNil(t, done.Confidence)
	assert.InDelta(t, 0.95, *done.Confidence, 1e-9)
}

func TestThoroughTierEscalatesAndCorrects(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamTokens:      []string{"Sixty days notice."},
	}
	ver := &mockLLM{
		chatResponse: `{"agrees": false, "confidence": 0.9, "notes": "Sources say thirty days."}`,
	}
	rec := &mockLLM{
		chatResponse: `{"chosen": "verification", "resolution": "Source [1] states thirty days.", "final_answer": "Thirty days written notice.", "confidence": 0.92}`,
	}
	store := &mockStore{passages: makePassages(2)}
	o := newTestOrchestrator(gen, ver, rec, store)

	events := collect(o.Run(context.Background(), baseQuery(TierThorough)))

	var sawReconciliation bool
	var tokensAfterReconciliation []string
	for _, ev := range events {
		if ev.Type == EventReconciliation {
			sawReconciliation = true
			payload := ev.Data.(ReconciliationPayload)
			assert.Equal(t, ChosenVerification, payload.Chosen)
		}
		if sawReconciliation && ev.Type == EventToken {
			tokensAfterReconciliation = append(tokensAfterReconciliation, ev.Data.(TokenPayload).Token)
		}
	}
	require.True(t, sawReconciliation)

	// The corrected marker precedes the reconciled text.
	require.Len(t, tokensAfterReconciliation, 2)
	assert.Contains(t, tokensAfterReconciliation[0], "Corrected response")
	assert.Equal(t, "Thirty days written notice.", tokensAfterReconciliation[1])

	done := events[len(events)-1].Data.(DonePayload)
	assert.Equal(t, "Thirty days written notice.", done.Response)
	require.NotNil(t, done.Reconciliation)
	require.NotNil(t, done.Confidence)
	assert.InDelta(t, 0.92, *done.Confidence, 1e-9)
}

func TestThoroughTierNoEscalationOnLowConfidence(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamTokens:      []string{"Thirty days."},
	}
	ver := &mockLLM{
		chatResponse: `{"agrees": false, "confidence": 0.5, "notes": "Not sure."}`,
	}
	rec := &mockLLM{}
	store := &mockStore{passages: makePassages(1)}
	o := newTestOrchestrator(gen, ver, rec, store)

	events := collect(o.Run(context.Background(), baseQuery(TierThorough)))

	for _, ev := range events {
		assert.NotEqual(t, EventReconciliation, ev.Type)
	}
	assert.Zero(t, rec.chatCalls)

	done := events[len(events)-1].Data.(DonePayload)
	require.NotNil(t, done.Confidence)
	assert.InDelta(t, 0.75, *done.Confidence, 1e-9)
	assert.Nil(t, done.Reconciliation)
}

func TestVerifierFailureFailsOpen(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamTokens:      []string{"Thirty days."},
	}
	ver := &mockLLM{chatErr: errors.New("verifier model unavailable")}
	store := &mockStore{passages: makePassages(1)}
	o := newTestOrchestrator(gen, ver, &mockLLM{}, store)

	events := collect(o.Run(context.Background(), baseQuery(TierStandard)))

	var sawVerification bool
	for _, ev := range events {
		if ev.Type == EventVerification {
			sawVerification = true
			payload := ev.Data.(VerificationPayload)
			assert.True(t, payload.Agrees)
			assert.Contains(t, payload.Notes, "unavailable")
		}
	}
	assert.True(t, sawVerification)
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestGenerationFailureIsFatal(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamErr:         errors.New("model connection reset"),
	}
	store := &mockStore{passages: makePassages(1)}
	o := newTestOrchestrator(gen, &mockLLM{}, &mockLLM{}, store)

	events := collect(o.Run(context.Background(), baseQuery(TierQuick)))
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, EventError, last.Type)
	payload := last.Data.(ErrorPayload)
	assert.Contains(t, payload.Message, "model connection reset")
	assert.GreaterOrEqual(t, payload.LatencyMs, int64(0))

	// Error is the only terminal event.
	for _, ev := range events[:len(events)-1] {
		assert.NotEqual(t, EventDone, ev.Type)
		assert.NotEqual(t, EventError, ev.Type)
	}
}

func TestRouterFailureIsFatal(t *testing.T) {
	gen := &mockLLM{generateErr: errors.New("router timeout")}
	o := newTestOrchestrator(gen, &mockLLM{}, &mockLLM{}, &mockStore{})

	events := collect(o.Run(context.Background(), baseQuery(TierQuick)))
	require.NotEmpty(t, events)
	assert.Equal(t, EventError, events[len(events)-1].Type)
}

func TestEmptyDocumentSetSkipsSearch(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamTokens:      []string{"The documents do not contain this."},
	}
	store := &mockStore{passages: makePassages(3)}
	emb := &mockEmbedding{}
	o := NewOrchestrator(gen, &mockLLM{}, &mockLLM{}, emb, store,
		Models{Generator: "llama3", Verifier: "qwen2.5", Reconciler: "deepseek-r1"}, testLogger())

	query := baseQuery(TierQuick)
	query.DocumentIds = nil

	events := collect(o.Run(context.Background(), query))

	assert.Zero(t, store.calls)
	assert.Zero(t, emb.calls)
	assert.Equal(t, EventDone, events[len(events)-1].Type)
}

func TestEventTypeSequenceIsDeterministic(t *testing.T) {
	run := func() []EventType {
		gen := &mockLLM{
			generateResponses: []string{"needs_retrieval"},
			streamTokens:      []string{"a", "b"},
		}
		ver := &mockLLM{chatResponse: `{"agrees": true, "confidence": 0.9, "notes": "ok"}`}
		store := &mockStore{passages: makePassages(2)}
		o := newTestOrchestrator(gen, ver, &mockLLM{}, store)
		return eventTypes(collect(o.Run(context.Background(), baseQuery(TierStandard))))
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
}

func TestCancellationStopsStream(t *testing.T) {
	gen := &mockLLM{
		generateResponses: []string{"needs_retrieval"},
		streamTokens:      []string{"a"},
	}
	store := &mockStore{passages: makePassages(1)}
	o := newTestOrchestrator(gen, &mockLLM{}, &mockLLM{}, store)

	ctx, cancel := context.WithCancel(context.Background())
	ch := o.Run(ctx, baseQuery(TierQuick))

	// Read the first event, then disconnect.
	<-ch
	cancel()

	// The channel must close without blocking; no terminal event is owed to
	// a caller that went away.
	for range ch {
	}
}
