package pipeline

import (
	"context"
	"log"
	"time"

	"ai-docchat-be/pkg/embedding"
	"ai-docchat-be/pkg/llm"
)

// Fixed confidence mapping for verified-but-not-arbitrated terminals.
// Deliberately a two-value mapping from the agreement flag, not the
// verifier's own reported confidence.
const (
	confidenceAgreed    = 0.95
	confidenceDisagreed = 0.75
)

// correctedMarker is the visible separator emitted before a reconciled
// answer replaces the originally streamed one.
const correctedMarker = "\n\n---\n**Corrected response:**\n\n"

// Orchestrator sequences router, retriever, reranker, generator, verifier
// and reconciler into a single event stream, applying tier-specific
// short-circuiting. One Orchestrator is safe for concurrent runs; all
// per-run state lives in the run itself.
type Orchestrator struct {
	router     *Router
	retriever  *Retriever
	reranker   *Reranker
	generator  *Generator
	verifier   *Verifier
	reconciler *Reconciler
	logger     *log.Logger

	// RetrieveLimit and KeepLimit may be overridden after construction,
	// before the first Run.
	RetrieveLimit int
	KeepLimit     int
}

// Models selects the model identifier for each pipeline role.
type Models struct {
	Generator  string
	Verifier   string
	Reconciler string
}

// NewOrchestrator wires the pipeline stages. The three providers are the
// independent model-invocation collaborators: routerProvider also serves
// generation and rerank scoring; verifierProvider and reconcilerProvider
// are the second and third opinions.
func NewOrchestrator(
	generatorProvider llm.LLMProvider,
	verifierProvider llm.LLMProvider,
	reconcilerProvider llm.LLMProvider,
	embeddingProvider embedding.EmbeddingProvider,
	store SearchStore,
	models Models,
	logger *log.Logger,
) *Orchestrator {
	return &Orchestrator{
		router:     NewRouter(generatorProvider, logger),
		retriever:  NewRetriever(embeddingProvider, store, logger),
		reranker:   NewReranker(generatorProvider, logger),
		generator:  NewGenerator(generatorProvider, models.Generator, logger),
		verifier:   NewVerifier(verifierProvider, models.Verifier, logger),
		reconciler: NewReconciler(reconcilerProvider, models.Reconciler, logger),
		logger:     logger,

		RetrieveLimit: DefaultRetrieveLimit,
		KeepLimit:     DefaultKeepLimit,
	}
}

// Run executes one pipeline invocation and returns its event stream. The
// channel is closed after the terminal event (done or error). Cancelling
// ctx stops the run; no further events are forwarded once the caller is
// gone.
func (o *Orchestrator) Run(ctx context.Context, query Query) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		o.run(ctx, query, out)
	}()
	return out
}

// run is the tiering state machine. Stages execute in strict forward
// order; data flows forward only.
func (o *Orchestrator) run(ctx context.Context, query Query, out chan<- Event) {
	started := time.Now()

	emit := func(ev Event) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	fail := func(err error) {
		emit(Event{Type: EventError, Data: ErrorPayload{
			Message:   err.Error(),
			LatencyMs: time.Since(started).Milliseconds(),
		}})
	}

	// --- routing ---
	if !emit(thinkingEvent("Analyzing your question...")) {
		return
	}
	intent, err := o.router.Classify(ctx, query.Text, query.History)
	if err != nil {
		fail(err)
		return
	}

	// --- retrieving + reranking (needs_retrieval only) ---
	var passages []RetrievedPassage
	if intent == IntentNeedsRetrieval {
		if !emit(thinkingEvent("Searching documents...")) {
			return
		}
		retrieved, err := o.retriever.Retrieve(ctx, query.Text, query.DocumentIds, o.RetrieveLimit)
		if err != nil {
			fail(err)
			return
		}
		passages = o.reranker.Rerank(ctx, query.Text, retrieved, o.KeepLimit)
	}

	// --- generating ---
	citations := o.generator.BuildCitations(passages)
	if intent != IntentNeedsRetrieval {
		citations = nil
	}
	if len(citations) > 0 {
		if !emit(sourcesEvent(citations)) {
			return
		}
	}
	if !emit(thinkingEvent("Generating answer...")) {
		return
	}

	answer, _, err := o.generator.GenerateStream(ctx, query, intent, passages, func(token string) {
		emit(tokenEvent(token))
	})
	if err != nil {
		fail(err)
		return
	}

	finish := func(response string, verification *VerificationResult, reconciliation *ReconciliationResult, confidence *float64) {
		emit(Event{Type: EventDone, Data: DonePayload{
			Response:       response,
			Citations:      citations,
			ModelUsed:      o.generator.Model(),
			Verification:   verification,
			Reconciliation: reconciliation,
			Confidence:     confidence,
			LatencyMs:      time.Since(started).Milliseconds(),
		}})
	}

	// --- tier: quick ---
	if query.Tier == TierQuick {
		finish(answer, nil, nil, nil)
		return
	}

	// --- verifying (standard, thorough) ---
	if !emit(thinkingEvent("Verifying answer...")) {
		return
	}
	verification, shouldReconcile := o.verifier.Verify(ctx, query, passages, answer)
	if !emit(verificationEvent(verification)) {
		return
	}

	mapped := confidenceAgreed
	if !verification.Agrees {
		mapped = confidenceDisagreed
	}

	// --- tier: standard (never escalates) ---
	if query.Tier != TierThorough || !shouldReconcile {
		finish(answer, verification, nil, &mapped)
		return
	}

	// --- reconciling (thorough, confident disagreement only) ---
	if !emit(thinkingEvent("Resolving disagreement...")) {
		return
	}
	reconciliation := o.reconciler.Reconcile(ctx, query, passages, answer, verification)
	if !emit(reconciliationEvent(reconciliation)) {
		return
	}

	final := answer
	if reconciliation.Chosen != ChosenPrimary {
		final = reconciliation.FinalAnswer
		if !emit(tokenEvent(correctedMarker)) {
			return
		}
		if !emit(tokenEvent(reconciliation.FinalAnswer)) {
			return
		}
	}

	finish(final, verification, reconciliation, &reconciliation.Confidence)
}
