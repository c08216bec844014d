package pipeline

import (
	"github.com/google/uuid"
)

// EventType discriminates the pipeline event stream.
type EventType string

const (
	EventThinking       EventType = "thinking"
	EventSources        EventType = "sources"
	EventToken          EventType = "token"
	EventVerification   EventType = "verification"
	EventReconciliation EventType = "reconciliation"
	EventDone           EventType = "done"
	EventError          EventType = "error"
)

// Chosen answer sources reported by the reconciler.
const (
	ChosenPrimary      = "primary"
	ChosenVerification = "verification"
	ChosenSynthesized  = "synthesized"
)

// BoundingRegion locates a passage on its page for client-side highlighting.
type BoundingRegion struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Citation is a user-facing, truncated reference to a passage used to
// produce an answer. Exactly one citation is built per retained passage.
type Citation struct {
	DocumentId   uuid.UUID       `json:"document_id"`
	DocumentName string          `json:"document_name"`
	ChunkId      uuid.UUID       `json:"chunk_id"`
	Page         int             `json:"page"`
	Region       *BoundingRegion `json:"region,omitempty"`
	Score        float64         `json:"score"`
	Excerpt      string          `json:"excerpt"`
}

// VerificationResult is the verifier's judgement on the primary answer.
type VerificationResult struct {
	Model      string   `json:"model"`
	Agrees     bool     `json:"agrees"`
	Confidence float64  `json:"confidence"`
	Notes      string   `json:"notes"`
	Issues     []string `json:"issues,omitempty"`
}

// ReconciliationResult is the arbiter's resolution of a confident disagreement.
type ReconciliationResult struct {
	Model       string  `json:"model"`
	Chosen      string  `json:"chosen"` // primary | verification | synthesized
	Resolution  string  `json:"resolution"`
	FinalAnswer string  `json:"final_answer"`
	Confidence  float64 `json:"confidence"`
}

// --- Event payloads, one per EventType ---

type ThinkingPayload struct {
	Step string `json:"step"`
}

type SourcesPayload struct {
	Citations []Citation `json:"citations"`
}

type TokenPayload struct {
	Token string `json:"token"`
}

type VerificationPayload struct {
	Agrees bool   `json:"agrees"`
	Model  string `json:"model"`
	Notes  string `json:"notes"`
}

type ReconciliationPayload struct {
	Model      string `json:"model"`
	Chosen     string `json:"chosen"`
	Resolution string `json:"resolution"`
}

type DonePayload struct {
	Response       string                `json:"response"`
	Citations      []Citation            `json:"citations"`
	ModelUsed      string                `json:"model_used"`
	Verification   *VerificationResult   `json:"verification"`
	Reconciliation *ReconciliationResult `json:"reconciliation"`
	Confidence     *float64              `json:"confidence,omitempty"`
	LatencyMs      int64                 `json:"latency_ms"`
}

type ErrorPayload struct {
	Message   string `json:"message"`
	LatencyMs int64  `json:"latency_ms"`
}

// Event is the wire-level unit emitted to the caller: a type discriminant
// plus a payload specific to that type. Events are append-only and ordered;
// exactly one done or error event terminates each run.
type Event struct {
	Type EventType   `json:"type"`
	Data interface{} `json:"data"`
}

func thinkingEvent(step string) Event {
	return Event{Type: EventThinking, Data: ThinkingPayload{Step: step}}
}

func sourcesEvent(citations []Citation) Event {
	return Event{Type: EventSources, Data: SourcesPayload{Citations: citations}}
}

func tokenEvent(token string) Event {
	return Event{Type: EventToken, Data: TokenPayload{Token: token}}
}

func verificationEvent(v *VerificationResult) Event {
	return Event{Type: EventVerification, Data: VerificationPayload{
		Agrees: v.Agrees,
		Model:  v.Model,
		Notes:  v.Notes,
	}}
}

func reconciliationEvent(r *ReconciliationResult) Event {
	return Event{Type: EventReconciliation, Data: ReconciliationPayload{
		Model:      r.Model,
		Chosen:     r.Chosen,
		Resolution: r.Resolution,
	}}
}
