package pipeline

import (
	"ai-docchat-be/pkg/llm"

	"github.com/google/uuid"
)

// Intent is the router's classification of a query.
type Intent string

const (
	IntentNeedsRetrieval Intent = "needs_retrieval"
	IntentConversational Intent = "conversational"
	IntentOutOfScope     Intent = "out_of_scope"
)

// Tier is the caller-selected quality/latency trade-off.
type Tier string

const (
	TierQuick    Tier = "quick"    // fastest, unverified
	TierStandard Tier = "standard" // verified, never escalated
	TierThorough Tier = "thorough" // verified and arbitrated on confident disagreement
)

// ValidTier reports whether t is one of the selectable tiers.
func ValidTier(t Tier) bool {
	return t == TierQuick || t == TierStandard || t == TierThorough
}

// Query is the immutable input of one pipeline run: constructed once per
// invocation, read-only thereafter.
type Query struct {
	Text           string
	ConversationId uuid.UUID
	DocumentIds    []uuid.UUID
	History        []llm.Message // prior turns, oldest-first, bounded window
	Tier           Tier
}

// RetrievedPassage is a retrievable unit of document text tagged with its
// similarity score. A bag, not a list, until reranking imposes order.
type RetrievedPassage struct {
	ChunkId      uuid.UUID
	DocumentId   uuid.UUID
	DocumentName string
	Text         string
	Page         int
	Region       *BoundingRegion
	Score        float64
}
