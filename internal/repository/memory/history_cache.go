package memory

import (
	"time"

	"ai-docchat-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// HistoryWindow bounds how many trailing turns are kept per conversation.
// Callers reading history from the database apply the same bound so cache
// hits and misses see an identical window.
const HistoryWindow = 20

// HistoryCache keeps recent conversation turns in memory so the pipeline
// does not hit the database for history on every message. Entries expire
// after an hour of inactivity; the database remains the source of truth.
type HistoryCache struct {
	cache *cache.Cache
}

func NewHistoryCache() *HistoryCache {
	c := cache.New(1*time.Hour, 10*time.Minute)
	return &HistoryCache{
		cache: c,
	}
}

func (h *HistoryCache) Get(conversationId uuid.UUID) ([]llm.Message, bool) {
	if x, found := h.cache.Get(conversationId.String()); found {
		return x.([]llm.Message), true
	}
	return nil, false
}

func (h *HistoryCache) Put(conversationId uuid.UUID, history []llm.Message) {
	if len(history) > HistoryWindow {
		history = history[len(history)-HistoryWindow:]
	}
	h.cache.Set(conversationId.String(), history, cache.DefaultExpiration)
}

// Append adds a turn to a cached history. A miss is left as a miss so the
// next read repopulates from the database.
func (h *HistoryCache) Append(conversationId uuid.UUID, msg llm.Message) {
	history, found := h.Get(conversationId)
	if !found {
		return
	}
	h.Put(conversationId, append(history, msg))
}

func (h *HistoryCache) Invalidate(conversationId uuid.UUID) {
	h.cache.Delete(conversationId.String())
}
