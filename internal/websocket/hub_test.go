package websocket

import (
	"testing"
	"time"

	"ai-docchat-be/pkg/pipeline"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type nopLogger struct{}

func (nopLogger) Debug(module, message string, details map[string]interface{}) {}
func (nopLogger) Info(module, message string, details map[string]interface{})  {}
func (nopLogger) Warn(module, message string, details map[string]interface{})  {}
func (nopLogger) Error(module, message string, details map[string]interface{}) {}
func (nopLogger) Sync() error                                                  { return nil }

func TestHubDropsSlowWatcherWithoutPanicking(t *testing.T) {
	hub := NewHub(nil, nopLogger{})
	go hub.Run()

	conversationId := uuid.New()
	client := &Client{
		Hub:            hub,
		ConversationID: conversationId,
		Send:           make(chan []byte),
	}
	hub.register <- client

	assert.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		return len(hub.clients[conversationId]) == 1
	}, time.Second, 5*time.Millisecond)

	// Nothing drains client.Send, so delivery hits the full-buffer path and
	// the hub must tear the watcher down exactly once.
	hub.Publish(conversationId, pipeline.Event{Type: pipeline.EventToken, Data: pipeline.TokenPayload{Token: "hi"}})

	assert.Eventually(t, func() bool {
		hub.mu.RLock()
		defer hub.mu.RUnlock()
		_, ok := hub.clients[conversationId]
		return !ok
	}, time.Second, 5*time.Millisecond)

	_, open := <-client.Send
	assert.False(t, open, "hub should have closed the dropped watcher's channel")

	// A later event for the same conversation is a no-op, not a crash.
	hub.Publish(conversationId, pipeline.Event{Type: pipeline.EventToken, Data: pipeline.TokenPayload{Token: "again"}})
}
