package websocket

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"ai-docchat-be/internal/pkg/logger"
	"ai-docchat-be/pkg/pipeline"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisChannel carries stream events between instances so a watcher
// connected to one node still sees runs executing on another.
const redisChannel = "stream_events"

// Hub mirrors pipeline event streams to websocket watchers. Clients
// subscribe per conversation; every event of a run in that conversation is
// fanned out to them, locally and via Redis across instances.
type Hub struct {
	// Registered watchers: ConversationID -> clients (multi-tab)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client

	mu sync.RWMutex

	// Redis connection for cross-instance fan-out, may be nil
	rdb *redis.Client

	// instanceId lets the subscriber skip messages this instance published,
	// since local delivery already happened.
	instanceId string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceId: uuid.NewString(),
		logger:     log,
	}
}

func (h *Hub) Run() {
	if h.rdb != nil {
		go h.subscribeToRedis()
	}

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ConversationID] = append(h.clients[client.ConversationID], client)
			h.mu.Unlock()
			h.logger.Info("Hub", "Watcher registered", map[string]interface{}{"conversation_id": client.ConversationID})

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.ConversationID]; ok {
				for i, c := range clients {
					if c == client {
						h.clients[client.ConversationID] = append(clients[:i], clients[i+1:]...)
						close(client.Send)
						break
					}
				}
				if len(h.clients[client.ConversationID]) == 0 {
					delete(h.clients, client.ConversationID)
					h.logger.Info("Hub", "Conversation has no watchers left", map[string]interface{}{"conversation_id": client.ConversationID})
				}
			}
			h.mu.Unlock()
		}
	}
}

// Publish mirrors one pipeline event to every watcher of the conversation.
func (h *Hub) Publish(conversationId uuid.UUID, event pipeline.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Hub", "Failed to serialize event", map[string]interface{}{"error": err.Error()})
		return
	}

	h.deliverLocal(conversationId, data)

	if h.rdb != nil {
		payload, _ := json.Marshal(map[string]interface{}{
			"conversation_id": conversationId.String(),
			"origin":          h.instanceId,
			"message":         json.RawMessage(data),
		})
		h.rdb.Publish(context.Background(), redisChannel, payload)
	}
}

func (h *Hub) deliverLocal(conversationId uuid.UUID, data []byte) {
	h.mu.RLock()
	clients, ok := h.clients[conversationId]
	h.mu.RUnlock()
	if !ok {
		return
	}

	for _, client := range clients {
		select {
		case client.Send <- data:
		default:
			h.logger.Warn("Hub", "Watcher buffer full, dropping connection", map[string]interface{}{"conversation_id": conversationId})
			// The unregister path owns closing Send.
			h.unregister <- client
		}
	}
}

func (h *Hub) subscribeToRedis() {
	ctx := context.Background()
	pubsub := h.rdb.Subscribe(ctx, redisChannel)
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		var payload struct {
			ConversationID string          `json:"conversation_id"`
			Origin         string          `json:"origin"`
			Message        json.RawMessage `json:"message"`
		}
		if err := json.Unmarshal([]byte(msg.Payload), &payload); err != nil {
			log.Printf("Redis msg parse error: %v", err)
			continue
		}

		if payload.Origin == h.instanceId {
			continue
		}

		cid, err := uuid.Parse(payload.ConversationID)
		if err != nil {
			continue
		}

		h.deliverLocal(cid, payload.Message)
	}
}
