package websocket

import (
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// ServeWs attaches a watcher connection to the hub for one conversation.
func ServeWs(hub *Hub, c *websocket.Conn, conversationID, userID uuid.UUID) {
	client := &Client{
		Hub:            hub,
		Conn:           c,
		ConversationID: conversationID,
		UserID:         userID,
		Send:           make(chan []byte, 256),
	}
	client.Hub.register <- client

	go client.writePump()
	client.readPump() // runs in the handler goroutine
}
