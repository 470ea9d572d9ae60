package collab

import (
	"encoding/json"
	"sync"
	"time"

	"resonate/logger"

	"github.com/gorilla/websocket"
)

// EventType names a collaboration event.
type EventType string

const (
	EventItemAdded          EventType = "item_added"
	EventItemRemoved        EventType = "item_removed"
	EventReordered          EventType = "reordered"
	EventRenamed            EventType = "renamed"
	EventCollaboratorChange EventType = "collaborator_change"
	EventDeleted            EventType = "deleted"
)

// Event is a playlist mutation broadcast to everyone with the playlist open.
type Event struct {
	Type       EventType       `json:"type"`
	PlaylistID string          `json:"playlistId"`
	UserID     int64           `json:"userId,omitempty"`
	Data       json.RawMessage `json:"data,omitempty"`
	Timestamp  int64           `json:"timestamp"`
}

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// Client is one websocket subscriber to a playlist.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	playlistID string
	userID     int64
	send       chan []byte
}

// Hub fans playlist events out to subscribed websocket clients. Clients are
// grouped by playlist id; a slow client is dropped rather than allowed to
// block the broadcast.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool // playlistID -> clients
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[string]map[*Client]bool)}
}

// Subscribe registers conn for events on playlistID and starts its pumps.
func (h *Hub) Subscribe(conn *websocket.Conn, playlistID string, userID int64) *Client {
	client := &Client{
		hub:        h,
		conn:       conn,
		playlistID: playlistID,
		userID:     userID,
		send:       make(chan []byte, sendBufferSize),
	}

	h.mu.Lock()
	if h.clients[playlistID] == nil {
		h.clients[playlistID] = make(map[*Client]bool)
	}
	h.clients[playlistID][client] = true
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()

	logger.Debug("collab client subscribed",
		logger.String("playlistId", playlistID),
		logger.Int64("userId", userID))
	return client
}

// Broadcast sends the event to every client subscribed to its playlist.
func (h *Hub) Broadcast(event Event) {
	event.Timestamp = time.Now().Unix()
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to marshal collab event", logger.ErrorField(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[event.PlaylistID] {
		select {
		case client.send <- payload:
		default:
			// Buffer full: the client is too slow, cut it loose.
			go h.remove(client)
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	if clients, ok := h.clients[client.playlistID]; ok {
		if clients[client] {
			delete(clients, client)
			close(client.send)
		}
		if len(clients) == 0 {
			delete(h.clients, client.playlistID)
		}
	}
	h.mu.Unlock()
}

// readPump discards inbound frames; the socket is broadcast-only. It exists
// to notice disconnects and answer pings.
func (c *Client) readPump() {
	defer func() {
		c.hub.remove(c)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	// Hub closed the channel; tell the client before hanging up.
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
}
