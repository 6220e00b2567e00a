package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"whatsapp-inbox/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin policy is enforced by CORS and the token
	},
}

// Client is one dashboard connection, bound to the profile that opened it.
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan []byte
}

type envelope struct {
	userID  string
	payload []byte
}

// Hub fans events out to the connections of the profile they belong to. Run
// owns the client set; everything else talks to it over channels.
type Hub struct {
	clients    map[string]map[*Client]bool
	broadcast  chan envelope
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan envelope, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[string]map[*Client]bool),
		done:       make(chan struct{}),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			for _, set := range h.clients {
				for client := range set {
					close(client.send)
				}
			}
			h.clients = make(map[string]map[*Client]bool)
			return
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]bool)
				h.clients[client.userID] = set
			}
			set[client] = true
			log.Debug().Str("user_id", client.userID).Msg("WebSocket client registered")
		case client := <-h.unregister:
			h.remove(client)
			log.Debug().Str("user_id", client.userID).Msg("WebSocket client unregistered")
		case env := <-h.broadcast:
			for client := range h.clients[env.userID] {
				select {
				case client.send <- env.payload:
				default:
					// Slow reader; drop it rather than stall everyone else.
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	set, ok := h.clients[client.userID]
	if !ok || !set[client] {
		return
	}
	delete(set, client)
	close(client.send)
	if len(set) == 0 {
		delete(h.clients, client.userID)
	}
}

type WSEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Publish queues an event for userID's connections. It never blocks; when the
// queue is full the event is dropped.
func (h *Hub) Publish(userID, eventType string, data interface{}) {
	payload, err := json.Marshal(WSEvent{Type: eventType, Data: data})
	if err != nil {
		log.Error().Err(err).Str("type", eventType).Msg("Error marshaling WS event")
		return
	}
	select {
	case h.broadcast <- envelope{userID: userID, payload: payload}:
	default:
		log.Warn().Str("user_id", userID).Str("type", eventType).Msg("WS broadcast queue full, event dropped")
	}
}

// MessageReceived pushes a new_message event.
func (h *Hub) MessageReceived(_ context.Context, contact *models.Contact, msg *models.Message) {
	h.Publish(msg.UserID, "new_message", fields{"message": msg, "contact": contact})
}

// MessageSent pushes the outbound row as a new_message event so other tabs
// of the same tenant see it without a reload.
func (h *Hub) MessageSent(_ context.Context, contact *models.Contact, msg *models.Message) {
	h.Publish(msg.UserID, "new_message", fields{"message": msg, "contact": contact})
}

// StatusUpdated pushes a message_status event.
func (h *Hub) StatusUpdated(_ context.Context, userID, providerID, status string, ts time.Time) {
	h.Publish(userID, "message_status", fields{
		"message_id": providerID,
		"status":     status,
		"timestamp":  ts,
	})
}

type fields = map[string]interface{}

// ServeWs upgrades the request and registers the connection for userID.
func (h *Hub) ServeWs(userID string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}
	client := &Client{hub: h, userID: userID, conn: conn, send: make(chan []byte, sendBuffer)}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()
	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		// Nothing is expected from the dashboard; reading keeps pongs flowing.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
