package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"nhooyr.io/websocket"

	"github.com/aerius-app/aerius/internal/auth"
)

const writeTimeout = 10 * time.Second

// Message represents a WebSocket message
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// TeamResolver returns the team a user currently belongs to, or "" when the
// user has none.
type TeamResolver func(ctx context.Context, userID string) (string, error)

// Client represents a WebSocket client
type Client struct {
	ID     string
	UserID string
	TeamID string
	Conn   *websocket.Conn
	Hub    *Hub
	Send   chan []byte
}

type envelope struct {
	teamID string
	data   []byte
}

// Hub maintains active clients and routes each team's events to that team's
// members only.
type Hub struct {
	clients        map[*Client]bool
	broadcast      chan envelope
	register       chan *Client
	unregister     chan *Client
	done           chan struct{}
	mu             sync.RWMutex
	issuer         *auth.Issuer
	resolveTeam    TeamResolver
	allowedOrigins []string
}

// NewHub creates a new Hub
func NewHub(issuer *auth.Issuer, resolveTeam TeamResolver, allowedOrigins []string) *Hub {
	return &Hub{
		clients:        make(map[*Client]bool),
		broadcast:      make(chan envelope, 256),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
		issuer:         issuer,
		resolveTeam:    resolveTeam,
		allowedOrigins: allowedOrigins,
	}
}

// Run routes messages until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.WithFields(log.Fields{"user_id": client.UserID, "team_id": client.TeamID}).Debug("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
				log.WithField("user_id", client.UserID).Debug("WebSocket client disconnected")
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if client.TeamID != msg.teamID {
					continue
				}
				select {
				case client.Send <- msg.data:
				default:
					// Slow reader.
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DropMember closes userID's connections subscribed to teamID, or all of the
// user's connections when teamID is empty. Clients reconnect to pick up their
// current team.
func (h *Hub) DropMember(teamID, userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		if client.UserID != userID || (teamID != "" && client.TeamID != teamID) {
			continue
		}
		delete(h.clients, client)
		close(client.Send)
		log.WithFields(log.Fields{"user_id": userID, "team_id": client.TeamID}).Debug("WebSocket client dropped")
	}
}

// PublishTeam queues an event for the members of teamID. It never blocks; if
// the queue is full the event is dropped.
func (h *Hub) PublishTeam(teamID, msgType string, payload interface{}) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		log.WithError(err).Error("WebSocket: failed to encode payload")
		return
	}

	msgJSON, err := json.Marshal(Message{Type: msgType, Payload: payloadJSON})
	if err != nil {
		log.WithError(err).Error("WebSocket: failed to encode message")
		return
	}

	select {
	case h.broadcast <- envelope{teamID: teamID, data: msgJSON}:
	default:
		log.WithFields(log.Fields{"team_id": teamID, "type": msgType}).Warn("WebSocket: broadcast queue full, dropping event")
	}
}

// HandleWebSocket handles WebSocket connections
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = auth.TokenFromRequest(r)
	}

	userID, err := h.issuer.Parse(token)
	if err != nil {
		log.WithField("remote_addr", r.RemoteAddr).Info("WebSocket connection rejected: no valid authentication")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	teamID, err := h.resolveTeam(r.Context(), userID)
	if err != nil {
		log.WithError(err).Error("WebSocket: failed to resolve team")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if teamID == "" {
		http.Error(w, "Join a team first", http.StatusForbidden)
		return
	}

	// Use configured allowed origins (same as CORS)
	allowedOrigins := h.allowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"localhost:3000"}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: allowedOrigins,
	})
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := &Client{
		ID:     "user:" + userID,
		UserID: userID,
		TeamID: teamID,
		Conn:   conn,
		Hub:    h,
		Send:   make(chan []byte, 256),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go client.writePump()
	go client.readPump()
}

func normalClosure(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway, websocket.StatusNoStatusRcvd:
		return true
	}
	return false
}

// readPump reads messages from the WebSocket connection
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		c.Conn.Close(websocket.StatusNormalClosure, "")
	}()

	ctx := context.Background()
	for {
		_, message, err := c.Conn.Read(ctx)
		if err != nil {
			if !normalClosure(err) {
				log.WithError(err).Debug("WebSocket unexpected read error")
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(message, &msg); err != nil {
			log.WithError(err).Debug("Failed to parse WebSocket message")
			continue
		}

		c.handleMessage(msg)
	}
}

// writePump writes messages to the WebSocket connection
func (c *Client) writePump() {
	for message := range c.Send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.Conn.Write(ctx, websocket.MessageText, message)
		cancel()
		if err != nil {
			if !normalClosure(err) {
				log.WithError(err).Debug("WebSocket unexpected write error")
			}
			return
		}
	}
	// Dropped by the hub.
	c.Conn.Close(websocket.StatusPolicyViolation, "connection closed")
}

// handleMessage handles incoming WebSocket messages
func (c *Client) handleMessage(msg Message) {
	switch msg.Type {
	case "ping":
		response, _ := json.Marshal(Message{
			Type:    "pong",
			Payload: json.RawMessage(`{}`),
		})
		// Written directly; Send may already be closed by the hub.
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		c.Conn.Write(ctx, websocket.MessageText, response)
	default:
		log.WithField("type", msg.Type).Debug("Unknown WebSocket message type")
	}
}
