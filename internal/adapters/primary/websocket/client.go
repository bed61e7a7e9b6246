package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/lorrc/ticket-triage/internal/core/domain"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	// sendBuffer is the per-client outbound queue length.
	sendBuffer = 64
)

// ClientConfig holds keep-alive timings. PingInterval must be less than
// PongWait.
type ClientConfig struct {
	PingInterval time.Duration
	PongWait     time.Duration
}

// DefaultClientConfig returns the standard keep-alive timings.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval: 54 * time.Second,
		PongWait:     60 * time.Second,
	}
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	ID uuid.UUID

	hub  *Hub
	conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan domain.Event

	cfg ClientConfig

	// mu guards closed so nothing sends on a closed Send channel
	mu     sync.Mutex
	closed bool

	logger *slog.Logger
}

// NewClient creates a new WebSocket client
func NewClient(hub *Hub, conn *websocket.Conn, cfg ClientConfig, logger *slog.Logger) *Client {
	if cfg.PongWait <= 0 || cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg = DefaultClientConfig()
	}

	id := uuid.New()
	return &Client{
		ID:     id,
		hub:    hub,
		conn:   conn,
		Send:   make(chan domain.Event, sendBuffer),
		cfg:    cfg,
		logger: logger.With("client_id", id.String()),
	}
}

// CloseSend safely closes the Send channel exactly once
func (c *Client) CloseSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// trySend queues an event without blocking. It reports false when the
// buffer is full or the channel is closed.
func (c *Client) trySend(event domain.Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.Send <- event:
		return true
	default:
		return false
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
// This method runs in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait)); err != nil {
		c.logger.Error("failed to set read deadline", "error", err)
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		c.handleIncomingMessage(message)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
// This method runs in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.Send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline", "error", err)
				return
			}

			if !ok {
				// The hub closed the channel. Send close message.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					c.logger.Debug("failed to send close message", "error", err)
				}
				return
			}

			if err := c.conn.WriteJSON(event); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error("failed to set write deadline for ping", "error", err)
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug("failed to send ping", "error", err)
				return
			}
		}
	}
}

// clientMessage is the structure for messages sent from the client.
type clientMessage struct {
	Type string `json:"type"`
}

// handleIncomingMessage answers client keep-alives. The feed is read-only,
// so any other message is ignored.
func (c *Client) handleIncomingMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.logger.Debug("failed to unmarshal client message", "error", err)
		return
	}

	switch msg.Type {
	case "PING":
		c.trySend(domain.Event{Type: domain.EventPong})
	default:
		c.logger.Debug("received unknown message type", "type", msg.Type)
	}
}
