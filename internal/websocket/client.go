package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"portfoliograph/internal/config"
	"portfoliograph/internal/infrastructure"
	"portfoliograph/pkg/contracts/events"
)

const sendBufferSize = 256

// ClientConfig holds the keepalive timing of a client connection.
type ClientConfig struct {
	// Time allowed to write a message to the peer
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer
	PongWait time.Duration
	// Send pings to peer with this period. Must be less than PongWait
	PingPeriod time.Duration
	// Maximum message size allowed from peer
	MaxMessageSize int64
}

// DefaultClientConfig returns the standard keepalive timing.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
		MaxMessageSize: 512,
	}
}

// ClientConfigFrom derives client timing from the WebSocket configuration.
func ClientConfigFrom(cfg config.WebSocketConfig) ClientConfig {
	return ClientConfig{PongWait: cfg.PongWait, PingPeriod: cfg.PingPeriod}.withDefaults()
}

func (c ClientConfig) withDefaults() ClientConfig {
	d := DefaultClientConfig()
	if c.WriteWait <= 0 {
		c.WriteWait = d.WriteWait
	}
	if c.PongWait <= 0 {
		c.PongWait = d.PongWait
	}
	if c.PingPeriod <= 0 || c.PingPeriod >= c.PongWait {
		c.PingPeriod = (c.PongWait * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = d.MaxMessageSize
	}
	return c
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub  *Hub
	conn Connection

	// Buffered channel of outbound messages, closed by the hub
	send chan []byte

	// Replies to client requests; never closed
	control chan []byte

	id          string
	traceID     string
	remoteAddr  string
	connectedAt time.Time

	logger *slog.Logger
}

// NewClient creates a client for conn. traceID ties the connection to the
// request that opened it and may be empty.
func NewClient(hub *Hub, conn Connection, traceID string) *Client {
	id := uuid.New().String()
	logger := hub.baseLogger.With(
		slog.String("component", "websocket.client"),
		slog.String("client_id", id),
	)

	return &Client{
		hub:         hub,
		conn:        conn,
		send:        make(chan []byte, sendBufferSize),
		control:     make(chan []byte, 4),
		id:          id,
		traceID:     traceID,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		logger:      logger,
	}
}

// ID returns the client identifier.
func (c *Client) ID() string { return c.id }

func (c *Client) context() context.Context {
	ctx := context.Background()
	if c.traceID != "" {
		ctx = infrastructure.WithTraceID(ctx, c.traceID)
	}
	return ctx
}

type clientRequest struct {
	Type string `json:"type"`
}

// ReadPump reads client requests until the connection fails. Clients may
// send {"type":"ping"} and receive a pong event; anything else is ignored.
func (c *Client) ReadPump() {
	timing := c.hub.timing
	defer func() {
		c.logger.InfoContext(c.context(), "WebSocket client disconnected",
			slog.Duration("connection_duration", time.Since(c.connectedAt)))
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(timing.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(timing.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(timing.PongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(c.context(), "Unexpected WebSocket close error",
					slog.String("error", err.Error()))
			}
			return
		}

		var req clientRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.logger.DebugContext(c.context(), "Ignoring malformed client message")
			continue
		}
		switch req.Type {
		case "ping", "heartbeat":
			c.reply(events.NewMessage(events.MessageTypePong, c.traceID, nil))
		}
	}
}

func (c *Client) reply(msg events.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	select {
	case c.control <- data:
	default:
		c.hub.metrics.recordDropped(c.context(), "control_buffer_full")
	}
}

// WritePump writes queued messages and keepalive pings to the connection.
// It returns when the hub closes the send channel or a write fails.
func (c *Client) WritePump() {
	timing := c.hub.timing
	ticker := time.NewTicker(timing.PingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(messageType int, data []byte) bool {
		_ = c.conn.SetWriteDeadline(time.Now().Add(timing.WriteWait))
		if err := c.conn.WriteMessage(messageType, data); err != nil {
			c.logger.DebugContext(c.context(), "Error writing to WebSocket",
				slog.String("error", err.Error()))
			return false
		}
		return true
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				// The hub closed the channel
				write(websocket.CloseMessage, []byte{})
				return
			}
			if !write(websocket.TextMessage, message) {
				return
			}
		case message := <-c.control:
			if !write(websocket.TextMessage, message) {
				return
			}
		case <-ticker.C:
			if !write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}
