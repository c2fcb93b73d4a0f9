package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"portfoliograph/internal/infrastructure"
	"portfoliograph/pkg/contracts/events"
)

const broadcastQueueSize = 256

// StatusFunc reports the graph status announced to newly connected clients.
type StatusFunc func() events.ConnectionStatus

type outbound struct {
	msgType string
	data    []byte
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages for every client
	broadcast chan outbound

	// Register requests from the clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu         sync.RWMutex
	logger     *slog.Logger
	baseLogger *slog.Logger
	metrics    *Metrics
	status     StatusFunc
	timing     ClientConfig

	totalConnections int64
	messagesSent     int64
	droppedMessages  int64

	// Control
	quit     chan struct{}
	done     chan struct{}
	running  bool
	stopOnce sync.Once
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithHubMetrics sets the event stream instruments.
func WithHubMetrics(m *Metrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithStatus sets the status announced in the connection message.
func WithStatus(fn StatusFunc) HubOption {
	return func(h *Hub) { h.status = fn }
}

// WithClientConfig sets the keepalive timing of clients.
func WithClientConfig(cfg ClientConfig) HubOption {
	return func(h *Hub) { h.timing = cfg.withDefaults() }
}

// NewHub creates a new Hub instance with dependency injection
func NewHub(logger *slog.Logger, opts ...HubOption) *Hub {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}

	hub := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.With(slog.String("component", "websocket.hub")),
		baseLogger: logger,
		timing:     DefaultClientConfig(),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(hub)
	}
	return hub
}

// Start starts the hub's main loop
func (h *Hub) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	go h.run()
}

func (h *Hub) run() {
	defer close(h.done)
	for {
		select {
		case <-h.quit:
			h.logger.Info("Hub shutting down")
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client, "closed")

		case msg := <-h.broadcast:
			h.fanOut(msg)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	count := len(h.clients)
	h.totalConnections++
	h.mu.Unlock()

	ctx := client.context()
	h.metrics.recordConnect(ctx)
	h.logger.InfoContext(ctx, "Client registered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("remote_addr", client.remoteAddr))

	status := events.ConnectionStatus{}
	if h.status != nil {
		status = h.status()
	}
	status.ClientID = client.id

	data, err := json.Marshal(events.NewMessage(events.MessageTypeConnection, client.traceID, status))
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling connection message", slog.String("error", err.Error()))
		return
	}
	select {
	case client.send <- data:
	default:
		h.logger.WarnContext(ctx, "Failed to send connection message - client buffer full",
			slog.String("client_id", client.id))
	}
}

// removeClient must only run on the hub loop.
func (h *Hub) removeClient(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	close(client.send)
	count := len(h.clients)
	h.mu.Unlock()

	ctx := client.context()
	duration := time.Since(client.connectedAt)
	h.metrics.recordDisconnect(ctx, duration)
	h.logger.InfoContext(ctx, "Client unregistered",
		slog.Int("total_clients", count),
		slog.String("client_id", client.id),
		slog.String("reason", reason),
		slog.Duration("connection_duration", duration))
}

func (h *Hub) fanOut(msg outbound) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range clients {
		select {
		case client.send <- msg.data:
			delivered++
		default:
			h.metrics.recordDropped(client.context(), "client_buffer_full")
			h.logger.WarnContext(client.context(), "Client send buffer full, disconnecting",
				slog.String("client_id", client.id))
			h.removeClient(client, "slow consumer")
		}
	}

	h.mu.Lock()
	h.messagesSent += int64(delivered)
	h.mu.Unlock()
	h.metrics.recordSent(context.Background(), msg.msgType, delivered)

	h.logger.Debug("Broadcast delivered",
		slog.String("type", msg.msgType),
		slog.Int("client_count", len(clients)),
		slog.Int("delivered", delivered),
		slog.Int("message_size", len(msg.data)))
}

// Broadcast queues msg for every connected client. It never blocks; when
// the queue is full the message is dropped.
func (h *Hub) Broadcast(msg events.Message) {
	ctx := context.Background()
	if msg.TraceID != "" {
		ctx = infrastructure.WithTraceID(ctx, msg.TraceID)
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.ErrorContext(ctx, "Error marshaling message",
			slog.String("error", err.Error()),
			slog.String("message_type", string(msg.Type)))
		return
	}

	select {
	case h.broadcast <- outbound{msgType: string(msg.Type), data: data}:
	case <-h.quit:
	default:
		h.mu.Lock()
		h.droppedMessages++
		h.mu.Unlock()
		h.metrics.recordDropped(ctx, "queue_full")
		h.logger.WarnContext(ctx, "Broadcast queue full, dropping message",
			slog.String("message_type", string(msg.Type)))
	}
}

// Register adds a client to the hub. It returns false once the hub has
// stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.quit:
		return false
	}
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Stats returns current hub counters
func (h *Hub) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return map[string]interface{}{
		"active_clients":    len(h.clients),
		"total_connections": h.totalConnections,
		"messages_sent":     h.messagesSent,
		"dropped_messages":  h.droppedMessages,
	}
}

// Stop stops the hub loop and closes every client.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)

		h.mu.RLock()
		running := h.running
		h.mu.RUnlock()
		if running {
			<-h.done
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		for client := range h.clients {
			close(client.send)
			delete(h.clients, client)
		}
	})
}
