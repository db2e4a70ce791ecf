package websocket

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/iotsentry/iotsentry/internal/auth"
	"github.com/iotsentry/iotsentry/internal/types"
)

// Hub maintains active WebSocket clients and broadcasts risk/registry
// events to connected dashboards.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Inbound messages to broadcast
	broadcast chan Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu sync.RWMutex

	logger *zap.Logger

	authService *auth.Service
}

// NewHub creates a new Hub instance
func NewHub(logger *zap.Logger, authService *auth.Service) *Hub {
	return &Hub{
		broadcast:   make(chan Message, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		clients:     make(map[*Client]bool),
		logger:      logger,
		authService: authService,
	}
}

// Run starts the hub's main event loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket Hub started")
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Info("WebSocket client registered",
				zap.String("remote_addr", client.conn.RemoteAddr().String()),
				zap.Int("total_clients", len(h.clients)))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.logger.Info("WebSocket client unregistered",
					zap.String("remote_addr", client.conn.RemoteAddr().String()),
					zap.Int("total_clients", len(h.clients)))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			data, err := json.Marshal(message)
			if err != nil {
				h.logger.Error("Failed to marshal broadcast message",
					zap.Error(err))
				h.mu.Unlock()
				continue
			}

			for client := range h.clients {
				select {
				case client.send <- data:
					// Message sent successfully
				default:
					// Client send channel full - unregister slow/dead client
					close(client.send)
					delete(h.clients, client)
					h.logger.Warn("Client send buffer full, unregistering",
						zap.String("remote_addr", client.conn.RemoteAddr().String()))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast sends a message to all connected clients
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- msg:
		// Message queued for broadcast
	default:
		h.logger.Warn("Hub broadcast channel full, message dropped",
			zap.String("message_type", string(msg.Type)))
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// The hub satisfies devices.Notifier so the registry can push events
// straight to connected dashboards.

func (h *Hub) DeviceRegistered(device types.Device) {
	h.Broadcast(NewMessage(MessageTypeDeviceRegistered, DeviceEventData{Device: device}))
}

func (h *Hub) DeviceUpdated(device types.Device) {
	h.Broadcast(NewMessage(MessageTypeDeviceUpdated, DeviceEventData{Device: device}))
}

func (h *Hub) DeviceDeleted(id string) {
	h.Broadcast(NewMessage(MessageTypeDeviceDeleted, DeviceDeletedData{DeviceID: id}))
}

func (h *Hub) RiskScoreUpdated(device types.Device, previous int) {
	h.Broadcast(NewMessage(MessageTypeRiskScoreUpdated, RiskScoreData{
		Device:        device,
		PreviousScore: previous,
	}))
}
