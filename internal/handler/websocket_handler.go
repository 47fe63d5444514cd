// internal/handler/websocket_handler.go
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"pos-print-bridge/internal/config"
	"pos-print-bridge/internal/event"
	"pos-print-bridge/internal/utils"
)

// forwardedEvents are pushed to every connected page
var forwardedEvents = []string{
	event.TypeAlert,
	event.TypeConnectionChanged,
	event.TypePrintResult,
	event.TypeDeviceDiscovered,
}

// WebSocketHandler is the page side of the bridge
type WebSocketHandler struct {
	upgrader    websocket.Upgrader
	connections *ConnectionManager
	bridge      *BridgeHandler
	bus         *event.EventBus
	logger      *utils.ServiceLogger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(bridge *BridgeHandler, bus *event.EventBus, security *config.SecurityConfig, logger *zap.Logger) *WebSocketHandler {
	if logger == nil {
		logger = zap.NewNop()
	}

	var allowed []string
	if security != nil {
		allowed = security.AllowedOrigins
	}

	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return originAllowed(r.Header.Get("Origin"), allowed)
			},
		},
		connections: NewConnectionManager(),
		bridge:      bridge,
		bus:         bus,
		logger:      utils.NewServiceLogger(logger, "websocket-handler"),
	}
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/bridge", h.HandleBridgeConnection)
}

// HandleBridgeConnection upgrades a page connection
func (h *WebSocketHandler) HandleBridgeConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", zap.Error(err))
		return
	}

	client := &Client{
		ID:          uuid.New().String(),
		Connection:  conn,
		Send:        make(chan []byte, 256),
		UserAgent:   c.Request.UserAgent(),
		RemoteAddr:  c.Request.RemoteAddr,
		ConnectedAt: time.Now(),
	}

	h.connections.Register(client)
	h.logger.Info("Bridge client connected",
		zap.String("client_id", client.ID),
		zap.String("remote_addr", client.RemoteAddr),
	)

	go h.handleClientRead(client)
	go h.handleClientWrite(client)
}

// Forward pushes bus events to connected pages until ctx is done
func (h *WebSocketHandler) Forward(ctx context.Context) {
	if h.bus == nil {
		return
	}

	var wg sync.WaitGroup
	for _, topic := range forwardedEvents {
		events := h.bus.Subscribe(topic)
		wg.Add(1)
		go func(topic string, events <-chan event.Event) {
			defer wg.Done()
			defer h.bus.Unsubscribe(topic, events)

			for {
				select {
				case <-ctx.Done():
					return
				case ev, ok := <-events:
					if !ok {
						return
					}
					h.Broadcast(ev)
				}
			}
		}(topic, events)
	}
	wg.Wait()
}

// Broadcast sends an event to every client that wants it
func (h *WebSocketHandler) Broadcast(ev event.Event) {
	messageBytes, err := json.Marshal(&WebSocketMessage{
		Type:      strings.ToLower(ev.Type),
		Data:      ev.Data,
		Timestamp: ev.Timestamp,
	})
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", zap.Error(err))
		return
	}

	h.connections.Each(func(client *Client) {
		if !client.Wants(ev.Type) {
			return
		}
		select {
		case client.Send <- messageBytes:
		default:
			h.logger.Warn("Client send channel full during broadcast",
				zap.String("client_id", client.ID),
			)
		}
	})
}

// handleClientRead reads page messages until the socket closes
func (h *WebSocketHandler) handleClientRead(client *Client) {
	defer func() {
		h.connections.Unregister(client)
		client.Connection.Close()
		h.logger.Info("Bridge client disconnected", zap.String("client_id", client.ID))
	}()

	client.Connection.SetReadLimit(maxBridgeBody)
	client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
	client.Connection.SetPongHandler(func(string) error {
		client.Connection.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, messageBytes, err := client.Connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket read error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
			}
			return
		}

		h.handleClientMessage(client, string(messageBytes))
	}
}

// handleClientWrite drains the send channel and keeps the socket alive
func (h *WebSocketHandler) handleClientWrite(client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		client.Connection.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				client.Connection.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := client.Connection.WriteMessage(websocket.TextMessage, message); err != nil {
				h.logger.Error("WebSocket write error",
					zap.Error(err),
					zap.String("client_id", client.ID),
				)
				return
			}

		case <-ticker.C:
			client.Connection.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := client.Connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleClientMessage routes control messages and hands everything else to the bridge
func (h *WebSocketHandler) handleClientMessage(client *Client, raw string) {
	var message WebSocketMessage
	if err := json.Unmarshal([]byte(raw), &message); err == nil {
		switch message.Type {
		case "ping":
			h.sendMessage(client, &WebSocketMessage{Type: "pong", Timestamp: time.Now()})
			return
		case "subscribe", "unsubscribe":
			h.handleSubscription(client, &message)
			return
		case "bridge":
			if text, ok := message.Data.(string); ok {
				raw = text
			}
		}
	}

	// printing may wait on the printer, keep reading meanwhile
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		reply := h.bridge.HandleMessage(ctx, raw)
		h.sendMessage(client, &WebSocketMessage{
			Type:      "bridge_reply",
			Data:      reply,
			Timestamp: time.Now(),
			RequestID: message.RequestID,
		})
	}()
}

func (h *WebSocketHandler) handleSubscription(client *Client, message *WebSocketMessage) {
	data, ok := message.Data.(map[string]interface{})
	if !ok {
		h.sendError(client, "invalid subscription data")
		return
	}
	topic, ok := data["topic"].(string)
	if !ok || topic == "" {
		h.sendError(client, "topic is required")
		return
	}
	topic = strings.ToUpper(topic)

	if message.Type == "unsubscribe" {
		client.unsubscribe(topic)
		return
	}

	client.subscribe(topic)
	h.sendMessage(client, &WebSocketMessage{
		Type:      "subscription_confirmed",
		Data:      map[string]interface{}{"topic": topic},
		Timestamp: time.Now(),
	})
}

func (h *WebSocketHandler) sendMessage(client *Client, message *WebSocketMessage) {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal WebSocket message", zap.Error(err))
		return
	}

	if !h.connections.Send(client, messageBytes) {
		h.logger.Warn("Client unavailable, dropping message",
			zap.String("client_id", client.ID),
		)
	}
}

func (h *WebSocketHandler) sendError(client *Client, errorMsg string) {
	h.sendMessage(client, &WebSocketMessage{
		Type:      "error",
		Data:      map[string]interface{}{"error": errorMsg},
		Timestamp: time.Now(),
	})
}

// GetConnectionStats returns connection statistics
func (h *WebSocketHandler) GetConnectionStats() *ConnectionStats {
	return h.connections.GetStats()
}

// originAllowed accepts any origin when no list is configured
func originAllowed(origin string, allowed []string) bool {
	if len(allowed) == 0 || origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}
