package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/railrunner/internal/auth"
	"github.com/nerrad567/railrunner/internal/automation"
	"github.com/nerrad567/railrunner/internal/engine"
	"github.com/nerrad567/railrunner/internal/infrastructure/config"
	"github.com/nerrad567/railrunner/internal/infrastructure/logging"
)

// WebSocket message types.
const (
	WSTypeSubscribe   = "subscribe"
	WSTypeUnsubscribe = "unsubscribe"
	WSTypePing        = "ping"
	WSTypePong        = "pong"
	WSTypeEvent       = "event"
	WSTypeResponse    = "response"
	WSTypeError       = "error"
)

// EventSnapshot is the event name of the state sent when a client
// subscribes to a channel.
const EventSnapshot = "snapshot"

const (
	// wsSendBufferSize is the per-client outbound message buffer size.
	wsSendBufferSize = 256

	// wsSnapshotTimeout bounds the engine call made for a snapshot.
	wsSnapshotTimeout = 2 * time.Second
)

// channelPermissions names the channels a client may subscribe to and
// what each one requires.
var channelPermissions = map[string]auth.Permission{
	automation.ChannelVehicles: auth.PermAutomationRead,
	engine.ChannelTriggers:     auth.PermTriggerRead,
}

// WSMessage represents a message sent to/from a WebSocket client.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// WSSubscribePayload is the payload for subscribe/unsubscribe messages.
type WSSubscribePayload struct {
	Channels []string `json:"channels"`
}

// snapshotFunc returns the current state of a channel.
type snapshotFunc func(ctx context.Context, channel string) (any, error)

// Hub tracks connected clients and fans engine events out to them.
// It satisfies automation.WSHub.
type Hub struct {
	cfg     config.WebSocketConfig
	logger  *logging.Logger
	clients map[*WSClient]struct{}
	mu      sync.RWMutex
}

// WSClient is one connected dashboard or tool.
type WSClient struct {
	hub           *Hub
	conn          *websocket.Conn
	send          chan []byte
	subscriptions map[string]struct{}
	mu            sync.RWMutex
	subject       string
	role          auth.Role
	snapshot      snapshotFunc
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// NewHub creates a new WebSocket hub.
func NewHub(cfg config.WebSocketConfig, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:     cfg,
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// Run blocks until the context is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// Register adds a client to the hub.
func (h *Hub) Register(client *WSClient) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("websocket client connected", "subject", client.subject, "role", client.role, "clients", n)
}

// Unregister removes a client from the hub. Only the call that removes
// the client closes its send channel, so repeated calls are safe.
func (h *Hub) Unregister(client *WSClient) {
	h.mu.Lock()
	_, existed := h.clients[client]
	delete(h.clients, client)
	n := len(h.clients)
	h.mu.Unlock()

	if existed {
		close(client.send)
		h.logger.Debug("websocket client disconnected", "subject", client.subject, "clients", n)
	}
}

// Broadcast sends an engine event to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload any) {
	data, err := encodeEvent(channel, payload)
	if err != nil {
		h.logger.Error("failed to marshal broadcast message", "channel", channel, "error", err)
		return
	}

	h.mu.RLock()
	recipients := make([]*WSClient, 0, len(h.clients))
	for client := range h.clients {
		if client.isSubscribed(channel) {
			recipients = append(recipients, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range recipients {
		client.trySend(data)
	}
	if len(recipients) > 0 {
		h.logger.Debug("broadcast sent", "channel", channel, "recipients", len(recipients))
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// closeAll disconnects every client so the pumps exit.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		if client.conn != nil {
			client.conn.Close()
		}
		delete(h.clients, client)
	}
}

func encodeEvent(channel string, payload any) ([]byte, error) {
	return json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: channel,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
}

// handleWebSocket upgrades an authenticated request to a WebSocket
// connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims == nil {
		writeUnauthorized(w, "missing access token")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
		subject:       claims.Subject,
		role:          claims.Role,
		snapshot:      s.channelSnapshot,
	}
	s.hub.Register(client)

	go client.writePump(s.wsCfg)
	go client.readPump(s.wsCfg)
}

// channelSnapshot reads the current state of a channel from the engine.
func (s *Server) channelSnapshot(ctx context.Context, channel string) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, wsSnapshotTimeout)
	defer cancel()

	var payload map[string]any
	err := s.call(ctx, func() error {
		switch channel {
		case automation.ChannelVehicles:
			payload = map[string]any{"event": EventSnapshot, "vehicles": s.engine.Vehicles()}
		case engine.ChannelTriggers:
			list := s.engine.Triggers()
			out := make([]triggerResponse, 0, len(list))
			for _, t := range list {
				out = append(out, newTriggerResponse(t))
			}
			payload = map[string]any{"event": EventSnapshot, "map_id": s.engine.MapID(), "triggers": out}
		default:
			return fmt.Errorf("unknown channel %q", channel)
		}
		return nil
	})
	return payload, err
}

// keepalive returns the ping period and how long to wait for a pong.
func keepalive(cfg config.WebSocketConfig) (ping, pongWait time.Duration) {
	return time.Duration(cfg.PingInterval) * time.Second, time.Duration(cfg.PongTimeout) * time.Second
}

// readPump reads client messages until the connection fails.
func (c *WSClient) readPump(cfg config.WebSocketConfig) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	ping, pongWait := keepalive(cfg)
	extend := func() error { return c.conn.SetReadDeadline(time.Now().Add(ping + pongWait)) }

	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "subject", c.subject, "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "subject", c.subject, "error", err)
			}
			return
		}
		_ = extend()
		c.handleMessage(message)
	}
}

// writePump drains the send queue and keeps the connection alive.
func (c *WSClient) writePump(cfg config.WebSocketConfig) {
	ping, pongWait := keepalive(cfg)
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	write := func(messageType int, data []byte) error {
		_ = c.conn.SetWriteDeadline(time.Now().Add(pongWait))
		return c.conn.WriteMessage(messageType, data)
	}

	for {
		select {
		case message, ok := <-c.send:
			if !ok {
				_ = write(websocket.CloseMessage, nil)
				return
			}
			if err := write(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			if err := write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes an incoming WebSocket message.
func (c *WSClient) handleMessage(data []byte) {
	var msg WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("", "invalid JSON message")
		return
	}

	switch msg.Type {
	case WSTypeSubscribe:
		c.subscribe(msg)
	case WSTypeUnsubscribe:
		c.unsubscribe(msg)
	case WSTypePing:
		c.sendResponse(msg.ID, WSTypePong, nil)
	default:
		c.sendError(msg.ID, "unknown message type: "+msg.Type)
	}
}

// channelsOf decodes the channel list of a subscribe or unsubscribe message.
func channelsOf(msg WSMessage) ([]string, error) {
	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return nil, err
	}
	var sub WSSubscribePayload
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, err
	}
	return sub.Channels, nil
}

// subscribe adds channels after checking each is known and permitted.
// Either every channel is added or none is. The current state of each
// newly added channel is sent ahead of the response.
func (c *WSClient) subscribe(msg WSMessage) {
	channels, err := channelsOf(msg)
	if err != nil {
		c.sendError(msg.ID, "invalid subscribe payload")
		return
	}
	for _, ch := range channels {
		perm, known := channelPermissions[ch]
		if !known {
			c.sendError(msg.ID, "unknown channel: "+ch)
			return
		}
		if !auth.HasPermission(c.role, perm) {
			c.sendError(msg.ID, "not permitted: "+ch)
			return
		}
	}

	var added []string
	c.mu.Lock()
	for _, ch := range channels {
		if _, ok := c.subscriptions[ch]; !ok {
			c.subscriptions[ch] = struct{}{}
			added = append(added, ch)
		}
	}
	c.mu.Unlock()
	sort.Strings(added)

	for _, ch := range added {
		c.sendSnapshot(ch)
	}
	c.hub.logger.Info("websocket client subscribed", "subject", c.subject, "channels", channels)
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"subscribed": channels})
}

func (c *WSClient) unsubscribe(msg WSMessage) {
	channels, err := channelsOf(msg)
	if err != nil {
		c.sendError(msg.ID, "invalid unsubscribe payload")
		return
	}
	c.mu.Lock()
	for _, ch := range channels {
		delete(c.subscriptions, ch)
	}
	c.mu.Unlock()
	c.sendResponse(msg.ID, WSTypeResponse, map[string]any{"unsubscribed": channels})
}

func (c *WSClient) sendSnapshot(channel string) {
	if c.snapshot == nil {
		return
	}
	payload, err := c.snapshot(context.Background(), channel)
	if err != nil {
		c.hub.logger.Warn("websocket snapshot failed", "channel", channel, "error", err)
		return
	}
	data, err := encodeEvent(channel, payload)
	if err != nil {
		return
	}
	c.trySend(data)
}

// trySend queues data without blocking. A full buffer drops the message
// and a closed channel is ignored.
func (c *WSClient) trySend(data []byte) {
	defer func() {
		recover() //nolint:errcheck // Absorb send-on-closed-channel panic
	}()

	select {
	case c.send <- data:
	default:
	}
}

func (c *WSClient) isSubscribed(channel string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.subscriptions[channel]
	return ok
}

func (c *WSClient) sendResponse(id, msgType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		return
	}
	c.trySend(data)
}

func (c *WSClient) sendError(id, message string) {
	c.sendResponse(id, WSTypeError, map[string]string{"message": message})
}
