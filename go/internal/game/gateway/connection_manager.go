package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/burgerrush/go/internal/game/events"
	"github.com/rs/zerolog/log"
)

// Handler receives inbound client traffic
type Handler interface {
	Join(connectionID string)
	Dispatch(connectionID string, name events.Name, data json.RawMessage)
	Leave(connectionID string)
}

// ConnectionManager manages WebSocket connections for the game session
type ConnectionManager struct {
	connections map[string]*Connection
	mu          sync.RWMutex

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	config ConnectionConfig

	// All outbound traffic funnels through here so per-sender order is kept
	broadcastCh chan outboundMessage
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager
	handler Handler

	ConnectedAt time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	BroadcastBuffer int
	AllowedOrigins  []string // empty or "*" allows any origin
}

type outboundMessage struct {
	ConnectionID string // empty means every connection
	Event        events.Name
	Payload      any
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  64 * 1024, // field updates carry whole boards
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		BroadcastBuffer: 1000,
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig) *ConnectionManager {
	cm := &ConnectionManager{
		connections: make(map[string]*Connection),
		config:      config,
		broadcastCh: make(chan outboundMessage, config.BroadcastBuffer),
	}
	cm.upgrader = websocket.Upgrader{
		ReadBufferSize:  config.ReadBufferSize,
		WriteBufferSize: config.WriteBufferSize,
		CheckOrigin:     cm.checkOrigin,
	}
	return cm
}

func (cm *ConnectionManager) checkOrigin(r *http.Request) bool {
	origins := cm.config.AllowedOrigins
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(origins, origin)
}

// Start processes outbound messages until ctx is done
func (cm *ConnectionManager) Start(ctx context.Context) {
	log.Info().Msg("connection manager started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("connection manager shutting down")
			cm.closeAll()
			return
		case message := <-cm.broadcastCh:
			cm.handleBroadcast(message)
		}
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket and hands its traffic to handler
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, handler Handler) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		handler:     handler,
		ConnectedAt: time.Now(),
	}

	cm.registerConnection(connection)

	// Join runs before the read pump so the snapshot is queued ahead of any
	// reply to this client. Broadcasts from other clients may still interleave
	// with it; the snapshot is only ordered against this client's own traffic.
	handler.Join(connection.ID)

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

func (cm *ConnectionManager) registerConnection(conn *Connection) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.connections[conn.ID] = conn

	log.Debug().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection registered")
}

// unregisterConnection removes a connection and closes its send channel. It reports
// whether the connection was still registered.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, exists := cm.connections[conn.ID]; !exists {
		return false
	}
	delete(cm.connections, conn.ID)
	close(conn.Send)

	log.Info().
		Str("connection_id", conn.ID).
		Int("total_connections", len(cm.connections)).
		Msg("connection unregistered")
	return true
}

func (cm *ConnectionManager) closeAll() {
	cm.mu.RLock()
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.RUnlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// SendToAll queues an event for every connected client
func (cm *ConnectionManager) SendToAll(event events.Name, payload any) {
	cm.enqueue(outboundMessage{Event: event, Payload: payload})
}

// SendToCaller queues an event for a single client
func (cm *ConnectionManager) SendToCaller(connectionID string, event events.Name, payload any) {
	cm.enqueue(outboundMessage{ConnectionID: connectionID, Event: event, Payload: payload})
}

func (cm *ConnectionManager) enqueue(message outboundMessage) {
	select {
	case cm.broadcastCh <- message:
	default:
		log.Warn().
			Str("event", string(message.Event)).
			Str("connection_id", message.ConnectionID).
			Msg("broadcast channel full, dropping message")
	}
}

// encodeMessage builds the wire frame for an event
func encodeMessage(event events.Name, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(events.Message{Event: event, Data: data})
}

func (cm *ConnectionManager) handleBroadcast(message outboundMessage) {
	frame, err := encodeMessage(message.Event, message.Payload)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal event for broadcast")
		return
	}

	// Sends are non-blocking, so holding the read lock is cheap. It also keeps
	// unregisterConnection from closing a channel mid-send.
	var slow []*Connection
	delivered := 0

	cm.mu.RLock()
	if message.ConnectionID != "" {
		if conn, ok := cm.connections[message.ConnectionID]; ok {
			if trySend(conn, frame) {
				delivered++
			} else {
				slow = append(slow, conn)
			}
		}
	} else {
		for _, conn := range cm.connections {
			if trySend(conn, frame) {
				delivered++
			} else {
				slow = append(slow, conn)
			}
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
		conn.Conn.Close()
	}

	log.Debug().
		Str("event", string(message.Event)).
		Str("target", message.ConnectionID).
		Int("connections", delivered).
		Msg("event broadcasted")
}

func trySend(conn *Connection, frame []byte) bool {
	select {
	case conn.Send <- frame:
		return true
	default:
		return false
	}
}

// GetConnectionStats returns statistics about active connections
func (cm *ConnectionManager) GetConnectionStats() map[string]interface{} {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	return map[string]interface{}{
		"total_connections": len(cm.connections),
		"queued_messages":   len(cm.broadcastCh),
	}
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				c.Manager.unregisterConnection(c)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				c.Manager.unregisterConnection(c)
				return
			}
		}
	}
}

// readPump reads client frames and dispatches them until the connection drops
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
		c.handler.Leave(c.ID)
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.handleClientMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	}
}

// handleClientMessage decodes a frame and passes it to the handler.
// Frames that are not a valid envelope are dropped.
func (c *Connection) handleClientMessage(message []byte) {
	var msg events.Message
	if err := json.Unmarshal(message, &msg); err != nil || msg.Event == "" {
		log.Debug().
			Str("connection_id", c.ID).
			Bytes("message", message).
			Msg("dropping malformed client message")
		return
	}

	c.handler.Dispatch(c.ID, msg.Event, msg.Data)
}
