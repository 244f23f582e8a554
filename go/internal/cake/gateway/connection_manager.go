package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mcdev12/birthdaycake/go/internal/cake/protocol"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

var (
	// ErrUnknownConnection is returned by Send for ids that are not connected.
	ErrUnknownConnection = errors.New("unknown connection")
	// ErrClosed is returned when upgrading after Close.
	ErrClosed = errors.New("connection manager closed")
)

// Handler receives transport events. Calls for a single connection are
// serialised; calls for different connections may run concurrently.
type Handler interface {
	OnConnect(id string)
	OnDisconnect(id string)
	OnMessage(id string, msg protocol.ClientMessage)
}

// ConnectionManager manages the WebSocket connections of cake clients
type ConnectionManager struct {
	connections map[string]*Connection
	closed      bool
	mu          sync.RWMutex

	upgrader websocket.Upgrader
	config   ConnectionConfig
	handler  Handler
}

// Connection represents a WebSocket connection to a client
type Connection struct {
	ID      string
	Conn    *websocket.Conn
	Send    chan []byte
	Manager *ConnectionManager

	ConnectedAt time.Time

	limiter *rate.Limiter
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
	// MessagesPerSecond limits inbound client messages per connection.
	// Zero or less disables the limit.
	MessagesPerSecond float64
	MessageBurst      int
	CheckOrigin       func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:      10 * time.Second,
		ReadTimeout:       60 * time.Second,
		PingInterval:      30 * time.Second,
		MaxMessageSize:    512,
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		SendBufferSize:    64,
		MessagesPerSecond: 64,
		MessageBurst:      16,
		CheckOrigin: func(r *http.Request) bool {
			// Clients are anonymous and unauthenticated.
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, handler Handler) *ConnectionManager {
	return &ConnectionManager{
		connections: make(map[string]*Connection),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config:  config,
		handler: handler,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request) (string, error) {
	cm.mu.RLock()
	closed := cm.closed
	cm.mu.RUnlock()
	if closed {
		return "", ErrClosed
	}

	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return "", fmt.Errorf("failed to upgrade connection: %w", err)
	}

	limit := rate.Inf
	if cm.config.MessagesPerSecond > 0 {
		limit = rate.Limit(cm.config.MessagesPerSecond)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, cm.config.SendBufferSize),
		Manager:     cm,
		ConnectedAt: time.Now(),
		limiter:     rate.NewLimiter(limit, cm.config.MessageBurst),
	}

	if err := cm.registerConnection(connection); err != nil {
		conn.Close()
		return "", err
	}

	go connection.writePump()
	go connection.readPump()

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Int("clients_total", cm.ClientCount()).
		Msg("client connected")

	return connection.ID, nil
}

// registerConnection adds a connection to the manager
func (cm *ConnectionManager) registerConnection(conn *Connection) error {
	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return ErrClosed
	}
	cm.connections[conn.ID] = conn
	cm.mu.Unlock()

	cm.handler.OnConnect(conn.ID)
	return nil
}

// unregisterConnection removes a connection from the manager. It is safe to
// call more than once; only the first call reports the disconnect.
func (cm *ConnectionManager) unregisterConnection(conn *Connection) {
	cm.mu.Lock()
	if _, exists := cm.connections[conn.ID]; !exists {
		cm.mu.Unlock()
		return
	}
	delete(cm.connections, conn.ID)
	close(conn.Send)
	total := len(cm.connections)
	cm.mu.Unlock()

	cm.handler.OnDisconnect(conn.ID)

	log.Info().
		Str("connection_id", conn.ID).
		Int("clients_total", total).
		Msg("client disconnected")
}

// ClientCount returns the number of open connections.
func (cm *ConnectionManager) ClientCount() int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.connections)
}

// Broadcast encodes msg once and queues the same bytes on every connection.
func (cm *ConnectionManager) Broadcast(msg protocol.ServerMessage) {
	data := protocol.AppendServerMessage(nil, msg)

	var slow []*Connection
	cm.mu.RLock()
	for _, conn := range cm.connections {
		select {
		case conn.Send <- data:
		default:
			slow = append(slow, conn)
		}
	}
	cm.mu.RUnlock()

	for _, conn := range slow {
		// Connection is slow/dead, close it
		log.Warn().
			Str("connection_id", conn.ID).
			Msg("connection send buffer full, closing connection")
		cm.unregisterConnection(conn)
	}
}

// Send queues msg for a single connection.
func (cm *ConnectionManager) Send(id string, msg protocol.ServerMessage) error {
	data := protocol.AppendServerMessage(nil, msg)

	cm.mu.RLock()
	conn, ok := cm.connections[id]
	if !ok {
		cm.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}
	var full bool
	select {
	case conn.Send <- data:
	default:
		full = true
	}
	cm.mu.RUnlock()

	if full {
		cm.unregisterConnection(conn)
		return fmt.Errorf("send buffer full for connection %s", id)
	}
	return nil
}

// Close disconnects every client and refuses new upgrades.
func (cm *ConnectionManager) Close() {
	cm.mu.Lock()
	cm.closed = true
	conns := make([]*Connection, 0, len(cm.connections))
	for _, conn := range cm.connections {
		conns = append(conns, conn)
	}
	cm.mu.Unlock()

	for _, conn := range conns {
		cm.unregisterConnection(conn)
	}
}

// Stats describes the open connections.
type Stats struct {
	TotalConnections int              `json:"total_connections"`
	Connections      []ConnectionInfo `json:"connections"`
}

// ConnectionInfo describes one open connection.
type ConnectionInfo struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
}

// Stats returns statistics about active connections
func (cm *ConnectionManager) Stats() Stats {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats := Stats{
		TotalConnections: len(cm.connections),
		Connections:      make([]ConnectionInfo, 0, len(cm.connections)),
	}
	for _, conn := range cm.connections {
		stats.Connections = append(stats.Connections, ConnectionInfo{
			ID:          conn.ID,
			ConnectedAt: conn.ConnectedAt,
		})
	}
	return stats
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.Manager.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.Manager.unregisterConnection(c)
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

			if err := c.Conn.WriteMessage(websocket.BinaryMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.Manager.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump handles reading messages from the WebSocket connection
func (c *Connection) readPump() {
	defer func() {
		c.Manager.unregisterConnection(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.Manager.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		return nil
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		c.Conn.SetReadDeadline(time.Now().Add(c.Manager.config.ReadTimeout))
		c.handleClientMessage(messageType, message)
	}
}

// handleClientMessage decodes a client frame and hands it to the handler
func (c *Connection) handleClientMessage(messageType int, message []byte) {
	if messageType != websocket.BinaryMessage {
		log.Debug().
			Str("connection_id", c.ID).
			Int("message_type", messageType).
			Msg("ignoring non-binary client message")
		return
	}

	if !c.limiter.Allow() {
		log.Debug().
			Str("connection_id", c.ID).
			Msg("client message rate exceeded, dropping message")
		return
	}

	msg, err := protocol.DecodeClientMessage(message)
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Int("bytes", len(message)).
			Msg("dropping malformed client message")
		return
	}

	c.Manager.handler.OnMessage(c.ID, msg)
}
