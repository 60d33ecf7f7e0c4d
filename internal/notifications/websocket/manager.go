// Package websocket pushes live notifications to connected browsers.
package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 64
)

// Message types pushed to clients.
const (
	MessageTypeNotification = "notification"
	MessageTypeStatus       = "status"
	MessageTypeBroadcast    = "broadcast"
)

// ErrNotConnected is returned when a user has no open connection.
var ErrNotConnected = errors.New("user not connected")

// Message is the JSON frame written to clients.
type Message struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Target    string    `json:"target,omitempty"`
}

// Connection represents a WebSocket client connection
type Connection struct {
	ID          string
	UserID      string
	Conn        *websocket.Conn
	Send        chan Message
	ConnectedAt time.Time
	UserAgent   string
	IPAddress   string
}

// Manager handles WebSocket connections and message routing
type Manager struct {
	mu          sync.RWMutex
	connections map[string]*Connection
	hub         *hub
	upgrader    websocket.Upgrader
	logger      *zap.Logger
	closeOnce   sync.Once
}

// hub serialises registration and broadcast on one goroutine.
type hub struct {
	broadcast  chan Message
	register   chan *Connection
	unregister chan *Connection
	stop       chan struct{}
}

// NewManager creates a manager and starts its hub. allowedOrigins empty
// accepts every origin.
func NewManager(logger *zap.Logger, allowedOrigins ...string) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		connections: make(map[string]*Connection),
		hub: &hub{
			broadcast:  make(chan Message, 256),
			register:   make(chan *Connection),
			unregister: make(chan *Connection),
			stop:       make(chan struct{}),
		},
		logger: logger,
	}
	m.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, o := range allowedOrigins {
				if o == origin {
					return true
				}
			}
			return false
		},
	}

	go m.run()
	return m
}

// HandleConnection upgrades the request and attaches the socket to userID.
func (m *Manager) HandleConnection(w http.ResponseWriter, r *http.Request, userID string) (*Connection, error) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := &Connection{
		ID:          uuid.New().String(),
		UserID:      userID,
		Conn:        conn,
		Send:        make(chan Message, sendBuffer),
		ConnectedAt: time.Now(),
		UserAgent:   r.Header.Get("User-Agent"),
		IPAddress:   r.RemoteAddr,
	}

	// Queued before registration: nothing else can see Send yet.
	connection.Send <- Message{
		Type:      MessageTypeStatus,
		Data:      map[string]string{"status": "connected", "connection_id": connection.ID},
		Timestamp: time.Now(),
		Target:    userID,
	}

	select {
	case m.hub.register <- connection:
	case <-m.hub.stop:
		conn.Close()
		return nil, fmt.Errorf("websocket manager closed")
	}

	go m.readPump(connection)
	go m.writePump(connection)
	return connection, nil
}

// readPump only keeps the connection alive; clients do not send commands.
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		select {
		case m.hub.unregister <- conn:
		case <-m.hub.stop:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(maxMessageSize)
	_ = conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.Conn.SetPongHandler(func(string) error {
		return conn.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("websocket closed unexpectedly",
					zap.String("connection_id", conn.ID),
					zap.Error(err))
			}
			return
		}
	}
}

func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			_ = conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// run owns every mutation of the connection map.
func (m *Manager) run() {
	for {
		select {
		case conn := <-m.hub.register:
			m.mu.Lock()
			m.connections[conn.ID] = conn
			m.mu.Unlock()
			m.logger.Debug("websocket registered",
				zap.String("connection_id", conn.ID),
				zap.String("user_id", conn.UserID))

		case conn := <-m.hub.unregister:
			m.drop(conn)

		case message := <-m.hub.broadcast:
			m.mu.RLock()
			var slow []*Connection
			for _, conn := range m.connections {
				select {
				case conn.Send <- message:
				default:
					slow = append(slow, conn)
				}
			}
			m.mu.RUnlock()
			for _, conn := range slow {
				m.drop(conn)
			}

		case <-m.hub.stop:
			m.mu.Lock()
			for id, conn := range m.connections {
				close(conn.Send)
				delete(m.connections, id)
			}
			m.mu.Unlock()
			return
		}
	}
}

func (m *Manager) drop(conn *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.connections[conn.ID]; !ok {
		return
	}
	delete(m.connections, conn.ID)
	close(conn.Send)
	m.logger.Debug("websocket unregistered",
		zap.String("connection_id", conn.ID),
		zap.String("user_id", conn.UserID))
}

// SendToUser queues message on every connection of userID.
func (m *Manager) SendToUser(userID string, message Message) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	message.Target = userID
	sent := 0
	for _, conn := range m.connections {
		if conn.UserID != userID {
			continue
		}
		select {
		case conn.Send <- message:
			sent++
		default:
			m.logger.Warn("websocket buffer full, dropping message",
				zap.String("connection_id", conn.ID))
		}
	}
	if sent == 0 {
		return ErrNotConnected
	}
	return nil
}

// Broadcast sends a message to all connected users
func (m *Manager) Broadcast(message Message) error {
	select {
	case m.hub.broadcast <- message:
		return nil
	default:
		return fmt.Errorf("broadcast channel full")
	}
}

// GetConnectionCount returns the number of active connections
func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// IsConnected reports whether userID has at least one open socket.
func (m *Manager) IsConnected(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, conn := range m.connections {
		if conn.UserID == userID {
			return true
		}
	}
	return false
}

// Close stops the hub and closes every connection.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.RLock()
		conns := make([]*Connection, 0, len(m.connections))
		for _, conn := range m.connections {
			conns = append(conns, conn)
		}
		m.mu.RUnlock()

		close(m.hub.stop)
		for _, conn := range conns {
			conn.Conn.Close()
		}
	})
}
