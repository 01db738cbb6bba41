package services

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"twister-backend/internal/dto"
)

// Connection one websocket subscriber
type Connection struct {
	ID       string          `json:"id"`
	Conn     *websocket.Conn `json:"-"`
	Send     chan []byte     `json:"-"`
	LastPing time.Time       `json:"last_ping"`
}

// PushMessage base structure of every pushed frame
type PushMessage struct {
	Type      string      `json:"type"`
	Timestamp string      `json:"timestamp"`
	MessageID string      `json:"message_id"`
	Data      interface{} `json:"data"`
}

// WebSocketPushService fans coordinator transitions out to every connected client.
type WebSocketPushService struct {
	connections map[string]*Connection
	hub         chan PushMessage
	register    chan *Connection
	unregister  chan *Connection
	done        chan struct{}
	mutex       sync.RWMutex
	upgrader    websocket.Upgrader
	logger      *logrus.Logger
}

// NewWebSocketPushService starts the hub goroutine.
func NewWebSocketPushService(logger *logrus.Logger) *WebSocketPushService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &WebSocketPushService{
		connections: make(map[string]*Connection),
		hub:         make(chan PushMessage, 256),
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		done:        make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: logger,
	}
	go s.run()
	return s
}

func (s *WebSocketPushService) run() {
	for {
		select {
		case conn := <-s.register:
			s.handleRegister(conn)
		case conn := <-s.unregister:
			s.handleUnregister(conn)
		case message := <-s.hub:
			s.handleBroadcast(message)
		case <-s.done:
			return
		}
	}
}

// Close stops the hub and drops every connection.
func (s *WebSocketPushService) Close() {
	close(s.done)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for id, conn := range s.connections {
		close(conn.Send)
		delete(s.connections, id)
	}
}

// BroadcastOperation pushes an operation transition. Never blocks the caller.
func (s *WebSocketPushService) BroadcastOperation(event dto.OperationEvent) {
	message := PushMessage{
		Type:      "operation_update",
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: generateMessageID(),
		Data:      event,
	}
	select {
	case s.hub <- message:
	default:
		s.logger.WithField("operation_id", event.OperationID).Warn("[WebSocketPush] hub full, message dropped")
	}
}

// ActiveConnections number of registered subscribers
func (s *WebSocketPushService) ActiveConnections() int {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return len(s.connections)
}

// HandleWebSocket upgrades the request and serves the connection until it closes.
func (s *WebSocketPushService) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("[WebSocketPush] upgrade failed")
		return
	}

	connection := &Connection{
		ID:       uuid.New().String(),
		Conn:     conn,
		Send:     make(chan []byte, 256),
		LastPing: time.Now(),
	}
	select {
	case s.register <- connection:
	case <-s.done:
		conn.Close()
		return
	}

	go s.handleConnectionWrite(connection)
	s.handleConnectionRead(connection)
}

func (s *WebSocketPushService) handleRegister(conn *Connection) {
	s.mutex.Lock()
	s.connections[conn.ID] = conn
	s.mutex.Unlock()

	s.logger.WithField("conn_id", conn.ID).Info("[WebSocketPush] connection registered")
	s.sendToConnection(conn, PushMessage{
		Type:      "connection_established",
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: generateMessageID(),
		Data: map[string]interface{}{
			"connection_id": conn.ID,
		},
	})
}

func (s *WebSocketPushService) handleUnregister(conn *Connection) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.connections[conn.ID]; !ok {
		return
	}
	delete(s.connections, conn.ID)
	close(conn.Send)
	s.logger.WithField("conn_id", conn.ID).Info("[WebSocketPush] connection unregistered")
}

func (s *WebSocketPushService) handleBroadcast(message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		s.logger.WithError(err).Error("[WebSocketPush] failed to marshal message")
		return
	}

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	failed := 0
	for _, conn := range s.connections {
		select {
		case conn.Send <- data:
		default:
			failed++
		}
	}
	if failed > 0 {
		s.logger.WithFields(logrus.Fields{
			"type":   message.Type,
			"failed": failed,
			"total":  len(s.connections),
		}).Warn("[WebSocketPush] some connections did not accept the message")
	}
}

func (s *WebSocketPushService) sendToConnection(conn *Connection, message PushMessage) {
	data, err := json.Marshal(message)
	if err != nil {
		return
	}
	select {
	case conn.Send <- data:
	default:
	}
}

func (s *WebSocketPushService) handleConnectionWrite(conn *Connection) {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		conn.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				conn.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			conn.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *WebSocketPushService) handleConnectionRead(conn *Connection) {
	defer func() {
		select {
		case s.unregister <- conn:
		case <-s.done:
		}
		conn.Conn.Close()
	}()

	conn.Conn.SetReadLimit(512)
	conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.Conn.SetPongHandler(func(string) error {
		conn.Conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.LastPing = time.Now()
		return nil
	})

	for {
		if _, _, err := conn.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.WithError(err).Warn("[WebSocketPush] read error")
			}
			return
		}
	}
}

func generateMessageID() string {
	return fmt.Sprintf("msg_%d", time.Now().UnixNano())
}
