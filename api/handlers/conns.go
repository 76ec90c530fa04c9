package handlers

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Frame - сообщение, которое шлюз отправляет в WebSocket
type Frame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// wsClient - соединение с единственной горутиной записи
type wsClient struct {
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger
}

func newWSClient(conn *websocket.Conn, logger *zap.Logger) *wsClient {
	return &wsClient{
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Push ставит кадр в очередь; медленный клиент отключается
func (c *wsClient) Push(frame Frame) {
	body, err := json.Marshal(frame)
	if err != nil {
		c.logger.Warn("failed to marshal frame", zap.String("event", frame.Event), zap.Error(err))
		return
	}
	select {
	case <-c.done:
	case c.send <- body:
	default:
		c.logger.Warn("websocket client too slow, closing")
		c.Close()
	}
}

func (c *wsClient) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case body := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, body); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

// readPump читает до ошибки; входящие сообщения клиента игнорируются
func (c *wsClient) readPump() {
	defer c.Close()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

// ConnManager - уведомительные соединения пользователей
type ConnManager struct {
	mu     sync.RWMutex
	users  map[string][]*wsClient
	logger *zap.Logger
}

func NewConnManager(logger *zap.Logger) *ConnManager {
	return &ConnManager{
		users:  make(map[string][]*wsClient),
		logger: logger,
	}
}

func (m *ConnManager) Add(userID string, client *wsClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = append(m.users[userID], client)
}

func (m *ConnManager) Remove(userID string, client *wsClient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	conns := m.users[userID]
	for i, c := range conns {
		if c == client {
			m.users[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(m.users[userID]) == 0 {
		delete(m.users, userID)
	}
}

func (m *ConnManager) Send(userID string, frame Frame) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.users[userID] {
		c.Push(frame)
	}
}

func (m *ConnManager) Broadcast(frame Frame) {
	m.broadcastExcept("", frame)
}

func (m *ConnManager) broadcastExcept(skipUserID string, frame Frame) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for userID, conns := range m.users {
		if userID == skipUserID && skipUserID != "" {
			continue
		}
		for _, c := range conns {
			c.Push(frame)
		}
	}
}

// Connected - число пользователей с открытыми соединениями
func (m *ConnManager) Connected() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}
