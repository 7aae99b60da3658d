package ws

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Conn - контракт live-соединения с клиентом. Hub и Dispatcher работают
// только через него, поэтому в тестах транспорт подменяется фейком.
type Conn interface {
	WriteJSON(v any) error
	Close() error
}

// wsConn оборачивает gorilla-соединение и сериализует записи:
// broadcast и proximity-уведомления могут писать в одно соединение конкурентно.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewConn создает Conn поверх websocket-соединения
func NewConn(conn *websocket.Conn) Conn {
	return &wsConn{conn: conn}
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
