package ws

import (
	"bytes"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn - тестовое соединение, запоминает отправленные события
type fakeConn struct {
	mu         sync.Mutex
	events     []Event
	failWrites bool
	closed     bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errors.New("broken pipe")
	}
	event, ok := v.(Event)
	if !ok {
		return errors.New("unexpected payload type")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) sentEvents() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах
	return logger
}

func TestHub_ConnectDisconnect(t *testing.T) {
	// Подготовка
	hub := NewHub(newTestLogger())
	conn := &fakeConn{}

	// Действие
	id := hub.Connect(conn)

	// Проверки
	require.NotEmpty(t, id)
	assert.Equal(t, 1, hub.ConnectionCount())

	gotID, ok := hub.SessionIDByConn(conn)
	require.True(t, ok)
	assert.Equal(t, id, gotID)

	hub.Disconnect(conn)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_DisconnectIdempotent(t *testing.T) {
	// Подготовка
	hub := NewHub(newTestLogger())
	conn := &fakeConn{}
	hub.Connect(conn)

	// Действие: повторный Disconnect не должен паниковать и менять состояние
	hub.Disconnect(conn)
	hub.Disconnect(conn)

	// Проверки
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, 0, hub.RegisteredUserCount())
}

func TestHub_UpsertLocation_RegistersUser(t *testing.T) {
	// Подготовка
	hub := NewHub(newTestLogger())
	conn := &fakeConn{}
	hub.Connect(conn)

	// Действие
	hub.UpsertLocation("user-1", 40.71284999, -74.00601234, 3000, conn)

	// Проверки
	assert.Equal(t, 1, hub.RegisteredUserCount())

	sessions := hub.Sessions()
	require.Len(t, sessions, 1)
	sess := sessions[0]
	assert.True(t, sess.HasLocation)
	assert.Equal(t, "user-1", sess.UserID)
	// Координаты округляются до 6 знаков
	assert.Equal(t, 40.712850, sess.Latitude)
	assert.Equal(t, -74.006012, sess.Longitude)
	assert.Equal(t, 3000, sess.NotificationRadius)
}

func TestHub_UpsertLocation_UpdatesSameSession(t *testing.T) {
	// Подготовка
	hub := NewHub(newTestLogger())
	conn := &fakeConn{}
	hub.Connect(conn)
	hub.UpsertLocation("user-1", 40.0, -74.0, 5000, conn)

	// Действие: повторное обновление с того же соединения
	hub.UpsertLocation("user-1", 41.0, -75.0, 2000, conn)

	// Проверки: сессия одна, данные свежие
	assert.Equal(t, 1, hub.ConnectionCount())
	assert.Equal(t, 1, hub.RegisteredUserCount())

	sessions := hub.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, 41.0, sessions[0].Latitude)
	assert.Equal(t, -75.0, sessions[0].Longitude)
	assert.Equal(t, 2000, sessions[0].NotificationRadius)
}

func TestHub_UpsertLocation_LastWriteWins(t *testing.T) {
	// Подготовка: один пользователь с двух соединений
	hub := NewHub(newTestLogger())
	first := &fakeConn{}
	second := &fakeConn{}
	hub.Connect(first)
	hub.Connect(second)
	hub.UpsertLocation("user-1", 40.0, -74.0, 5000, first)

	// Действие
	hub.UpsertLocation("user-1", 41.0, -75.0, 5000, second)

	// Проверки: оба соединения открыты, но пользователь привязан
	// только ко второму, прежняя сессия осиротела
	assert.Equal(t, 2, hub.ConnectionCount())
	assert.Equal(t, 1, hub.RegisteredUserCount())

	for _, sess := range hub.Sessions() {
		switch sess.Conn {
		case first:
			assert.False(t, sess.HasLocation)
			assert.Empty(t, sess.UserID)
		case second:
			assert.True(t, sess.HasLocation)
			assert.Equal(t, "user-1", sess.UserID)
		}
	}
}

func TestHub_UpsertLocation_UnknownConnIsNoop(t *testing.T) {
	// Подготовка: соединение уже отключено
	hub := NewHub(newTestLogger())
	conn := &fakeConn{}
	hub.Connect(conn)
	hub.Disconnect(conn)

	// Действие
	hub.UpsertLocation("user-1", 40.0, -74.0, 5000, conn)

	// Проверки
	assert.Equal(t, 0, hub.ConnectionCount())
	assert.Equal(t, 0, hub.RegisteredUserCount())
}

func TestHub_Disconnect_KeepsOtherUserSession(t *testing.T) {
	// Подготовка: пользователь перепривязан ко второму соединению,
	// первое осиротело
	hub := NewHub(newTestLogger())
	first := &fakeConn{}
	second := &fakeConn{}
	hub.Connect(first)
	hub.Connect(second)
	hub.UpsertLocation("user-1", 40.0, -74.0, 5000, first)
	hub.UpsertLocation("user-1", 41.0, -75.0, 5000, second)

	// Действие: отключение осиротевшего соединения
	hub.Disconnect(first)

	// Проверки: привязка пользователя ко второй сессии сохранилась
	assert.Equal(t, 1, hub.ConnectionCount())
	assert.Equal(t, 1, hub.RegisteredUserCount())
}
