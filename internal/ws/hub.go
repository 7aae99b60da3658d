package ws

import (
	"math"
	"sync"

	"github.com/google/uuid"
	"github.com/shenikar/incident_intelligence_system/pkg/logger"
	"github.com/sirupsen/logrus"
)

// session - live-сессия: соединение плюс последнее известное местоположение
type session struct {
	id                 string
	userID             string
	latitude           float64
	longitude          float64
	notificationRadius int
	hasLocation        bool
	conn               Conn
}

// SessionSnapshot - копия состояния сессии на момент вызова Sessions().
// Итерация по снимку не держит блокировку Hub.
type SessionSnapshot struct {
	ID                 string
	UserID             string
	Latitude           float64
	Longitude          float64
	NotificationRadius int
	HasLocation        bool
	Conn               Conn
}

// Hub - реестр live-сессий. Единственный общий изменяемый ресурс
// realtime-подсистемы: все мутации и снимок для рассылки взаимоисключающие.
// Карты наружу не отдаются, только копии.
type Hub struct {
	mu       sync.RWMutex
	logger   *logrus.Entry
	sessions map[string]*session // session id -> сессия
	byConn   map[Conn]string     // соединение -> session id
	byUser   map[string]string   // user id -> session id
}

// NewHub создает пустой реестр сессий
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		logger:   logger.WithComponent(log, "ws.hub"),
		sessions: make(map[string]*session),
		byConn:   make(map[Conn]string),
		byUser:   make(map[string]string),
	}
}

// Connect регистрирует новое соединение без местоположения
func (h *Hub) Connect(conn Conn) string {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := uuid.NewString()
	h.sessions[id] = &session{id: id, conn: conn}
	h.byConn[conn] = id

	h.logger.WithField("total_connections", len(h.sessions)).Info("Client connected")
	return id
}

// Disconnect удаляет соединение и связанную с ним сессию.
// Повторный вызов для того же соединения - no-op.
// Если это была единственная сессия пользователя, его местоположение
// удаляется вместе с ней.
func (h *Hub) Disconnect(conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, ok := h.byConn[conn]
	if !ok {
		return
	}

	sess := h.sessions[id]
	delete(h.byConn, conn)
	delete(h.sessions, id)
	if sess.userID != "" && h.byUser[sess.userID] == id {
		delete(h.byUser, sess.userID)
		h.logger.WithField("user_id", sess.userID).Debug("Removed user location state on disconnect")
	}

	h.logger.WithField("total_connections", len(h.sessions)).Info("Client disconnected")
}

// UpsertLocation создает или обновляет сессию пользователя.
// Координаты округляются до 6 знаков. Для пользователя действует
// last-write-wins: прежняя сессия с этим user id теряет привязку
// и местоположение, её соединение остаётся открытым, но осиротевшим.
func (h *Hub) UpsertLocation(userID string, latitude, longitude float64, radiusMeters int, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id, ok := h.byConn[conn]
	if !ok {
		// Соединение уже закрыто конкурентным Disconnect
		return
	}

	if prevID, ok := h.byUser[userID]; ok && prevID != id {
		if prev, ok := h.sessions[prevID]; ok {
			prev.userID = ""
			prev.hasLocation = false
		}
	}

	sess := h.sessions[id]
	sess.userID = userID
	sess.latitude = round6(latitude)
	sess.longitude = round6(longitude)
	sess.notificationRadius = radiusMeters
	sess.hasLocation = true
	h.byUser[userID] = id

	h.logger.WithFields(logrus.Fields{
		"user_id":             userID,
		"notification_radius": radiusMeters,
	}).Debug("Updated session location")
}

// Sessions возвращает снимок всех сессий для итерации вне блокировки
func (h *Hub) Sessions() []SessionSnapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snapshots := make([]SessionSnapshot, 0, len(h.sessions))
	for _, sess := range h.sessions {
		snapshots = append(snapshots, SessionSnapshot{
			ID:                 sess.id,
			UserID:             sess.userID,
			Latitude:           sess.latitude,
			Longitude:          sess.longitude,
			NotificationRadius: sess.notificationRadius,
			HasLocation:        sess.hasLocation,
			Conn:               sess.conn,
		})
	}
	return snapshots
}

// SessionIDByConn - обратный поиск сессии по соединению
func (h *Hub) SessionIDByConn(conn Conn) (string, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	id, ok := h.byConn[conn]
	return id, ok
}

// ConnectionCount возвращает число открытых соединений
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// RegisteredUserCount возвращает число пользователей с местоположением
func (h *Hub) RegisteredUserCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// round6 приводит координату к 6 знакам после запятой
func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
