package ws

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// LocationSaver сохраняет местоположение пользователя в хранилище.
// Запись best-effort: сбой логируется, сессия в памяти остаётся актуальной.
type LocationSaver interface {
	SaveUserLocation(ctx context.Context, userID string, latitude, longitude float64, radiusMeters int) error
}

// inboundMessage - конверт входящего сообщения {type, data}
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// locationMessage - полезная нагрузка update_location / register_user.
// Координаты через указатели: отсутствующее поле отличается от нулевого.
type locationMessage struct {
	UserID             string   `json:"user_id"`
	Latitude           *float64 `json:"latitude"`
	Longitude          *float64 `json:"longitude"`
	NotificationRadius *int     `json:"notification_radius"`
}

// Handler обслуживает websocket-эндпоинт
type Handler struct {
	hub       *Hub
	locations LocationSaver
	logger    *logrus.Logger
	upgrader  websocket.Upgrader
}

// NewHandler создает websocket-хэндлер
func NewHandler(hub *Hub, locations LocationSaver, logger *logrus.Logger) *Handler {
	return &Handler{
		hub:       hub,
		locations: locations,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Проверка Origin на боковой стороне балансировщика
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve апгрейдит соединение и читает сообщения до разрыва.
// Любая ошибка чтения завершает только эту сессию.
func (h *Handler) Serve(c *gin.Context) {
	wsock, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to upgrade websocket connection")
		return
	}

	conn := NewConn(wsock)
	h.hub.Connect(conn)
	defer func() {
		h.hub.Disconnect(conn)
		wsock.Close()
	}()

	for {
		_, data, err := wsock.ReadMessage()
		if err != nil {
			h.logger.WithError(err).Debug("Websocket read ended")
			return
		}
		h.handleMessage(c.Request.Context(), conn, data)
	}
}

// handleMessage обрабатывает одно входящее сообщение.
// Нераспознанные и неполные сообщения молча отбрасываются.
func (h *Handler) handleMessage(ctx context.Context, conn Conn, data []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		h.logger.WithError(err).Debug("Dropping unparseable websocket message")
		return
	}

	switch msg.Type {
	case MessagePing:
		if err := conn.WriteJSON(Event{Type: EventPong}); err != nil {
			h.logger.WithError(err).Debug("Failed to send pong")
		}

	case MessageUpdateLocation:
		h.handleLocation(ctx, conn, msg.Data, EventLocationUpdated)

	case MessageRegisterUser:
		h.handleLocation(ctx, conn, msg.Data, EventUserRegistered)
	}
}

// handleLocation разбирает координаты, обновляет реестр и подтверждает клиенту
func (h *Handler) handleLocation(ctx context.Context, conn Conn, data json.RawMessage, confirmEvent string) {
	var loc locationMessage
	if err := json.Unmarshal(data, &loc); err != nil {
		h.logger.WithError(err).Debug("Dropping unparseable location payload")
		return
	}
	if loc.UserID == "" || loc.Latitude == nil || loc.Longitude == nil {
		h.logger.Debug("Dropping location payload with missing fields")
		return
	}

	radius := DefaultNotificationRadius
	if loc.NotificationRadius != nil {
		radius = *loc.NotificationRadius
	}

	// Сначала реестр в памяти - он авторитетный источник для realtime
	h.hub.UpsertLocation(loc.UserID, *loc.Latitude, *loc.Longitude, radius, conn)

	// Запись в хранилище best-effort: сбой не откатывает обновление реестра
	if err := h.locations.SaveUserLocation(ctx, loc.UserID, *loc.Latitude, *loc.Longitude, radius); err != nil {
		h.logger.WithError(err).WithField("user_id", loc.UserID).Warn("Failed to persist user location")
	}

	confirm := Event{Type: confirmEvent, Data: map[string]any{"user_id": loc.UserID}}
	if err := conn.WriteJSON(confirm); err != nil {
		h.logger.WithError(err).WithField("user_id", loc.UserID).Debug("Failed to confirm location update")
	}
}
