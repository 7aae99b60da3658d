package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_intelligence_system/internal/models"
)

// Типы исходящих событий
const (
	EventPong             = "pong"
	EventLocationUpdated  = "location_updated"
	EventUserRegistered   = "user_registered"
	EventNewIncident      = "new_incident"
	EventStatusUpdate     = "status_update"
	EventIncidentDeleted  = "incident_deleted"
	EventAreaNotification = "area_notification"
)

// Типы входящих сообщений
const (
	MessagePing           = "ping"
	MessageUpdateLocation = "update_location"
	MessageRegisterUser   = "register_user"
)

// DefaultNotificationRadius - радиус оповещения по умолчанию, метры
const DefaultNotificationRadius = 5000

// Event - конверт исходящего сообщения
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// IncidentPayload - снимок инцидента на момент рассылки.
// Временные метки сериализуются строками ISO-8601.
type IncidentPayload struct {
	ID          uuid.UUID `json:"id"`
	Category    string    `json:"category"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address"`
	CreatedAt   string    `json:"created_at"`
	UpdatedAt   string    `json:"updated_at"`
}

// NewIncidentPayload строит снимок инцидента для отправки клиентам
func NewIncidentPayload(incident *models.Incident) IncidentPayload {
	return IncidentPayload{
		ID:          incident.ID,
		Category:    incident.Category,
		Priority:    incident.Priority,
		Status:      incident.Status,
		Description: incident.Description,
		Latitude:    incident.Latitude,
		Longitude:   incident.Longitude,
		Address:     incident.Address,
		CreatedAt:   incident.CreatedAt.Format(time.RFC3339),
		UpdatedAt:   incident.UpdatedAt.Format(time.RFC3339),
	}
}

// AreaNotificationPayload - уведомление о новом инциденте рядом с пользователем
type AreaNotificationPayload struct {
	Incident IncidentPayload `json:"incident"`
	Distance float64         `json:"distance"`
}
