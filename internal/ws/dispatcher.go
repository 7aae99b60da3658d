package ws

import (
	"github.com/google/uuid"
	"github.com/shenikar/incident_intelligence_system/internal/geo"
	"github.com/shenikar/incident_intelligence_system/internal/models"
	"github.com/shenikar/incident_intelligence_system/pkg/logger"
	"github.com/sirupsen/logrus"
)

// Dispatcher рассылает события жизненного цикла инцидентов live-сессиям.
// Ошибка отправки в одну сессию не прерывает рассылку остальным:
// сломанное соединение просто удаляется из реестра.
type Dispatcher struct {
	hub    *Hub
	logger *logrus.Entry
}

// NewDispatcher создает Dispatcher поверх реестра сессий
func NewDispatcher(hub *Hub, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{hub: hub, logger: logger.WithComponent(log, "ws.dispatcher")}
}

// BroadcastCreated рассылает new_incident всем сессиям и отдельно
// оповещает тех, кто находится в радиусе инцидента
func (d *Dispatcher) BroadcastCreated(incident *models.Incident) {
	payload := NewIncidentPayload(incident)
	d.broadcast(Event{Type: EventNewIncident, Data: payload})
	d.NotifyProximity(payload)
}

// BroadcastStatusUpdate рассылает status_update всем сессиям
func (d *Dispatcher) BroadcastStatusUpdate(incident *models.Incident) {
	d.broadcast(Event{Type: EventStatusUpdate, Data: NewIncidentPayload(incident)})
}

// BroadcastDeleted рассылает incident_deleted всем сессиям
func (d *Dispatcher) BroadcastDeleted(id uuid.UUID) {
	d.broadcast(Event{Type: EventIncidentDeleted, Data: map[string]any{"id": id}})
}

// broadcast доставляет событие каждой сессии из снимка реестра
func (d *Dispatcher) broadcast(event Event) {
	sessions := d.hub.Sessions()
	if len(sessions) == 0 {
		d.logger.WithField("event_type", event.Type).Debug("No active connections to broadcast to")
		return
	}

	for _, sess := range sessions {
		if err := sess.Conn.WriteJSON(event); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"event_type": event.Type,
				"session_id": sess.ID,
			}).Warn("Failed to send to client, dropping connection")
			d.hub.Disconnect(sess.Conn)
		}
	}
}

// NotifyProximity отправляет area_notification сессиям, чьё сохранённое
// местоположение попадает в радиус оповещения. Граница включительно:
// distance == radius оповещает. Сессии без местоположения пропускаются.
func (d *Dispatcher) NotifyProximity(incident IncidentPayload) {
	for _, sess := range d.hub.Sessions() {
		if !sess.HasLocation {
			continue
		}

		distance := geo.DistanceMeters(incident.Latitude, incident.Longitude, sess.Latitude, sess.Longitude)
		if distance > float64(sess.NotificationRadius) {
			continue
		}

		event := Event{
			Type: EventAreaNotification,
			Data: AreaNotificationPayload{Incident: incident, Distance: distance},
		}
		if err := sess.Conn.WriteJSON(event); err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"user_id":    sess.UserID,
				"session_id": sess.ID,
			}).Warn("Failed to send area notification, dropping connection")
			d.hub.Disconnect(sess.Conn)
			continue
		}

		d.logger.WithFields(logrus.Fields{
			"user_id":  sess.UserID,
			"distance": distance,
		}).Debug("Sent area notification")
	}
}
