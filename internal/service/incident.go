package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_intelligence_system/internal/analytics"
	"github.com/shenikar/incident_intelligence_system/internal/models"
	"github.com/shenikar/incident_intelligence_system/internal/webhook"
	"github.com/sirupsen/logrus"
)

// recentWindow - окно "недавних" инцидентов в сводке администратора
const recentWindow = 7 * 24 * time.Hour

// IncidentRepository определяет контракт для работы с бд инцидентов
type IncidentRepository interface {
	Create(ctx context.Context, incident *models.Incident) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	UpdateStatus(ctx context.Context, incident *models.Incident) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListIncidents(ctx context.Context) ([]*models.Incident, error)
	ListAdmin(ctx context.Context) ([]*models.Incident, error)
	ListNearby(ctx context.Context, lat, lon float64, radiusMeters int) ([]*models.Incident, error)
	GetUserLocation(ctx context.Context, userID string) (*models.UserLocation, error)
	UpsertUserLocation(ctx context.Context, location *models.UserLocation) error
	CountTotal(ctx context.Context) (int, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int, error)
	CountsByCategory(ctx context.Context) (map[string]int, error)
	CountsByPriority(ctx context.Context) (map[string]int, error)
	CountsByStatus(ctx context.Context) (map[string]int, error)
	GetIncidentFromCache(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	SetIncidentCache(ctx context.Context, incident *models.Incident) error
	InvalidateIncidentCache(ctx context.Context, id uuid.UUID) error
}

// Notifier рассылает события жизненного цикла инцидентов live-сессиям
type Notifier interface {
	BroadcastCreated(incident *models.Incident)
	BroadcastStatusUpdate(incident *models.Incident)
	BroadcastDeleted(id uuid.UUID)
}

// Geocoder переводит координаты в адрес. Best-effort: при сбое
// возвращает литерал-заглушку, не ошибку.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, latitude, longitude float64) string
}

// TrendAnalyzer выполняет аналитический прогон по окну недавних инцидентов
type TrendAnalyzer interface {
	Analyze(ctx context.Context) (*analytics.TrendAnalysis, error)
}

// IncidentService определяет контракт бизнес-логики управления инцидентами
type IncidentService interface {
	CreateIncident(ctx context.Context, incident *models.Incident) error
	GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error)
	UpdateIncidentStatus(ctx context.Context, id uuid.UUID, status string, description *string) (*models.Incident, error)
	DeleteIncident(ctx context.Context, id uuid.UUID) error
	ListIncidents(ctx context.Context) ([]*models.Incident, error)
	ListAdminIncidents(ctx context.Context) ([]*models.Incident, error)
	ListNearbyIncidents(ctx context.Context, userID string, radiusMeters int) ([]*models.Incident, error)
	GetAnalyticsSummary(ctx context.Context) (*models.AnalyticsSummary, error)
	RunTrendAnalysis(ctx context.Context) (*analytics.TrendAnalysis, error)
	SaveUserLocation(ctx context.Context, userID string, latitude, longitude float64, radiusMeters int) error
}

type incidentService struct {
	repo      IncidentRepository
	notifier  Notifier
	geocoder  Geocoder
	analyzer  TrendAnalyzer
	publisher webhook.WebhookPublisher
	logger    *logrus.Logger
}

func NewIncidentService(repo IncidentRepository, notifier Notifier, geocoder Geocoder, analyzer TrendAnalyzer, publisher webhook.WebhookPublisher, logger *logrus.Logger) IncidentService {
	return &incidentService{
		repo:      repo,
		notifier:  notifier,
		geocoder:  geocoder,
		analyzer:  analyzer,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateIncident создает инцидент: геокодирует адрес, сохраняет,
// рассылает new_incident и proximity-оповещения
func (s *incidentService) CreateIncident(ctx context.Context, incident *models.Incident) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":  "incident",
		"method":   "CreateIncident",
		"category": incident.Category,
	})
	log.Info("Attempting to create a new incident")

	incident.Status = models.StatusOpen
	// Геокодер best-effort: при сбое адресом становится литерал-заглушка
	incident.Address = s.geocoder.ReverseGeocode(ctx, incident.Latitude, incident.Longitude)

	if err := s.repo.Create(ctx, incident); err != nil {
		log.WithError(err).Error("Failed to create incident in repository")
		return fmt.Errorf("service: could not create incident: %w", err)
	}

	s.notifier.BroadcastCreated(incident)
	s.publishEvent(ctx, webhook.EventIncidentCreated, incident)

	log.WithField("incident_id", incident.ID).Info("Incident created successfully")
	return nil
}

// GetIncident получает инцидент по ID, сначала из кэша
func (s *incidentService) GetIncident(ctx context.Context, id uuid.UUID) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "GetIncident",
		"incident_id": id,
	})

	cached, err := s.repo.GetIncidentFromCache(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Failed to read incident cache")
	}
	if cached != nil {
		return cached, nil
	}

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Error("Failed to get incident in repository")
		return nil, fmt.Errorf("service: could not get incident: %w", err)
	}

	if err := s.repo.SetIncidentCache(ctx, incident); err != nil {
		log.WithError(err).Warn("Failed to cache incident")
	}
	return incident, nil
}

// UpdateIncidentStatus меняет статус (и при необходимости описание)
// инцидента и рассылает status_update
func (s *incidentService) UpdateIncidentStatus(ctx context.Context, id uuid.UUID, status string, description *string) (*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "UpdateIncidentStatus",
		"incident_id": id,
		"status":      status,
	})
	log.Info("Attempting to update incident status")

	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to update a non-existent incident")
		return nil, fmt.Errorf("service: incident with id %s not found for update: %w", id, err)
	}

	existing.Status = status
	if description != nil {
		existing.Description = *description
	}

	if err := s.repo.UpdateStatus(ctx, existing); err != nil {
		log.WithError(err).Error("Failed to update incident in repository")
		return nil, fmt.Errorf("service: could not update incident: %w", err)
	}

	if err := s.repo.InvalidateIncidentCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}

	s.notifier.BroadcastStatusUpdate(existing)
	s.publishEvent(ctx, webhook.EventIncidentStatusUpdated, existing)

	log.Info("Incident status updated successfully")
	return existing, nil
}

// DeleteIncident удаляет инцидент и рассылает incident_deleted
func (s *incidentService) DeleteIncident(ctx context.Context, id uuid.UUID) error {
	log := s.logger.WithFields(logrus.Fields{
		"service":     "incident",
		"method":      "DeleteIncident",
		"incident_id": id,
	})
	log.Info("Attempting to delete incident")

	incident, err := s.repo.GetByID(ctx, id)
	if err != nil {
		log.WithError(err).Warn("Attempted to delete a non-existent incident")
		return fmt.Errorf("service: incident with id %s not found for delete: %w", id, err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		log.WithError(err).Error("Failed to delete incident in repository")
		return fmt.Errorf("service: could not delete incident: %w", err)
	}

	if err := s.repo.InvalidateIncidentCache(ctx, id); err != nil {
		log.WithError(err).Warn("Failed to invalidate incident cache")
	}

	s.notifier.BroadcastDeleted(id)
	s.publishEvent(ctx, webhook.EventIncidentDeleted, incident)

	log.Info("Incident deleted successfully")
	return nil
}

// ListIncidents возвращает все инциденты
func (s *incidentService) ListIncidents(ctx context.Context) ([]*models.Incident, error) {
	incidents, err := s.repo.ListIncidents(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list incidents from repository")
		return nil, fmt.Errorf("service: could not list incidents: %w", err)
	}
	return incidents, nil
}

// ListAdminIncidents возвращает инциденты для панели администратора
func (s *incidentService) ListAdminIncidents(ctx context.Context) ([]*models.Incident, error) {
	incidents, err := s.repo.ListAdmin(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list admin incidents from repository")
		return nil, fmt.Errorf("service: could not list admin incidents: %w", err)
	}
	return incidents, nil
}

// ListNearbyIncidents находит инциденты рядом с сохранённым
// местоположением пользователя
func (s *incidentService) ListNearbyIncidents(ctx context.Context, userID string, radiusMeters int) ([]*models.Incident, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "ListNearbyIncidents",
		"user_id": userID,
	})

	location, err := s.repo.GetUserLocation(ctx, userID)
	if err != nil {
		log.WithError(err).Warn("User location not found")
		return nil, fmt.Errorf("service: user location not found: %w", err)
	}

	incidents, err := s.repo.ListNearby(ctx, location.Latitude, location.Longitude, radiusMeters)
	if err != nil {
		log.WithError(err).Error("Failed to find nearby incidents")
		return nil, fmt.Errorf("service: could not find nearby incidents: %w", err)
	}
	return incidents, nil
}

// GetAnalyticsSummary собирает сводку по инцидентам для администратора
func (s *incidentService) GetAnalyticsSummary(ctx context.Context) (*models.AnalyticsSummary, error) {
	log := s.logger.WithFields(logrus.Fields{
		"service": "incident",
		"method":  "GetAnalyticsSummary",
	})

	total, err := s.repo.CountTotal(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to count incidents")
		return nil, fmt.Errorf("service: could not build analytics summary: %w", err)
	}

	recent, err := s.repo.CountCreatedSince(ctx, time.Now().Add(-recentWindow))
	if err != nil {
		log.WithError(err).Error("Failed to count recent incidents")
		return nil, fmt.Errorf("service: could not build analytics summary: %w", err)
	}

	byCategory, err := s.repo.CountsByCategory(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to count incidents by category")
		return nil, fmt.Errorf("service: could not build analytics summary: %w", err)
	}

	byPriority, err := s.repo.CountsByPriority(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to count incidents by priority")
		return nil, fmt.Errorf("service: could not build analytics summary: %w", err)
	}

	byStatus, err := s.repo.CountsByStatus(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to count incidents by status")
		return nil, fmt.Errorf("service: could not build analytics summary: %w", err)
	}

	return &models.AnalyticsSummary{
		TotalIncidents:  total,
		RecentIncidents: recent,
		ByCategory:      byCategory,
		ByPriority:      byPriority,
		ByStatus:        byStatus,
	}, nil
}

// RunTrendAnalysis запускает полный аналитический прогон
func (s *incidentService) RunTrendAnalysis(ctx context.Context) (*analytics.TrendAnalysis, error) {
	result, err := s.analyzer.Analyze(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Trend analysis failed")
		return nil, fmt.Errorf("service: trend analysis failed: %w", err)
	}
	return result, nil
}

// SaveUserLocation сохраняет местоположение пользователя в бд.
// Координаты округляются до 6 знаков. Вызывающий обрабатывает ошибку
// как best-effort: реестр в памяти остаётся авторитетным.
func (s *incidentService) SaveUserLocation(ctx context.Context, userID string, latitude, longitude float64, radiusMeters int) error {
	location := &models.UserLocation{
		UserID:             userID,
		Latitude:           math.Round(latitude*1e6) / 1e6,
		Longitude:          math.Round(longitude*1e6) / 1e6,
		NotificationRadius: radiusMeters,
	}
	if err := s.repo.UpsertUserLocation(ctx, location); err != nil {
		return fmt.Errorf("service: could not persist user location: %w", err)
	}
	return nil
}

// publishEvent публикует событие вебхука, сбой только логируется
func (s *incidentService) publishEvent(ctx context.Context, event string, incident *models.Incident) {
	if s.publisher == nil {
		return
	}
	webhookEvent := webhook.WebhookEvent{
		Event:     event,
		Incident:  incident,
		Timestamp: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, webhookEvent); err != nil {
		s.logger.WithError(err).WithField("event", event).Warn("Failed to publish webhook event")
	}
}
