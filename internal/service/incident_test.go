package service

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shenikar/incident_intelligence_system/internal/analytics"
	"github.com/shenikar/incident_intelligence_system/internal/models"
	"github.com/shenikar/incident_intelligence_system/internal/service/mocks"
	"github.com/shenikar/incident_intelligence_system/internal/webhook"
	webhook_mocks "github.com/shenikar/incident_intelligence_system/internal/webhook/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type serviceMocks struct {
	repo      *mocks.MockIncidentRepository
	notifier  *mocks.MockNotifier
	geocoder  *mocks.MockGeocoder
	analyzer  *mocks.MockTrendAnalyzer
	publisher *webhook_mocks.MockWebhookPublisher
}

// newTestIncidentService - вспомогательная функция для создания инстанса сервиса с моками.
func newTestIncidentService(t *testing.T) (*incidentService, serviceMocks) {
	ctrl := gomock.NewController(t)
	m := serviceMocks{
		repo:      mocks.NewMockIncidentRepository(ctrl),
		notifier:  mocks.NewMockNotifier(ctrl),
		geocoder:  mocks.NewMockGeocoder(ctrl),
		analyzer:  mocks.NewMockTrendAnalyzer(ctrl),
		publisher: webhook_mocks.NewMockWebhookPublisher(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	service := NewIncidentService(m.repo, m.notifier, m.geocoder, m.analyzer, m.publisher, logger)
	return service.(*incidentService), m
}

func TestCreateIncident_Success(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentToCreate := &models.Incident{
		Category:  models.CategoryPothole,
		Priority:  models.PriorityHigh,
		Latitude:  40.7128,
		Longitude: -74.0060,
	}

	// Ожидания
	m.geocoder.EXPECT().
		ReverseGeocode(ctx, 40.7128, -74.0060).
		Return("Broadway, New York").
		Times(1)

	m.repo.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(ctx context.Context, inc *models.Incident) error {
			// Симулируем, что БД присвоила ID и временные метки
			inc.ID = uuid.New()
			inc.CreatedAt = time.Now()
			inc.UpdatedAt = inc.CreatedAt
			return nil
		}).Times(1)

	m.notifier.EXPECT().
		BroadcastCreated(incidentToCreate).
		Times(1)

	m.publisher.EXPECT().
		Publish(ctx, gomock.Any()).
		Do(func(ctx context.Context, event webhook.WebhookEvent) {
			assert.Equal(t, webhook.EventIncidentCreated, event.Event)
			assert.Equal(t, incidentToCreate, event.Incident)
		}).Return(nil).Times(1)

	// Действие
	err := service.CreateIncident(ctx, incidentToCreate)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, incidentToCreate.Status)
	assert.Equal(t, "Broadway, New York", incidentToCreate.Address)
	assert.NotEqual(t, uuid.Nil, incidentToCreate.ID)
}

func TestCreateIncident_RepoError(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentToCreate := &models.Incident{Category: models.CategoryWildlife, Priority: models.PriorityLow}

	// Ожидания: рассылка и вебхук не вызываются при сбое записи
	m.geocoder.EXPECT().ReverseGeocode(ctx, gomock.Any(), gomock.Any()).Return("Unknown location").Times(1)
	m.repo.EXPECT().Create(ctx, gomock.Any()).Return(fmt.Errorf("бд недоступна")).Times(1)
	m.notifier.EXPECT().BroadcastCreated(gomock.Any()).Times(0)
	m.publisher.EXPECT().Publish(gomock.Any(), gomock.Any()).Times(0)

	// Действие
	err := service.CreateIncident(ctx, incidentToCreate)

	// Проверки
	require.Error(t, err)
	assert.ErrorContains(t, err, "could not create incident")
}

func TestGetIncident_Success_FromCache(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	expectedIncident := &models.Incident{
		ID:       incidentID,
		Category: models.CategoryTrafficJam,
	}

	// Ожидания
	m.repo.EXPECT().
		GetIncidentFromCache(ctx, incidentID).
		Return(expectedIncident, nil).
		Times(1)

	// Действие
	incident, err := service.GetIncident(ctx, incidentID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncident, incident)
}

func TestGetIncident_Success_FromDB(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	expectedIncident := &models.Incident{
		ID:       incidentID,
		Category: models.CategoryCarAccident,
	}

	// Ожидания
	// 1. Промах кеша
	m.repo.EXPECT().
		GetIncidentFromCache(ctx, incidentID).
		Return(nil, nil).
		Times(1)

	// 2. Попадание в БД
	m.repo.EXPECT().
		GetByID(ctx, incidentID).
		Return(expectedIncident, nil).
		Times(1)

	// 3. Запись в кеш
	m.repo.EXPECT().
		SetIncidentCache(ctx, expectedIncident).
		Return(nil).
		Times(1)

	// Действие
	incident, err := service.GetIncident(ctx, incidentID)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncident, incident)
}

func TestGetIncident_NotFound(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	dbError := fmt.Errorf("не найдено")

	// Ожидания
	m.repo.EXPECT().GetIncidentFromCache(ctx, incidentID).Return(nil, nil).Times(1)
	m.repo.EXPECT().GetByID(ctx, incidentID).Return(nil, dbError).Times(1)

	// Действие
	incident, err := service.GetIncident(ctx, incidentID)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorContains(t, err, "could not get incident")
}

func TestUpdateIncidentStatus_Success(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	existingIncident := &models.Incident{
		ID:          incidentID,
		Category:    models.CategoryPothole,
		Status:      models.StatusOpen,
		Description: "Старое описание",
	}
	newDescription := "Ремонтная бригада выехала"

	// Ожидания
	m.repo.EXPECT().GetByID(ctx, incidentID).Return(existingIncident, nil).Times(1)
	m.repo.EXPECT().UpdateStatus(ctx, existingIncident).Return(nil).Times(1)
	m.repo.EXPECT().InvalidateIncidentCache(ctx, incidentID).Return(nil).Times(1)
	m.notifier.EXPECT().BroadcastStatusUpdate(existingIncident).Times(1)
	m.publisher.EXPECT().
		Publish(ctx, gomock.Any()).
		Do(func(ctx context.Context, event webhook.WebhookEvent) {
			assert.Equal(t, webhook.EventIncidentStatusUpdated, event.Event)
		}).Return(nil).Times(1)

	// Действие
	incident, err := service.UpdateIncidentStatus(ctx, incidentID, models.StatusInProgress, &newDescription)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, incident.Status)
	assert.Equal(t, newDescription, incident.Description)
}

func TestUpdateIncidentStatus_KeepsDescriptionWhenNil(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	existingIncident := &models.Incident{
		ID:          incidentID,
		Status:      models.StatusOpen,
		Description: "Исходное описание",
	}

	// Ожидания
	m.repo.EXPECT().GetByID(ctx, incidentID).Return(existingIncident, nil).Times(1)
	m.repo.EXPECT().UpdateStatus(ctx, existingIncident).Return(nil).Times(1)
	m.repo.EXPECT().InvalidateIncidentCache(ctx, incidentID).Return(nil).Times(1)
	m.notifier.EXPECT().BroadcastStatusUpdate(existingIncident).Times(1)
	m.publisher.EXPECT().Publish(ctx, gomock.Any()).Return(nil).Times(1)

	// Действие
	incident, err := service.UpdateIncidentStatus(ctx, incidentID, models.StatusResolved, nil)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, incident.Status)
	assert.Equal(t, "Исходное описание", incident.Description)
}

func TestUpdateIncidentStatus_NotFound(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	repoError := fmt.Errorf("не найдено")

	// Ожидания
	m.repo.EXPECT().GetByID(ctx, incidentID).Return(nil, repoError).Times(1)

	// Действие
	incident, err := service.UpdateIncidentStatus(ctx, incidentID, models.StatusResolved, nil)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incident)
	assert.ErrorContains(t, err, "not found for update")
}

func TestDeleteIncident_Success(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	existingIncident := &models.Incident{ID: incidentID}

	// Ожидания
	m.repo.EXPECT().GetByID(ctx, incidentID).Return(existingIncident, nil).Times(1)
	m.repo.EXPECT().Delete(ctx, incidentID).Return(nil).Times(1)
	m.repo.EXPECT().InvalidateIncidentCache(ctx, incidentID).Return(nil).Times(1)
	m.notifier.EXPECT().BroadcastDeleted(incidentID).Times(1)
	m.publisher.EXPECT().
		Publish(ctx, gomock.Any()).
		Do(func(ctx context.Context, event webhook.WebhookEvent) {
			assert.Equal(t, webhook.EventIncidentDeleted, event.Event)
		}).Return(nil).Times(1)

	// Действие
	err := service.DeleteIncident(ctx, incidentID)

	// Проверки
	require.NoError(t, err)
}

func TestDeleteIncident_NotFound(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	incidentID := uuid.New()
	repoError := fmt.Errorf("не найдено")

	// Ожидания
	m.repo.EXPECT().GetByID(ctx, incidentID).Return(nil, repoError).Times(1)

	// Действие
	err := service.DeleteIncident(ctx, incidentID)

	// Проверки
	require.Error(t, err)
	assert.ErrorContains(t, err, "not found for delete")
}

func TestListNearbyIncidents_Success(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	userID := "user-123"
	location := &models.UserLocation{
		UserID:    userID,
		Latitude:  40.7128,
		Longitude: -74.0060,
	}
	expectedIncidents := []*models.Incident{
		{ID: uuid.New(), Category: models.CategoryLaneClosure},
	}

	// Ожидания
	m.repo.EXPECT().GetUserLocation(ctx, userID).Return(location, nil).Times(1)
	m.repo.EXPECT().ListNearby(ctx, 40.7128, -74.0060, 3000).Return(expectedIncidents, nil).Times(1)

	// Действие
	incidents, err := service.ListNearbyIncidents(ctx, userID, 3000)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expectedIncidents, incidents)
}

func TestListNearbyIncidents_LocationNotFound(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	repoError := fmt.Errorf("не найдено")

	// Ожидания
	m.repo.EXPECT().GetUserLocation(ctx, "ghost").Return(nil, repoError).Times(1)

	// Действие
	incidents, err := service.ListNearbyIncidents(ctx, "ghost", 5000)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, incidents)
	assert.ErrorContains(t, err, "user location not found")
}

func TestSaveUserLocation_RoundsCoordinates(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания
	m.repo.EXPECT().
		UpsertUserLocation(ctx, gomock.Any()).
		Do(func(ctx context.Context, location *models.UserLocation) {
			assert.Equal(t, "user-1", location.UserID)
			// Координаты округляются до 6 знаков перед записью
			assert.Equal(t, 40.712850, location.Latitude)
			assert.Equal(t, -74.006012, location.Longitude)
			assert.Equal(t, 5000, location.NotificationRadius)
		}).Return(nil).Times(1)

	// Действие
	err := service.SaveUserLocation(ctx, "user-1", 40.71284999, -74.00601234, 5000)

	// Проверки
	require.NoError(t, err)
}

func TestGetAnalyticsSummary_Success(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания
	m.repo.EXPECT().CountTotal(ctx).Return(42, nil).Times(1)
	m.repo.EXPECT().CountCreatedSince(ctx, gomock.Any()).Return(7, nil).Times(1)
	m.repo.EXPECT().CountsByCategory(ctx).Return(map[string]int{models.CategoryPothole: 40, models.CategoryPolice: 2}, nil).Times(1)
	m.repo.EXPECT().CountsByPriority(ctx).Return(map[string]int{models.PriorityHigh: 42}, nil).Times(1)
	m.repo.EXPECT().CountsByStatus(ctx).Return(map[string]int{models.StatusOpen: 42}, nil).Times(1)

	// Действие
	summary, err := service.GetAnalyticsSummary(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, 42, summary.TotalIncidents)
	assert.Equal(t, 7, summary.RecentIncidents)
	assert.Equal(t, 40, summary.ByCategory[models.CategoryPothole])
	assert.Equal(t, 42, summary.ByPriority[models.PriorityHigh])
	assert.Equal(t, 42, summary.ByStatus[models.StatusOpen])
}

func TestRunTrendAnalysis_Delegates(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()
	expected := &analytics.TrendAnalysis{
		AIModelStatus: "optimal",
		TotalAnalyzed: 12,
	}

	// Ожидания
	m.analyzer.EXPECT().Analyze(ctx).Return(expected, nil).Times(1)

	// Действие
	result, err := service.RunTrendAnalysis(ctx)

	// Проверки
	require.NoError(t, err)
	assert.Equal(t, expected, result)
}

func TestRunTrendAnalysis_Error(t *testing.T) {
	// Подготовка
	service, m := newTestIncidentService(t)
	ctx := context.Background()

	// Ожидания
	m.analyzer.EXPECT().Analyze(ctx).Return(nil, fmt.Errorf("сбой выборки")).Times(1)

	// Действие
	result, err := service.RunTrendAnalysis(ctx)

	// Проверки
	require.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorContains(t, err, "trend analysis failed")
}
