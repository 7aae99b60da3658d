package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shenikar/incident_intelligence_system/internal/analytics"
	"github.com/shenikar/incident_intelligence_system/internal/config"
	"github.com/shenikar/incident_intelligence_system/internal/models"
	"github.com/shenikar/incident_intelligence_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// fakeSessions - статичные счетчики сессий для health-check
type fakeSessions struct {
	connections int
	users       int
}

func (f fakeSessions) ConnectionCount() int     { return f.connections }
func (f fakeSessions) RegisteredUserCount() int { return f.users }

// newTestHandler создает новый экземпляр Handler с мокированным сервисом
func newTestHandler(t *testing.T) (*Handler, *mocks.MockIncidentService, *gin.Engine) {
	ctrl := gomock.NewController(t)
	mockService := mocks.NewMockIncidentService(ctrl)

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	cfg := &config.Config{
		APIKeys: []string{"test-api-key"},
	}

	handler := NewHandler(mockService, fakeSessions{connections: 3, users: 2}, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return handler, mockService, router
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateIncident_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	reqBody := CreateIncidentRequest{
		Category:    models.CategoryPothole,
		Description: "Глубокая яма",
		Priority:    models.PriorityHigh,
		Latitude:    40.7128,
		Longitude:   -74.0060,
	}

	mockService.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, inc *models.Incident) error {
			// Симулируем работу сервиса: статус, адрес, ID
			inc.ID = incidentID
			inc.Status = models.StatusOpen
			inc.Address = "Broadway, New York"
			inc.CreatedAt = time.Now()
			inc.UpdatedAt = inc.CreatedAt
			return nil
		}).Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, incidentID, resp.ID)
	assert.Equal(t, models.CategoryPothole, resp.Category)
	assert.Equal(t, models.StatusOpen, resp.Status)
	assert.Equal(t, "Broadway, New York", resp.Address)
}

func TestCreateIncident_InvalidJSON(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBufferString(`{"category": "Pothole"`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestCreateIncident_UnknownCategory(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	reqBody := CreateIncidentRequest{
		Category:  "Meteor Strike",
		Priority:  models.PriorityHigh,
		Latitude:  40.7128,
		Longitude: -74.0060,
	}

	mockService.EXPECT().CreateIncident(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error:Field validation for 'Category' failed on the 'oneof' tag")
}

func TestCreateIncident_ServiceError(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	reqBody := CreateIncidentRequest{
		Category:  models.CategoryWildlife,
		Priority:  models.PriorityLow,
		Latitude:  40.7128,
		Longitude: -74.0060,
	}
	serviceError := errors.New("failed to create incident in service")

	mockService.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any()).
		Return(serviceError).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestGetIncident_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	expectedIncident := &models.Incident{
		ID:       incidentID,
		Category: models.CategoryTrafficJam,
		Priority: models.PriorityMedium,
		Status:   models.StatusOpen,
	}

	mockService.EXPECT().GetIncident(gomock.Any(), incidentID).Return(expectedIncident, nil).Times(1)

	w := makeRequest(router, "GET", fmt.Sprintf("/api/v1/incidents/%s", incidentID.String()), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, incidentID, resp.ID)
	assert.Equal(t, models.CategoryTrafficJam, resp.Category)
}

func TestGetIncident_InvalidID(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().GetIncident(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "GET", "/api/v1/incidents/invalid-uuid", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestGetIncident_NotFound(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	serviceError := errors.New("incident not found")

	mockService.EXPECT().GetIncident(gomock.Any(), incidentID).Return(nil, serviceError).Times(1)

	w := makeRequest(router, "GET", fmt.Sprintf("/api/v1/incidents/%s", incidentID.String()), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "incident not found")
}

func TestListIncidents_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	expectedIncidents := []*models.Incident{
		{ID: uuid.New(), Category: models.CategoryPothole, Status: models.StatusOpen},
		{ID: uuid.New(), Category: models.CategoryPolice, Status: models.StatusResolved},
	}

	mockService.EXPECT().ListIncidents(gomock.Any()).Return(expectedIncidents, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Len(t, resp, 2)
	assert.Equal(t, expectedIncidents[0].Category, resp[0].Category)
}

func TestUpdateIncidentStatus_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	description := "Бригада на месте"
	reqBody := UpdateIncidentStatusRequest{
		Status:      models.StatusInProgress,
		Description: &description,
	}
	updatedIncident := &models.Incident{
		ID:          incidentID,
		Category:    models.CategoryCarAccident,
		Status:      models.StatusInProgress,
		Description: description,
	}

	mockService.EXPECT().
		UpdateIncidentStatus(gomock.Any(), incidentID, models.StatusInProgress, gomock.Any()).
		Return(updatedIncident, nil).
		Times(1)

	bodyBytes, _ := json.Marshal(reqBody)
	w := makeRequest(router, "PUT", fmt.Sprintf("/api/v1/incidents/%s", incidentID.String()), bytes.NewBuffer(bodyBytes))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, resp.Status)
}

func TestUpdateIncidentStatus_UnknownStatus(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().UpdateIncidentStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "PUT", fmt.Sprintf("/api/v1/incidents/%s", incidentID.String()), bytes.NewBufferString(`{"status": "Closed"}`))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Error:Field validation for 'Status' failed on the 'oneof' tag")
}

func TestUpdateIncidentStatus_NotFound(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	serviceError := errors.New("not found for update")

	mockService.EXPECT().
		UpdateIncidentStatus(gomock.Any(), incidentID, models.StatusResolved, gomock.Any()).
		Return(nil, serviceError).
		Times(1)

	w := makeRequest(router, "PUT", fmt.Sprintf("/api/v1/incidents/%s", incidentID.String()), bytes.NewBufferString(`{"status": "Resolved"}`))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "incident not found")
}

func TestListNearbyIncidents_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	expectedIncidents := []*models.Incident{
		{ID: uuid.New(), Category: models.CategoryLaneClosure},
	}

	mockService.EXPECT().ListNearbyIncidents(gomock.Any(), "user-123", 3000).Return(expectedIncidents, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/nearby/user-123?radius_meters=3000", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Len(t, resp, 1)
}

func TestListNearbyIncidents_DefaultRadius(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().ListNearbyIncidents(gomock.Any(), "user-123", 5000).Return([]*models.Incident{}, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/nearby/user-123", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListNearbyIncidents_RadiusOutOfBounds(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().ListNearbyIncidents(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/incidents/nearby/user-123?radius_meters=99", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "radius_meters must be between 100 and 50000")
}

func TestListNearbyIncidents_LocationNotFound(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	serviceError := errors.New("user location not found")

	mockService.EXPECT().ListNearbyIncidents(gomock.Any(), "ghost", 5000).Return(nil, serviceError).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/nearby/ghost", nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "user location not found")
}

func TestGetTrendAnalysis_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	expected := &analytics.TrendAnalysis{
		AIModelStatus:      "optimal",
		TotalAnalyzed:      12,
		AnalysisPeriodDays: 60,
	}

	mockService.EXPECT().RunTrendAnalysis(gomock.Any()).Return(expected, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/trend-analysis", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ai_model_status":"optimal"`)
	assert.Contains(t, w.Body.String(), `"total_analyzed":12`)
}

func TestGetTrendAnalysis_ServiceError(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().RunTrendAnalysis(gomock.Any()).Return(nil, errors.New("analysis failed")).Times(1)

	w := makeRequest(router, "GET", "/api/v1/trend-analysis", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestListAdminIncidents_RequiresAPIKey(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().ListAdminIncidents(gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/admin/incidents", nil) // Нет API ключа

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "API key required")
}

func TestListAdminIncidents_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	expectedIncidents := []*models.Incident{
		{ID: uuid.New(), Category: models.CategoryCarAccident, Priority: models.PriorityHigh},
		{ID: uuid.New(), Category: models.CategoryPothole, Priority: models.PriorityLow},
	}

	mockService.EXPECT().ListAdminIncidents(gomock.Any()).Return(expectedIncidents, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/admin/incidents", nil, map[string]string{"X-API-Key": "test-api-key"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Len(t, resp, 2)
	assert.Equal(t, models.PriorityHigh, resp[0].Priority)
}

func TestDeleteIncident_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()

	mockService.EXPECT().DeleteIncident(gomock.Any(), incidentID).Return(nil).Times(1)

	w := makeRequest(router, "DELETE", fmt.Sprintf("/api/v1/admin/incidents/%s", incidentID.String()), nil, map[string]string{"X-API-Key": "test-api-key"})

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestDeleteIncident_InvalidID(t *testing.T) {
	_, mockService, router := newTestHandler(t)

	mockService.EXPECT().DeleteIncident(gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "DELETE", "/api/v1/admin/incidents/invalid-uuid", nil, map[string]string{"X-API-Key": "test-api-key"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestDeleteIncident_NotFound(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	incidentID := uuid.New()
	serviceError := errors.New("not found for delete")

	mockService.EXPECT().DeleteIncident(gomock.Any(), incidentID).Return(serviceError).Times(1)

	w := makeRequest(router, "DELETE", fmt.Sprintf("/api/v1/admin/incidents/%s", incidentID.String()), nil, map[string]string{"X-API-Key": "test-api-key"})

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "incident not found")
}

func TestGetAnalyticsSummary_Success(t *testing.T) {
	_, mockService, router := newTestHandler(t)
	expected := &models.AnalyticsSummary{
		TotalIncidents:  42,
		RecentIncidents: 7,
		ByCategory:      map[string]int{models.CategoryPothole: 40},
		ByPriority:      map[string]int{models.PriorityHigh: 42},
		ByStatus:        map[string]int{models.StatusOpen: 42},
	}

	mockService.EXPECT().GetAnalyticsSummary(gomock.Any()).Return(expected, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/admin/analytics", nil, map[string]string{"X-API-Key": "test-api-key"})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total_incidents":42`)
	assert.Contains(t, w.Body.String(), `"recent_incidents":7`)
}

func TestHealthCheck_Success(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Connections)
	assert.Equal(t, 2, resp.RegisteredUsers)
}

func TestAPIKeyAuthMiddleware_Success(t *testing.T) {
	// Создаем Gin-роутер и добавляем middleware
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cfg := &config.Config{
		APIKeys: []string{"valid-key"},
	}

	router.Use(APIKeyAuthMiddleware(cfg, logger))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := makeRequest(router, "GET", "/test", nil, map[string]string{"X-API-Key": "valid-key"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthMiddleware_BearerToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cfg := &config.Config{
		APIKeys: []string{"valid-key"},
	}

	router.Use(APIKeyAuthMiddleware(cfg, logger))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := makeRequest(router, "GET", "/test", nil, map[string]string{"Authorization": "Bearer valid-key"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAPIKeyAuthMiddleware_InvalidKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{})

	cfg := &config.Config{
		APIKeys: []string{"valid-key"},
	}

	router.Use(APIKeyAuthMiddleware(cfg, logger))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := makeRequest(router, "GET", "/test", nil, map[string]string{"X-API-Key": "invalid-key"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid API key")
}
