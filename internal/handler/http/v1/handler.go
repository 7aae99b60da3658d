package v1

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shenikar/incident_intelligence_system/internal/config"
	"github.com/shenikar/incident_intelligence_system/internal/service"
	"github.com/shenikar/incident_intelligence_system/internal/ws"
	"github.com/sirupsen/logrus"
)

// Границы радиуса поиска ближайших инцидентов (в метрах)
const (
	minNearbyRadiusMeters = 100
	maxNearbyRadiusMeters = 50000
)

// SessionCounter отдает счетчики живых WebSocket-сессий для health-check
type SessionCounter interface {
	ConnectionCount() int
	RegisteredUserCount() int
}

type Handler struct {
	incidentService service.IncidentService
	sessions        SessionCounter
	logger          *logrus.Logger
	validate        *validator.Validate
	cfg             *config.Config
}

func NewHandler(incidentService service.IncidentService, sessions SessionCounter, logger *logrus.Logger, cfg *config.Config) *Handler {
	return &Handler{
		incidentService: incidentService,
		sessions:        sessions,
		logger:          logger,
		validate:        validator.New(),
		cfg:             cfg,
	}
}

// @Summary Create a new incident
// @Description Create a new incident report. The address is resolved from coordinates automatically.
// @Tags Incidents
// @Accept json
// @Produce json
// @Param incident body CreateIncidentRequest true "Incident creation request"
// @Success 201 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid request body or validation error"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [post]
func (h *Handler) createIncident(c *gin.Context) {
	var input CreateIncidentRequest
	log := h.logger.WithField("method", "createIncident")

	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	model := DTOToIncidentModel(input)
	if err := h.incidentService.CreateIncident(c.Request.Context(), model); err != nil {
		log.WithError(err).Error("Failed to create incident in service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, ModelToIncidentResponse(model))
}

// @Summary Get a list of incidents
// @Description Get all incidents ordered by creation time, newest first.
// @Tags Incidents
// @Accept json
// @Produce json
// @Success 200 {array} IncidentResponse
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /incidents [get]
func (h *Handler) listIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listIncidents")

	incidents, err := h.incidentService.ListIncidents(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list incidents from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Get incident by ID
// @Description Get a single incident by its ID.
// @Tags Incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /incidents/{id} [get]
func (h *Handler) getIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "getIncident").WithField("id", id)

	incident, err := h.incidentService.GetIncident(c.Request.Context(), id)
	if err != nil {
		log.WithError(err).Warn("Failed to get incident from service")
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Update incident status
// @Description Update the status (and optionally the description) of an existing incident.
// @Tags Incidents
// @Accept json
// @Produce json
// @Param id path string true "Incident ID"
// @Param incident body UpdateIncidentStatusRequest true "Status update request"
// @Success 200 {object} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid incident ID or request body"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /incidents/{id} [put]
func (h *Handler) updateIncidentStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "updateIncidentStatus").WithField("id", id)

	var input UpdateIncidentStatusRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		log.WithError(err).Warn("Failed to bind JSON")
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.validate.Struct(input); err != nil {
		log.WithError(err).Warn("Validation failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	incident, err := h.incidentService.UpdateIncidentStatus(c.Request.Context(), id, input.Status, input.Description)
	if err != nil {
		log.WithError(err).Warn("Failed to update incident status in service")
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}
	c.JSON(http.StatusOK, ModelToIncidentResponse(incident))
}

// @Summary Get incidents near a user
// @Description Get incidents within a radius of the user's last saved location.
// @Tags Incidents
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param radius_meters query int false "Search radius in meters" default(5000) minimum(100) maximum(50000)
// @Success 200 {array} IncidentResponse
// @Failure 400 {object} map[string]string "Invalid radius"
// @Failure 404 {object} map[string]string "User location not found"
// @Router /incidents/nearby/{user_id} [get]
func (h *Handler) listNearbyIncidents(c *gin.Context) {
	userID := c.Param("user_id")
	log := h.logger.WithField("method", "listNearbyIncidents").WithField("user_id", userID)

	radius, err := strconv.Atoi(c.DefaultQuery("radius_meters", strconv.Itoa(ws.DefaultNotificationRadius)))
	if err != nil || radius < minNearbyRadiusMeters || radius > maxNearbyRadiusMeters {
		c.JSON(http.StatusBadRequest, gin.H{"error": "radius_meters must be between 100 and 50000"})
		return
	}

	incidents, err := h.incidentService.ListNearbyIncidents(c.Request.Context(), userID, radius)
	if err != nil {
		log.WithError(err).Warn("Failed to find nearby incidents in service")
		c.JSON(http.StatusNotFound, gin.H{"error": "user location not found"})
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Run trend analysis
// @Description Run hotspot detection and predictive analysis over recent incidents.
// @Tags Analytics
// @Accept json
// @Produce json
// @Success 200 {object} analytics.TrendAnalysis
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /trend-analysis [get]
func (h *Handler) getTrendAnalysis(c *gin.Context) {
	log := h.logger.WithField("method", "getTrendAnalysis")

	result, err := h.incidentService.RunTrendAnalysis(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to run trend analysis")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, result)
}

// @Summary Get all incidents for administration
// @Description Get all incidents ordered by priority. Requires API key.
// @Tags Admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {array} IncidentResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/incidents [get]
func (h *Handler) listAdminIncidents(c *gin.Context) {
	log := h.logger.WithField("method", "listAdminIncidents")

	incidents, err := h.incidentService.ListAdminIncidents(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to list admin incidents from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, ModelsToIncidentResponses(incidents))
}

// @Summary Delete an incident
// @Description Permanently delete an incident by its ID. Requires API key.
// @Tags Admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "Incident ID"
// @Success 204 "No Content"
// @Failure 400 {object} map[string]string "Invalid incident ID"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Incident not found"
// @Router /admin/incidents/{id} [delete]
func (h *Handler) deleteIncident(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid incident ID"})
		return
	}
	log := h.logger.WithField("method", "deleteIncident").WithField("id", id)

	if err := h.incidentService.DeleteIncident(c.Request.Context(), id); err != nil {
		log.WithError(err).Warn("Failed to delete incident in service")
		c.JSON(http.StatusNotFound, gin.H{"error": "incident not found"})
		return
	}

	c.Status(http.StatusNoContent)
}

// @Summary Get incident analytics summary
// @Description Get aggregate incident counts by category, priority and status. Requires API key.
// @Tags Admin
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} models.AnalyticsSummary
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Internal server error"
// @Router /admin/analytics [get]
func (h *Handler) getAnalyticsSummary(c *gin.Context) {
	log := h.logger.WithField("method", "getAnalyticsSummary")

	summary, err := h.incidentService.GetAnalyticsSummary(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Failed to get analytics summary from service")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// @Summary Get application health status
// @Description Get health status of the application and live session counters
// @Tags System
// @Accept json
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /system/health [get]
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:          "ok",
		Connections:     h.sessions.ConnectionCount(),
		RegisteredUsers: h.sessions.RegisteredUserCount(),
	})
}
