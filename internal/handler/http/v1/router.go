package v1

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes регистрирует все маршруты API v1
func (h *Handler) RegisterRoutes(api *gin.RouterGroup) {
	// Маршруты для работы с инцидентами
	incidents := api.Group("/incidents")
	{
		incidents.POST("", h.createIncident)
		incidents.GET("", h.listIncidents)
		incidents.GET("/nearby/:user_id", h.listNearbyIncidents)
		incidents.GET("/:id", h.getIncident)
		incidents.PUT("/:id", h.updateIncidentStatus)
	}

	// Маршрут аналитики горячих точек
	api.GET("/trend-analysis", h.getTrendAnalysis)

	// Маршруты администрирования, защищены API-ключом
	admin := api.Group("/admin", APIKeyAuthMiddleware(h.cfg, h.logger))
	{
		admin.GET("/incidents", h.listAdminIncidents)
		admin.DELETE("/incidents/:id", h.deleteIncident)
		admin.GET("/analytics", h.getAnalyticsSummary)
	}

	// Маршрут Health-check
	api.GET("/system/health", h.healthCheck)
}
