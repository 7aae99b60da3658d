package v1

import "github.com/shenikar/incident_intelligence_system/internal/models"

// DTOToIncidentModel преобразует DTO создания в доменную модель
func DTOToIncidentModel(dto CreateIncidentRequest) *models.Incident {
	return &models.Incident{
		Category:    dto.Category,
		Description: dto.Description,
		Priority:    dto.Priority,
		Latitude:    dto.Latitude,
		Longitude:   dto.Longitude,
	}
}

// ModelToIncidentResponse преобразует доменную модель в DTO для ответа
func ModelToIncidentResponse(model *models.Incident) *IncidentResponse {
	return &IncidentResponse{
		ID:          model.ID,
		Category:    model.Category,
		Description: model.Description,
		Priority:    model.Priority,
		Status:      model.Status,
		Latitude:    model.Latitude,
		Longitude:   model.Longitude,
		Address:     model.Address,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

// ModelsToIncidentResponses преобразует слайс моделей в слайс DTO
func ModelsToIncidentResponses(models []*models.Incident) []*IncidentResponse {
	responses := make([]*IncidentResponse, len(models))
	for i, model := range models {
		responses[i] = ModelToIncidentResponse(model)
	}
	return responses
}
