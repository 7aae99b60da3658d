package v1

import (
	"time"

	"github.com/google/uuid"
)

// CreateIncidentRequest DTO для создания инцидента
// @Description DTO для создания инцидента
type CreateIncidentRequest struct {
	Category    string  `json:"category" validate:"required,oneof=Pothole Wildlife 'Street Light Out' 'Debris/Trash' 'Traffic Jam' 'Car Accident' 'Broken Down Car' 'Lane Closure' Police"`
	Description string  `json:"description,omitempty" validate:"omitempty,max=500"`
	Priority    string  `json:"priority" validate:"required,oneof=Low Medium High"`
	Latitude    float64 `json:"latitude" validate:"required,latitude"`
	Longitude   float64 `json:"longitude" validate:"required,longitude"`
}

// UpdateIncidentStatusRequest DTO для обновления статуса инцидента
// @Description DTO для обновления статуса инцидента
type UpdateIncidentStatusRequest struct {
	Status      string  `json:"status" validate:"required,oneof=Open 'In Progress' Resolved"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=500"`
}

// IncidentResponse DTO для ответа с информацией об инциденте
// @Description DTO для ответа с информацией об инциденте
type IncidentResponse struct {
	ID          uuid.UUID `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description,omitempty"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HealthResponse DTO для ответа health-check
// @Description DTO для ответа health-check
type HealthResponse struct {
	Status          string `json:"status"`
	Connections     int    `json:"connections"`
	RegisteredUsers int    `json:"registered_users"`
}
