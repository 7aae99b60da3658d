package models

import (
	"time"

	"github.com/google/uuid"
)

// Допустимые категории инцидентов
const (
	CategoryPothole       = "Pothole"
	CategoryWildlife      = "Wildlife"
	CategoryStreetLight   = "Street Light Out"
	CategoryDebris        = "Debris/Trash"
	CategoryTrafficJam    = "Traffic Jam"
	CategoryCarAccident   = "Car Accident"
	CategoryBrokenDownCar = "Broken Down Car"
	CategoryLaneClosure   = "Lane Closure"
	CategoryPolice        = "Police"
)

// Приоритеты инцидентов
const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

// Статусы жизненного цикла инцидента
const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
)

type Incident struct {
	ID          uuid.UUID `json:"id"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Address     string    `json:"address"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// categoryCodes - числовые коды категорий для вектора признаков аналитики
var categoryCodes = map[string]float64{
	CategoryPothole:       0,
	CategoryWildlife:      1,
	CategoryStreetLight:   2,
	CategoryDebris:        3,
	CategoryTrafficJam:    4,
	CategoryCarAccident:   5,
	CategoryBrokenDownCar: 6,
	CategoryLaneClosure:   7,
	CategoryPolice:        8,
}

var priorityCodes = map[string]float64{
	PriorityLow:    0,
	PriorityMedium: 1,
	PriorityHigh:   2,
}

// CategoryCode возвращает числовой код категории, 0 для неизвестной
func CategoryCode(category string) float64 {
	return categoryCodes[category]
}

// PriorityCode возвращает числовой код приоритета, 1 (Medium) для неизвестного
func PriorityCode(priority string) float64 {
	if code, ok := priorityCodes[priority]; ok {
		return code
	}
	return 1
}

// PriorityWeight возвращает вес приоритета для оценки риска: Low=1, Medium=2, High=3
func PriorityWeight(priority string) float64 {
	return priorityCodes[priority] + 1
}
