package analytics

import (
	"time"

	"github.com/shenikar/incident_intelligence_system/internal/models"
)

// FeatureVector строит вектор признаков инцидента для выделения аномалий:
// [долгота, широта, возраст в днях, час суток, день недели, код категории, код приоритета]
func FeatureVector(incident *models.Incident, now time.Time) []float64 {
	daysAgo := float64(int(now.Sub(incident.CreatedAt).Hours() / 24))
	hourOfDay := float64(incident.CreatedAt.Hour())
	// День недели с понедельником = 0
	dayOfWeek := float64((int(incident.CreatedAt.Weekday()) + 6) % 7)

	return []float64{
		incident.Longitude,
		incident.Latitude,
		daysAgo,
		hourOfDay,
		dayOfWeek,
		models.CategoryCode(incident.Category),
		models.PriorityCode(incident.Priority),
	}
}

// FeatureMatrix строит матрицу признаков для набора инцидентов
func FeatureMatrix(incidents []*models.Incident, now time.Time) [][]float64 {
	matrix := make([][]float64, len(incidents))
	for i, incident := range incidents {
		matrix[i] = FeatureVector(incident, now)
	}
	return matrix
}
