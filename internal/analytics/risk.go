package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shenikar/incident_intelligence_system/internal/models"
)

// referenceAreaKm2 - условная площадь кластера для оценки плотности
const referenceAreaKm2 = 0.5

// Границы итогового риска
const (
	minRiskScore = 5
	maxRiskScore = 100
)

// RiskFactors - составляющие риска кластера, публикуются для объяснимости
type RiskFactors struct {
	TemporalPattern   float64 `json:"temporal_pattern"`
	SpatialDensity    float64 `json:"spatial_density"`
	PriorityWeight    float64 `json:"priority_weight"`
	CategoryDiversity float64 `json:"category_diversity"`
	RecencyScore      float64 `json:"recency_score"`
	AnomalyDetection  float64 `json:"anomaly_detection"`
	ClusteringQuality float64 `json:"clustering_quality"`
}

// ScoreCluster вычисляет шесть независимых аддитивных факторов риска
// кластера и итоговую оценку, ограниченную [5, 100].
// forest может быть nil: при малой популяции фактор аномальности равен нулю.
func ScoreCluster(members []*models.Incident, clusterFeatures [][]float64, forest *IsolationForest, now time.Time) (float64, RiskFactors) {
	factors := RiskFactors{
		SpatialDensity:    densityScore(len(members)),
		TemporalPattern:   temporalScore(members),
		PriorityWeight:    priorityScore(members),
		CategoryDiversity: diversityScore(members),
		RecencyScore:      recencyScore(members, now),
		AnomalyDetection:  anomalyScore(clusterFeatures, forest),
	}

	score := factors.SpatialDensity +
		factors.TemporalPattern +
		factors.PriorityWeight +
		factors.CategoryDiversity +
		factors.RecencyScore +
		factors.AnomalyDetection

	return math.Min(maxRiskScore, math.Max(minRiskScore, score)), factors
}

// densityScore - пространственная плотность: min(25, (n / 0.5 км²) * 5)
func densityScore(count int) float64 {
	return math.Min(25, float64(count)/referenceAreaKm2*5)
}

// temporalScore - временная кучность: max(0, 20 - средний интервал в часах / 24).
// Ноль при менее чем двух инцидентах.
func temporalScore(members []*models.Incident) float64 {
	if len(members) < 2 {
		return 0
	}

	timestamps := make([]time.Time, len(members))
	for i, m := range members {
		timestamps[i] = m.CreatedAt
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i].Before(timestamps[j]) })

	totalHours := 0.0
	for i := 1; i < len(timestamps); i++ {
		totalHours += timestamps[i].Sub(timestamps[i-1]).Hours()
	}
	avgInterval := totalHours / float64(len(timestamps)-1)

	return math.Max(0, 20-avgInterval/24)
}

// priorityScore - средний вес приоритета (Low=1, Medium=2, High=3) * 10
func priorityScore(members []*models.Incident) float64 {
	total := 0.0
	for _, m := range members {
		total += models.PriorityWeight(m.Priority)
	}
	return total / float64(len(members)) * 10
}

// diversityScore - 5 за каждую уникальную категорию в кластере
func diversityScore(members []*models.Incident) float64 {
	distinct := make(map[string]struct{})
	for _, m := range members {
		distinct[m.Category] = struct{}{}
	}
	return float64(len(distinct)) * 5
}

// recencyScore - свежесть с экспоненциальным затуханием: 15 * exp(-возраст/10)
func recencyScore(members []*models.Incident, now time.Time) float64 {
	totalDays := 0.0
	for _, m := range members {
		totalDays += float64(int(now.Sub(m.CreatedAt).Hours() / 24))
	}
	avgDays := totalDays / float64(len(members))
	return 15 * math.Exp(-avgDays/10)
}

// anomalyScore - средняя оценка отклонения кластера от общей картины * 10
func anomalyScore(clusterFeatures [][]float64, forest *IsolationForest) float64 {
	if forest == nil || len(clusterFeatures) == 0 {
		return 0
	}
	total := 0.0
	for _, features := range clusterFeatures {
		total += forest.DecisionValue(features)
	}
	return total / float64(len(clusterFeatures)) * 10
}
