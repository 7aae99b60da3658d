package analytics

import (
	"math"
	"math/rand"
)

// Пороговые значения генерации предсказаний
const (
	predictionRiskThreshold = 25 // предсказания только для значимых кластеров
	predictionsPerHotspot   = 2
	maxConfidence           = 90
)

// PredictionFactors - слагаемые уверенности предсказания
type PredictionFactors struct {
	BaseConfidence        int `json:"base_confidence"`
	DataQualityBonus      int `json:"data_quality_bonus"`
	TemporalPatternBonus  int `json:"temporal_pattern_bonus"`
	AnomalyDetectionBonus int `json:"anomaly_detection_bonus"`
}

// Prediction - вероятное место будущего инцидента рядом с горячей точкой
type Prediction struct {
	Latitude          float64           `json:"latitude"`
	Longitude         float64           `json:"longitude"`
	LocationName      string            `json:"location_name"`
	PredictedCategory string            `json:"predicted_category"`
	PredictedPriority string            `json:"predicted_priority"`
	Confidence        int               `json:"confidence"`
	HotspotID         int               `json:"hotspot_id"`
	PredictionFactors PredictionFactors `json:"prediction_factors"`
}

// GeneratePredictions выдает ровно два предсказания для кластера с риском
// выше порога, nil иначе. Координаты - центроид с гауссовым шумом по каждой
// оси; разброс растёт с риском. rng инъецируется, чтобы тесты могли
// зафиксировать зерно.
func GeneratePredictions(hotspot Hotspot, hotspotID int, rng *rand.Rand) []Prediction {
	riskScore := float64(hotspot.RiskScore)
	if riskScore <= predictionRiskThreshold {
		return nil
	}

	baseConfidence := riskScore * 0.3
	dataBonus := dataQualityBonus(hotspot.IncidentCount)
	temporalBonus := temporalPatternBonus(hotspot.AIInsights.TemporalPattern)
	anomalyBonus := anomalyDetectionBonus(hotspot.AIInsights.AnomalyDetection)

	confidence := int(math.Min(maxConfidence, baseConfidence+float64(dataBonus+temporalBonus+anomalyBonus)))

	spread := 0.005 + riskScore/100*0.01

	predictions := make([]Prediction, 0, predictionsPerHotspot)
	for i := 0; i < predictionsPerHotspot; i++ {
		predictions = append(predictions, Prediction{
			Latitude:          hotspot.Center.Latitude + rng.NormFloat64()*spread,
			Longitude:         hotspot.Center.Longitude + rng.NormFloat64()*spread,
			PredictedCategory: hotspot.MostCommonCategory,
			PredictedPriority: hotspot.MostCommonPriority,
			Confidence:        confidence,
			HotspotID:         hotspotID,
			PredictionFactors: PredictionFactors{
				BaseConfidence:        int(baseConfidence),
				DataQualityBonus:      dataBonus,
				TemporalPatternBonus:  temporalBonus,
				AnomalyDetectionBonus: anomalyBonus,
			},
		})
	}
	return predictions
}

// dataQualityBonus - бонус за объём данных в кластере
func dataQualityBonus(count int) int {
	switch {
	case count >= 8:
		return 25
	case count >= 5:
		return 20
	case count >= 3:
		return 15
	default:
		return 10
	}
}

// temporalPatternBonus - бонус за выраженную временную кучность
func temporalPatternBonus(temporal float64) int {
	switch {
	case temporal > 15:
		return 20
	case temporal > 10:
		return 15
	default:
		return 10
	}
}

// anomalyDetectionBonus - бонус за аномальность кластера
func anomalyDetectionBonus(anomaly float64) int {
	if anomaly > 5 {
		return 15
	}
	return 5
}
