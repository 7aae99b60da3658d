package analytics

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/shenikar/incident_intelligence_system/internal/config"
	"github.com/shenikar/incident_intelligence_system/internal/models"
	"github.com/sirupsen/logrus"
)

// Статусы аналитической модели
const (
	StatusInsufficientData = "insufficient_data"
	StatusOptimal          = "optimal"
	StatusSuboptimal       = "suboptimal"
)

// insufficientDataMessage возвращается при нехватке данных для анализа
const insufficientDataMessage = "Not enough data for AI analysis (need at least 5 incidents)"

// hotspotRadiusKm - условный радиус горячей точки в ответе
const hotspotRadiusKm = 0.5

// IncidentSource поставляет инциденты за скользящее окно
type IncidentSource interface {
	FetchRecent(ctx context.Context, since time.Time) ([]*models.Incident, error)
}

// Geocoder переводит координаты в название места. Best-effort:
// при любом сбое возвращает литерал-заглушку, не ошибку.
type Geocoder interface {
	LocationName(ctx context.Context, latitude, longitude float64) string
}

// Coordinates - географический центр кластера
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Hotspot - кластер недавних инцидентов с агрегированной оценкой риска
type Hotspot struct {
	Center             Coordinates `json:"center"`
	LocationName       string      `json:"location_name"`
	IncidentCount      int         `json:"incident_count"`
	MostCommonCategory string      `json:"most_common_category"`
	MostCommonPriority string      `json:"most_common_priority"`
	RiskScore          int         `json:"risk_score"`
	RadiusKm           float64     `json:"radius_km"`
	AIInsights         RiskFactors `json:"ai_insights"`
}

// MLMetrics - метрики качества прогона модели
type MLMetrics struct {
	OptimalClusteringEps   float64 `json:"optimal_clustering_eps"`
	ClusteringQualityScore float64 `json:"clustering_quality_score"`
	ClustersFound          int     `json:"clusters_found"`
	PredictionsGenerated   int     `json:"predictions_generated"`
	DataSufficiency        string  `json:"data_sufficiency"`
}

// InsightsSummary - сводные флаги по результатам анализа
type InsightsSummary struct {
	TemporalPatternsDetected bool   `json:"temporal_patterns_detected"`
	SpatialClusteringQuality string `json:"spatial_clustering_quality"`
	AnomalyDetectionActive   bool   `json:"anomaly_detection_active"`
}

// TrendAnalysis - полный результат аналитического прогона
type TrendAnalysis struct {
	Hotspots           []Hotspot        `json:"hotspots"`
	Predictions        []Prediction     `json:"predictions"`
	TotalAnalyzed      int              `json:"total_analyzed"`
	AnalysisPeriodDays int              `json:"analysis_period_days"`
	AIModelStatus      string           `json:"ai_model_status"`
	Message            string           `json:"message,omitempty"`
	MLMetrics          *MLMetrics       `json:"ml_metrics,omitempty"`
	AIInsights         *InsightsSummary `json:"ai_insights,omitempty"`
}

// Engine - аналитический конвейер: окно инцидентов -> кластеризация ->
// оценка риска -> предсказания -> ранжирование. Состояние между вызовами
// не сохраняется, каждый прогон считает всё заново.
type Engine struct {
	source       IncidentSource
	geocoder     Geocoder
	detector     *Detector
	logger       *logrus.Logger
	windowDays   int
	minIncidents int

	// Переопределяются в тестах для детерминизма
	Now     func() time.Time
	NewRand func() *rand.Rand
}

// NewEngine создает аналитический движок с параметрами из конфигурации
func NewEngine(source IncidentSource, geocoder Geocoder, cfg *config.Config, logger *logrus.Logger) *Engine {
	return &Engine{
		source:       source,
		geocoder:     geocoder,
		detector:     NewDetector(cfg.ClusterEpsTrials),
		logger:       logger,
		windowDays:   cfg.AnalysisWindowDays,
		minIncidents: cfg.AnalysisMinIncidents,
		Now:          time.Now,
		NewRand: func() *rand.Rand {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		},
	}
}

// Analyze выполняет один полный аналитический прогон
func (e *Engine) Analyze(ctx context.Context) (*TrendAnalysis, error) {
	log := e.logger.WithField("component", "analytics")
	now := e.Now()

	since := now.AddDate(0, 0, -e.windowDays)
	incidents, err := e.source.FetchRecent(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("analytics: failed to fetch recent incidents: %w", err)
	}

	// Нехватка данных - нормальный исход, не ошибка
	if len(incidents) < e.minIncidents {
		log.WithField("incident_count", len(incidents)).Info("Not enough incidents for trend analysis")
		return &TrendAnalysis{
			Hotspots:           []Hotspot{},
			Predictions:        []Prediction{},
			TotalAnalyzed:      len(incidents),
			AnalysisPeriodDays: e.windowDays,
			AIModelStatus:      StatusInsufficientData,
			Message:            insufficientDataMessage,
		}, nil
	}

	points := make([]Point, len(incidents))
	for i, incident := range incidents {
		points[i] = Point{X: incident.Longitude, Y: incident.Latitude}
	}
	features := FeatureMatrix(incidents, now)

	detection := e.detector.Detect(points)

	rng := e.NewRand()

	// Модель аномалий обучается только на достаточной популяции
	var forest *IsolationForest
	if len(incidents) > 10 {
		forest = FitIsolationForest(features, rng)
	}

	hotspots := make([]Hotspot, 0, len(detection.Clusters))
	predictions := make([]Prediction, 0)

	for _, memberIdx := range detection.Clusters {
		members := make([]*models.Incident, len(memberIdx))
		clusterFeatures := make([][]float64, len(memberIdx))
		centerLat, centerLon := 0.0, 0.0
		for i, idx := range memberIdx {
			members[i] = incidents[idx]
			clusterFeatures[i] = features[idx]
			centerLat += points[idx].Y
			centerLon += points[idx].X
		}
		centerLat /= float64(len(memberIdx))
		centerLon /= float64(len(memberIdx))

		riskScore, factors := ScoreCluster(members, clusterFeatures, forest, now)

		hotspot := Hotspot{
			Center:             Coordinates{Latitude: centerLat, Longitude: centerLon},
			LocationName:       e.geocoder.LocationName(ctx, centerLat, centerLon),
			IncidentCount:      len(members),
			MostCommonCategory: mostCommon(members, func(m *models.Incident) string { return m.Category }),
			MostCommonPriority: mostCommon(members, func(m *models.Incident) string { return m.Priority }),
			RiskScore:          int(riskScore),
			RadiusKm:           hotspotRadiusKm,
			AIInsights:         factors,
		}

		// Предсказания считаются по неокруглённым факторам
		generated := GeneratePredictions(hotspot, len(hotspots), rng)
		hotspot.AIInsights = roundFactors(factors, detection.Quality)
		hotspots = append(hotspots, hotspot)
		for i := range generated {
			generated[i].LocationName = e.geocoder.LocationName(ctx, generated[i].Latitude, generated[i].Longitude)
		}
		predictions = append(predictions, generated...)
	}

	// Ранжирование: горячие точки по убыванию риска
	sortHotspotsByRisk(hotspots)

	status := StatusSuboptimal
	if len(hotspots) > 0 && detection.Quality > 0.3 {
		status = StatusOptimal
	}

	log.WithFields(logrus.Fields{
		"total_analyzed": len(incidents),
		"clusters_found": len(hotspots),
		"predictions":    len(predictions),
		"status":         status,
	}).Info("Trend analysis completed")

	return &TrendAnalysis{
		Hotspots:           hotspots,
		Predictions:        predictions,
		TotalAnalyzed:      len(incidents),
		AnalysisPeriodDays: e.windowDays,
		AIModelStatus:      status,
		MLMetrics: &MLMetrics{
			OptimalClusteringEps:   round3(detection.Eps),
			ClusteringQualityScore: round3(detection.Quality),
			ClustersFound:          len(hotspots),
			PredictionsGenerated:   len(predictions),
			DataSufficiency:        dataSufficiency(len(incidents)),
		},
		AIInsights: &InsightsSummary{
			TemporalPatternsDetected: anyHotspot(hotspots, func(h Hotspot) bool { return h.AIInsights.TemporalPattern > 10 }),
			SpatialClusteringQuality: clusteringQualityLabel(detection.Quality),
			AnomalyDetectionActive:   anyHotspot(hotspots, func(h Hotspot) bool { return h.AIInsights.AnomalyDetection > 5 }),
		},
	}, nil
}

// mostCommon возвращает самое частое значение атрибута среди членов кластера.
// При равенстве выигрывает встреченное раньше.
func mostCommon(members []*models.Incident, attr func(*models.Incident) string) string {
	counts := make(map[string]int)
	order := make([]string, 0, len(members))
	for _, m := range members {
		value := attr(m)
		if _, seen := counts[value]; !seen {
			order = append(order, value)
		}
		counts[value]++
	}

	best := ""
	bestCount := 0
	for _, value := range order {
		if counts[value] > bestCount {
			best = value
			bestCount = counts[value]
		}
	}
	return best
}

func sortHotspotsByRisk(hotspots []Hotspot) {
	// Сортировка вставками стабильна и сохраняет порядок при равном риске
	for i := 1; i < len(hotspots); i++ {
		for j := i; j > 0 && hotspots[j].RiskScore > hotspots[j-1].RiskScore; j-- {
			hotspots[j], hotspots[j-1] = hotspots[j-1], hotspots[j]
		}
	}
}

func anyHotspot(hotspots []Hotspot, predicate func(Hotspot) bool) bool {
	for _, h := range hotspots {
		if predicate(h) {
			return true
		}
	}
	return false
}

func clusteringQualityLabel(quality float64) string {
	switch {
	case quality > 0.5:
		return "high"
	case quality > 0.3:
		return "medium"
	default:
		return "low"
	}
}

func dataSufficiency(total int) string {
	if total >= 10 {
		return "sufficient"
	}
	return "limited"
}

func roundFactors(factors RiskFactors, quality float64) RiskFactors {
	return RiskFactors{
		TemporalPattern:   round1(factors.TemporalPattern),
		SpatialDensity:    round1(factors.SpatialDensity),
		PriorityWeight:    round1(factors.PriorityWeight),
		CategoryDiversity: round1(factors.CategoryDiversity),
		RecencyScore:      round1(factors.RecencyScore),
		AnomalyDetection:  round1(factors.AnomalyDetection),
		ClusteringQuality: round3(quality),
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
