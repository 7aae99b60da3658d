package analytics

import "sort"

// defaultEps - радиус соседства, если ни один пробный не дал
// оцениваемого разбиения
const defaultEps = 0.3

// minClusterPoints - минимум точек для образования кластера
const minClusterPoints = 2

// Detection - результат адаптивной кластеризации
type Detection struct {
	Eps      float64 // выбранный радиус соседства
	Quality  float64 // лучший силуэт, -1 если ни одно разбиение не оценено
	Labels   []int   // финальные метки точек
	Clusters [][]int // индексы точек по кластерам, в порядке меток
}

// Detector - адаптивная плотностная кластеризация: перебирает пробные
// радиусы соседства и выбирает разбиение с лучшим силуэтом
type Detector struct {
	trials []float64
	minPts int
}

// NewDetector создает Detector с упорядоченным набором пробных радиусов
func NewDetector(trials []float64) *Detector {
	return &Detector{trials: trials, minPts: minClusterPoints}
}

// Detect подбирает радиус и возвращает финальное разбиение.
// Пробное разбиение оценивается, только если в нём больше одного кластера
// и есть хотя бы одна шумовая точка. При равном качестве остаётся более
// ранний пробный радиус. Без случайности: результат детерминирован.
func (d *Detector) Detect(points []Point) Detection {
	bestEps := defaultEps
	bestScore := -1.0

	for _, eps := range d.trials {
		labels := Cluster(points, ClusteringParams{Eps: eps, MinPts: d.minPts})
		if !evaluable(labels) {
			continue
		}
		score, ok := SilhouetteScore(points, labels)
		if ok && score > bestScore {
			bestScore = score
			bestEps = eps
		}
	}

	// Финальный прогон с выбранным радиусом
	labels := Cluster(points, ClusteringParams{Eps: bestEps, MinPts: d.minPts})

	return Detection{
		Eps:      bestEps,
		Quality:  bestScore,
		Labels:   labels,
		Clusters: groupByLabel(labels),
	}
}

// evaluable - в разбиении больше одной метки и присутствует шум
func evaluable(labels []int) bool {
	distinct := make(map[int]struct{})
	hasNoise := false
	for _, label := range labels {
		distinct[label] = struct{}{}
		if label == NoiseLabel {
			hasNoise = true
		}
	}
	return len(distinct) > 1 && hasNoise
}

// groupByLabel собирает индексы точек по кластерам, шум отбрасывается
func groupByLabel(labels []int) [][]int {
	byLabel := make(map[int][]int)
	for i, label := range labels {
		if label == NoiseLabel {
			continue
		}
		byLabel[label] = append(byLabel[label], i)
	}

	order := make([]int, 0, len(byLabel))
	for label := range byLabel {
		order = append(order, label)
	}
	sort.Ints(order)

	clusters := make([][]int, 0, len(order))
	for _, label := range order {
		clusters = append(clusters, byLabel[label])
	}
	return clusters
}
