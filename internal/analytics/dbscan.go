package analytics

import "math"

// NoiseLabel - метка шумовой точки, не вошедшей ни в один кластер
const NoiseLabel = -1

// Point - координата инцидента (долгота, широта) в градусах.
// Кластеризация работает на сырых градусах без проекции: градусное
// расстояние неоднородно по широте, поведение сохранено намеренно.
type Point struct {
	X float64 // долгота
	Y float64 // широта
}

// ClusteringParams - параметры алгоритма кластеризации
type ClusteringParams struct {
	Eps    float64 // радиус соседства в градусах
	MinPts int     // минимум точек для образования кластера
}

// Cluster выполняет DBSCAN и возвращает метку кластера для каждой точки.
// Метки - неотрицательные номера в порядке обнаружения, шум - NoiseLabel.
// Результат детерминирован для фиксированного порядка точек.
func Cluster(points []Point, params ClusteringParams) []int {
	const unvisited = -2

	labels := make([]int, len(points))
	for i := range labels {
		labels[i] = unvisited
	}

	nextLabel := 0
	for i := range points {
		if labels[i] != unvisited {
			continue
		}

		neighbors := regionQuery(points, i, params.Eps)
		if len(neighbors) < params.MinPts {
			labels[i] = NoiseLabel
			continue
		}

		labels[i] = nextLabel
		// Расширение кластера: очередь соседей, растущая по мере обхода
		for qi := 0; qi < len(neighbors); qi++ {
			j := neighbors[qi]
			if labels[j] == NoiseLabel {
				labels[j] = nextLabel // шум на границе кластера становится его частью
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = nextLabel

			jNeighbors := regionQuery(points, j, params.Eps)
			if len(jNeighbors) >= params.MinPts {
				neighbors = append(neighbors, jNeighbors...)
			}
		}
		nextLabel++
	}

	return labels
}

// regionQuery возвращает индексы всех точек в eps-окрестности точки i,
// включая её саму
func regionQuery(points []Point, i int, eps float64) []int {
	var neighbors []int
	for j := range points {
		if euclidean(points[i], points[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// euclidean - евклидово расстояние между точками в градусах
func euclidean(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return math.Sqrt(dx*dx + dy*dy)
}
