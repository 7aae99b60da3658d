package analytics

// SilhouetteScore вычисляет средний силуэт разбиения, игнорируя шумовые
// точки. Возвращает ok=false, если после отбрасывания шума не остаётся
// хотя бы двух кластеров и двух точек.
//
// Для каждой точки: a - среднее расстояние до своего кластера,
// b - минимальное из средних расстояний до чужих, s = (b-a)/max(a,b).
// Точка в кластере-одиночке получает s = 0.
func SilhouetteScore(points []Point, labels []int) (float64, bool) {
	clusterSizes := make(map[int]int)
	for _, label := range labels {
		if label == NoiseLabel {
			continue
		}
		clusterSizes[label]++
	}
	if len(clusterSizes) < 2 {
		return 0, false
	}

	total := 0.0
	counted := 0
	for i, label := range labels {
		if label == NoiseLabel {
			continue
		}

		if clusterSizes[label] == 1 {
			counted++
			continue // s = 0
		}

		// Суммы расстояний до каждого кластера
		sums := make(map[int]float64)
		for j, other := range labels {
			if other == NoiseLabel || j == i {
				continue
			}
			sums[other] += euclidean(points[i], points[j])
		}

		a := sums[label] / float64(clusterSizes[label]-1)
		b := 0.0
		first := true
		for other, sum := range sums {
			if other == label {
				continue
			}
			mean := sum / float64(clusterSizes[other])
			if first || mean < b {
				b = mean
				first = false
			}
		}

		denom := a
		if b > denom {
			denom = b
		}
		if denom > 0 {
			total += (b - a) / denom
		}
		counted++
	}

	if counted < 2 {
		return 0, false
	}
	return total / float64(counted), true
}
