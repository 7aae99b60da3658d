package analytics

import (
	"math"
	"math/rand"
)

// IsolationForest - модель выделения аномалий: ансамбль случайных деревьев
// изоляции. Аномальные наблюдения изолируются короткими путями.
// Источник случайности инъецируется, поэтому результат воспроизводим.
type IsolationForest struct {
	trees      []*isoNode
	sampleSize int
}

type isoNode struct {
	left, right *isoNode
	splitDim    int
	splitVal    float64
	size        int
}

const (
	defaultTreeCount  = 100
	defaultSampleSize = 256
)

// FitIsolationForest обучает лес на матрице признаков
func FitIsolationForest(data [][]float64, rng *rand.Rand) *IsolationForest {
	sampleSize := defaultSampleSize
	if len(data) < sampleSize {
		sampleSize = len(data)
	}
	heightLimit := int(math.Ceil(math.Log2(float64(sampleSize))))

	forest := &IsolationForest{
		trees:      make([]*isoNode, 0, defaultTreeCount),
		sampleSize: sampleSize,
	}
	for t := 0; t < defaultTreeCount; t++ {
		sample := subsample(data, sampleSize, rng)
		forest.trees = append(forest.trees, buildIsoTree(sample, 0, heightLimit, rng))
	}
	return forest
}

// DecisionValue возвращает оценку наблюдения в соглашении знаков
// decision_function: положительные значения - типичные точки,
// отрицательные - аномальные. Диапазон примерно [-0.5, 0.5].
func (f *IsolationForest) DecisionValue(x []float64) float64 {
	total := 0.0
	for _, tree := range f.trees {
		total += pathLength(tree, x, 0)
	}
	avgPath := total / float64(len(f.trees))

	norm := avgPathLength(f.sampleSize)
	if norm == 0 {
		return 0
	}
	anomalyScore := math.Pow(2, -avgPath/norm)
	return 0.5 - anomalyScore
}

func subsample(data [][]float64, n int, rng *rand.Rand) [][]float64 {
	if n >= len(data) {
		return data
	}
	perm := rng.Perm(len(data))
	sample := make([][]float64, n)
	for i := 0; i < n; i++ {
		sample[i] = data[perm[i]]
	}
	return sample
}

func buildIsoTree(data [][]float64, depth, heightLimit int, rng *rand.Rand) *isoNode {
	if len(data) <= 1 || depth >= heightLimit {
		return &isoNode{size: len(data)}
	}

	dims := len(data[0])
	splitDim := rng.Intn(dims)

	minV, maxV := data[0][splitDim], data[0][splitDim]
	for _, row := range data[1:] {
		v := row[splitDim]
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	if minV == maxV {
		return &isoNode{size: len(data)}
	}

	splitVal := minV + rng.Float64()*(maxV-minV)

	var left, right [][]float64
	for _, row := range data {
		if row[splitDim] < splitVal {
			left = append(left, row)
		} else {
			right = append(right, row)
		}
	}

	return &isoNode{
		left:     buildIsoTree(left, depth+1, heightLimit, rng),
		right:    buildIsoTree(right, depth+1, heightLimit, rng),
		splitDim: splitDim,
		splitVal: splitVal,
		size:     len(data),
	}
}

func pathLength(node *isoNode, x []float64, depth float64) float64 {
	if node.left == nil && node.right == nil {
		return depth + avgPathLength(node.size)
	}
	if x[node.splitDim] < node.splitVal {
		return pathLength(node.left, x, depth+1)
	}
	return pathLength(node.right, x, depth+1)
}

// avgPathLength - средняя длина пути неуспешного поиска в BST размера n,
// нормировочная константа c(n) из статьи об Isolation Forest
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	harmonic := math.Log(fn-1) + 0.5772156649 // число Эйлера-Маскерони
	return 2*harmonic - 2*(fn-1)/fn
}
