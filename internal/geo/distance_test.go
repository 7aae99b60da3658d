package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters_SamePoint(t *testing.T) {
	distance := DistanceMeters(40.7128, -74.0060, 40.7128, -74.0060)
	assert.Zero(t, distance)
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	d1 := DistanceMeters(55.7558, 37.6173, 59.9343, 30.3351)
	d2 := DistanceMeters(59.9343, 30.3351, 55.7558, 37.6173)
	assert.InDelta(t, d1, d2, 1e-9)
}

func TestDistanceMeters_KnownDistance(t *testing.T) {
	// Москва - Санкт-Петербург, около 634 км
	distance := DistanceMeters(55.7558, 37.6173, 59.9343, 30.3351)
	assert.InDelta(t, 634000, distance, 5000)
}

func TestDistanceMeters_NearbyPoints(t *testing.T) {
	// Две точки в Нью-Йорке в сотне метров друг от друга:
	// должны попадать в радиус оповещения по умолчанию
	distance := DistanceMeters(40.7128, -74.0060, 40.7135, -74.0065)
	assert.Greater(t, distance, 0.0)
	assert.Less(t, distance, 5000.0)
}
