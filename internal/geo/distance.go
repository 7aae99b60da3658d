package geo

import "math"

// EarthRadiusMeters - средний радиус Земли в метрах
const EarthRadiusMeters = 6371000.0

// DistanceMeters вычисляет расстояние по дуге большого круга между двумя
// точками в метрах по формуле гаверсинуса. Координаты в градусах.
// Сферическая модель Земли: для радиусов оповещения в километры
// точности достаточно.
func DistanceMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	dLat := (lat2 - lat1) * math.Pi / 180
	dLon := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Asin(math.Sqrt(a))

	return c * EarthRadiusMeters
}
