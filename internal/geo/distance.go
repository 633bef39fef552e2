package geo

import "math"

// EarthRadiusKm 地球平均半径（公里）
const EarthRadiusKm = 6371.0

// DistanceKm 使用 haversine 公式计算两点间的大圆距离（公里）
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLon := toRadians(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// Within 判断点是否在圆形区域内（含边界）
func Within(centerLat, centerLon, radiusKm, lat, lon float64) bool {
	return DistanceKm(centerLat, centerLon, lat, lon) <= radiusKm
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}
