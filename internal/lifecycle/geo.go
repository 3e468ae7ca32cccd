package lifecycle

import (
	"fmt"
	"math"
)

const earthRadiusKM = 6371.0

// DistanceKM is the great-circle (haversine) distance between two
// coordinates, in kilometres.
func DistanceKM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := radians(lat2 - lat1)
	dLon := radians(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(lat1))*math.Cos(radians(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKM * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

// Direction labels the bearing from the reader toward the target with a
// Chinese compass word. Both axes contribute: a target offset on latitude
// and longitude yields a diagonal label (東北, 東南, 西北, 西南), a
// single-axis offset a cardinal one, and a zero offset the empty string.
func Direction(fromLat, fromLon, toLat, toLon float64) string {
	dLat := toLat - fromLat
	dLon := toLon - fromLon

	var ew, ns string
	switch {
	case dLon > 0:
		ew = "東"
	case dLon < 0:
		ew = "西"
	}
	switch {
	case dLat > 0:
		ns = "北"
	case dLat < 0:
		ns = "南"
	}
	return ew + ns
}

// DistanceReadout renders the live locked-capsule banner: an in-range
// prompt at zero distance, otherwise the remaining kilometres with the
// compass direction toward the target.
func DistanceReadout(distanceKM float64, fromLat, fromLon, toLat, toLon float64) string {
	if distanceKM == 0 {
		return "您已在目標範圍內，點擊即可查看"
	}
	return fmt.Sprintf("距離目標範圍還有 %.2f 公里 (%s)", distanceKM, Direction(fromLat, fromLon, toLat, toLon))
}
