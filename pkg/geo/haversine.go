package geo

import "math"

// EarthRadiusKm is the IUGG mean Earth radius.
const EarthRadiusKm = 6371.0088

// boxMargin widens the bounding box so rounding never drops a vessel the
// exact check would keep.
const boxMargin = 1e-6

// Haversine returns the great-circle distance in kilometres between two points
// given in decimal degrees.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := radians(lat1), radians(lat2)
	dPhi := radians(lat2 - lat1)
	dLambda := radians(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	if a > 1 {
		a = 1
	}
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(a))
}

// box is a degree-space prefilter around a centre. allLon is set when the
// circle reaches a pole or spans more than a hemisphere.
type box struct {
	lat, lon   float64
	dLat, dLon float64
	allLon     bool
}

func newBox(lat, lon, radiusKm float64) box {
	angular := radiusKm / EarthRadiusKm
	b := box{lat: lat, lon: lon, dLat: degrees(angular) + boxMargin}
	if angular >= math.Pi/2 || math.Abs(lat)+b.dLat >= 90 {
		b.allLon = true
		return b
	}
	ratio := math.Sin(angular) / math.Cos(radians(lat))
	if ratio >= 1 {
		b.allLon = true
		return b
	}
	b.dLon = degrees(math.Asin(ratio)) + boxMargin
	return b
}

func (b box) contains(lat, lon float64) bool {
	if math.Abs(lat-b.lat) > b.dLat {
		return false
	}
	if b.allLon {
		return true
	}
	return lonDelta(lon, b.lon) <= b.dLon
}

// lonDelta is the absolute longitude difference taking the antimeridian into account.
func lonDelta(a, b float64) float64 {
	d := math.Abs(a - b)
	if d > 180 {
		d = 360 - d
	}
	return d
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }
func degrees(rad float64) float64 { return rad * 180 / math.Pi }
