package pricing

import (
	"math"

	"solar_price/internal/domain"
)

// ScaleAt derives the planar scale for a latitude (degrees).
func ScaleAt(lat float64) GeoScale {
	phi := lat * math.Pi / 180
	return GeoScale{
		KmPerDegLng: 111412.84 * math.Cos(phi) / 1000,
		KmPerDegLat: (111132.92 - 559.82*math.Cos(2*phi)) / 1000,
	}
}

func (s GeoScale) valid() bool { return s.KmPerDegLng > 0 && s.KmPerDegLat > 0 }

// GeoScale returns the region's declared scale, or one derived from its center.
func (c RegionCoefficients) GeoScale() GeoScale {
	if c.Scale.valid() {
		return c.Scale
	}
	if c.Center != nil {
		return ScaleAt(c.Center.Lat)
	}
	if c.BBox != [4]float64{} {
		return ScaleAt((c.BBox[1] + c.BBox[3]) / 2)
	}
	return ScaleAt(0)
}

// DistanceKm is the planar distance between a and b. Accurate to well under
// a percent at city scale, which is all the pricing signals need.
func (s GeoScale) DistanceKm(a, b domain.Centroid) float64 {
	dx := (a.Lng - b.Lng) * s.KmPerDegLng
	dy := (a.Lat - b.Lat) * s.KmPerDegLat
	return math.Hypot(dx, dy)
}

// NearestKm returns the distance to the closest point, or false if pts is empty.
func (s GeoScale) NearestKm(from domain.Centroid, pts []domain.Centroid) (float64, bool) {
	if len(pts) == 0 {
		return 0, false
	}
	best := math.Inf(1)
	for _, p := range pts {
		if d := s.DistanceKm(from, p); d < best {
			best = d
		}
	}
	return best, true
}

// HaversineKm is the great-circle distance, used where regions are not known
// (listings radius filter).
func HaversineKm(a, b domain.Centroid) float64 {
	const r = 6371.0
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * r * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Contains reports whether c lies inside the region bbox. Regions without a
// bbox contain nothing.
func (c RegionCoefficients) Contains(p domain.Centroid) bool {
	b := c.BBox
	if b == [4]float64{} {
		return false
	}
	return p.Lng >= b[0] && p.Lat >= b[1] && p.Lng <= b[2] && p.Lat <= b[3]
}
