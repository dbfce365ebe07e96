package station

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// PointFootprint returns the station coordinate as its extraction geometry.
func PointFootprint(s Station) orb.Geometry {
	return s.Point()
}

// BoxFootprint returns a square polygon of boxSize metres per side centred on
// the station. A non-positive boxSize falls back to the point footprint.
func BoxFootprint(s Station, boxSize float64) orb.Geometry {
	if boxSize <= 0 {
		return PointFootprint(s)
	}
	bound := geo.NewBoundAroundPoint(s.Point(), boxSize/2)
	return bound.ToPolygon()
}

// WithFootprints returns copies of records whose stations carry a point
// (boxSize <= 0) or box footprint.
func WithFootprints(records []Record, boxSize float64) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		r.Station.Footprint = BoxFootprint(r.Station, boxSize)
		out[i] = r
	}
	return out
}

// FootprintType returns "Point", "Polygon" or "" for a missing footprint.
func FootprintType(g orb.Geometry) string {
	if g == nil {
		return ""
	}
	return g.GeoJSONType()
}
