package grvl

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/simplify"
)

const (
	// Mean Earth radius used by the local projection (meters)
	earthRadiusMeters = 6371008.8
)

// localProjection is an equirectangular projection centered at origin.
// Good enough for distances up to a few kilometers, which is all matching needs.
type localProjection struct {
	origin GeoPoint
	cosLat float64
}

func newLocalProjection(origin GeoPoint) localProjection {
	return localProjection{
		origin: origin,
		cosLat: math.Cos(degreesToRadians(origin.Lat)),
	}
}

// toEuclidean returns planar coordinates (meters) of given point relative to projection origin
func (proj localProjection) toEuclidean(pt GeoPoint) orb.Point {
	x := degreesToRadians(pt.Lon-proj.origin.Lon) * proj.cosLat * earthRadiusMeters
	y := degreesToRadians(pt.Lat-proj.origin.Lat) * earthRadiusMeters
	return orb.Point{x, y}
}

// distanceToSegment returns distance (meters) from the projection origin to segment [a, b]
func (proj localProjection) distanceToSegment(a, b GeoPoint) float64 {
	return planar.DistanceFromSegment(proj.toEuclidean(a), proj.toEuclidean(b), orb.Point{0, 0})
}

// boundOfLine returns bounding box for given line
func boundOfLine(line []GeoPoint) orb.Bound {
	if len(line) == 0 {
		return orb.Bound{}
	}
	bound := line[0].Point().Bound()
	for _, pt := range line[1:] {
		bound = bound.Extend(pt.Point())
	}
	return bound
}

// lineIntersectsBound checks whether any vertex of given line lies inside bound
func lineIntersectsBound(line []GeoPoint, bound orb.Bound) bool {
	for _, pt := range line {
		if bound.Contains(pt.Point()) {
			return true
		}
	}
	return false
}

// SimplifyLine reduces number of vertices with Douglas-Peucker. Tolerance is given in meters
// and converted to degrees of latitude, so it is approximate away from equator. End points are kept
func SimplifyLine(line []GeoPoint, tolerance float64) []GeoPoint {
	if len(line) < 3 || tolerance <= 0 {
		return line
	}
	ls := make(orb.LineString, len(line))
	for i := range line {
		ls[i] = line[i].Point()
	}
	simplified := simplify.DouglasPeucker(tolerance / (earthRadiusMeters * pi180)).LineString(ls.Clone())
	result := make([]GeoPoint, len(simplified))
	for i, pt := range simplified {
		result[i] = GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()}
	}
	return result
}
