package grvl

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

const (
	pi180    = math.Pi / 180.0
	pi180Rev = 180.0 / math.Pi
)

// GeoPoint representation of point on Earth
type GeoPoint struct {
	Lat float64
	Lon float64
}

// String returns pretty printed value for for GeoPoint
func (gp GeoPoint) String() string {
	return fmt.Sprintf("Lon: %f | Lat: %f", gp.Lon, gp.Lat)
}

// Point returns orb representation of GeoPoint (X == Lon, Y == Lat)
func (gp GeoPoint) Point() orb.Point {
	return orb.Point{gp.Lon, gp.Lat}
}

// geoPointFromOrb converts orb point back to GeoPoint
func geoPointFromOrb(pt orb.Point) GeoPoint {
	return GeoPoint{Lat: pt.Lat(), Lon: pt.Lon()}
}

// degreesToRadians deg = r * pi / 180
func degreesToRadians(d float64) float64 {
	return d * pi180
}

// radiansTodegrees r = deg  * 180 / pi
func radiansTodegrees(d float64) float64 {
	return d * pi180Rev
}

// greatCircleDistance returns distance between two geo-points (meters)
func greatCircleDistance(p, q GeoPoint) float64 {
	return geo.DistanceHaversine(p.Point(), q.Point())
}

// getSphericalLength returns length for given line (meters)
func getSphericalLength(line []GeoPoint) float64 {
	totalLength := 0.0
	if len(line) < 2 {
		return totalLength
	}
	for i := 1; i < len(line); i++ {
		totalLength += greatCircleDistance(line[i-1], line[i])
	}
	return totalLength
}

// bearing returns initial bearing from p to q in degrees [0; 360)
func bearing(p, q GeoPoint) float64 {
	b := geo.Bearing(p.Point(), q.Point())
	return math.Mod(b+360.0, 360.0)
}

// bearingDifference returns the smallest angle between two bearings in degrees [0; 180]
func bearingDifference(b1, b2 float64) float64 {
	diff := math.Abs(math.Mod(b1-b2, 360.0))
	if diff > 180.0 {
		diff = 360.0 - diff
	}
	return diff
}

// middlePointSegment return middle point for given segment
func middlePointSegment(p, q GeoPoint) GeoPoint {
	lat1 := degreesToRadians(p.Lat)
	lon1 := degreesToRadians(p.Lon)
	lat2 := degreesToRadians(q.Lat)
	lon2 := degreesToRadians(q.Lon)

	Bx := math.Cos(lat2) * math.Cos(lon2-lon1)
	By := math.Cos(lat2) * math.Sin(lon2-lon1)

	latMid := math.Atan2(math.Sin(lat1)+math.Sin(lat2), math.Sqrt((math.Cos(lat1)+Bx)*(math.Cos(lat1)+Bx)+By*By))
	lonMid := lon1 + math.Atan2(By, math.Cos(lat1)+Bx)
	return GeoPoint{Lat: radiansTodegrees(latMid), Lon: radiansTodegrees(lonMid)}
}

// pointOnSegmentByFraction returns a point on given segment using linear interpolation of coordinates
func pointOnSegmentByFraction(p, q GeoPoint, fraction float64) GeoPoint {
	return GeoPoint{
		Lon: (1-fraction)*p.Lon + (fraction * q.Lon),
		Lat: (1-fraction)*p.Lat + (fraction * q.Lat),
	}
}

// pointAlongLine returns a point located at given distance (meters) from the start of the line.
// Distances beyond the line length return the last point.
func pointAlongLine(line []GeoPoint, distance float64) GeoPoint {
	if len(line) == 0 {
		return GeoPoint{}
	}
	if distance <= 0 {
		return line[0]
	}
	cl := 0.0
	for i := 1; i < len(line); i++ {
		segLength := greatCircleDistance(line[i-1], line[i])
		if cl+segLength >= distance {
			if segLength == 0 {
				return line[i]
			}
			return pointOnSegmentByFraction(line[i-1], line[i], (distance-cl)/segLength)
		}
		cl += segLength
	}
	return line[len(line)-1]
}

// copyLine returns copy of given line
func copyLine(pts []GeoPoint) []GeoPoint {
	output := make([]GeoPoint, len(pts))
	copy(output, pts)
	return output
}
