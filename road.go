package grvl

import (
	"math"
	"strings"

	"github.com/paulmach/osm"
)

const (
	// SlopeUnknown marks road (or segment) which slope has not been estimated
	SlopeUnknown = -1.0
)

// Road is a snapshot of OSM way fetched from road data provider
type Road struct {
	ID       osm.WayID
	Points   []GeoPoint
	Tags     map[string]string
	Score    int
	MaxSlope float64
	// Elevations holds interpolated elevation (meters) for every point of the road. Empty until slope is estimated
	Elevations []float64

	lengthMeters float64
}

// NewRoad creates road from OSM way data. Tag map is copied
func NewRoad(id osm.WayID, points []GeoPoint, tags map[string]string) *Road {
	tagMap := make(map[string]string, len(tags))
	for k, v := range tags {
		tagMap[k] = v
	}
	return &Road{
		ID:           id,
		Points:       points,
		Tags:         tagMap,
		MaxSlope:     SlopeUnknown,
		lengthMeters: getSphericalLength(points),
	}
}

// Length returns polyline length (meters)
func (road *Road) Length() float64 {
	return road.lengthMeters
}

// Surface returns lowercased `surface` tag value
func (road *Road) Surface() string {
	return normalizeTagValue(road.Tags[TagSurface])
}

// HasSlope checks if max slope of the road is known
func (road *Road) HasSlope() bool {
	return road.MaxSlope >= 0
}

// Tag returns value for given tag key
func (road *Road) Tag(key string) string {
	return road.Tags[key]
}

// steepestPoint returns the point where elevation changes most rapidly along the road.
// Returns false when elevations have not been estimated
func (road *Road) steepestPoint() (GeoPoint, bool) {
	if len(road.Elevations) != len(road.Points) || len(road.Points) < 2 {
		return GeoPoint{}, false
	}
	best := -1.0
	var bestPoint GeoPoint
	for i := 1; i < len(road.Points); i++ {
		dist := greatCircleDistance(road.Points[i-1], road.Points[i])
		if dist < minSlopeSampleDistance {
			continue
		}
		grade := math.Abs(road.Elevations[i]-road.Elevations[i-1]) / dist
		if grade > best {
			best = grade
			bestPoint = road.Points[i]
		}
	}
	if best < 0 {
		return road.Points[0], true
	}
	return bestPoint, true
}

// tagsFromOSM converts OSM tags to plain map with lowercased keys
func tagsFromOSM(tags osm.Tags) map[string]string {
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		result[strings.ToLower(tag.Key)] = tag.Value
	}
	return result
}

// uniqueRoads removes duplicates (by way ID) keeping first occurrence order
func uniqueRoads(roads []*Road) []*Road {
	seen := make(map[osm.WayID]struct{}, len(roads))
	result := make([]*Road, 0, len(roads))
	for _, road := range roads {
		if _, ok := seen[road.ID]; ok {
			continue
		}
		seen[road.ID] = struct{}{}
		result = append(result, road)
	}
	return result
}
