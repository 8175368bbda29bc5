package grvl

import (
	"math"
	"testing"

	"github.com/paulmach/osm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var matcherOrigin = GeoPoint{Lat: 45, Lon: 10}

// offsetPoint returns point shifted from origin by given meters
func offsetPoint(origin GeoPoint, east, north float64) GeoPoint {
	return GeoPoint{
		Lat: origin.Lat + north/earthRadiusMeters*pi180Rev,
		Lon: origin.Lon + east/(earthRadiusMeters*math.Cos(origin.Lat*pi180))*pi180Rev,
	}
}

// orientedRoad returns 400 m road centered at (east, north) offset heading to given bearing
func orientedRoad(id int64, east, north, heading float64, tags map[string]string) *Road {
	dx := math.Sin(heading*pi180) * 200
	dy := math.Cos(heading*pi180) * 200
	points := []GeoPoint{
		offsetPoint(matcherOrigin, east-dx, north-dy),
		offsetPoint(matcherOrigin, east, north),
		offsetPoint(matcherOrigin, east+dx, north+dy),
	}
	return NewRoad(osm.WayID(id), points, tags)
}

func northboundSegment() *RouteSegment {
	start := offsetPoint(matcherOrigin, 0, -50)
	end := offsetPoint(matcherOrigin, 0, 50)
	return &RouteSegment{Start: start, End: end, Distance: greatCircleDistance(start, end), Slope: SlopeUnknown}
}

func TestMatchPrefersAlignedRoad(t *testing.T) {
	roadA := orientedRoad(1, 30, 0, 10, nil)
	roadB := orientedRoad(2, -25, 0, 190, nil)
	matcher := NewRoadMatcher(MatcherConfig{})

	match := matcher.Match(northboundSegment(), []*Road{roadB, roadA})
	require.NotNil(t, match)
	assert.Equal(t, roadA, match.Road)
	assert.InDelta(t, 30*math.Cos(10*pi180), match.Distance, 0.5)
	assert.InDelta(t, 10.0, match.BearingDiff, 0.5)
	assert.InDelta(t, match.Distance, match.Score, 1e-9)

	// Alone, B is still accepted with the opposite direction penalty
	matchB := matcher.Match(northboundSegment(), []*Road{roadB})
	require.NotNil(t, matchB)
	assert.InDelta(t, 170.0, matchB.BearingDiff, 0.5)
	assert.InDelta(t, 3*matchB.Distance, matchB.Score, 1e-9)
}

func TestMatchThreshold(t *testing.T) {
	matcher := NewRoadMatcher(MatcherConfig{MaxDistance: 100})
	far := orientedRoad(1, 150, 0, 0, nil)
	assert.Nil(t, matcher.Match(northboundSegment(), []*Road{far}))

	// 40 m away but opposite: 40 + 80 > 100
	opposite := orientedRoad(2, 40, 0, 180, nil)
	assert.Nil(t, matcher.Match(northboundSegment(), []*Road{opposite}))

	// Larger threshold accepts it
	assert.NotNil(t, NewRoadMatcher(MatcherConfig{MaxDistance: 150}).Match(northboundSegment(), []*Road{opposite}))
}

func TestMatchEmptyAndDegenerate(t *testing.T) {
	matcher := NewRoadMatcher(MatcherConfig{})
	assert.Nil(t, matcher.Match(northboundSegment(), nil))
	assert.Nil(t, matcher.Match(nil, []*Road{orientedRoad(1, 0, 0, 0, nil)}))
	single := NewRoad(2, []GeoPoint{matcherOrigin}, nil)
	assert.Nil(t, matcher.Match(northboundSegment(), []*Road{nil, single}))
	assert.Equal(t, DefaultMatchDistance, matcher.Config().MaxDistance)
}

func TestMatchTieKeepsFirst(t *testing.T) {
	first := orientedRoad(1, 20, 0, 0, nil)
	second := orientedRoad(2, 20, 0, 0, nil)
	match := NewRoadMatcher(MatcherConfig{}).Match(northboundSegment(), []*Road{first, second})
	require.NotNil(t, match)
	assert.Equal(t, first, match.Road)
}

func TestMatchPreFilterKeepsLongRoads(t *testing.T) {
	// First point is 2 km away but the road passes 10 m from the segment
	points := []GeoPoint{
		offsetPoint(matcherOrigin, 10, -2000),
		offsetPoint(matcherOrigin, 10, 2000),
	}
	road := NewRoad(1, points, nil)
	match := NewRoadMatcher(MatcherConfig{}).Match(northboundSegment(), []*Road{road})
	require.NotNil(t, match)
	assert.InDelta(t, 10.0, match.Distance, 0.5)
}
