package grvl

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinForScore(t *testing.T) {
	assert.Equal(t, BIN_EXCELLENT, BinForScore(20))
	assert.Equal(t, BIN_EXCELLENT, BinForScore(31))
	assert.Equal(t, BIN_DECENT, BinForScore(19))
	assert.Equal(t, BIN_DECENT, BinForScore(10))
	assert.Equal(t, BIN_POOR, BinForScore(9))
	assert.Equal(t, BIN_POOR, BinForScore(-12))
	assert.Equal(t, "unknown", BIN_UNKNOWN.String())
}

func classifiedSegments(t *testing.T) []*RouteSegment {
	t.Helper()
	segments := testSegments(t, 1000, 100)
	gravel := NewRoad(1, nil, map[string]string{"surface": "Gravel"})
	gravel.Score = 24
	asphalt := NewRoad(2, nil, map[string]string{"surface": "asphalt"})
	asphalt.Score = 12
	track := NewRoad(3, nil, map[string]string{"highway": "track"})
	track.Score = 3
	for i, seg := range segments {
		switch i % 4 {
		case 0:
			seg.assignRoad(gravel, 5)
		case 1:
			seg.assignRoad(asphalt, 5)
		case 2:
			seg.assignRoad(track, 5)
		}
	}
	return segments
}

func TestClassifyBinsSumToTotal(t *testing.T) {
	segments := classifiedSegments(t)
	c := Classify(segments)

	sum := 0.0
	for bin := QualityBin(0); bin < binsCount; bin++ {
		sum += c.Distance(bin)
	}
	assert.InEpsilon(t, c.TotalDistance, sum, 1e-6)
	assert.InDelta(t, totalDistance(segments), c.TotalDistance, 1e-9)

	percent := 0.0
	for _, p := range c.Percentages() {
		percent += p
	}
	assert.InDelta(t, 100.0, percent, 1e-6)

	assert.Greater(t, c.Distance(BIN_EXCELLENT), 0.0)
	assert.Greater(t, c.Distance(BIN_DECENT), 0.0)
	assert.Greater(t, c.Distance(BIN_POOR), 0.0)
	assert.Greater(t, c.Distance(BIN_UNKNOWN), 0.0)
	assert.Contains(t, c.Surfaces, "gravel")
	assert.Contains(t, c.Surfaces, "asphalt")
	assert.Contains(t, c.Surfaces, SurfaceUntagged)
	assert.Contains(t, c.Surfaces, SurfaceUnmatched)
	assert.InDelta(t, 100.0-c.Percent(BIN_UNKNOWN), c.Coverage(), 1e-9)
}

func TestClassifyUnmatchedRoute(t *testing.T) {
	segments := testSegments(t, 1000, 100)
	c := Classify(segments)
	assert.InDelta(t, 100.0, c.Percent(BIN_UNKNOWN), 1e-9)
	assert.InDelta(t, 0.0, c.Coverage(), 1e-9)
	assert.Equal(t, []string{SurfaceUnmatched}, c.SurfaceNames())

	empty := Classify(nil)
	assert.Equal(t, 0.0, empty.Coverage())
	assert.Equal(t, 0.0, empty.Percent(BIN_UNKNOWN))
}

func TestClassifyIdempotent(t *testing.T) {
	segments := classifiedSegments(t)
	first := Classify(segments)
	second := Classify(segments)
	assert.Equal(t, first.Distances, second.Distances)
	assert.Equal(t, first.Surfaces, second.Surfaces)
}

func TestRefineRescoresMatchedRoadsOnly(t *testing.T) {
	origin := GeoPoint{Lat: 45, Lon: 10}
	calc := NewScoreCalculator(DefaultScoreWeights())
	tags := map[string]string{"highway": "track", "surface": "compacted", "smoothness": "good", "tracktype": "grade1"}

	matched := NewRoad(1, straightLine(origin, 1000, 5), tags)
	matched.Score = calc.ScoreRoad(matched)
	unmatched := NewRoad(2, straightLine(origin, 1000, 5), tags)
	unmatched.Score = calc.ScoreRoad(unmatched)

	segments := testSegments(t, 1000, 100)
	for _, seg := range segments {
		seg.assignRoad(matched, 1)
	}
	before := Classify(segments)

	provider := gradeProvider(origin, 14)
	estimator := newTestEstimator(provider)
	after := Refine(context.Background(), segments, estimator, calc, time.Second)

	assert.True(t, matched.HasSlope())
	assert.False(t, unmatched.HasSlope())
	assert.Less(t, matched.Score, unmatched.Score)
	assert.Equal(t, 1, provider.calls)
	assert.Empty(t, after.Warnings)
	assert.InDelta(t, before.TotalDistance, after.TotalDistance, 1e-9)
	for _, seg := range segments {
		assert.InDelta(t, matched.MaxSlope, seg.Slope, 1e-9)
	}
}

func TestRefineDegradesOnFailure(t *testing.T) {
	origin := GeoPoint{Lat: 45, Lon: 10}
	calc := NewScoreCalculator(DefaultScoreWeights())
	road := NewRoad(1, straightLine(origin, 1000, 5), map[string]string{"surface": "gravel"})
	road.Score = calc.ScoreRoad(road)
	firstPass := road.Score

	segments := testSegments(t, 1000, 100)
	for _, seg := range segments {
		seg.assignRoad(road, 1)
	}
	before := Classify(segments)
	failing := newTestEstimator(&funcElevationProvider{err: errors.New("offline")})
	after := Refine(context.Background(), segments, failing, calc, time.Second)
	assert.Equal(t, firstPass, road.Score)
	assert.Equal(t, before.Distances, after.Distances)

	noEstimator := Refine(context.Background(), segments, nil, calc, time.Second)
	assert.NotEmpty(t, noEstimator.Warnings)
}

func TestRefineDeadline(t *testing.T) {
	origin := GeoPoint{Lat: 45, Lon: 10}
	calc := NewScoreCalculator(DefaultScoreWeights())
	road := NewRoad(1, straightLine(origin, 1000, 5), map[string]string{"surface": "gravel"})
	road.Score = 7
	segments := testSegments(t, 1000, 100)
	for _, seg := range segments {
		seg.assignRoad(road, 1)
	}
	slow := &blockingElevationProvider{}
	after := Refine(context.Background(), segments, newTestEstimator(slow), calc, 20*time.Millisecond)
	assert.Equal(t, 7, road.Score)
	assert.False(t, road.HasSlope())
	require.Len(t, after.Warnings, 1)
	assert.Contains(t, after.Warnings[0], "0 of 1")
}

// blockingElevationProvider waits for context cancellation
type blockingElevationProvider struct{}

func (blockingElevationProvider) Elevations(ctx context.Context, points []GeoPoint) ([]float64, error) {
	<-ctx.Done()
	result := make([]float64, len(points))
	for i := range result {
		result[i] = math.NaN()
	}
	return result, ctx.Err()
}
