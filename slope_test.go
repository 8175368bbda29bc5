package grvl

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// funcElevationProvider computes elevation from point coordinates
type funcElevationProvider struct {
	mu    sync.Mutex
	calls int
	fn    func(pt GeoPoint) float64
	err   error
}

func (p *funcElevationProvider) Elevations(ctx context.Context, points []GeoPoint) ([]float64, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	result := make([]float64, len(points))
	for i, pt := range points {
		result[i] = p.fn(pt)
	}
	return result, nil
}

func newTestEstimator(provider ElevationProvider) *SlopeEstimator {
	return NewSlopeEstimator(provider, WithElevationBatchDelay(0))
}

// gradeProvider returns elevation rising northwards with given grade (percent)
func gradeProvider(origin GeoPoint, grade float64) *funcElevationProvider {
	return &funcElevationProvider{fn: func(pt GeoPoint) float64 {
		return greatCircleDistance(origin, GeoPoint{Lat: pt.Lat, Lon: origin.Lon}) * grade / 100.0
	}}
}

func TestSampleCount(t *testing.T) {
	assert.Equal(t, 3, sampleCount(50))
	assert.Equal(t, 4, sampleCount(200))
	assert.Equal(t, 6, sampleCount(450))
	assert.Equal(t, 5, sampleCount(550))
	assert.Equal(t, 10, sampleCount(5000))
}

func TestSamplePointsIncludeLastVertex(t *testing.T) {
	line := straightLine(GeoPoint{Lat: 45, Lon: 10}, 730, 7)
	samples := samplePoints(line)
	require.Len(t, samples, 7)
	assert.Equal(t, line[0], samples[0])
	assert.Equal(t, line[len(line)-1], samples[len(samples)-1])
}

func TestEstimateFlatRoad(t *testing.T) {
	line := straightLine(GeoPoint{Lat: 45, Lon: 10}, 600, 4)
	provider := &funcElevationProvider{fn: func(GeoPoint) float64 { return 250 }}
	result := newTestEstimator(provider).Estimate(context.Background(), line)
	assert.InDelta(t, 0.0, result.MaxSlope, 1e-9)
	require.Len(t, result.Elevations, len(line))
	for _, e := range result.Elevations {
		assert.InDelta(t, 250.0, e, 1e-9)
	}
}

func TestEstimateGrade(t *testing.T) {
	origin := GeoPoint{Lat: 45, Lon: 10}
	line := straightLine(origin, 1000, 3)
	result := newTestEstimator(gradeProvider(origin, 6)).Estimate(context.Background(), line)
	assert.InDelta(t, 6.0, result.MaxSlope, 0.05)
	assert.Equal(t, 10, result.Samples)
}

func TestEstimateClampsSlope(t *testing.T) {
	origin := GeoPoint{Lat: 45, Lon: 10}
	line := straightLine(origin, 1000, 3)
	// 38% is still valid but must be reported as 35%
	result := newTestEstimator(gradeProvider(origin, 38)).Estimate(context.Background(), line)
	assert.InDelta(t, MaxReportedSlope, result.MaxSlope, 1e-9)

	// 60% is discarded as measurement error
	result = newTestEstimator(gradeProvider(origin, 60)).Estimate(context.Background(), line)
	assert.Equal(t, SlopeUnknown, result.MaxSlope)
}

func TestEstimateProviderFailure(t *testing.T) {
	line := straightLine(GeoPoint{Lat: 45, Lon: 10}, 1000, 3)
	provider := &funcElevationProvider{err: errors.New("boom")}
	result := newTestEstimator(provider).Estimate(context.Background(), line)
	assert.Equal(t, SlopeUnknown, result.MaxSlope)
	assert.Equal(t, 1, result.FailedBatches)
	require.Len(t, result.Elevations, len(line))
	for _, e := range result.Elevations {
		assert.InDelta(t, FallbackElevation, e, 1e-9)
	}
}

func TestEstimateBatches(t *testing.T) {
	origin := GeoPoint{Lat: 45, Lon: 10}
	line := straightLine(origin, 1000, 3)
	provider := gradeProvider(origin, 3)
	est := NewSlopeEstimator(provider, WithElevationBatchDelay(0), WithElevationBatchSize(3))
	result := est.Estimate(context.Background(), line)
	// 10 samples by 3 points per batch
	assert.Equal(t, 4, provider.calls)
	assert.InDelta(t, 3.0, result.MaxSlope, 0.05)
}

func TestEstimateInvalidElevations(t *testing.T) {
	line := straightLine(GeoPoint{Lat: 45, Lon: 10}, 1000, 3)
	provider := &funcElevationProvider{fn: func(GeoPoint) float64 { return math.NaN() }}
	result := newTestEstimator(provider).Estimate(context.Background(), line)
	assert.Equal(t, SlopeUnknown, result.MaxSlope)

	provider = &funcElevationProvider{fn: func(pt GeoPoint) float64 { return 9000 }}
	result = newTestEstimator(provider).Estimate(context.Background(), line)
	assert.Equal(t, SlopeUnknown, result.MaxSlope)
}

func TestEstimateShortRoadUnknown(t *testing.T) {
	origin := GeoPoint{Lat: 45, Lon: 10}
	// 30 meters long: samples are closer than 20 meters to each other
	line := straightLine(origin, 30, 2)
	result := newTestEstimator(gradeProvider(origin, 10)).Estimate(context.Background(), line)
	assert.Equal(t, SlopeUnknown, result.MaxSlope)
}

func TestEstimateRoadStoresResult(t *testing.T) {
	origin := GeoPoint{Lat: 45, Lon: 10}
	road := NewRoad(1, straightLine(origin, 800, 5), map[string]string{"surface": "gravel"})
	newTestEstimator(gradeProvider(origin, 5)).EstimateRoad(context.Background(), road)
	assert.True(t, road.HasSlope())
	assert.InDelta(t, 5.0, road.MaxSlope, 0.05)
	assert.Len(t, road.Elevations, len(road.Points))
}
