package grvl

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// FallbackElevation is substituted for every point of a failed elevation batch (meters)
	FallbackElevation = 100.0
	// MaxReportedSlope is the ceiling of any reported slope (percent)
	MaxReportedSlope = 35.0

	defaultElevationBatchSize  = 10
	defaultElevationBatchDelay = 500 * time.Millisecond

	minSlopeSampleDistance = 20.0
	minValidElevation      = -100.0
	maxValidElevation      = 5000.0
	maxValidSlope          = 40.0
)

// ElevationProvider returns elevations (meters) for given points.
// Result must be parallel to input; NaN marks a missing value
type ElevationProvider interface {
	Elevations(ctx context.Context, points []GeoPoint) ([]float64, error)
}

// SlopeResult is outcome of slope estimation for a single road
type SlopeResult struct {
	// MaxSlope is the steepest usable slope (percent) or SlopeUnknown
	MaxSlope float64
	// Elevations are interpolated for every original point
	Elevations []float64
	// Samples is number of sampled points
	Samples int
	// FailedBatches is number of elevation batches replaced with fallback value
	FailedBatches int
}

// SlopeEstimator samples elevation along a road and aggregates slope
type SlopeEstimator struct {
	provider          ElevationProvider
	batchSize         int
	limiter           *rate.Limiter
	fallbackElevation float64
	logger            *zap.Logger
}

// SlopeOption configures SlopeEstimator
type SlopeOption func(*SlopeEstimator)

// WithElevationBatchSize sets number of points per elevation request
func WithElevationBatchSize(batchSize int) SlopeOption {
	return func(est *SlopeEstimator) {
		if batchSize > 0 {
			est.batchSize = batchSize
		}
	}
}

// WithElevationBatchDelay sets delay between elevation requests. Zero disables waiting
func WithElevationBatchDelay(delay time.Duration) SlopeOption {
	return func(est *SlopeEstimator) {
		est.limiter = newDelayLimiter(delay)
	}
}

// WithSlopeLogger sets logger
func WithSlopeLogger(logger *zap.Logger) SlopeOption {
	return func(est *SlopeEstimator) {
		est.logger = logger
	}
}

// NewSlopeEstimator creates estimator on top of given elevation provider
func NewSlopeEstimator(provider ElevationProvider, options ...SlopeOption) *SlopeEstimator {
	est := &SlopeEstimator{
		provider:          provider,
		batchSize:         defaultElevationBatchSize,
		limiter:           newDelayLimiter(defaultElevationBatchDelay),
		fallbackElevation: FallbackElevation,
		logger:            zap.L(),
	}
	for _, option := range options {
		option(est)
	}
	return est
}

// newDelayLimiter returns limiter allowing one event per delay. First event passes immediately
func newDelayLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// sampleCount returns number of elevation samples for road of given length (meters)
func sampleCount(length float64) int {
	switch {
	case length < 100:
		return 3
	case length < 500:
		return max(4, int(length/75))
	default:
		return min(10, int(length/100))
	}
}

// samplePoints returns points spread evenly along the line. The last vertex is always included
func samplePoints(line []GeoPoint) []GeoPoint {
	if len(line) == 0 {
		return nil
	}
	length := getSphericalLength(line)
	samples := sampleCount(length)
	interval := length / float64(samples-1)
	result := make([]GeoPoint, 0, samples)
	for i := 0; i < samples-1; i++ {
		result = append(result, pointAlongLine(line, interval*float64(i)))
	}
	result = append(result, line[len(line)-1])
	return result
}

// Estimate returns max slope of the road and elevations for each of its points.
// It never fails: absence of elevation data yields SlopeUnknown
func (est *SlopeEstimator) Estimate(ctx context.Context, points []GeoPoint) SlopeResult {
	result := SlopeResult{MaxSlope: SlopeUnknown}
	if len(points) < 2 || est.provider == nil {
		return result
	}
	samples := samplePoints(points)
	result.Samples = len(samples)

	elevations, valid, failed := est.fetchElevations(ctx, samples)
	result.FailedBatches = failed
	result.MaxSlope = maxSlope(samples, elevations, valid)
	result.Elevations = interpolateElevations(points, samples, elevations)
	return result
}

// EstimateRoad estimates slope for road and stores max slope and elevations in it
func (est *SlopeEstimator) EstimateRoad(ctx context.Context, road *Road) SlopeResult {
	result := est.Estimate(ctx, road.Points)
	road.MaxSlope = result.MaxSlope
	if len(result.Elevations) == len(road.Points) {
		road.Elevations = result.Elevations
	}
	return result
}

// fetchElevations queries provider in batches. Points of failed batches get fallback elevation and are marked invalid
func (est *SlopeEstimator) fetchElevations(ctx context.Context, samples []GeoPoint) ([]float64, []bool, int) {
	elevations := make([]float64, len(samples))
	valid := make([]bool, len(samples))
	failed := 0
	for start := 0; start < len(samples); start += est.batchSize {
		end := min(start+est.batchSize, len(samples))
		batch := samples[start:end]
		values, err := est.fetchBatch(ctx, batch)
		if err != nil {
			failed++
			est.logger.Warn("elevation batch failed, using fallback",
				zap.Int("batch_start", start),
				zap.Int("batch_size", len(batch)),
				zap.Error(err),
			)
			for i := start; i < end; i++ {
				elevations[i] = est.fallbackElevation
			}
			continue
		}
		for i, v := range values {
			elevations[start+i] = v
			valid[start+i] = !math.IsNaN(v)
			if !valid[start+i] {
				elevations[start+i] = est.fallbackElevation
			}
		}
	}
	return elevations, valid, failed
}

func (est *SlopeEstimator) fetchBatch(ctx context.Context, batch []GeoPoint) ([]float64, error) {
	if err := est.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	values, err := est.provider.Elevations(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(values) != len(batch) {
		return nil, errElevationMismatch
	}
	return values, nil
}

// maxSlope returns the largest valid slope between consecutive samples clamped to MaxReportedSlope
func maxSlope(samples []GeoPoint, elevations []float64, valid []bool) float64 {
	best := SlopeUnknown
	for i := 1; i < len(samples); i++ {
		if !valid[i-1] || !valid[i] {
			continue
		}
		e1, e2 := elevations[i-1], elevations[i]
		if e1 < minValidElevation || e1 > maxValidElevation || e2 < minValidElevation || e2 > maxValidElevation {
			continue
		}
		dist := greatCircleDistance(samples[i-1], samples[i])
		if dist < minSlopeSampleDistance {
			continue
		}
		slope := math.Abs(e2-e1) / dist * 100.0
		if slope < 0 || slope > maxValidSlope {
			continue
		}
		if slope > best {
			best = slope
		}
	}
	if best > MaxReportedSlope {
		best = MaxReportedSlope
	}
	return best
}

// interpolateElevations assigns to every point elevation of the nearest sample
func interpolateElevations(points, samples []GeoPoint, elevations []float64) []float64 {
	result := make([]float64, len(points))
	for i, pt := range points {
		nearest := 0
		nearestDist := math.Inf(1)
		for j, sample := range samples {
			d := greatCircleDistance(pt, sample)
			if d < nearestDist {
				nearestDist = d
				nearest = j
			}
		}
		result[i] = elevations[nearest]
	}
	return result
}
