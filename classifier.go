package grvl

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// QualityBin is quality class of the road
type QualityBin uint16

const (
	BIN_EXCELLENT = QualityBin(iota)
	BIN_DECENT
	BIN_POOR
	BIN_UNKNOWN
)

const (
	binsCount = 4

	// ExcellentThreshold is the lowest score of excellent road
	ExcellentThreshold = 20
	// DecentThreshold is the lowest score of decent road
	DecentThreshold = 10

	// SurfaceUnmatched collects distance of segments without matched road
	SurfaceUnmatched = "unmatched"
	// SurfaceUntagged collects distance of matched roads without surface tag
	SurfaceUntagged = "untagged"
)

func (iotaIdx QualityBin) String() string {
	return [...]string{"excellent", "decent", "poor", "unknown"}[iotaIdx]
}

// BinForScore returns quality bin for road score
func BinForScore(score int) QualityBin {
	switch {
	case score >= ExcellentThreshold:
		return BIN_EXCELLENT
	case score >= DecentThreshold:
		return BIN_DECENT
	default:
		return BIN_POOR
	}
}

// Classification is aggregated quality of the route
type Classification struct {
	Distances     [binsCount]float64
	TotalDistance float64
	// Surfaces maps lowercased surface tag to distance (meters)
	Surfaces map[string]float64
	// Warnings are soft problems met while classifying
	Warnings []string
}

// Distance returns distance (meters) of given bin
func (c *Classification) Distance(bin QualityBin) float64 {
	return c.Distances[bin]
}

// Percent returns share of given bin in total distance [0; 100]
func (c *Classification) Percent(bin QualityBin) float64 {
	if c.TotalDistance <= 0 {
		return 0
	}
	return c.Distances[bin] / c.TotalDistance * 100.0
}

// Coverage returns share of matched distance [0; 100]
func (c *Classification) Coverage() float64 {
	if c.TotalDistance <= 0 {
		return 0
	}
	return 100.0 - c.Percent(BIN_UNKNOWN)
}

// Percentages returns share of every bin keyed by bin name
func (c *Classification) Percentages() map[string]float64 {
	result := make(map[string]float64, binsCount)
	for bin := QualityBin(0); bin < binsCount; bin++ {
		result[bin.String()] = c.Percent(bin)
	}
	return result
}

// SurfaceNames returns surfaces sorted by distance, descending
func (c *Classification) SurfaceNames() []string {
	names := make([]string, 0, len(c.Surfaces))
	for name := range c.Surfaces {
		names = append(names, name)
	}
	sort.SliceStable(names, func(i, j int) bool {
		if c.Surfaces[names[i]] == c.Surfaces[names[j]] {
			return names[i] < names[j]
		}
		return c.Surfaces[names[i]] > c.Surfaces[names[j]]
	})
	return names
}

func (c *Classification) String() string {
	parts := make([]string, 0, binsCount)
	for bin := QualityBin(0); bin < binsCount; bin++ {
		parts = append(parts, fmt.Sprintf("%s: %.1f%% (%.0f m)", bin, c.Percent(bin), c.Distances[bin]))
	}
	return fmt.Sprintf("Total: %.0f m | Coverage: %.1f%% | %s", c.TotalDistance, c.Coverage(), strings.Join(parts, " | "))
}

// Classify aggregates segments into quality bins and surface breakdown
func Classify(segments []*RouteSegment) *Classification {
	c := &Classification{
		Surfaces: make(map[string]float64),
	}
	for _, seg := range segments {
		c.TotalDistance += seg.Distance
		c.Distances[seg.Bin()] += seg.Distance
		c.Surfaces[surfaceKey(seg)] += seg.Distance
	}
	return c
}

func surfaceKey(seg *RouteSegment) string {
	if seg.Road == nil {
		return SurfaceUnmatched
	}
	if surface := seg.Road.Surface(); surface != "" {
		return surface
	}
	return SurfaceUntagged
}

// matchedRoads returns unique matched roads in order of first appearance
func matchedRoads(segments []*RouteSegment) []*Road {
	roads := make([]*Road, 0)
	for _, seg := range segments {
		if seg.Road != nil {
			roads = append(roads, seg.Road)
		}
	}
	return uniqueRoads(roads)
}

// Refine runs the second classification pass: slope is estimated only for matched roads,
// they are re-scored and classification is rebuilt from scratch.
// Roads not finished before wait elapses keep their current score
func Refine(ctx context.Context, segments []*RouteSegment, estimator *SlopeEstimator, calc *ScoreCalculator, wait time.Duration) *Classification {
	warnings := refineRoads(ctx, matchedRoads(segments), estimator, calc, wait, zap.L())
	for _, seg := range segments {
		seg.updateSlope()
	}
	c := Classify(segments)
	c.Warnings = append(c.Warnings, warnings...)
	return c
}

// refineRoads estimates slope and re-scores roads in place. Returns soft warnings
func refineRoads(ctx context.Context, roads []*Road, estimator *SlopeEstimator, calc *ScoreCalculator, wait time.Duration, logger *zap.Logger) []string {
	if estimator == nil || calc == nil {
		return []string{"slope refinement skipped: no elevation provider"}
	}
	if len(roads) == 0 {
		return nil
	}
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	refined := 0
	for _, road := range roads {
		if ctx.Err() != nil {
			break
		}
		result := estimator.Estimate(ctx, road.Points)
		if ctx.Err() != nil {
			break
		}
		road.MaxSlope = result.MaxSlope
		if len(result.Elevations) == len(road.Points) {
			road.Elevations = result.Elevations
		}
		road.Score = calc.ScoreRoad(road)
		refined++
	}
	if refined < len(roads) {
		warning := fmt.Sprintf("slope refinement incomplete: %d of %d roads refined", refined, len(roads))
		logger.Warn("slope refinement incomplete",
			zap.Int("refined", refined),
			zap.Int("roads", len(roads)),
			zap.Error(ctx.Err()),
		)
		return []string{warning}
	}
	return nil
}
