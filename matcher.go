package grvl

import (
	"fmt"
	"math"
)

const (
	// DefaultMatchDistance is default acceptance threshold of combined matching score (meters)
	DefaultMatchDistance = 100.0

	oppositeDirectionAngle   = 90.0
	oppositeDirectionPenalty = 2.0
)

// MatcherConfig configures RoadMatcher
type MatcherConfig struct {
	// MaxDistance is the largest accepted combined score (meters)
	MaxDistance float64
}

func (cfg MatcherConfig) String() string {
	return fmt.Sprintf("Matcher: max distance %.1f m", cfg.MaxDistance)
}

// Match is the best candidate road for a segment
type Match struct {
	Road *Road
	// Distance is the shortest distance (meters) from segment midpoint to the road
	Distance float64
	// BearingDiff is angle between segment and the closest road sub-segment [0; 180]
	BearingDiff float64
	// Score is combined matching score. Lower is better
	Score float64
}

// RoadMatcher assigns segments to roads by combined distance and direction score
type RoadMatcher struct {
	cfg MatcherConfig
}

// NewRoadMatcher creates matcher. Non-positive MaxDistance means DefaultMatchDistance
func NewRoadMatcher(cfg MatcherConfig) *RoadMatcher {
	if cfg.MaxDistance <= 0 {
		cfg.MaxDistance = DefaultMatchDistance
	}
	return &RoadMatcher{cfg: cfg}
}

// Config returns effective configuration
func (matcher *RoadMatcher) Config() MatcherConfig {
	return matcher.cfg
}

// Match returns the best road for segment or nil if none is close enough
func (matcher *RoadMatcher) Match(segment *RouteSegment, candidates []*Road) *Match {
	if segment == nil {
		return nil
	}
	return matcher.MatchPoint(segment.Midpoint(), segment.Bearing(), candidates)
}

// MatchPoint returns the best road for point moving in given direction (degrees).
// Ties are resolved in favor of the first candidate
func (matcher *RoadMatcher) MatchPoint(point GeoPoint, direction float64, candidates []*Road) *Match {
	if len(candidates) == 0 {
		return nil
	}
	proj := newLocalProjection(point)
	var best *Match
	for _, road := range candidates {
		if road == nil || len(road.Points) < 2 {
			continue
		}
		// No point of the road can be closer than this
		if greatCircleDistance(point, road.Points[0])-road.Length() > matcher.cfg.MaxDistance {
			continue
		}
		distance, roadBearing := closestApproach(proj, road.Points)
		diff := bearingDifference(direction, roadBearing)
		score := distance
		if diff > oppositeDirectionAngle {
			score += distance * oppositeDirectionPenalty
		}
		if best == nil || score < best.Score {
			best = &Match{
				Road:        road,
				Distance:    distance,
				BearingDiff: diff,
				Score:       score,
			}
		}
	}
	if best == nil || best.Score > matcher.cfg.MaxDistance {
		return nil
	}
	return best
}

// closestApproach returns distance from projection origin to the line and bearing of the closest sub-segment
func closestApproach(proj localProjection, line []GeoPoint) (float64, float64) {
	minDistance := math.Inf(1)
	closestBearing := 0.0
	for i := 1; i < len(line); i++ {
		d := proj.distanceToSegment(line[i-1], line[i])
		if d < minDistance {
			minDistance = d
			closestBearing = bearing(line[i-1], line[i])
		}
	}
	return minDistance, closestBearing
}
